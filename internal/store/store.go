// Package store is the local encrypted record store: transactional CRUD and
// indexed iteration over the collections of a schema manifest, with sensitive
// fields sealed by the field codec and every committed mutation recorded in the
// sync queue.
//
// A Store owns the SQLite connection and the codec. Initialize returns a
// Session bound to one user; all record operations go through a Session, so
// several isolated stores and sessions can coexist in one process.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/ledgerkeeper/internal/backup"
	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
	"github.com/dmitrijs2005/ledgerkeeper/internal/cryptox"
	"github.com/dmitrijs2005/ledgerkeeper/internal/dbx"
	"github.com/dmitrijs2005/ledgerkeeper/internal/logging"
	"github.com/dmitrijs2005/ledgerkeeper/internal/migrate"
	"github.com/dmitrijs2005/ledgerkeeper/internal/migrations"
	"github.com/dmitrijs2005/ledgerkeeper/internal/repositories/metadata"
	"github.com/dmitrijs2005/ledgerkeeper/internal/repositories/records"
	"github.com/dmitrijs2005/ledgerkeeper/internal/schema"
	"github.com/dmitrijs2005/ledgerkeeper/internal/syncqueue"

	_ "modernc.org/sqlite"
)

const defaultBatchSize = 64

// Options configures Open. Only DSN is required.
type Options struct {
	// DSN is a modernc.org/sqlite data source, e.g. "ledger.db" or ":memory:".
	DSN string
	// Manifest defaults to schema.Default().
	Manifest *schema.Manifest
	Logger   logging.Logger
	// Passphrase switches the codec to a passphrase-derived key.
	Passphrase []byte
	// Rand is the secure random source for key generation. Defaults to crypto/rand.
	Rand io.Reader
	// CursorBatchSize is the number of rows a cursor loads per page.
	CursorBatchSize int
	BusyTimeout     time.Duration
	Now             func() time.Time
	// Migrations upgrades a database recorded at an older version than the
	// manifest before collections are created. Without it an outdated
	// database is opened as is.
	Migrations *migrate.Registry
	// Backup receives a snapshot before migrations run.
	Backup backup.Sink
}

// Store is an open on-device record store.
type Store struct {
	db        *sql.DB
	manifest  *schema.Manifest
	logger    logging.Logger
	policy    *policy
	queue     *syncqueue.Queue
	batchSize int
	now       func() time.Time
}

// Open opens (creating if needed) the database, applies the bootstrap
// migrations, creates the manifest's collections and loads the field key. When
// no key can be produced the store runs in plaintext mode instead of failing.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Manifest == nil {
		opts.Manifest = schema.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}
	if opts.CursorBatchSize <= 0 {
		opts.CursorBatchSize = defaultBatchSize
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := opts.Manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	db, err := sql.Open("sqlite", opts.DSN)
	if err != nil {
		return nil, dbx.StorageError("open database", err)
	}
	// single writer; also keeps an in-memory database alive on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{
		db:        db,
		manifest:  opts.Manifest,
		logger:    opts.Logger,
		queue:     syncqueue.New(opts.Logger, opts.Now),
		batchSize: opts.CursorBatchSize,
		now:       opts.Now,
	}

	if err := s.bootstrap(ctx, opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) bootstrap(ctx context.Context, opts Options) error {
	if err := s.db.PingContext(ctx); err != nil {
		return dbx.StorageError("connect", err)
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return dbx.StorageError(p, err)
		}
	}

	if err := migrations.Up(ctx, s.db); err != nil {
		return dbx.StorageError("bootstrap schema", err)
	}

	if err := s.upgrade(ctx, opts); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := EnsureCollections(ctx, tx, s.manifest); err != nil {
			return err
		}
		meta := metadata.NewSQLiteRepository(tx)
		v, err := meta.Get(ctx, metadata.KeySchemaVersion)
		if err != nil {
			return err
		}
		if v == nil {
			return meta.Set(ctx, metadata.KeySchemaVersion, []byte(s.manifest.Version))
		}
		return nil
	})
	if err != nil {
		return err
	}

	codec, err := s.loadCodec(ctx, opts)
	if err != nil {
		return err
	}
	s.policy = &policy{codec: codec, logger: s.logger}
	if codec == nil {
		s.policy.degraded(ctx)
	}
	return nil
}

// upgrade runs the registered migrations when the recorded version is behind
// the manifest. A fresh database has no version yet and is created at the
// manifest version directly.
func (s *Store) upgrade(ctx context.Context, opts Options) error {
	v, err := metadata.NewSQLiteRepository(s.db).Get(ctx, metadata.KeySchemaVersion)
	if err != nil || v == nil {
		return err
	}
	current := string(v)
	if migrate.Compare(current, s.manifest.Version) >= 0 {
		return nil
	}
	if opts.Migrations == nil {
		s.logger.Warn(ctx, "schema is behind and no migrations are registered",
			"version", current, "target", s.manifest.Version)
		return nil
	}

	runOpts := []migrate.Option{migrate.WithLogger(s.logger)}
	if opts.Backup != nil {
		runOpts = append(runOpts, migrate.WithBackup(opts.Backup))
	}
	if _, err := migrate.NewRunner(s.db, opts.Migrations, runOpts...).Run(ctx, s.manifest.Version); err != nil {
		return fmt.Errorf("migrate schema %s -> %s: %w", current, s.manifest.Version, err)
	}
	return nil
}

func (s *Store) loadCodec(ctx context.Context, opts Options) (*cryptox.Codec, error) {
	ks := metadata.NewSQLiteRepository(s.db)

	var key []byte
	var err error
	if len(opts.Passphrase) > 0 {
		key, err = cryptox.KeyFromPassphrase(ctx, ks, opts.Passphrase, opts.Rand)
	} else {
		key, err = cryptox.GetOrCreateKey(ctx, ks, opts.Rand)
	}
	if errors.Is(err, common.ErrKeyUnavailable) {
		s.logger.Debug(ctx, "no field key", "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load encryption key: %w", err)
	}
	defer common.WipeByteArray(key)

	return cryptox.NewCodec(key)
}

// EnsureCollections creates every collection table and index of m. The
// migration runner calls it too, after a step changed the manifest.
func EnsureCollections(ctx context.Context, db dbx.DBTX, m *schema.Manifest) error {
	repo := records.NewSQLiteRepository(db)
	for _, c := range m.Collections {
		if err := repo.EnsureCollection(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection for the migration runner and backups.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Manifest() *schema.Manifest { return s.manifest }

func (s *Store) Logger() logging.Logger { return s.logger }

// Encrypted reports whether sensitive fields are being sealed.
func (s *Store) Encrypted() bool { return s.policy.codec != nil }

// Metadata returns the key/value repository on the shared connection.
func (s *Store) Metadata() metadata.Repository {
	return metadata.NewSQLiteRepository(s.db)
}

// SyncQueue returns the pending mutations with id > afterID, oldest first.
func (s *Store) SyncQueue(ctx context.Context, afterID int64, limit int) ([]syncqueue.Entry, error) {
	return s.queue.List(ctx, s.db, afterID, limit)
}

// SyncQueueLen returns the number of pending mutations.
func (s *Store) SyncQueueLen(ctx context.Context) (int, error) {
	return s.queue.Count(ctx, s.db)
}

// SealRecord encrypts the sensitive fields of rec for collection.
func (s *Store) SealRecord(ctx context.Context, collection string, rec Record) (Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	return s.policy.seal(ctx, rec, c)
}

// OpenRecord decrypts the sensitive fields of rec; undecryptable fields become nil.
func (s *Store) OpenRecord(ctx context.Context, collection string, rec Record) (Record, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	out, _ := s.policy.open(ctx, rec, c)
	return out, nil
}

func (s *Store) collection(name string) (*schema.Collection, error) {
	c, ok := s.manifest.Collection(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownCollection, name)
	}
	return c, nil
}

// Initialize returns a session that stamps userID on the records it creates.
func (s *Store) Initialize(userID string) *Session {
	return &Session{store: s, userID: userID, logger: s.logger.With("user_id", userID)}
}
