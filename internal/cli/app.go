package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/dmitrijs2005/ledgerkeeper/internal/backup"
	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
	"github.com/dmitrijs2005/ledgerkeeper/internal/config"
	"github.com/dmitrijs2005/ledgerkeeper/internal/logging"
	"github.com/dmitrijs2005/ledgerkeeper/internal/migrate"
	"github.com/dmitrijs2005/ledgerkeeper/internal/store"
	"github.com/google/subcommands"
)

// App carries what every command needs: configuration, output streams and a
// logger.
type App struct {
	Config *config.Config
	Out    io.Writer
	Err    io.Writer
	Logger logging.Logger
	// PromptPassphrase asks on the terminal instead of using Config.Passphrase.
	PromptPassphrase bool
}

// NewApp builds an App logging JSON to stderr at cfg.LogLevel.
func NewApp(cfg *config.Config, out, errOut io.Writer) (*App, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	return &App{Config: cfg, Out: out, Err: errOut, Logger: logging.NewJSONLogger(level)}, nil
}

// Register adds all commands to cdr.
func (a *App) Register(cdr *subcommands.Commander) {
	cdr.Register(cdr.HelpCommand(), "")
	cdr.Register(cdr.FlagsCommand(), "")
	cdr.Register(&versionCmd{app: a}, "")
	cdr.Register(&migrateCmd{app: a}, "schema")
	cdr.Register(&historyCmd{app: a}, "schema")
	cdr.Register(&statusCmd{app: a}, "schema")
	cdr.Register(&queueCmd{app: a}, "sync")
	cdr.Register(&getCmd{app: a}, "records")
	cdr.Register(&listCmd{app: a}, "records")
	cdr.Register(&createCmd{app: a}, "records")
	cdr.Register(&updateCmd{app: a}, "records")
	cdr.Register(&deleteCmd{app: a}, "records")
}

func (a *App) passphrase() ([]byte, error) {
	if a.PromptPassphrase {
		return GetPassphrase(a.Err)
	}
	if a.Config.Passphrase != "" {
		return []byte(a.Config.Passphrase), nil
	}
	return nil, nil
}

// BackupSink picks S3 when a bucket is configured, else the local directory.
// It returns nil when neither is set.
func (a *App) BackupSink(ctx context.Context) (backup.Sink, error) {
	c := a.Config
	switch {
	case c.BackupS3Bucket != "":
		return backup.NewS3Sink(ctx, backup.S3Config{
			Bucket:    c.BackupS3Bucket,
			Region:    c.BackupS3Region,
			Endpoint:  c.BackupS3Endpoint,
			AccessKey: c.BackupS3AccessKey,
			SecretKey: c.BackupS3SecretKey,
			Prefix:    c.BackupS3Prefix,
		})
	case c.BackupDir != "":
		return backup.NewFileSink(c.BackupDir), nil
	}
	return nil, nil
}

// openStore opens the configured store. With upgrade set, an outdated schema
// is migrated to the current manifest, after a backup.
func (a *App) openStore(ctx context.Context, upgrade bool) (*store.Store, error) {
	pass, err := a.passphrase()
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	defer common.WipeByteArray(pass)

	opts := store.Options{
		DSN:             a.Config.DatabaseDSN,
		Logger:          a.Logger,
		Passphrase:      pass,
		CursorBatchSize: a.Config.CursorBatchSize,
		BusyTimeout:     a.Config.BusyTimeout,
	}
	if upgrade {
		sink, err := a.BackupSink(ctx)
		if err != nil {
			return nil, err
		}
		opts.Migrations = migrate.DefaultRegistry()
		opts.Backup = sink
	}
	return store.Open(ctx, opts)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *App) fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(a.Err, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func (a *App) usage(msg string) subcommands.ExitStatus {
	fmt.Fprintf(a.Err, "Error: %s\n", msg)
	return subcommands.ExitUsageError
}

func (a *App) exit(err error) subcommands.ExitStatus {
	if err != nil {
		return a.fail(err)
	}
	return subcommands.ExitSuccess
}
