package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/ledgerkeeper/internal/backup"
	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
	"github.com/dmitrijs2005/ledgerkeeper/internal/dbx"
	"github.com/dmitrijs2005/ledgerkeeper/internal/logging"
	"github.com/dmitrijs2005/ledgerkeeper/internal/repositories/metadata"
)

// State is the runner's position in its lifecycle.
type State int

const (
	Idle State = iota
	Running
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Observer is notified on every state transition. current is the migration
// being applied while Running, nil otherwise.
type Observer func(state State, current *Migration)

// Result summarizes a run.
type Result struct {
	From    string
	To      string
	Applied []Migration
	// Backup is where the pre-run snapshot went, empty without a sink.
	Backup string
}

// Runner applies migrations from a registry to one database.
type Runner struct {
	db       *sql.DB
	registry *Registry
	sink     backup.Sink
	logger   logging.Logger
	observer Observer
	now      func() time.Time

	runMu sync.Mutex
	mu    sync.Mutex
	state State
}

type Option func(*Runner)

// WithBackup takes a snapshot through sink before any step runs.
func WithBackup(sink backup.Sink) Option { return func(r *Runner) { r.sink = sink } }

func WithLogger(l logging.Logger) Option { return func(r *Runner) { r.logger = l } }

func WithObserver(o Observer) Option { return func(r *Runner) { r.observer = o } }

func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

func NewRunner(db *sql.DB, registry *Registry, opts ...Option) *Runner {
	r := &Runner{
		db:       db,
		registry: registry,
		logger:   logging.NewNopLogger(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// State returns the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) transition(ctx context.Context, s State, current *Migration) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()

	if current != nil {
		r.logger.Debug(ctx, "migration state", "state", s.String(), "migration", current.String())
	} else {
		r.logger.Debug(ctx, "migration state", "state", s.String())
	}
	if r.observer != nil {
		r.observer(s, current)
	}
}

// CurrentVersion returns the recorded schema version, BaseVersion if none.
func (r *Runner) CurrentVersion(ctx context.Context) (string, error) {
	return CurrentVersion(ctx, r.db)
}

// CurrentVersion reads the schema version recorded in the metadata table.
func CurrentVersion(ctx context.Context, db dbx.DBTX) (string, error) {
	v, err := metadata.NewSQLiteRepository(db).Get(ctx, metadata.KeySchemaVersion)
	if err != nil {
		return "", err
	}
	if v == nil {
		return BaseVersion, nil
	}
	return string(v), nil
}

// History lists the audit log of every step ever attempted.
func (r *Runner) History(ctx context.Context) ([]HistoryEntry, error) {
	return ListHistory(ctx, r.db)
}

// Run brings the schema to target, or to the registry's latest version when
// target is empty. Path errors and backup failures abort before any step runs.
// When a step fails, the steps this run applied are undone in reverse order and
// the returned error wraps common.ErrMigrationStepFailed. Concurrent calls are
// serialized.
func (r *Runner) Run(ctx context.Context, target string) (*Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	if target == "" {
		latest, ok := r.registry.Latest()
		if !ok {
			return nil, fmt.Errorf("%w: no migrations registered", common.ErrNoMigrationPath)
		}
		target = latest
	}
	target, ok := Normalize(target)
	if !ok {
		return nil, fmt.Errorf("invalid target version %q", target)
	}

	from, err := r.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{From: from, To: from}

	path, err := r.registry.FindPath(from, target)
	if err != nil {
		return res, err
	}
	if len(path) == 0 {
		r.logger.Info(ctx, "schema is up to date", "version", from)
		return res, nil
	}

	if r.sink != nil {
		loc, err := r.sink.Backup(ctx, r.db, from)
		if err != nil {
			return res, fmt.Errorf("pre-migration backup: %w", err)
		}
		res.Backup = loc
		r.logger.Info(ctx, "pre-migration backup taken", "location", loc)
	}

	r.logger.Info(ctx, "migrating schema", "from", from, "to", target, "steps", len(path))

	var applied []Migration
	for i := range path {
		m := path[i]
		r.transition(ctx, Running, &m)

		if err := r.apply(ctx, m, DirectionUp); err != nil {
			stepErr := fmt.Errorf("%w: %s: %w", common.ErrMigrationStepFailed, m, err)
			r.logger.Error(ctx, "migration step failed", "migration", m.String(), "error", err)

			if rbErr := r.rollback(ctx, applied); rbErr != nil {
				stepErr = errors.Join(stepErr, rbErr)
			}
			r.transition(ctx, RolledBack, nil)
			r.transition(ctx, Idle, nil)
			return res, stepErr
		}
		applied = append(applied, m)
		res.Applied = applied
		res.To = m.To
	}

	r.transition(ctx, Committed, nil)
	r.transition(ctx, Idle, nil)
	r.logger.Info(ctx, "schema migrated", "version", res.To)
	return res, nil
}

func (r *Runner) rollback(ctx context.Context, applied []Migration) error {
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		m := applied[i]
		if m.Down == nil {
			errs = append(errs, fmt.Errorf("migration %s has no down step", m))
			break
		}
		if err := r.apply(ctx, m, DirectionDown); err != nil {
			r.logger.Error(ctx, "migration rollback failed", "migration", m.String(), "error", err)
			errs = append(errs, fmt.Errorf("rollback %s: %w", m, err))
			break
		}
	}
	return errors.Join(errs...)
}

// apply runs one direction of m and the version update in a single
// transaction, then records the outcome in the history log.
func (r *Runner) apply(ctx context.Context, m Migration, dir Direction) error {
	fn, version := m.Up, m.To
	if dir == DirectionDown {
		fn, version = m.Down, m.From
	}

	start := r.now()
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := protect(ctx, tx, fn); err != nil {
			return err
		}
		return metadata.NewSQLiteRepository(tx).Set(ctx, metadata.KeySchemaVersion, []byte(version))
	})

	entry := HistoryEntry{
		From:      m.From,
		To:        m.To,
		Direction: dir,
		Success:   err == nil,
		Duration:  r.now().Sub(start),
		AppliedAt: start,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if hErr := recordHistory(ctx, r.db, entry); hErr != nil {
		r.logger.Warn(ctx, "migration history not recorded", "migration", m.String(), "error", hErr)
	}
	return err
}

// protect turns a panicking step into an error so the run can roll back.
func protect(ctx context.Context, tx dbx.DBTX, fn StepFunc) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, tx)
}
