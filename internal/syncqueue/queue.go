// Package syncqueue records every committed local mutation in an append-only
// log so that a separate synchronization process can replay them against the
// remote service. Only global insertion order (the auto-increment id) is
// guaranteed.
package syncqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ledgerkeeper/internal/dbx"
	"github.com/dmitrijs2005/ledgerkeeper/internal/logging"
)

// Operation is the kind of mutation an entry records.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Priorities used when the caller does not set one.
const (
	PriorityNormal = 1
	PriorityHigh   = 2
)

// DefaultPriority ranks deletions above writes so remote copies of removed
// data disappear first.
func DefaultPriority(op Operation) int {
	if op == OpDelete {
		return PriorityHigh
	}
	return PriorityNormal
}

// Entry is one queued mutation.
type Entry struct {
	ID         int64
	UserID     string
	Operation  Operation
	Collection string
	RecordID   string
	Priority   int
	CreatedAt  time.Time
}

const savepointName = "sync_enqueue"

// Queue appends and inspects sync_queue rows.
type Queue struct {
	logger logging.Logger
	now    func() time.Time
}

// New builds a queue. now stamps entries that carry no CreatedAt; nil means
// time.Now.
func New(logger logging.Logger, now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}
	return &Queue{logger: logger, now: now}
}

// Enqueue appends e inside the caller's transaction under a savepoint. A failed
// append is rolled back to the savepoint, logged and swallowed so the record
// write it belongs to still commits. It reports whether the entry was stored.
func (q *Queue) Enqueue(ctx context.Context, tx dbx.DBTX, e Entry) bool {
	if e.Priority == 0 {
		e.Priority = DefaultPriority(e.Operation)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = q.now()
	}

	err := dbx.WithSavepoint(ctx, tx, savepointName, func(ctx context.Context) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_queue (user_id, operation, collection, record_id, priority, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.UserID, string(e.Operation), e.Collection, e.RecordID, e.Priority,
			e.CreatedAt.UTC().Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		q.logger.Error(ctx, "sync queue append dropped",
			"operation", e.Operation, "collection", e.Collection, "record_id", e.RecordID, "error", err)
		return false
	}
	return true
}

// List returns up to limit entries with id greater than afterID in insertion
// order. A limit <= 0 returns everything.
func (q *Queue) List(ctx context.Context, db dbx.DBTX, afterID int64, limit int) ([]Entry, error) {
	query := `SELECT id, user_id, operation, collection, record_id, priority, created_at
		FROM sync_queue WHERE id > ? ORDER BY id`
	args := []any{afterID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.StorageError("list sync queue", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		var op, created string
		if err := rows.Scan(&e.ID, &e.UserID, &op, &e.Collection, &e.RecordID, &e.Priority, &created); err != nil {
			return nil, dbx.StorageError("scan sync queue row", err)
		}
		e.Operation = Operation(op)
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("sync queue entry %d: bad created_at %q: %w", e.ID, created, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.StorageError("iterate sync queue", err)
	}
	return result, nil
}

// Count returns the number of queued entries.
func (q *Queue) Count(ctx context.Context, db dbx.DBTX) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, dbx.StorageError("count sync queue", err)
	}
	return n, nil
}
