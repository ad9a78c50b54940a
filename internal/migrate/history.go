package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ledgerkeeper/internal/dbx"
)

// Direction tells whether a history entry applied or undid a migration.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// HistoryEntry is one audited migration step.
type HistoryEntry struct {
	ID        int64
	From      string
	To        string
	Direction Direction
	Success   bool
	Error     string
	Duration  time.Duration
	AppliedAt time.Time
}

func recordHistory(ctx context.Context, db dbx.DBTX, e HistoryEntry) error {
	success := 0
	if e.Success {
		success = 1
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO migration_history (from_version, to_version, direction, success, error, duration_ms, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.From, e.To, string(e.Direction), success, e.Error, e.Duration.Milliseconds(),
		e.AppliedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return dbx.StorageError("record migration history", err)
	}
	return nil
}

// ListHistory returns all history entries, oldest first.
func ListHistory(ctx context.Context, db dbx.DBTX) ([]HistoryEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, from_version, to_version, direction, success, error, duration_ms, applied_at
		FROM migration_history ORDER BY id`)
	if err != nil {
		return nil, dbx.StorageError("list migration history", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var dir, applied string
		var success int
		var ms int64
		if err := rows.Scan(&e.ID, &e.From, &e.To, &dir, &success, &e.Error, &ms, &applied); err != nil {
			return nil, dbx.StorageError("scan migration history", err)
		}
		e.Direction = Direction(dir)
		e.Success = success == 1
		e.Duration = time.Duration(ms) * time.Millisecond
		if e.AppliedAt, err = time.Parse(time.RFC3339Nano, applied); err != nil {
			return nil, fmt.Errorf("history entry %d: bad applied_at %q: %w", e.ID, applied, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.StorageError("iterate migration history", err)
	}
	return out, nil
}
