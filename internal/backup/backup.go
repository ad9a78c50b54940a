// Package backup takes consistent snapshots of the on-device database before a
// schema migration run.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/ledgerkeeper/internal/dbx"
	"github.com/dmitrijs2005/ledgerkeeper/internal/filex"
)

// Sink stores a snapshot of db and returns where it went.
type Sink interface {
	Backup(ctx context.Context, db *sql.DB, label string) (string, error)
}

// FileSink writes snapshots into a local directory with VACUUM INTO.
type FileSink struct {
	Dir string
	now func() time.Time
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir, now: time.Now}
}

// FileName builds the snapshot file name for label at t.
func FileName(label string, t time.Time) string {
	return fmt.Sprintf("ledger-%s-%s.db", label, t.UTC().Format("20060102T150405.000"))
}

func (s *FileSink) Backup(ctx context.Context, db *sql.DB, label string) (string, error) {
	dir, err := filex.EnsureDir(s.Dir)
	if err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dir, FileName(label, s.now()))
	if err := snapshot(ctx, db, path); err != nil {
		return "", err
	}
	return path, nil
}

// snapshot copies the live database into path. The target must not exist.
func snapshot(ctx context.Context, db *sql.DB, path string) error {
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return dbx.StorageError("vacuum into "+path, err)
	}
	return nil
}
