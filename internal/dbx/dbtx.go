// Package dbx provides the small database/sql abstractions shared by the store,
// the sync queue and the migration runner: a DBTX interface implemented by both
// *sql.DB and *sql.Tx, transaction and savepoint helpers, and the mapping of
// driver failures onto common.ErrStorageUnavailable.
package dbx

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
)

// DBTX is the subset of database/sql used by our repositories.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// StorageError tags a driver error as common.ErrStorageUnavailable while keeping
// the original error in the chain. Nil stays nil.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageUnavailable, err)
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Errors returned by fn are passed through untouched so callers keep their
// validation kinds; begin and commit failures are reported as storage errors.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return StorageError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = StorageError("commit transaction", tx.Commit())
	}()

	err = fn(ctx, tx)
	return err
}

// WithSavepoint runs fn inside a named savepoint of an open transaction. When fn
// fails the savepoint is rolled back and released, leaving the enclosing
// transaction usable, and fn's error is returned.
func WithSavepoint(ctx context.Context, tx DBTX, name string, fn func(ctx context.Context) error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return StorageError("savepoint "+name, err)
	}

	if err := fn(ctx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return StorageError("rollback to savepoint "+name, rbErr)
		}
		_, _ = tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return StorageError("release savepoint "+name, err)
	}
	return nil
}
