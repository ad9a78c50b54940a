package migrate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/ledgerkeeper/internal/dbx"
	"github.com/dmitrijs2005/ledgerkeeper/internal/jsonx"
	"github.com/dmitrijs2005/ledgerkeeper/internal/repositories/records"
	"github.com/dmitrijs2005/ledgerkeeper/internal/schema"
)

// Building blocks for migration steps.

// CreateCollection creates the table and indexes of c if missing.
func CreateCollection(c schema.Collection) StepFunc {
	return func(ctx context.Context, tx dbx.DBTX) error {
		return records.NewSQLiteRepository(tx).EnsureCollection(ctx, c)
	}
}

// DropCollection deletes a collection and all of its records.
func DropCollection(name string) StepFunc {
	return func(ctx context.Context, tx dbx.DBTX) error {
		return records.NewSQLiteRepository(tx).DropCollection(ctx, name)
	}
}

// DropIndex removes one index of a collection.
func DropIndex(collection, index string) StepFunc {
	return func(ctx context.Context, tx dbx.DBTX) error {
		return records.NewSQLiteRepository(tx).DropIndex(ctx, collection, index)
	}
}

// RewriteRecords passes every stored record of collection through fn and
// writes back the ones it reports as changed. Records are seen in their stored
// form, so sensitive fields are still sealed.
func RewriteRecords(collection string, fn func(rec map[string]any) (changed bool, err error)) StepFunc {
	return func(ctx context.Context, tx dbx.DBTX) error {
		repo := records.NewSQLiteRepository(tx)
		rows, err := repo.Scan(ctx, collection, records.PageQuery{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			rec, err := jsonx.DecodeObject(row.Data)
			if err != nil {
				return fmt.Errorf("decode %s/%s: %w", collection, row.ID, err)
			}
			changed, err := fn(rec)
			if err != nil {
				return fmt.Errorf("rewrite %s/%s: %w", collection, row.ID, err)
			}
			if !changed {
				continue
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", collection, row.ID, err)
			}
			if err := repo.Replace(ctx, collection, row.ID, data); err != nil {
				return err
			}
		}
		return nil
	}
}

// Steps chains step functions into one.
func Steps(fns ...StepFunc) StepFunc {
	return func(ctx context.Context, tx dbx.DBTX) error {
		for _, fn := range fns {
			if err := fn(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	}
}
