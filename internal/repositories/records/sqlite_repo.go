package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
	"github.com/dmitrijs2005/ledgerkeeper/internal/dbx"
	"github.com/dmitrijs2005/ledgerkeeper/internal/schema"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
// Collection and field names are interpolated into SQL, so they must come from
// a validated schema.Manifest.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// TableName returns the table that stores collection.
func TableName(collection string) string {
	return "rec_" + collection
}

// KeyExpr is the SQL expression an index over field is built on. Queries must
// use the exact same text for SQLite to pick the expression index.
func KeyExpr(field string) string {
	if field == "" || field == schema.PrimaryIndex {
		return "id"
	}
	return fmt.Sprintf("json_extract(data, '$.%s')", field)
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// EnsureCollection creates the collection table and its indexes if missing.
func (r *SQLiteRepository) EnsureCollection(ctx context.Context, c schema.Collection) error {
	table := TableName(c.Name)
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id      TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		data    TEXT NOT NULL
	)`, table)
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return dbx.StorageError("create table "+table, err)
	}

	for _, ix := range c.Indexes {
		unique := ""
		if ix.Unique {
			unique = "UNIQUE "
		}
		stmt := fmt.Sprintf(`CREATE %sINDEX IF NOT EXISTS idx_%s_%s ON %s (%s)`,
			unique, c.Name, ix.Name, table, KeyExpr(ix.Field))
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return dbx.StorageError(fmt.Sprintf("create index %s.%s", c.Name, ix.Name), err)
		}
	}
	return nil
}

// DropCollection removes the collection table and, with it, its indexes.
func (r *SQLiteRepository) DropCollection(ctx context.Context, collection string) error {
	table := TableName(collection)
	if _, err := r.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return dbx.StorageError("drop table "+table, err)
	}
	return nil
}

// DropIndex removes one secondary index of a collection.
func (r *SQLiteRepository) DropIndex(ctx context.Context, collection, index string) error {
	name := fmt.Sprintf("idx_%s_%s", collection, index)
	if _, err := r.db.ExecContext(ctx, `DROP INDEX IF EXISTS `+name); err != nil {
		return dbx.StorageError("drop index "+name, err)
	}
	return nil
}

// Insert stores a new document. A primary key or unique index conflict is
// reported as common.ErrDuplicateID.
func (r *SQLiteRepository) Insert(ctx context.Context, collection, id, userID string, data []byte) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, data) VALUES (?, ?, ?)`, TableName(collection))
	_, err := r.db.ExecContext(ctx, query, id, userID, string(data))
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("%w: %s/%s: %v", common.ErrDuplicateID, collection, id, err)
		}
		return dbx.StorageError("insert "+collection, err)
	}
	return nil
}

// Get returns the stored document or (nil, nil) if id is absent.
func (r *SQLiteRepository) Get(ctx context.Context, collection, id string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, TableName(collection))
	var data string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dbx.StorageError("get "+collection, err)
	}
	return []byte(data), nil
}

// Replace overwrites the document of an existing id. It expects exactly one row
// to be affected.
func (r *SQLiteRepository) Replace(ctx context.Context, collection, id string, data []byte) error {
	query := fmt.Sprintf(`UPDATE %s SET data = ? WHERE id = ?`, TableName(collection))
	res, err := r.db.ExecContext(ctx, query, string(data), id)
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("%w: %s/%s: %v", common.ErrDuplicateID, collection, id, err)
		}
		return dbx.StorageError("update "+collection, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return dbx.StorageError("rows affected", err)
	}
	if ra != 1 {
		return fmt.Errorf("%w: %s/%s", common.ErrNotFound, collection, id)
	}
	return nil
}

// Delete hard-deletes a document and returns the owner it had.
func (r *SQLiteRepository) Delete(ctx context.Context, collection, id string) (string, bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? RETURNING user_id`, TableName(collection))
	var userID string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, dbx.StorageError("delete "+collection, err)
	}
	return userID, true, nil
}

// MarkSynced sets synced=true if the stored version still equals version.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, collection, id string, version int64) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET data = json_set(data, '$.%s', json('true'))
		WHERE id = ? AND json_extract(data, '$.%s') = ?`,
		TableName(collection), schema.FieldSynced, schema.FieldVersion)
	res, err := r.db.ExecContext(ctx, query, id, version)
	if err != nil {
		return false, dbx.StorageError("mark synced "+collection, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return false, dbx.StorageError("rows affected", err)
	}
	return ra == 1, nil
}

// Count returns the number of stored documents.
func (r *SQLiteRepository) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, TableName(collection))).Scan(&n)
	if err != nil {
		return 0, dbx.StorageError("count "+collection, err)
	}
	return n, nil
}

// Scan returns one page of rows ordered by (key, id) in the requested direction.
func (r *SQLiteRepository) Scan(ctx context.Context, collection string, q PageQuery) ([]Row, error) {
	query, args := buildScan(collection, q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.StorageError("scan "+collection, err)
	}
	defer rows.Close()

	var page []Row
	for rows.Next() {
		var row Row
		var data string
		if err := rows.Scan(&row.ID, &row.Key, &data); err != nil {
			return nil, dbx.StorageError("scan row "+collection, err)
		}
		row.Data = []byte(data)
		page = append(page, row)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.StorageError("iterate "+collection, err)
	}
	return page, nil
}

func buildScan(collection string, q PageQuery) (string, []any) {
	expr := KeyExpr(q.Field)
	primary := expr == "id"

	var where []string
	var args []any

	if !primary {
		where = append(where, expr+" IS NOT NULL")
	}

	if rg := q.Range; rg != nil {
		if rg.Lower != nil {
			op := ">="
			if rg.LowerOpen {
				op = ">"
			}
			where = append(where, fmt.Sprintf("%s %s ?", expr, op))
			args = append(args, rg.Lower)
		}
		if rg.Upper != nil {
			op := "<="
			if rg.UpperOpen {
				op = "<"
			}
			where = append(where, fmt.Sprintf("%s %s ?", expr, op))
			args = append(args, rg.Upper)
		}
	}

	cmp, dir := ">", "ASC"
	if q.Desc {
		cmp, dir = "<", "DESC"
	}

	if q.After != nil {
		if primary {
			where = append(where, "id "+cmp+" ?")
			args = append(args, q.After.ID)
		} else {
			where = append(where, fmt.Sprintf("(%s %s ? OR (%s = ? AND id %s ?))", expr, cmp, expr, cmp))
			args = append(args, q.After.Key, q.After.Key, q.After.ID)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT id, %s, data FROM %s", expr, TableName(collection))
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	if primary {
		fmt.Fprintf(&sb, " ORDER BY id %s", dir)
	} else {
		fmt.Fprintf(&sb, " ORDER BY %s %s, id %s", expr, dir, dir)
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return sb.String(), args
}
