package records

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
	"github.com/dmitrijs2005/ledgerkeeper/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var txCollection = schema.Collection{
	Name: "transactions",
	Indexes: []schema.Index{
		{Name: "date", Field: "date"},
		{Name: "amountBucket", Field: "bucket"},
	},
}

var usersCollection = schema.Collection{
	Name:    "users",
	Indexes: []schema.Index{{Name: "email", Field: "email", Unique: true}},
}

func setupRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, r.EnsureCollection(ctx, txCollection))
	require.NoError(t, r.EnsureCollection(ctx, usersCollection))
	// idempotent
	require.NoError(t, r.EnsureCollection(ctx, txCollection))
	return r, db
}

func seedTx(t *testing.T, r *SQLiteRepository, id, date string, bucket any) {
	t.Helper()
	doc := fmt.Sprintf(`{"id":%q,"date":%q}`, id, date)
	if bucket != nil {
		doc = fmt.Sprintf(`{"id":%q,"date":%q,"bucket":%v}`, id, date, bucket)
	}
	require.NoError(t, r.Insert(context.Background(), "transactions", id, "u1", []byte(doc)))
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestInsertGetReplaceDelete(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, "transactions", "t1", "u1", []byte(`{"id":"t1"}`)))

	got, err := r.Get(ctx, "transactions", "t1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"t1"}`, string(got))

	missing, err := r.Get(ctx, "transactions", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, r.Replace(ctx, "transactions", "t1", []byte(`{"id":"t1","v":2}`)))
	err = r.Replace(ctx, "transactions", "nope", []byte(`{}`))
	require.ErrorIs(t, err, common.ErrNotFound)

	owner, deleted, err := r.Delete(ctx, "transactions", "t1")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, "u1", owner)

	_, deleted, err = r.Delete(ctx, "transactions", "t1")
	require.NoError(t, err)
	assert.False(t, deleted)

	n, err := r.Count(ctx, "transactions")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsert_DuplicateIDAndUniqueIndex(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, "users", "u1", "u1", []byte(`{"email":"a@example.com"}`)))

	err := r.Insert(ctx, "users", "u1", "u1", []byte(`{"email":"b@example.com"}`))
	require.ErrorIs(t, err, common.ErrDuplicateID)

	err = r.Insert(ctx, "users", "u2", "u2", []byte(`{"email":"a@example.com"}`))
	require.ErrorIs(t, err, common.ErrDuplicateID)
}

func TestMarkSynced_VersionGuard(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, r.Insert(ctx, "transactions", "t1", "u1", []byte(`{"id":"t1","version":2,"synced":false}`)))

	ok, err := r.MarkSynced(ctx, "transactions", "t1", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.MarkSynced(ctx, "transactions", "t1", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.Get(ctx, "transactions", "t1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"t1","version":2,"synced":true}`, string(got))
}

func TestScan_IndexRangeAndPaging(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	seedTx(t, r, "a", "2024-01-05", nil)
	seedTx(t, r, "b", "2024-01-20", nil)
	seedTx(t, r, "c", "2024-01-20", nil)
	seedTx(t, r, "d", "2024-02-01", nil)
	seedTx(t, r, "e", "2023-12-31", nil)

	rg := &Range{Lower: "2024-01-01", Upper: "2024-01-31"}

	all, err := r.Scan(ctx, "transactions", PageQuery{Field: "date", Range: rg})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(all))
	assert.Equal(t, "2024-01-05", all[0].Key)

	desc, err := r.Scan(ctx, "transactions", PageQuery{Field: "date", Range: rg, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(desc))

	// page through with ties on the key
	var got []string
	var after *Position
	for {
		page, err := r.Scan(ctx, "transactions", PageQuery{Field: "date", After: after, Limit: 2})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		got = append(got, ids(page)...)
		last := page[len(page)-1]
		after = &Position{Key: last.Key, ID: last.ID}
	}
	assert.Equal(t, []string{"e", "a", "b", "c", "d"}, got)
}

func TestScan_OpenBoundsAndPrimary(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()
	seedTx(t, r, "a", "2024-01-01", 1)
	seedTx(t, r, "b", "2024-01-02", 2)
	seedTx(t, r, "c", "2024-01-03", 3)
	seedTx(t, r, "d", "2024-01-04", nil)

	rows, err := r.Scan(ctx, "transactions", PageQuery{Field: "bucket", Range: &Range{Lower: 1, LowerOpen: true, Upper: 3, UpperOpen: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(rows))

	// records without the indexed field are not in the index
	rows, err = r.Scan(ctx, "transactions", PageQuery{Field: "bucket"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(rows))

	rows, err = r.Scan(ctx, "transactions", PageQuery{Desc: true, After: &Position{ID: "c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(rows))
}

func TestScan_UsesExpressionIndex(t *testing.T) {
	r, db := setupRepo(t)
	_ = r

	query, args := buildScan("transactions", PageQuery{Field: "date", Range: &Range{Lower: "2024-01-01"}, Limit: 10})
	rows, err := db.Query("EXPLAIN QUERY PLAN "+query, args...)
	require.NoError(t, err)
	defer rows.Close()

	var plan []string
	for rows.Next() {
		var id, parent, notused int
		var detail string
		require.NoError(t, rows.Scan(&id, &parent, &notused, &detail))
		plan = append(plan, detail)
	}
	require.NoError(t, rows.Err())
	assert.Contains(t, strings.Join(plan, "\n"), "idx_transactions_date")
}

func TestBuildScan_Shape(t *testing.T) {
	q, args := buildScan("goals", PageQuery{
		Field: "targetDate",
		Range: &Range{Lower: "2024", Upper: "2025", UpperOpen: true},
		Desc:  true,
		After: &Position{Key: "2024-06", ID: "g9"},
		Limit: 5,
	})
	expr := "json_extract(data, '$.targetDate')"
	assert.Equal(t,
		"SELECT id, "+expr+", data FROM rec_goals WHERE "+expr+" IS NOT NULL AND "+expr+" >= ? AND "+expr+" < ? AND ("+
			expr+" < ? OR ("+expr+" = ? AND id < ?)) ORDER BY "+expr+" DESC, id DESC LIMIT ?",
		q)
	assert.Equal(t, []any{"2024", "2025", "2024-06", "2024-06", "g9", 5}, args)
}

func TestDriverErrors_AreStorageUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO rec_goals").WillReturnError(fmt.Errorf("database or disk is full"))
	mock.ExpectQuery("SELECT data FROM rec_goals").WillReturnError(fmt.Errorf("disk I/O error"))

	r := NewSQLiteRepository(db)
	ctx := context.Background()

	err = r.Insert(ctx, "goals", "g1", "u1", []byte(`{}`))
	require.ErrorIs(t, err, common.ErrStorageUnavailable)

	_, err = r.Get(ctx, "goals", "g1")
	require.ErrorIs(t, err, common.ErrStorageUnavailable)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDropIndexAndCollection(t *testing.T) {
	r, db := setupRepo(t)
	ctx := context.Background()

	countIndexes := func() int {
		var n int
		require.NoError(t, db.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND tbl_name = 'rec_transactions' AND name LIKE 'idx_%'`).Scan(&n))
		return n
	}
	assert.Equal(t, 2, countIndexes())

	require.NoError(t, r.DropIndex(ctx, "transactions", "date"))
	assert.Equal(t, 1, countIndexes())
	// idempotent
	require.NoError(t, r.DropIndex(ctx, "transactions", "date"))

	require.NoError(t, r.DropCollection(ctx, "transactions"))
	_, err := r.Count(ctx, "transactions")
	require.ErrorIs(t, err, common.ErrStorageUnavailable)
	require.NoError(t, r.DropCollection(ctx, "transactions"))
}
