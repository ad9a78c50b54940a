package records

import (
	"context"

	"github.com/dmitrijs2005/ledgerkeeper/internal/schema"
)

// Range bounds the index key of a scan. A nil bound is open-ended.
type Range struct {
	Lower     any
	Upper     any
	LowerOpen bool
	UpperOpen bool
}

// Position identifies the last row of a page.
type Position struct {
	Key any
	ID  string
}

// PageQuery describes one page of an index scan.
type PageQuery struct {
	// Field is the indexed attribute; empty means the primary key.
	Field string
	Range *Range
	Desc  bool
	After *Position
	Limit int
}

// Row is a stored record with its index key.
type Row struct {
	ID   string
	Key  any
	Data []byte
}

// Repository describes the raw document operations of one collection set.
type Repository interface {
	EnsureCollection(ctx context.Context, c schema.Collection) error
	DropCollection(ctx context.Context, collection string) error
	DropIndex(ctx context.Context, collection, index string) error
	Insert(ctx context.Context, collection, id, userID string, data []byte) error
	Get(ctx context.Context, collection, id string) ([]byte, error)
	Replace(ctx context.Context, collection, id string, data []byte) error
	Delete(ctx context.Context, collection, id string) (userID string, deleted bool, err error)
	MarkSynced(ctx context.Context, collection, id string, version int64) (bool, error)
	Scan(ctx context.Context, collection string, q PageQuery) ([]Row, error)
	Count(ctx context.Context, collection string) (int, error)
}
