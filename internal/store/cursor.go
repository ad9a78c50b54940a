package store

import (
	"context"
	"fmt"
	"iter"

	"github.com/dmitrijs2005/ledgerkeeper/internal/common"
	"github.com/dmitrijs2005/ledgerkeeper/internal/repositories/records"
	"github.com/dmitrijs2005/ledgerkeeper/internal/schema"
)

// Direction is the iteration order of a cursor.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// KeyRange bounds the index key of a listing. A nil bound is open-ended.
type KeyRange = records.Range

// Bound is the inclusive range [lower, upper].
func Bound(lower, upper any) *KeyRange { return &KeyRange{Lower: lower, Upper: upper} }

// Only matches a single key.
func Only(v any) *KeyRange { return &KeyRange{Lower: v, Upper: v} }

// LowerBound matches keys above v (or equal, unless open).
func LowerBound(v any, open bool) *KeyRange { return &KeyRange{Lower: v, LowerOpen: open} }

// UpperBound matches keys below v (or equal, unless open).
func UpperBound(v any, open bool) *KeyRange { return &KeyRange{Upper: v, UpperOpen: open} }

// ListOptions selects and shapes a listing. Offset, Limit and Filter apply after
// decryption in iteration order: Offset skips the first records of the index,
// whether or not they would pass Filter, and Limit caps the records returned.
type ListOptions struct {
	// Index names a secondary index; empty iterates by primary key.
	Index     string
	Range     *KeyRange
	Offset    int
	Limit     int
	Direction Direction
	Filter    func(Record) bool
}

// Cursor is a lazy, finite, non-restartable sequence of decrypted records. It
// loads rows in pages and holds no database connection between pages.
type Cursor struct {
	ctx     context.Context
	session *Session
	coll    *schema.Collection
	field   string
	opts    ListOptions

	buf       []records.Row
	pos       int
	after     *records.Position
	exhausted bool

	skipped int
	yielded int
	cur     Record
	err     error
	closed  bool
}

// List opens a cursor over collection. Unknown collections and indexes are
// reported here rather than on the first Next.
func (s *Session) List(ctx context.Context, collection string, opts ListOptions) (*Cursor, error) {
	c, err := s.store.collection(collection)
	if err != nil {
		return nil, err
	}
	field := ""
	if opts.Index != "" && opts.Index != schema.PrimaryIndex {
		ix, ok := c.Index(opts.Index)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no index %q", common.ErrInvalidRecord, collection, opts.Index)
		}
		field = ix.Field
	}
	if opts.Offset < 0 || opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative offset or limit", common.ErrInvalidRecord)
	}
	return &Cursor{ctx: ctx, session: s, coll: c, field: field, opts: opts}, nil
}

// Next advances to the next record. It returns false at the end of the
// sequence or on error; check Err afterwards.
func (c *Cursor) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	if c.opts.Limit > 0 && c.yielded >= c.opts.Limit {
		c.Close()
		return false
	}

	for {
		if c.pos >= len(c.buf) {
			if c.exhausted || !c.fetch() {
				c.Close()
				return false
			}
		}
		row := c.buf[c.pos]
		c.pos++

		if c.skipped < c.opts.Offset {
			c.skipped++
			continue
		}

		stored, err := decode(c.coll.Name, row.Data)
		if err != nil {
			c.err = err
			return false
		}
		rec, _ := c.session.store.policy.open(c.ctx, stored, c.coll)
		if c.opts.Filter != nil && !c.opts.Filter(rec) {
			continue
		}

		c.yielded++
		c.cur = rec
		return true
	}
}

func (c *Cursor) fetch() bool {
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return false
	}

	batch := c.session.store.batchSize
	page, err := records.NewSQLiteRepository(c.session.store.db).Scan(c.ctx, c.coll.Name, records.PageQuery{
		Field: c.field,
		Range: c.opts.Range,
		Desc:  c.opts.Direction == Descending,
		After: c.after,
		Limit: batch,
	})
	if err != nil {
		c.err = err
		return false
	}
	if len(page) < batch {
		c.exhausted = true
	}
	if len(page) == 0 {
		return false
	}

	last := page[len(page)-1]
	c.after = &records.Position{Key: last.Key, ID: last.ID}
	c.buf, c.pos = page, 0
	c.session.logger.Debug(c.ctx, "cursor page loaded", "collection", c.coll.Name, "rows", len(page))
	return true
}

// Record returns the current record.
func (c *Cursor) Record() Record { return c.cur }

// Err returns the error that stopped iteration, if any.
func (c *Cursor) Err() error { return c.err }

// Close ends the sequence. It is safe to call more than once.
func (c *Cursor) Close() error {
	c.closed = true
	c.buf = nil
	c.cur = nil
	return nil
}

// All adapts the cursor to a range-over-func sequence. A final (nil, err) pair
// is yielded if iteration stopped on an error. Ranging twice yields nothing the
// second time.
func (c *Cursor) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		defer c.Close()
		for c.Next() {
			if !yield(c.Record(), nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Collect drains a cursor into a slice.
func Collect(c *Cursor) ([]Record, error) {
	var out []Record
	for rec, err := range c.All() {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}
