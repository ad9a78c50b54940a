// Package records persists raw (already sealed) record documents in one SQLite
// table per collection.
//
// # Layout
//
// Each collection maps to a table
//
//	rec_<collection>(id TEXT PRIMARY KEY, user_id TEXT NOT NULL, data TEXT NOT NULL)
//
// where data is the whole record as JSON. Secondary indexes are expression
// indexes over json_extract(data, '$.<field>'), so range scans on an index use
// the index instead of scanning the table. A record whose indexed field is
// missing or null is not part of that index.
//
// # Paging
//
// Scan returns one page ordered by (index key, id). The caller passes the
// position of the last row it saw to get the next page, so no connection is
// held between pages.
package records
