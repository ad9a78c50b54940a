package store

import (
	"encoding/json"

	"github.com/dmitrijs2005/ledgerkeeper/internal/schema"
)

// Record is a decoded record as the application sees it: plain JSON values,
// with sensitive fields already decrypted.
type Record map[string]any

func (r Record) ID() string        { s, _ := r[schema.FieldID].(string); return s }
func (r Record) UserID() string    { s, _ := r[schema.FieldUserID].(string); return s }
func (r Record) CreatedAt() string { s, _ := r[schema.FieldCreatedAt].(string); return s }
func (r Record) UpdatedAt() string { s, _ := r[schema.FieldUpdatedAt].(string); return s }
func (r Record) Synced() bool      { b, _ := r[schema.FieldSynced].(bool); return b }

// Version returns the record version, 0 if unset.
func (r Record) Version() int64 {
	switch v := r[schema.FieldVersion].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
