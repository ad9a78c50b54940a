// Package schema holds the declarative manifest shared by the record store and
// the migration runner: collections, their secondary indexes, the fields that
// must be encrypted at rest, and the fields an update may never overwrite.
package schema

import (
	"fmt"
	"regexp"
	"slices"
)

// Store-owned attributes present on every record.
const (
	FieldID        = "id"
	FieldUserID    = "userId"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldVersion   = "version"
	FieldSynced    = "synced"
)

// PrimaryIndex is the pseudo index name for iteration over record ids.
const PrimaryIndex = "id"

var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Index is a secondary index over one top-level attribute.
type Index struct {
	Name   string
	Field  string
	Unique bool
}

// Collection describes one named record set.
type Collection struct {
	Name      string
	Indexes   []Index
	Sensitive []string
	// Protected lists extra attributes, beyond id/userId/createdAt, that an
	// update keeps from the stored record.
	Protected []string
}

// Index returns the named index.
func (c *Collection) Index(name string) (Index, bool) {
	for _, ix := range c.Indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return Index{}, false
}

// IsSensitive reports whether field must be stored as an envelope.
func (c *Collection) IsSensitive(field string) bool {
	return slices.Contains(c.Sensitive, field)
}

// IsProtected reports whether an update must keep the stored value of field.
func (c *Collection) IsProtected(field string) bool {
	switch field {
	case FieldID, FieldUserID, FieldCreatedAt:
		return true
	}
	return slices.Contains(c.Protected, field)
}

// Manifest is the versioned schema of the on-device store.
type Manifest struct {
	Version     string
	Collections []Collection
}

// Collection looks a collection up by name.
func (m *Manifest) Collection(name string) (*Collection, bool) {
	for i := range m.Collections {
		if m.Collections[i].Name == name {
			return &m.Collections[i], true
		}
	}
	return nil, false
}

// Names returns collection names in declaration order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Collections))
	for i, c := range m.Collections {
		names[i] = c.Name
	}
	return names
}

// Validate checks that names are plain identifiers (they end up in table and
// index names) and that no index covers a sensitive field, since ciphertext has
// no useful order.
func (m *Manifest) Validate() error {
	seen := map[string]bool{}
	for _, c := range m.Collections {
		if !identRe.MatchString(c.Name) {
			return fmt.Errorf("collection %q: invalid name", c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("collection %q: declared twice", c.Name)
		}
		seen[c.Name] = true

		ixSeen := map[string]bool{PrimaryIndex: true}
		for _, ix := range c.Indexes {
			if !identRe.MatchString(ix.Name) || !identRe.MatchString(ix.Field) {
				return fmt.Errorf("collection %q: invalid index %q", c.Name, ix.Name)
			}
			if ixSeen[ix.Name] {
				return fmt.Errorf("collection %q: index %q declared twice", c.Name, ix.Name)
			}
			ixSeen[ix.Name] = true
			if c.IsSensitive(ix.Field) {
				return fmt.Errorf("collection %q: index %q covers sensitive field %q", c.Name, ix.Name, ix.Field)
			}
		}
		for _, f := range c.Sensitive {
			switch f {
			case FieldID, FieldUserID, FieldCreatedAt, FieldUpdatedAt, FieldVersion, FieldSynced:
				return fmt.Errorf("collection %q: store-owned field %q cannot be sensitive", c.Name, f)
			}
		}
	}
	return nil
}
