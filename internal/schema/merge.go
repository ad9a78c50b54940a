package schema

import "maps"

// Merge applies patch onto existing as a shallow merge: every patch key replaces
// the top-level value wholesale. Protected fields and the store-owned
// bookkeeping fields (updatedAt, version, synced) always keep the stored value;
// the caller sets the bookkeeping fields afterwards.
func (c *Collection) Merge(existing, patch map[string]any) map[string]any {
	out := maps.Clone(existing)
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range patch {
		if c.IsProtected(k) {
			continue
		}
		switch k {
		case FieldUpdatedAt, FieldVersion, FieldSynced:
			continue
		}
		out[k] = v
	}
	return out
}
