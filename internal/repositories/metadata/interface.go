// Package metadata is the store's local key/value table. It holds secret key
// material (see cryptox.KeyStore) and the current schema version.
package metadata

import (
	"context"
)

// KeySchemaVersion holds the semantic version the on-device schema is at.
const KeySchemaVersion = "schema_version"

type Repository interface {
	// Get returns (nil, nil) when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
}
