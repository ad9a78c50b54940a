// Package migrations embeds the goose SQL migrations that create the store's
// fixed tables: metadata (secret store and schema version), sync_queue and
// migration_history. Collection tables are created from the schema manifest.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
