// Package common defines the error kinds surfaced by the ledgerkeeper store and
// small helpers shared across packages. Callers should match errors with
// errors.Is; every error returned by the store wraps exactly one of these.
package common

import "errors"

var (
	// Storage-engine errors (open failure, aborted transaction, quota).
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Record validation errors. Deterministic, never retried.
	ErrDuplicateID       = errors.New("duplicate id")
	ErrNotFound          = errors.New("not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrInvalidRecord     = errors.New("invalid record")

	// Crypto errors.
	ErrKeyUnavailable   = errors.New("encryption key unavailable")
	ErrDecryptionFailed = errors.New("decryption failed")

	// Migration errors.
	ErrNoMigrationPath       = errors.New("no migration path")
	ErrCircularMigrationPath = errors.New("circular migration path")
	ErrMigrationStepFailed   = errors.New("migration step failed")
)
