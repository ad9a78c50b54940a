// Package logging defines the structured-logging interface used by the store,
// the migration runner and the CLI. The default implementation wraps log/slog.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Warn(ctx, "field decryption failed", "collection", "accounts", "field", "balance")
type Logger interface {
	// Debug logs verbose diagnostics (cursor batches, savepoints).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a condition that was absorbed instead of returned to the caller,
	// such as a nulled field or a dropped sync queue entry.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
