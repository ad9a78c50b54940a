package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "cursor batch", "rows", 64)
	log.Info(ctx, "store opened", "dsn", "mem")
	log.Warn(ctx, "field nulled", "field", "amount")
	log.Error(ctx, "enqueue failed", "collection", "goals")

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "msg=\"cursor batch\"", "rows=64",
		"level=INFO", "dsn=mem",
		"level=WARN", "field=amount",
		"level=ERROR", "collection=goals",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSlogLogger_With_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)

	child := log.With("component", "migrate", "user", "u1")
	child.Info(context.Background(), "step applied", "to", "1.2.0")

	out := buf.String()
	for _, want := range []string{"component=migrate", "user=u1", "to=1.2.0"} {
		require.Contains(t, out, want)
	}
}

func TestNopLogger_DoesNotPanic(t *testing.T) {
	log := NewNopLogger()
	ctx := context.TODO()
	log.Debug(ctx, "x")
	log.Info(ctx, "x")
	log.Warn(ctx, "x")
	log.Error(ctx, "x")
	log.With("k", "v").Info(ctx, "y")
}
