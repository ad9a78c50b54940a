package store

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/ledgerkeeper/internal/logging"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Count(msg string) int {
	return strings.Count(b.String(), msg)
}

func bufferLogger() (logging.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	h := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return logging.NewSlogLogger(slog.New(h)), buf
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy source unavailable") }

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.DSN == "" {
		opts.DSN = ":memory:"
	}
	if opts.Now == nil {
		clock := &fixedClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
		opts.Now = clock.Now
	}
	s, err := Open(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rawData(t *testing.T, s *Store, collection, id string) string {
	t.Helper()
	var data string
	err := s.DB().QueryRowContext(context.Background(),
		`SELECT data FROM rec_`+collection+` WHERE id = ?`, id).Scan(&data)
	require.NoError(t, err)
	return data
}

func queueCount(t *testing.T, s *Store) int {
	t.Helper()
	entries, err := s.SyncQueue(context.Background(), 0, 0)
	require.NoError(t, err)
	return len(entries)
}
