package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatekit/gatekit/internal/core"
)

type capturingLogStore struct {
	mu      sync.Mutex
	entries []core.RequestLog
	block   chan struct{}
}

func (s *capturingLogStore) InsertRequestLog(ctx context.Context, entry *core.RequestLog) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *capturingLogStore) all() []core.RequestLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.RequestLog(nil), s.entries...)
}

type countingDrops struct {
	mu    sync.Mutex
	drops int
}

func (c *countingDrops) RequestLogDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drops++
}

func (c *countingDrops) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drops
}

func TestRequestLoggerPersistsEntry(t *testing.T) {
	store := &capturingLogStore{}
	logger := NewRequestLogger(store, zap.NewNop(), nil, 16)

	handler := logger.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/things?q=1", nil)
	req.RemoteAddr = "203.0.113.7:44000"
	req.Header.Set("User-Agent", "gatekit-test")
	req.Header.Set("Referer", "https://example.com/")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, logger.Close(ctx))

	entries := store.all()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "203.0.113.7", entry.IP)
	assert.Equal(t, "gatekit-test", entry.UserAgent)
	assert.Equal(t, "https://example.com/", entry.Referer)
	assert.Equal(t, http.MethodPost, entry.Method)
	assert.Equal(t, "/v1/things", entry.Path)
	assert.Equal(t, http.StatusCreated, entry.Status)
	assert.GreaterOrEqual(t, entry.DurationMS, 0.0)
}

func TestRequestLoggerSetsServerTimingHeader(t *testing.T) {
	store := &capturingLogStore{}
	logger := NewRequestLogger(store, zap.NewNop(), nil, 16)

	handler := logger.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	timing := rec.Header().Get("Server-Timing")
	require.NotEmpty(t, timing)
	assert.True(t, strings.HasPrefix(timing, "endpoint;dur="), timing)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, logger.Close(ctx))
}

func TestRequestLoggerDropsWhenQueueFull(t *testing.T) {
	store := &capturingLogStore{block: make(chan struct{})}
	drops := &countingDrops{}
	logger := NewRequestLogger(store, zap.NewNop(), drops, 1)

	handler := logger.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// First request occupies the writer, second fills the queue, third drops.
	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	assert.Eventually(t, func() bool {
		return drops.count() >= 1
	}, time.Second, 10*time.Millisecond)

	close(store.block)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, logger.Close(ctx))
}

func TestRequestLoggerCloseHonorsContext(t *testing.T) {
	store := &capturingLogStore{block: make(chan struct{})}
	logger := NewRequestLogger(store, zap.NewNop(), nil, 4)

	handler := logger.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, logger.Close(ctx), context.DeadlineExceeded)

	close(store.block)
}
