//go:build cgo

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/internal/config"
	"github.com/gatekit/gatekit/internal/core"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	s, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	// Each pooled connection gets its own :memory: database.
	s.DB.SetMaxOpenConns(1)

	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestWindowTxLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	expiry := time.Now().UTC().Add(time.Minute).Truncate(time.Microsecond)

	tx, err := s.BeginWindows(ctx)
	require.NoError(t, err)

	missing, err := tx.GetWindow(ctx, "rl:client1", 1)
	require.NoError(t, err)
	require.Nil(t, missing)

	created, err := tx.CreateWindow(ctx, "rl:client1", 1, expiry)
	require.NoError(t, err)
	require.Equal(t, 0, created.Value)
	require.Equal(t, expiry, created.Expiry)

	require.NoError(t, tx.IncrementKey(ctx, "rl:client1", 5))
	require.NoError(t, tx.Commit())

	tx, err = s.BeginWindows(ctx)
	require.NoError(t, err)
	stored, err := tx.GetWindow(ctx, "rl:client1", 1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, 5, stored.Value)
	require.Equal(t, expiry, stored.Expiry)

	require.NoError(t, tx.DeleteWindow(ctx, "rl:client1", 1))
	require.NoError(t, tx.Commit())

	tx, err = s.BeginWindows(ctx)
	require.NoError(t, err)
	gone, err := tx.GetWindow(ctx, "rl:client1", 1)
	require.NoError(t, err)
	require.Nil(t, gone)
	require.NoError(t, tx.Rollback())
}

func TestCreateWindowDuplicateExpiryFails(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	expiry := time.Now().UTC().Add(time.Minute)

	tx, err := s.BeginWindows(ctx)
	require.NoError(t, err)

	_, err = tx.CreateWindow(ctx, "rl:client1", 1, expiry)
	require.NoError(t, err)

	// Same (key, expiry) pair signals a creation race and must fail.
	_, err = tx.CreateWindow(ctx, "rl:client1", 60, expiry)
	require.Error(t, err)
	require.NoError(t, tx.Rollback())
}

func TestCreateWindowKeepsSubSecondExpiries(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	// Expiries inside the same wall-clock second stay distinct rows; only
	// exact microsecond equality is a primary-key collision.
	base := time.Now().UTC().Truncate(time.Second).Add(time.Minute)

	tx, err := s.BeginWindows(ctx)
	require.NoError(t, err)

	first, err := tx.CreateWindow(ctx, "rl:client1", 1, base)
	require.NoError(t, err)
	second, err := tx.CreateWindow(ctx, "rl:client1", 2, base.Add(500*time.Microsecond))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.Equal(t, base, first.Expiry)
	require.Equal(t, base.Add(500*time.Microsecond), second.Expiry)

	tx, err = s.BeginWindows(ctx)
	require.NoError(t, err)
	stored, err := tx.GetWindow(ctx, "rl:client1", 2)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, base.Add(500*time.Microsecond), stored.Expiry, "microseconds survive the round trip")
	require.NoError(t, tx.Rollback())
}

func TestIncrementKeySpansDurations(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	now := time.Now().UTC()

	tx, err := s.BeginWindows(ctx)
	require.NoError(t, err)
	_, err = tx.CreateWindow(ctx, "rl:client1", 1, now.Add(time.Minute))
	require.NoError(t, err)
	_, err = tx.CreateWindow(ctx, "rl:client1", 60, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = tx.CreateWindow(ctx, "rl:other", 1, now.Add(2*time.Minute))
	require.NoError(t, err)

	require.NoError(t, tx.IncrementKey(ctx, "rl:client1", 3))
	require.NoError(t, tx.Commit())

	tx, err = s.BeginWindows(ctx)
	require.NoError(t, err)
	for _, duration := range []int{1, 60} {
		w, err := tx.GetWindow(ctx, "rl:client1", duration)
		require.NoError(t, err)
		require.NotNil(t, w)
		require.Equal(t, 3, w.Value)
	}

	other, err := tx.GetWindow(ctx, "rl:other", 1)
	require.NoError(t, err)
	require.NotNil(t, other)
	require.Equal(t, 0, other.Value, "increment must not touch other keys")
	require.NoError(t, tx.Rollback())
}

func TestPruneDeletesOldestByExpiry(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	base := time.Now().UTC().Truncate(time.Second)

	tx, err := s.BeginWindows(ctx)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err = tx.CreateWindow(ctx, fmt.Sprintf("rl:client%d", i), 1, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	deleted, err := tx.Prune(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	for i := 0; i < 2; i++ {
		w, err := tx.GetWindow(ctx, fmt.Sprintf("rl:client%d", i), 1)
		require.NoError(t, err)
		require.Nil(t, w, "oldest windows should be pruned first")
	}
	for i := 2; i < 6; i++ {
		w, err := tx.GetWindow(ctx, fmt.Sprintf("rl:client%d", i), 1)
		require.NoError(t, err)
		require.NotNil(t, w)
	}

	// Under the cap nothing is pruned.
	deleted, err = tx.Prune(ctx, 4)
	require.NoError(t, err)
	require.Zero(t, deleted)
	require.NoError(t, tx.Commit())
}

func TestWindowAdminQueries(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	base := time.Now().UTC()

	tx, err := s.BeginWindows(ctx)
	require.NoError(t, err)
	_, err = tx.CreateWindow(ctx, "api:client1", 1, base.Add(time.Minute))
	require.NoError(t, err)
	_, err = tx.CreateWindow(ctx, "api:client1", 60, base.Add(time.Hour))
	require.NoError(t, err)
	_, err = tx.CreateWindow(ctx, "login:client2", 1, base.Add(2*time.Minute))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	entries, err := s.ListWindows(ctx, WindowQuery{Prefix: "api:"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "api:client1", entries[0].Key)
	require.Equal(t, 1, entries[0].Window.Duration)
	require.Equal(t, 60, entries[1].Window.Duration)

	count, err := s.CountWindows(ctx, WindowQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, 3, count)

	_, err = s.ListWindows(ctx, WindowQuery{})
	require.Error(t, err, "query must name --all, --key, or --prefix")

	deleted, err := s.ResetWindows(ctx, WindowQuery{Key: "login:client2"})
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	count, err = s.CountWindows(ctx, WindowQuery{All: true})
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestRequestLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemoryStore(t)

	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		err := s.InsertRequestLog(ctx, &core.RequestLog{
			Time:       base.Add(time.Duration(i) * time.Second),
			IP:         "127.0.0.1",
			UserAgent:  "test-agent",
			Method:     "GET",
			Path:       fmt.Sprintf("/page/%d", i),
			Status:     200,
			DurationMS: 1.5,
		})
		require.NoError(t, err)
	}

	entries, err := s.ListRequestLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "/page/2", entries[0].Path, "newest first")
	require.Equal(t, "127.0.0.1", entries[0].IP)
	require.Equal(t, 1.5, entries[0].DurationMS)

	pruned, err := s.PruneRequestLogs(ctx, base.Add(2*time.Second))
	require.NoError(t, err)
	require.Equal(t, int64(2), pruned)

	entries, err = s.ListRequestLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "/page/2", entries[0].Path)
}
