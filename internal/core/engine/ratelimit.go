// Package engine implements the fixed-window rate limiter on top of the
// persisted window store.
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/gatekit/gatekit/internal/core"
)

// WindowTx is one storage transaction over the window table. Every public
// limiter operation runs its statements inside a single transaction and
// finishes with Commit.
type WindowTx interface {
	GetWindow(ctx context.Context, key string, duration int) (*core.Window, error)
	CreateWindow(ctx context.Context, key string, duration int, expiry time.Time) (*core.Window, error)
	IncrementKey(ctx context.Context, key string, by int) error
	DeleteWindow(ctx context.Context, key string, duration int) error
	Prune(ctx context.Context, max int) (int64, error)
	Commit() error
	Rollback() error
}

// WindowStore hands out window transactions.
type WindowStore interface {
	BeginWindows(ctx context.Context) (WindowTx, error)
}

// RateLimiter answers whether a key has exceeded any of its configured
// limits and maintains the persisted counters. Storage errors propagate to
// the caller unchanged; the limiter performs no retries.
type RateLimiter struct {
	Store      WindowStore
	Prefix     string
	Limits     core.RateLimits
	MaxWindows int
	Clock      func() time.Time
}

// New creates a rate limiter namespaced by prefix with the given
// duration-to-limit mapping.
func New(store WindowStore, prefix string, limits core.RateLimits) *RateLimiter {
	return &RateLimiter{
		Store:  store,
		Prefix: prefix,
		Limits: limits,
	}
}

// Update increments all windows of key by the given amount. Windows are
// created as needed (none existed or the old one was expired) so that the
// single-statement increment reaches every configured duration. Excess
// stored windows are pruned before the transaction commits.
func (r *RateLimiter) Update(ctx context.Context, key string, by int) error {
	tx, err := r.Store.BeginWindows(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	nsKey := r.namespacedKey(key)
	for _, duration := range r.durations() {
		if _, err := r.getOrCreateWindow(ctx, tx, nsKey, duration); err != nil {
			return err
		}
	}

	if err := tx.IncrementKey(ctx, nsKey, by); err != nil {
		return err
	}
	if _, err := tx.Prune(ctx, r.MaxWindows); err != nil {
		return err
	}

	return tx.Commit()
}

// ShouldBlock reports whether at least one limit has been reached. Reading
// a key with no live window creates one as a side effect of measurement.
func (r *RateLimiter) ShouldBlock(ctx context.Context, key string) (bool, error) {
	reached, err := r.ReachedLimits(ctx, key)
	if err != nil {
		return false, err
	}
	return len(reached) > 0, nil
}

// UpdateAndCheck combines ShouldBlock and Update. The block decision is
// computed on the pre-update counter state: the caller is told whether the
// incoming request hit an already-reached limit, not whether this request
// itself caused the breach. Callers wanting the latter must invert the
// call order themselves.
func (r *RateLimiter) UpdateAndCheck(ctx context.Context, key string, by int) (bool, error) {
	blocked, err := r.ShouldBlock(ctx, key)
	if err != nil {
		return false, err
	}
	if err := r.Update(ctx, key, by); err != nil {
		return false, err
	}
	return blocked, nil
}

// Windows returns the live window of key for each configured duration,
// creating fresh ones where none exist or the stored one has expired.
func (r *RateLimiter) Windows(ctx context.Context, key string) ([]core.Window, error) {
	tx, err := r.Store.BeginWindows(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	nsKey := r.namespacedKey(key)
	windows := make([]core.Window, 0, len(r.Limits))
	for _, duration := range r.durations() {
		w, err := r.getOrCreateWindow(ctx, tx, nsKey, duration)
		if err != nil {
			return nil, err
		}
		windows = append(windows, *w)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return windows, nil
}

// ReachedLimits returns only the windows whose limit has been reached.
func (r *RateLimiter) ReachedLimits(ctx context.Context, key string) ([]core.Window, error) {
	windows, err := r.Windows(ctx, key)
	if err != nil {
		return nil, err
	}

	reached := []core.Window{}
	for _, w := range windows {
		if w.Reached() {
			reached = append(reached, w)
		}
	}
	return reached, nil
}

// getOrCreateWindow returns the stored window for (key, duration) when it is
// still live. An expired window is deleted and, like a missing one, replaced
// by a fresh window with value 0 and a newly computed expiry.
func (r *RateLimiter) getOrCreateWindow(ctx context.Context, tx WindowTx, key string, duration int) (*core.Window, error) {
	limit := r.Limits[duration]

	stored, err := tx.GetWindow(ctx, key, duration)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		if stored.Expiry.After(r.now()) {
			stored.Limit = limit
			return stored, nil
		}
		if err := tx.DeleteWindow(ctx, key, duration); err != nil {
			return nil, err
		}
	}

	created, err := tx.CreateWindow(ctx, key, duration, r.now().Add(time.Duration(duration)*time.Minute))
	if err != nil {
		return nil, err
	}
	created.Limit = limit
	return created, nil
}

func (r *RateLimiter) namespacedKey(key string) string {
	if r.Prefix == "" {
		return key
	}
	return r.Prefix + ":" + key
}

// durations returns the configured durations in ascending order so that
// statement order is deterministic across calls.
func (r *RateLimiter) durations() []int {
	durations := make([]int, 0, len(r.Limits))
	for duration := range r.Limits {
		durations = append(durations, duration)
	}
	sort.Ints(durations)
	return durations
}

func (r *RateLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
