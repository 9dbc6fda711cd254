package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gatekit/gatekit/internal/core"
)

// DefaultMaxWindows caps the total number of stored windows across all keys
// when the caller does not configure its own limit.
const DefaultMaxWindows = 5000

// WindowTx groups the window statements of one limiter operation into a
// single database transaction. Callers must Commit or Rollback.
type WindowTx struct {
	tx *sql.Tx
}

// BeginWindows opens a transaction for rate-limit window operations.
func (s *Store) BeginWindows(ctx context.Context) (*WindowTx, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin window tx: %w", err)
	}
	return &WindowTx{tx: tx}, nil
}

// GetWindow returns the stored window for (key, duration), or nil when no
// row exists. Expiry checks are the caller's concern.
func (t *WindowTx) GetWindow(ctx context.Context, key string, duration int) (*core.Window, error) {
	var (
		value  int
		expiry int64
	)

	row := t.tx.QueryRowContext(ctx, `
		SELECT value, expiry
		FROM rate_limit_windows
		WHERE key = ? AND duration = ?
	`, key, duration)

	if err := row.Scan(&value, &expiry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch window: %w", err)
	}

	return &core.Window{
		Duration: duration,
		Value:    value,
		Expiry:   time.UnixMicro(expiry).UTC(),
	}, nil
}

// CreateWindow inserts a fresh window with value 0. A row with the same
// (key, expiry) triggers a primary-key violation, which is returned as-is:
// it signals a creation race and the operation fails rather than
// double-creating. Expiry keeps microsecond precision: truncating to whole
// seconds would collide one key's windows with each other whenever a short
// window rolls over into the second of a longer window's expiry.
func (t *WindowTx) CreateWindow(ctx context.Context, key string, duration int, expiry time.Time) (*core.Window, error) {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO rate_limit_windows (key, duration, value, expiry)
		VALUES (?, ?, 0, ?)
	`, key, duration, expiry.UTC().UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}

	return &core.Window{
		Duration: duration,
		Value:    0,
		Expiry:   expiry.UTC().Truncate(time.Microsecond),
	}, nil
}

// IncrementKey bumps the counter of every window stored for key, across all
// durations, in one statement. Rows that do not exist receive no increment,
// so callers must ensure a window row exists per configured duration first.
func (t *WindowTx) IncrementKey(ctx context.Context, key string, by int) error {
	if _, err := t.tx.ExecContext(ctx, `
		UPDATE rate_limit_windows SET value = value + ? WHERE key = ?
	`, by, key); err != nil {
		return fmt.Errorf("increment windows: %w", err)
	}
	return nil
}

// DeleteWindow removes the row for (key, duration).
func (t *WindowTx) DeleteWindow(ctx context.Context, key string, duration int) error {
	if _, err := t.tx.ExecContext(ctx, `
		DELETE FROM rate_limit_windows WHERE key = ? AND duration = ?
	`, key, duration); err != nil {
		return fmt.Errorf("delete window: %w", err)
	}
	return nil
}

// Prune deletes the oldest-by-expiry windows until the total row count is
// back at max, regardless of key. max <= 0 selects DefaultMaxWindows.
func (t *WindowTx) Prune(ctx context.Context, max int) (int64, error) {
	if max <= 0 {
		max = DefaultMaxWindows
	}

	var count int
	row := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rate_limit_windows`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count windows: %w", err)
	}

	excess := count - max
	if excess <= 0 {
		return 0, nil
	}

	// DELETE ... ORDER BY ... LIMIT needs a sqlite compile-time option, so
	// the oldest rows are selected through a subquery instead.
	result, err := t.tx.ExecContext(ctx, `
		DELETE FROM rate_limit_windows
		WHERE rowid IN (
			SELECT rowid FROM rate_limit_windows ORDER BY expiry LIMIT ?
		)
	`, excess)
	if err != nil {
		return 0, fmt.Errorf("prune windows: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune windows: %w", err)
	}
	return deleted, nil
}

// Commit flushes the transaction durably.
func (t *WindowTx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. Safe to call after Commit.
func (t *WindowTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
