package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gatekit/gatekit/internal/core"
)

// WindowEntry is a stored window together with its namespaced key.
type WindowEntry struct {
	Key    string      `json:"key"`
	Window core.Window `json:"window"`
}

// WindowQuery selects stored windows for the admin surface.
type WindowQuery struct {
	All    bool
	Key    string
	Prefix string
}

func (q WindowQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Key) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --key, or --prefix")
}

func (q WindowQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if key := strings.TrimSpace(q.Key); key != "" {
		return "WHERE key = ?", []any{key}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE key LIKE ?", []any{prefix + "%"}, nil
}

// ListWindows returns stored windows matching the query, ordered by key then
// duration. Limit values are not persisted and left zero.
func (s *Store) ListWindows(ctx context.Context, q WindowQuery) ([]WindowEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT key, duration, value, expiry
		FROM rate_limit_windows
		%s
		ORDER BY key, duration
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []WindowEntry{}
	for rows.Next() {
		var (
			key      string
			duration int
			value    int
			expiry   int64
		)
		if err := rows.Scan(&key, &duration, &value, &expiry); err != nil {
			return nil, fmt.Errorf("scan windows: %w", err)
		}

		entries = append(entries, WindowEntry{
			Key: key,
			Window: core.Window{
				Duration: duration,
				Value:    value,
				Expiry:   time.UnixMicro(expiry).UTC(),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}

	return entries, nil
}

// CountWindows counts stored windows matching the query.
func (s *Store) CountWindows(ctx context.Context, q WindowQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM rate_limit_windows
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count windows: %w", err)
	}
	return count, nil
}

// ResetWindows deletes stored windows matching the query and reports how
// many rows were removed.
func (s *Store) ResetWindows(ctx context.Context, q WindowQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM rate_limit_windows
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset windows: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset windows: %w", err)
	}
	return affected, nil
}
