package store

import (
	"context"
	"errors"
	"fmt"
)

// Uniqueness follows the persisted identity of a window: (key, expiry),
// with expiry in unix microseconds. Logical lookups go through
// (key, duration), which the second index covers.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS rate_limit_windows (
		key TEXT NOT NULL,
		duration INTEGER NOT NULL,
		value INTEGER NOT NULL DEFAULT 0,
		expiry INTEGER NOT NULL,
		PRIMARY KEY (key, expiry)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_rate_limit_windows_lookup ON rate_limit_windows(key, duration);`,
	`CREATE INDEX IF NOT EXISTS idx_rate_limit_windows_expiry ON rate_limit_windows(expiry);`,
	`CREATE TABLE IF NOT EXISTS request_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		ip TEXT,
		useragent TEXT,
		referer TEXT,
		verb TEXT NOT NULL,
		path TEXT NOT NULL,
		status INTEGER NOT NULL,
		duration_ms REAL NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_request_log_at ON request_log(at);`,
}

// Migrate ensures the required database tables exist. It runs once at store
// initialization; nothing else in the store creates tables lazily.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
