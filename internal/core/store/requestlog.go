package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gatekit/gatekit/internal/core"
)

// InsertRequestLog persists one request-log entry.
func (s *Store) InsertRequestLog(ctx context.Context, entry *core.RequestLog) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if entry == nil {
		return errors.New("request log entry is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	at := entry.Time
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO request_log (at, ip, useragent, referer, verb, path, status, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, at.UTC().Unix(),
		nullString(entry.IP),
		nullString(entry.UserAgent),
		nullString(entry.Referer),
		entry.Method, entry.Path, entry.Status, entry.DurationMS)
	if err != nil {
		return fmt.Errorf("store request log: %w", err)
	}

	return nil
}

// ListRequestLogs returns the most recent entries, newest first. limit <= 0
// returns up to 100 entries.
func (s *Store) ListRequestLogs(ctx context.Context, limit int) ([]core.RequestLog, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, at, ip, useragent, referer, verb, path, status, duration_ms
		FROM request_log
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []core.RequestLog{}
	for rows.Next() {
		var (
			entry      core.RequestLog
			at         int64
			ip         sql.NullString
			userAgent  sql.NullString
			referer    sql.NullString
			durationMS float64
		)
		if err := rows.Scan(&entry.ID, &at, &ip, &userAgent, &referer,
			&entry.Method, &entry.Path, &entry.Status, &durationMS); err != nil {
			return nil, fmt.Errorf("scan request logs: %w", err)
		}

		entry.Time = time.Unix(at, 0).UTC()
		entry.IP = ip.String
		entry.UserAgent = userAgent.String
		entry.Referer = referer.String
		entry.DurationMS = durationMS

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}

	return entries, nil
}

// PruneRequestLogs deletes entries recorded before the cutoff and reports
// how many rows were removed.
func (s *Store) PruneRequestLogs(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM request_log WHERE at < ?
	`, before.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune request logs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune request logs: %w", err)
	}
	return affected, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
