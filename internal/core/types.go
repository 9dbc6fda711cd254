// Package core holds the domain types shared between the rate-limit engine,
// the store, and the HTTP/CLI surfaces.
package core

import "time"

// Window durations in minutes.
const (
	Minute = 1
	Hour   = 60
	Day    = 1440
)

// RateLimits maps a window duration in minutes to the maximum number of
// requests allowed within that window.
type RateLimits map[int]int

// Window is one fixed-duration counting period for a rate-limited key.
// Value counts requests inside the window; once Expiry passes the window is
// stale and the next access replaces it with a fresh one.
type Window struct {
	Duration int       `json:"duration"`
	Limit    int       `json:"limit"`
	Value    int       `json:"value"`
	Expiry   time.Time `json:"expiry"`
}

// Reached reports whether the window's counter has hit its limit.
func (w Window) Reached() bool {
	return w.Value >= w.Limit
}

// RequestLog is one persisted request-log entry.
type RequestLog struct {
	ID         int64     `json:"id,omitempty"`
	Time       time.Time `json:"time"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"useragent,omitempty"`
	Referer    string    `json:"referer,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	DurationMS float64   `json:"duration_ms"`
}
