package config

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/gatekit/gatekit/internal/core"
)

// Config represents the complete application configuration. Values come from
// defaults, an optional YAML config file, and GATEKIT_* environment
// variables, in that order of precedence.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	RequestLog RequestLogConfig `mapstructure:"request_log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TrustProxy      bool          `mapstructure:"trust_proxy"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level.
	// Valid values: debug, info, warn, error
	Level string `mapstructure:"level"`
}

// RateLimitConfig configures the request rate limiter.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Prefix namespaces the limiter's keys inside the shared window table.
	Prefix string `mapstructure:"prefix"`

	// MaxWindows caps the total number of stored windows; 0 selects the
	// store default.
	MaxWindows int `mapstructure:"max_windows"`

	// Windows maps a window duration in minutes (as a string key, the YAML
	// and env representation) to the allowed request count.
	Windows map[string]int `mapstructure:"windows"`
}

// WindowLimits converts the string-keyed windows mapping into core.RateLimits.
func (c RateLimitConfig) WindowLimits() (core.RateLimits, error) {
	limits := make(core.RateLimits, len(c.Windows))
	for key, limit := range c.Windows {
		duration, err := strconv.Atoi(key)
		if err != nil || duration <= 0 {
			return nil, fmt.Errorf("invalid rate limit window duration: %q", key)
		}
		if limit <= 0 {
			return nil, fmt.Errorf("invalid rate limit for %d minute window: %d", duration, limit)
		}
		limits[duration] = limit
	}
	return limits, nil
}

// RequestLogConfig configures persisted request logging.
type RequestLogConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Buffer is the size of the async write queue; entries are dropped when
	// it is full.
	Buffer int `mapstructure:"buffer"`

	// Retention bounds how long entries are kept by `request-log prune`.
	Retention time.Duration `mapstructure:"retention"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Validate checks cross-field constraints not expressible through decoding.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.RateLimit.MaxWindows < 0 {
		return fmt.Errorf("invalid rate limit max windows: %d", c.RateLimit.MaxWindows)
	}
	if c.RequestLog.Buffer < 0 {
		return fmt.Errorf("invalid request log buffer: %d", c.RequestLog.Buffer)
	}
	if _, err := c.RateLimit.WindowLimits(); err != nil {
		return err
	}
	return nil
}

// WindowDurations returns the configured durations in ascending order, for
// display surfaces.
func (c RateLimitConfig) WindowDurations() []int {
	durations := make([]int, 0, len(c.Windows))
	for key := range c.Windows {
		if duration, err := strconv.Atoi(key); err == nil {
			durations = append(durations, duration)
		}
	}
	sort.Ints(durations)
	return durations
}
