package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/internal/core"
)

// chdir switches the working directory for the duration of the test.
// Equivalent to t.Chdir (Go 1.24+), which this toolchain lacks.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(prev))
	})
}

func TestLoadDefaults(t *testing.T) {
	// Load probes the working directory for a config file; run from an
	// empty one so a stray config.yaml cannot leak into the assertions.
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "libsql", cfg.Store.Driver)
	assert.NotEmpty(t, cfg.Store.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "http", cfg.RateLimit.Prefix)
	assert.Equal(t, 5000, cfg.RateLimit.MaxWindows)
	assert.Equal(t, 720*time.Hour, cfg.RequestLog.Retention)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GATEKIT_SERVER_PORT", "9999")
	t.Setenv("GATEKIT_STORE_PATH", ":memory:")
	t.Setenv("GATEKIT_LOGGING_LEVEL", "debug")
	t.Setenv("GATEKIT_RATE_LIMIT_PREFIX", "edge")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "edge", cfg.RateLimit.Prefix)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
server:
  port: 7070
rate_limit:
  prefix: api
  max_windows: 100
  windows:
    "1": 3
    "60": 50
request_log:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "api", cfg.RateLimit.Prefix)
	assert.Equal(t, 100, cfg.RateLimit.MaxWindows)
	assert.False(t, cfg.RequestLog.Enabled)

	limits, err := cfg.RateLimit.WindowLimits()
	require.NoError(t, err)
	assert.Equal(t, core.RateLimits{1: 3, 60: 50}, limits)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWindowLimitsRejectsBadKeys(t *testing.T) {
	cfg := RateLimitConfig{Windows: map[string]int{"soon": 10}}
	_, err := cfg.WindowLimits()
	require.Error(t, err)

	cfg = RateLimitConfig{Windows: map[string]int{"1": 0}}
	_, err = cfg.WindowLimits()
	require.Error(t, err)
}
