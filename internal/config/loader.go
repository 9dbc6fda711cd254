// Package config provides centralized configuration management for gatekit.
// Configuration is layered: built-in defaults, an optional YAML file, then
// GATEKIT_* environment variables. The variable name is the config path
// uppercased with dots replaced by underscores, e.g. server.port becomes
// GATEKIT_SERVER_PORT.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const envPrefix = "GATEKIT"

// Load reads the configuration. path selects an explicit config file; when
// empty the default locations are probed and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir := DefaultConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	decode := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, decode); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	v.SetDefault("logging.level", "info")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.prefix", "http")
	v.SetDefault("rate_limit.max_windows", 5000)
	v.SetDefault("rate_limit.windows", map[string]int{"1": 60, "60": 1000})

	v.SetDefault("request_log.enabled", true)
	v.SetDefault("request_log.buffer", 256)
	v.SetDefault("request_log.retention", "720h")

	v.SetDefault("metrics.enabled", true)
}

// DefaultConfigDir returns the XDG-compliant config directory for the app.
func DefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gatekit")
}

// DefaultStorePath returns the default path of the database file.
func DefaultStorePath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "gatekit", "gatekit.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./gatekit.db"
	}
	return filepath.Join(home, ".local", "share", "gatekit", "gatekit.db")
}
