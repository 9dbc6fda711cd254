package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gatekit/gatekit/internal/config"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display the effective configuration together with runtime and version information.",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Application:")
		fmt.Println("  Name:       gatekit")
		fmt.Println("  Version:    " + versionInfo.Version)
		fmt.Println("  Commit:     " + versionInfo.Commit)
		fmt.Println("  Built:      " + versionInfo.BuildDate)
		fmt.Println()

		fmt.Println("Runtime:")
		fmt.Println("  Go Version: " + runtime.Version())
		fmt.Println("  Platform:   " + runtime.GOOS + "/" + runtime.GOARCH)
		fmt.Printf("  NumCPU:     %d\n", runtime.NumCPU())
		fmt.Println()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// Secrets never hit stdout.
		if strings.TrimSpace(cfg.Store.AuthToken) != "" {
			cfg.Store.AuthToken = "(set)"
		}

		rendered, err := yaml.Marshal(effectiveConfig(cfg))
		if err != nil {
			return err
		}

		fmt.Println("Configuration:")
		fmt.Println("  File search path: " + config.DefaultConfigDir())
		fmt.Println()
		fmt.Println(string(rendered))
		return nil
	},
}

// effectiveConfig reshapes the config for YAML display; mapstructure tags do
// not drive yaml.Marshal, so the keys are restated here.
func effectiveConfig(cfg *config.Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"host":             cfg.Server.Host,
			"port":             cfg.Server.Port,
			"read_timeout":     cfg.Server.ReadTimeout.String(),
			"write_timeout":    cfg.Server.WriteTimeout.String(),
			"idle_timeout":     cfg.Server.IdleTimeout.String(),
			"shutdown_timeout": cfg.Server.ShutdownTimeout.String(),
			"trust_proxy":      cfg.Server.TrustProxy,
		},
		"store": map[string]any{
			"driver":     cfg.Store.Driver,
			"path":       cfg.Store.Path,
			"url":        cfg.Store.URL,
			"auth_token": cfg.Store.AuthToken,
		},
		"logging": map[string]any{
			"level": cfg.Logging.Level,
		},
		"rate_limit": map[string]any{
			"enabled":     cfg.RateLimit.Enabled,
			"prefix":      cfg.RateLimit.Prefix,
			"max_windows": cfg.RateLimit.MaxWindows,
			"windows":     cfg.RateLimit.Windows,
		},
		"request_log": map[string]any{
			"enabled":   cfg.RequestLog.Enabled,
			"buffer":    cfg.RequestLog.Buffer,
			"retention": cfg.RequestLog.Retention.String(),
		},
		"metrics": map[string]any{
			"enabled": cfg.Metrics.Enabled,
		},
	}
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
