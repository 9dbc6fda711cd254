package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gatekit/gatekit/internal/output"
)

var rateLimitCheckOutput string

var rateLimitCheckCmd = &cobra.Command{
	Use:   "check <key>",
	Short: "Check the current rate limit state of a key",
	Long: `Check the current rate limit state of a key without incrementing
its counters. Windows are created on first sight, so checking a fresh key
shows zeroed counters.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitCheckOutput)
		if err != nil {
			return err
		}

		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		limiter, err := newLimiter(db, cfg)
		if err != nil {
			return err
		}

		key := args[0]
		windows, err := limiter.Windows(cmd.Context(), key)
		if err != nil {
			return err
		}
		blocked, err := limiter.ShouldBlock(cmd.Context(), key)
		if err != nil {
			return err
		}

		rendered, err := output.FormatCheck(format, output.CheckResult{
			Key:     key,
			Blocked: blocked,
			Windows: windows,
		})
		if err != nil {
			return err
		}

		fmt.Println(rendered)
		return nil
	},
}

func init() {
	rateLimitCheckCmd.Flags().StringVar(&rateLimitCheckOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
