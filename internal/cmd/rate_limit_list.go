package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gatekit/gatekit/internal/core/store"
	"github.com/gatekit/gatekit/internal/output"
)

var (
	rateLimitListOutput string
	rateLimitListAll    bool
	rateLimitListKey    string
	rateLimitListPrefix string
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitListOutput)
		if err != nil {
			return err
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.WindowQuery{
			All:    rateLimitListAll,
			Key:    strings.TrimSpace(rateLimitListKey),
			Prefix: strings.TrimSpace(rateLimitListPrefix),
		}
		if !query.All && query.Key == "" && query.Prefix == "" {
			query.All = true
		}

		entries, err := db.ListWindows(cmd.Context(), query)
		if err != nil {
			return err
		}

		rendered, err := output.FormatWindows(format, entries)
		if err != nil {
			return err
		}

		fmt.Println(rendered)
		return nil
	},
}

func init() {
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	rateLimitListCmd.Flags().BoolVar(&rateLimitListAll, "all", false, "List all keys")
	rateLimitListCmd.Flags().StringVar(&rateLimitListKey, "key", "", "List a single key (exact match, including prefix)")
	rateLimitListCmd.Flags().StringVar(&rateLimitListPrefix, "prefix", "", "List keys with matching prefix")
}
