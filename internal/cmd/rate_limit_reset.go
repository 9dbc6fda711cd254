package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gatekit/gatekit/internal/core/store"
	"github.com/gatekit/gatekit/internal/output"
)

var (
	rateLimitResetAll    bool
	rateLimitResetKey    string
	rateLimitResetPrefix string
	rateLimitResetYes    bool
	rateLimitResetDryRun bool
	rateLimitResetOutput string
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored rate limit windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitResetOutput)
		if err != nil {
			return err
		}

		query := store.WindowQuery{
			All:    rateLimitResetAll,
			Key:    strings.TrimSpace(rateLimitResetKey),
			Prefix: strings.TrimSpace(rateLimitResetPrefix),
		}
		if err := query.Validate(); err != nil {
			return err
		}

		if query.All && !rateLimitResetYes && !rateLimitResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountWindows(cmd.Context(), query)
		if err != nil {
			return err
		}

		var deleted int64
		if !rateLimitResetDryRun {
			deleted, err = db.ResetWindows(cmd.Context(), query)
			if err != nil {
				return err
			}
		}

		return writeResetResult(format, matched, deleted, rateLimitResetDryRun)
	},
}

func writeResetResult(format output.Format, matched int, deleted int64, dryRun bool) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{
			"matched": matched,
			"deleted": deleted,
			"dry_run": dryRun,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	if dryRun {
		fmt.Printf("Would delete %d window(s)\n", matched)
		return nil
	}
	fmt.Printf("Deleted %d/%d window(s)\n", deleted, matched)
	return nil
}

func init() {
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset all keys")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetKey, "key", "", "Reset a single key (exact match, including prefix)")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetPrefix, "prefix", "", "Reset keys with matching prefix")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be deleted")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
