package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatekit/gatekit/internal/output"
)

var (
	requestLogListOutput string
	requestLogListLimit  int

	requestLogPruneOlderThan time.Duration
	requestLogPruneYes       bool
)

var requestLogCmd = &cobra.Command{
	Use:   "request-log",
	Short: "Inspect and prune the persisted request log",
}

var requestLogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent request log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(requestLogListOutput)
		if err != nil {
			return err
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		entries, err := db.ListRequestLogs(cmd.Context(), requestLogListLimit)
		if err != nil {
			return err
		}

		rendered, err := output.FormatRequestLogs(format, entries)
		if err != nil {
			return err
		}

		fmt.Println(rendered)
		return nil
	},
}

var requestLogPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete request log entries older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		olderThan := requestLogPruneOlderThan
		if olderThan == 0 {
			olderThan = cfg.RequestLog.Retention
		}
		if olderThan <= 0 {
			return fmt.Errorf("invalid retention: %s", olderThan)
		}
		if !requestLogPruneYes {
			return fmt.Errorf("pruning is destructive, pass --yes to confirm")
		}

		before := time.Now().Add(-olderThan)
		deleted, err := db.PruneRequestLogs(cmd.Context(), before)
		if err != nil {
			return err
		}

		fmt.Printf("Deleted %d entr(ies) older than %s\n", deleted, before.UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	requestLogListCmd.Flags().StringVar(&requestLogListOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	requestLogListCmd.Flags().IntVar(&requestLogListLimit, "limit", 100, "Maximum number of entries to list")

	requestLogPruneCmd.Flags().DurationVar(&requestLogPruneOlderThan, "older-than", 0, "Prune entries older than this duration (default: configured retention)")
	requestLogPruneCmd.Flags().BoolVar(&requestLogPruneYes, "yes", false, "Confirm destructive prune")

	requestLogCmd.AddCommand(requestLogListCmd)
	requestLogCmd.AddCommand(requestLogPruneCmd)
	rootCmd.AddCommand(requestLogCmd)
}
