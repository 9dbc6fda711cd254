package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gatekit/gatekit/internal/core"
	"github.com/gatekit/gatekit/internal/core/store"
)

// FormatWindows renders rate-limit window entries in the requested format.
func FormatWindows(format Format, entries []store.WindowEntry) (string, error) {
	if format == FormatJSON {
		return marshalIndent(entries)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Key", "Duration", "Count", "Expires"})

	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.Key,
			durationLabel(entry.Window.Duration),
			entry.Window.Value,
			expiryLabel(entry.Window.Expiry),
		})
	}

	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d windows", len(entries))})
	return t.Render(), nil
}

// CheckResult is the outcome of a rate-limit check for a single key.
type CheckResult struct {
	Key     string        `json:"key"`
	Blocked bool          `json:"blocked"`
	Windows []core.Window `json:"windows"`
}

// FormatCheck renders a rate-limit check result in the requested format.
func FormatCheck(format Format, result CheckResult) (string, error) {
	if format == FormatJSON {
		return marshalIndent(result)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Duration", "Count", "Limit", "Expires"})

	for _, w := range result.Windows {
		t.AppendRow(table.Row{
			durationLabel(w.Duration),
			w.Value,
			w.Limit,
			expiryLabel(w.Expiry),
		})
	}

	verdict := "allowed"
	if result.Blocked {
		verdict = "blocked"
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%s: %s", result.Key, verdict)})
	return t.Render(), nil
}

// FormatRequestLogs renders request-log entries in the requested format.
func FormatRequestLogs(format Format, entries []core.RequestLog) (string, error) {
	if format == FormatJSON {
		return marshalIndent(entries)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "IP", "Method", "Path", "Status", "Duration"})

	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.Time.UTC().Format(time.RFC3339),
			entry.IP,
			entry.Method,
			entry.Path,
			entry.Status,
			fmt.Sprintf("%.1fms", entry.DurationMS),
		})
	}

	t.AppendFooter(table.Row{"", "", "", "", "", fmt.Sprintf("%d entries", len(entries))})
	return t.Render(), nil
}

func durationLabel(minutes int) string {
	switch {
	case minutes >= core.Day && minutes%core.Day == 0:
		return fmt.Sprintf("%dd", minutes/core.Day)
	case minutes >= core.Hour && minutes%core.Hour == 0:
		return fmt.Sprintf("%dh", minutes/core.Hour)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

func expiryLabel(expiry time.Time) string {
	remaining := time.Until(expiry).Truncate(time.Second)
	if remaining <= 0 {
		return "expired"
	}
	return fmt.Sprintf("%s (in %s)", expiry.UTC().Format(time.RFC3339), remaining)
}
