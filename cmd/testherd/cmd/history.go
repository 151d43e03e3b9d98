package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/testherd/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	archive, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer archive.Close()

	entries, err := archive.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No archived runs.")
		return nil
	}
	fmt.Fprintf(out, "%-10s %-10s %-8s %-6s %-6s %-6s %-7s %s\n",
		"RUN", "PROJECT", "WORKERS", "TOTAL", "PASS", "FAIL", "SKIP", "ENDED")
	for _, e := range entries {
		fmt.Fprintf(out, "%-10d %-10d %-8d %-6d %-6d %-6d %-7d %s\n",
			e.RunID, e.ProjectID, e.Workers, e.Total, e.Passed, e.Failed, e.Skipped,
			time.Unix(e.EndedAt, 0).Format(time.RFC3339))
	}
	return nil
}
