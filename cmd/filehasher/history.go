package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/filehasher/pkg/filehasher/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	Long: `View the history of scan, hash and verify runs.

One record is kept per run with its counts, timing and the names of
files that did not match.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a run",
	Long:  `Display a run by its ID. Any unique prefix of the ID is accepted.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old history records",
	Long:  `Remove history records older than history.retention_days.`,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.History, error) {
	h, err := history.New(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return h, nil
}

func runHistory(_ *cobra.Command, _ []string) error {
	h, err := openHistory()
	if err != nil {
		return err
	}

	records, err := h.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if len(records) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'filehasher scan <dir>' to create one.")
		return nil
	}

	fmt.Printf("\n%-8s  %-19s  %-6s  %-7s  %8s  %8s  %s\n", "ID", "TIME", "OP", "ALG", "FILES", "MISMATCH", "ROOT")
	fmt.Println(strings.Repeat("-", 90))
	for _, rec := range records {
		fmt.Printf("%-8s  %-19s  %-6s  %-7s  %8d  %8d  %s\n",
			truncateString(rec.ID, 8),
			rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
			rec.Operation,
			rec.Algorithm,
			rec.Counts.Total,
			rec.Counts.Mismatched,
			truncateString(rec.Root, 40),
		)
	}
	fmt.Println(strings.Repeat("-", 90))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(records))
	fmt.Println("Use 'filehasher history show <id>' for details on a specific run.")
	return nil
}

func runHistoryShow(_ *cobra.Command, args []string) error {
	h, err := openHistory()
	if err != nil {
		return err
	}
	rec, err := h.Get(args[0])
	if err != nil {
		return err
	}

	fmt.Println("\nRun Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:         %s\n", rec.ID)
	fmt.Printf("Timestamp:  %s\n", rec.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Operation:  %s\n", rec.Operation)
	fmt.Printf("Root:       %s\n", rec.Root)
	if rec.Manifest != "" {
		fmt.Printf("Manifest:   %s\n", rec.Manifest)
	}
	fmt.Printf("Algorithm:  %s\n", rec.Algorithm)
	fmt.Printf("Elapsed:    %s\n", time.Duration(rec.Elapsed).Round(time.Millisecond))
	fmt.Printf("Files:      %d (found %d)\n", rec.Counts.Total, rec.Found)
	fmt.Printf("Hashed:     %d (%d from cache)\n", rec.Counts.Hashed, rec.CacheHits)
	fmt.Printf("Verified:   %d\n", rec.Counts.Verified)
	fmt.Printf("Mismatched: %d\n", rec.Counts.Mismatched)
	fmt.Printf("Failed:     %d\n", rec.Failed)
	fmt.Printf("Errors:     %d\n", rec.Errors)
	if rec.Aborted {
		fmt.Println("Aborted:    yes")
	}

	if len(rec.Mismatched) > 0 {
		fmt.Println("\nMismatched files:")
		fmt.Println(strings.Repeat("-", 60))

		limit := min(len(rec.Mismatched), 50)
		for _, name := range rec.Mismatched[:limit] {
			fmt.Println(name)
		}
		if len(rec.Mismatched) > limit {
			fmt.Printf("\n... and %d more files\n", len(rec.Mismatched)-limit)
		}
	}
	return nil
}

func runHistoryClean(_ *cobra.Command, _ []string) error {
	h, err := openHistory()
	if err != nil {
		return err
	}

	days := cfg.History.RetentionDays
	if days <= 0 {
		printInfo("history.retention_days is %d, nothing to clean.", days)
		return nil
	}

	printInfo("Cleaning history entries older than %d days...", days)
	removed, err := h.Clean(days)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	printInfo("Removed %d entries.", removed)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
