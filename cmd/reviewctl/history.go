package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of records")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List completed reviews, newest first",
	Long: `List completed review records from the reviewd store.

Examples:
  reviewctl history
  reviewctl history --limit 5 --json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if historyLimit < 1 {
		return fmt.Errorf("--limit must be positive")
	}
	records, err := newClient().List(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		return outputJSON(out, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No reviews found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tREFERENCE\tTITLE\tFINDINGS\tCOMPLETED")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			truncate(r.SessionID, 24),
			truncate(r.Reference, 40),
			truncate(r.Title, 30),
			r.FindingCount,
			formatTime(r.CompletedAt),
		)
	}
	return w.Flush()
}
