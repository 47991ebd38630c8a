package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:         "history",
	Short:       "List recent sync runs",
	Annotations: withServices,
	RunE:        runHistoryCmd,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if runHistory == nil {
		return errors.New("sync history not configured")
	}

	runs, err := runHistory.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list sync runs: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No sync runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tRUN\tSTATUS\tRECORDS\tDURATION\tERROR")
	for _, r := range runs {
		status := "ok"
		switch {
		case r.Cancelled():
			status = "cancelled"
		case !r.Success:
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			shortID(r.RunID),
			status,
			r.RecordsSynced,
			r.Duration.Round(time.Millisecond),
			r.ErrorMessage,
		)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
