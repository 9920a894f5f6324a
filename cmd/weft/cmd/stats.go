package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/history"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats [workflow]",
	Short: "Show execution statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		recorder, err := openRecorder()
		if err != nil {
			return err
		}
		defer recorder.Close()

		stats, err := history.Aggregate(context.Background(), recorder, statsLimit)
		if err != nil {
			return err
		}
		if stats.TotalRuns == 0 {
			fmt.Println("no runs recorded yet")
			return nil
		}

		if len(args) == 1 {
			for _, ws := range stats.Workflows {
				if ws.Workflow != args[0] {
					continue
				}
				printWorkflowStats(ws)
				return nil
			}
			fmt.Printf("no recorded runs for workflow %q\n", args[0])
			return nil
		}

		fmt.Printf("runs: %d total, %d completed, %d aborted, %d ad-hoc (%.0f%% success)\n\n",
			stats.TotalRuns, stats.Completed, stats.Aborted, stats.AdHocRuns, stats.SuccessRate*100)
		for _, ws := range stats.Workflows {
			fmt.Printf("%-28s runs=%-4d success=%3.0f%%  avg=%-8s last=%s\n",
				ws.Workflow, ws.Runs, ws.SuccessRate*100,
				ws.AvgDuration.Round(timeRound), ws.LastRun.Format(time.DateOnly))
		}
		return nil
	},
}

func printWorkflowStats(ws history.WorkflowStats) {
	fmt.Printf("%s: %d runs, %.0f%% success, avg %s\n",
		ws.Workflow, ws.Runs, ws.SuccessRate*100, ws.AvgDuration.Round(timeRound))
	for _, ss := range ws.Steps {
		fmt.Printf("  %-20s ok=%-4d fail=%-4d skip=%-4d timeout=%-4d fail-rate=%3.0f%%\n",
			ss.StepID, ss.Succeeded, ss.Failed, ss.Skipped, ss.TimedOut, ss.FailureRate*100)
	}
}

func init() {
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 0,
		"aggregate only the most recent N runs (0 = all)")
	rootCmd.AddCommand(statsCmd)
}
