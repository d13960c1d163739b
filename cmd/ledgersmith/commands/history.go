package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past batch runs",
		Long: `Show past batch runs. Without arguments the most recent runs are
listed; with a run ID the per-operation outcomes of that run are shown.`,
		Example: `  # List recent runs
  ledgersmith history

  # Show one run's operations
  ledgersmith history 3f2a9c6e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if len(args) == 1 {
				return showRun(cmd, a, args[0])
			}
			return listRuns(cmd, a, limit, offset)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	return cmd
}

func listRuns(cmd *cobra.Command, a *app, limit, offset int) error {
	runs, err := a.store.ListRuns(cmd.Context(), limit, offset)
	if err != nil {
		return err
	}

	if jsonOutput {
		encoded, _ := json.MarshalIndent(runs, "", "  ")
		fmt.Println(string(encoded))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tTOTAL\tOK\tFAILED\tSTARTED\tBATCH")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			run.ID, run.Status, run.Total, run.Succeeded, run.Failed,
			run.StartedAt.Format("2006-01-02 15:04:05"), run.BatchPath)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, a *app, runID string) error {
	ctx := cmd.Context()

	run, err := a.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	results, err := a.store.ListOperationResultsByRun(ctx, runID)
	if err != nil {
		return err
	}

	if jsonOutput {
		encoded, _ := json.MarshalIndent(map[string]any{
			"run":     run,
			"results": results,
		}, "", "  ")
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Printf("Run %s (%s): %d succeeded, %d failed\n", run.ID, run.Status, run.Succeeded, run.Failed)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OPERATION\tKIND\tVERB\tSTATUS\tHTTP\tIDENTIFIER\tDURATION")
	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "FAIL"
		}
		identifier := r.ProducedIdentifier
		if identifier == "" {
			identifier = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%dms\n",
			r.OperationID, r.EntityKind, r.Verb, status, r.StatusCode, identifier, r.DurationMS)
	}
	return w.Flush()
}
