package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ledgersmith/ledgersmith/pkg/engine"
	"github.com/ledgersmith/ledgersmith/pkg/stores"
	"github.com/ledgersmith/ledgersmith/pkg/telemetry"
	"github.com/ledgersmith/ledgersmith/pkg/workflow"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var (
		approve     bool
		stopOnError bool
	)

	cmd := &cobra.Command{
		Use:   "run <batch-file>",
		Short: "Execute a batch of record operations",
		Long: `Execute a batch file of entity operations against the record store.

Operations are validated, ordered by entity-kind dependencies, and executed
strictly in sequence so that produced record identifiers can be resolved
into later operations. Approval policies gate the batch: manual policies
require --approve, validated policies run after a cancellable countdown,
and automated policies run immediately.`,
		Example: `  # Execute a batch with explicit approval
  ledgersmith run --approve ./batches/onboarding.json

  # Halt at the first failed operation
  ledgersmith run --approve --stop-on-error ./batches/onboarding.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			return runBatch(ctx, a, args[0], approve, stopOnError || a.cfg.Execution.StopOnError)
		},
	}

	cmd.Flags().BoolVar(&approve, "approve", false, "approve operations gated by manual policies")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "halt the batch at the first failed operation")

	return cmd
}

func runBatch(ctx context.Context, a *app, batchPath string, approve, stopOnError bool) error {
	file, err := os.Open(batchPath)
	if err != nil {
		return fmt.Errorf("failed to open batch file: %w", err)
	}
	operations, err := engine.ParseBatch(file)
	_ = file.Close()
	if err != nil {
		return err
	}

	// Nothing is sent until the whole batch validates.
	dryRun := engine.DryRun(operations)
	if !dryRun.Valid {
		printDryRun(dryRun)
		return fmt.Errorf("batch failed validation")
	}

	if err := gateBatch(ctx, a, operations, approve); err != nil {
		return err
	}

	ctx, span := a.tracer.StartBatchSpan(ctx, batchPath, len(operations))
	defer span.End()

	a.metrics.RecordBatchStarted()

	report := a.executor.ExecuteBatch(ctx, operations, engine.BatchOptions{
		StopOnError: stopOnError,
		OnStart: func(op *engine.Operation) {
			if !jsonOutput {
				fmt.Printf("  %s %s/%s...\n", op.Verb, op.EntityKind, op.ID)
			}
		},
		OnSuccess: func(op *engine.Operation, result *engine.ExecutionResult) {
			recordOutcome(ctx, a, op, result)
		},
		OnFailure: func(op *engine.Operation, result *engine.ExecutionResult) {
			recordOutcome(ctx, a, op, result)
			if result.Error != nil {
				a.metrics.RecordError(string(result.Error.Class))
			}
		},
	})

	status := stores.RunStatusCompleted
	switch {
	case report.Halted:
		status = stores.RunStatusHalted
	case report.Failed > 0:
		status = stores.RunStatusFailed
	}
	a.metrics.RecordBatchCompleted(string(status), report.Duration)
	telemetry.RecordSuccess(span)

	if err := persistRun(ctx, a, batchPath, status, report, operations); err != nil {
		a.logger.Error().Err(err).Msg("Failed to persist run history")
	}

	printReport(report)
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d operations failed", report.Failed, report.Total)
	}
	return nil
}

// gateBatch applies the approval policy to the batch: the most restrictive
// decision across all operations wins.
func gateBatch(ctx context.Context, a *app, operations []*engine.Operation, approve bool) error {
	isBulk := len(operations) > 1
	mode := workflow.ModeImmediate
	for _, op := range operations {
		key := workflow.PolicyKey{Verb: op.Verb, Collection: op.Target.Collection}
		switch a.policies.Decide(key, isBulk, len(operations)) {
		case workflow.ModeManual:
			mode = workflow.ModeManual
		case workflow.ModeCountdown:
			if mode != workflow.ModeManual {
				mode = workflow.ModeCountdown
			}
		}
	}

	switch mode {
	case workflow.ModeManual:
		if !approve {
			return fmt.Errorf("batch requires manual approval: re-run with --approve")
		}
		return nil
	case workflow.ModeCountdown:
		return awaitCountdown(ctx, a, operations[0])
	default:
		return nil
	}
}

// awaitCountdown runs the cancellable countdown before execution. An
// interrupt cancels the countdown and aborts the batch.
func awaitCountdown(ctx context.Context, a *app, first *engine.Operation) error {
	a.metrics.RecordCountdownShown()

	countdown := a.policies.Countdown()
	key := workflow.PolicyKey{Verb: first.Verb, Collection: first.Target.Collection}
	if err := countdown.Start(key); err != nil {
		return err
	}

	if !jsonOutput {
		fmt.Printf("Executing in %d seconds (Ctrl-C to cancel)...\n", workflow.CountdownSeconds)
	}

	for {
		select {
		case <-ctx.Done():
			countdown.Cancel()
			return fmt.Errorf("batch cancelled")
		case event := <-countdown.Events():
			switch event.Type {
			case workflow.CountdownTick:
				if !jsonOutput {
					fmt.Printf("  %d...\n", event.SecondsRemaining)
				}
			case workflow.CountdownElapsed:
				return nil
			case workflow.CountdownCancelled:
				return fmt.Errorf("batch cancelled")
			}
		}
	}
}

// recordOutcome feeds one completed operation into the policy engine and
// metrics. A failure at the automated level demotes the policy to manual.
func recordOutcome(ctx context.Context, a *app, op *engine.Operation, result *engine.ExecutionResult) {
	opStatus := "succeeded"
	if !result.Success {
		opStatus = "failed"
	}
	a.metrics.RecordOperation(string(op.Verb), string(op.EntityKind), opStatus, result.Duration)

	key := workflow.PolicyKey{Verb: op.Verb, Collection: op.Target.Collection}
	wasAutomated := a.policies.ShouldAutoExecute(key)

	policy, err := a.policies.RecordExecution(ctx, key, result.Success)
	if err != nil {
		a.logger.Error().Err(err).Str("policy", key.String()).Msg("Failed to record execution")
		return
	}

	if !result.Success && wasAutomated && policy.Level == workflow.LevelManual {
		a.metrics.RecordPolicyDemotion(string(key.Verb), key.Collection)
	}
}

// persistRun writes the run and its per-operation outcomes to history.
func persistRun(ctx context.Context, a *app, batchPath string, status stores.RunStatus, report *engine.BatchReport, operations []*engine.Operation) error {
	opsByID := make(map[string]*engine.Operation, len(operations))
	for _, op := range operations {
		opsByID[op.ID] = op
	}

	run := &stores.Run{
		ID:        report.RunID,
		BatchPath: batchPath,
		Status:    stores.RunStatusRunning,
		Total:     report.Total,
		StartedAt: report.StartedAt,
		CreatedAt: report.StartedAt,
	}
	if err := a.store.CreateRun(ctx, run); err != nil {
		return err
	}

	for _, result := range report.Results {
		op := opsByID[result.OperationID]
		if op == nil {
			continue
		}

		row := &stores.OperationResult{
			RunID:              report.RunID,
			OperationID:        result.OperationID,
			EntityKind:         string(result.EntityKind),
			Verb:               string(op.Verb),
			Collection:         op.Target.Collection,
			Success:            result.Success,
			ProducedIdentifier: result.ProducedIdentifier,
			StatusCode:         result.StatusCode,
			StartedAt:          result.StartedAt,
			DurationMS:         result.Duration.Milliseconds(),
		}
		if result.Error != nil {
			msg := result.Error.Error()
			row.Error = &msg
		}
		if err := a.store.AppendOperationResult(ctx, row); err != nil {
			return err
		}
	}

	return a.store.CompleteRun(ctx, report.RunID, status, report.Succeeded, report.Failed, nil)
}

// printReport renders the batch report.
func printReport(report *engine.BatchReport) {
	if jsonOutput {
		encoded, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(encoded))
		return
	}

	fmt.Printf("\nRun %s: %d succeeded, %d failed", report.RunID, report.Succeeded, report.Failed)
	if report.Halted {
		fmt.Print(" (halted)")
	}
	fmt.Printf(" in %s\n", report.Duration.Round(time.Millisecond))

	for _, result := range report.Results {
		if result.Success {
			if result.ProducedIdentifier != "" {
				fmt.Printf("  ok   %-24s -> %s\n", result.OperationID, result.ProducedIdentifier)
			} else {
				fmt.Printf("  ok   %s\n", result.OperationID)
			}
			continue
		}
		fmt.Printf("  FAIL %-24s %v\n", result.OperationID, result.Error)
	}
}
