package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BatchExecutor runs ordered batches of operations against the record store.
//
// Execution is intentionally single-threaded and strictly sequential: later
// operations may reference identifiers produced by earlier ones, so the loop
// awaits each collaborator call before proceeding. Do not introduce
// operation-level parallelism without re-deriving the resolver's correctness
// argument.
type BatchExecutor struct {
	client RecordClient
	logger zerolog.Logger
}

// NewBatchExecutor creates a new batch executor with the injected record
// store collaborator.
func NewBatchExecutor(client RecordClient, logger zerolog.Logger) (*BatchExecutor, error) {
	if client == nil {
		return nil, NewPermanentError("record client is nil", nil).WithCode(ErrCodeValidation)
	}

	return &BatchExecutor{
		client: client,
		logger: logger.With().Str("component", "batch-executor").Logger(),
	}, nil
}

// ExecuteBatch executes the given operations in dependency order.
//
// Operations whose status is neither pending nor approved are assumed already
// handled and are skipped. For each remaining operation the loop resolves
// placeholders against the results accumulated so far, performs the
// collaborator call, and records the outcome. On failure with StopOnError
// set, the loop terminates immediately; untouched operations keep their
// status. Results come back in execution order, which may differ from the
// caller's input order.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, operations []*Operation, opts BatchOptions) *BatchReport {
	report := &BatchReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Results:   make([]*ExecutionResult, 0, len(operations)),
	}

	runnable := make([]*Operation, 0, len(operations))
	for _, op := range operations {
		if op.Status == StatusPending || op.Status == StatusApproved {
			runnable = append(runnable, op)
		}
	}

	ordered := Order(runnable)
	resultsByKind := make(map[EntityKind]*ExecutionResult)

	e.logger.Info().
		Str("run_id", report.RunID).
		Int("operations", len(ordered)).
		Bool("stop_on_error", opts.StopOnError).
		Msg("Batch execution started")

	for _, op := range ordered {
		if opts.OnStart != nil {
			opts.OnStart(op)
		}

		result := e.executeOne(ctx, op, resultsByKind)
		report.Results = append(report.Results, result)

		if result.Success {
			report.Succeeded++
			// Last write wins within a run, but only identifier-producing
			// successes feed the resolver.
			if result.ProducedIdentifier != "" {
				resultsByKind[op.EntityKind] = result
			}
			if opts.OnSuccess != nil {
				opts.OnSuccess(op, result)
			}
			continue
		}

		report.Failed++
		if opts.OnFailure != nil {
			opts.OnFailure(op, result)
		}
		if opts.StopOnError {
			report.Halted = true
			e.logger.Warn().
				Str("run_id", report.RunID).
				Str("operation_id", op.ID).
				Msg("Batch halted on first failure")
			break
		}
	}

	report.Total = len(report.Results)
	report.Duration = time.Since(report.StartedAt)

	e.logger.Info().
		Str("run_id", report.RunID).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Bool("halted", report.Halted).
		Dur("duration", report.Duration).
		Msg("Batch execution completed")

	return report
}

// executeOne resolves and executes a single operation, updating its status
// along the forward-only lifecycle.
func (e *BatchExecutor) executeOne(
	ctx context.Context,
	op *Operation,
	resultsByKind map[EntityKind]*ExecutionResult,
) *ExecutionResult {
	result := &ExecutionResult{
		OperationID: op.ID,
		EntityKind:  op.EntityKind,
		StartedAt:   time.Now(),
	}

	_ = op.TransitionTo(StatusExecuting)

	resolved := Resolve(op, resultsByKind)

	resp, err := e.client.ExecuteRequest(ctx, &Request{
		Verb:       resolved.Verb,
		Collection: resolved.Target.Collection,
		RecordID:   resolved.Target.RecordID,
		Payload:    resolved.Payload,
	})
	result.Duration = time.Since(result.StartedAt)

	if err != nil {
		result.Success = false
		result.Error = NewTransientError("record store call failed", err).
			WithCode(ErrCodeTransport).
			WithOperation(op.ID).
			WithCollection(op.Target.Collection)
		_ = op.TransitionTo(StatusFailed)

		e.logger.Error().Err(err).
			Str("operation_id", op.ID).
			Str("collection", op.Target.Collection).
			Msg("Operation transport failure")
		return result
	}

	result.StatusCode = resp.StatusCode
	result.RawOutcome = resp.Raw

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Success = false
		result.Error = NewRejectedError(
			fmt.Sprintf("record store rejected operation with status %d", resp.StatusCode), nil).
			WithCode(ErrCodeStoreRejected).
			WithOperation(op.ID).
			WithCollection(op.Target.Collection)
		_ = op.TransitionTo(StatusFailed)

		e.logger.Warn().
			Str("operation_id", op.ID).
			Str("collection", op.Target.Collection).
			Int("status_code", resp.StatusCode).
			Msg("Operation rejected by record store")
		return result
	}

	result.Success = true
	result.ProducedIdentifier = resp.Identifier()
	_ = op.TransitionTo(StatusSucceeded)

	e.logger.Debug().
		Str("operation_id", op.ID).
		Str("collection", op.Target.Collection).
		Str("produced_identifier", result.ProducedIdentifier).
		Msg("Operation succeeded")
	return result
}
