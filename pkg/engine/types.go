package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// Target identifies the record-store collection an operation acts on, plus
// the record identifier for update, delete, and read-one requests.
type Target struct {
	// Collection is the record-store collection (table) name.
	Collection string `json:"collection"`

	// RecordID is the identifier of an existing record, when required by the verb.
	RecordID string `json:"record_id,omitempty"`
}

// Operation is a single unit of work against the record store.
type Operation struct {
	// ID is the caller-assigned unique identifier for this operation.
	ID string `json:"id"`

	// EntityKind is the record category this operation targets.
	EntityKind EntityKind `json:"entity_kind"`

	// Verb is the request kind (read, create, update, delete).
	Verb Verb `json:"verb"`

	// Target is the collection and optional record identifier.
	Target Target `json:"target"`

	// Payload holds the field values to submit. Values may be literals or
	// symbolic placeholders of the form "{{entityKind.identifier}}".
	Payload map[string]any `json:"payload,omitempty"`

	// Status is the current lifecycle state of the operation.
	Status OperationStatus `json:"status"`

	// CreatedAt is when the operation was assembled by the caller.
	CreatedAt time.Time `json:"created_at"`
}

// TransitionTo advances the operation's status. It enforces the forward-only
// lifecycle: terminal states are immutable and backward moves are rejected.
func (o *Operation) TransitionTo(next OperationStatus) error {
	if !o.Status.CanTransitionTo(next) {
		return NewPermanentError(
			fmt.Sprintf("illegal status transition %s -> %s", o.Status, next), nil).
			WithCode(ErrCodeValidation).
			WithOperation(o.ID)
	}
	o.Status = next
	return nil
}

// Clone returns a deep copy of the operation. The payload map is copied so
// the original stays untouched for audit and logging.
func (o *Operation) Clone() *Operation {
	dup := *o
	if o.Payload != nil {
		dup.Payload = make(map[string]any, len(o.Payload))
		for k, v := range o.Payload {
			dup.Payload[k] = v
		}
	}
	return &dup
}

// ExecutionResult is the per-operation outcome of a batch run.
type ExecutionResult struct {
	// OperationID is the ID of the operation this result belongs to.
	OperationID string `json:"operation_id"`

	// EntityKind is carried over from the operation for result indexing.
	EntityKind EntityKind `json:"entity_kind"`

	// Success indicates whether the record store accepted the operation.
	Success bool `json:"success"`

	// ProducedIdentifier is the identifier of the created record, present only
	// on success when the record store returned one.
	ProducedIdentifier string `json:"produced_identifier,omitempty"`

	// StatusCode is the record store's HTTP-like status code, when available.
	StatusCode int `json:"status_code,omitempty"`

	// RawOutcome is the collaborator's response or error detail, passed through
	// opaquely for logging.
	RawOutcome json.RawMessage `json:"raw_outcome,omitempty"`

	// Error is the classified failure, present only when Success is false.
	Error *EngineError `json:"error,omitempty"`

	// StartedAt is when execution of this operation started.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the collaborator call took.
	Duration time.Duration `json:"duration"`
}

// BatchOptions controls how ExecuteBatch runs a set of operations.
type BatchOptions struct {
	// StopOnError halts the remainder of the run on the first failed operation.
	// Remaining operations are left untouched, not marked failed.
	StopOnError bool

	// OnStart is invoked just before an operation executes.
	OnStart func(op *Operation)

	// OnSuccess is invoked after an operation succeeds.
	OnSuccess func(op *Operation, result *ExecutionResult)

	// OnFailure is invoked after an operation fails.
	OnFailure func(op *Operation, result *ExecutionResult)
}

// BatchReport summarizes a completed batch run.
type BatchReport struct {
	// RunID is the unique identifier assigned to this run.
	RunID string `json:"run_id"`

	// Total is the number of operations that were attempted.
	Total int `json:"total"`

	// Succeeded is the number of operations the record store accepted.
	Succeeded int `json:"succeeded"`

	// Failed is the number of operations that failed.
	Failed int `json:"failed"`

	// Halted indicates the run stopped early because of StopOnError.
	Halted bool `json:"halted"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration"`

	// Results are the per-operation outcomes in execution order.
	Results []*ExecutionResult `json:"results"`
}
