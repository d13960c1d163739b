package stores

import (
	"context"
	"time"

	"github.com/ledgersmith/ledgersmith/pkg/workflow"
)

// RunStatus represents the status of a batch run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusHalted    RunStatus = "halted"
)

// Run represents one persisted batch execution
type Run struct {
	ID          string     `json:"id"`
	BatchPath   string     `json:"batch_path"`
	Status      RunStatus  `json:"status"`
	Total       int        `json:"total"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// OperationResult represents the persisted outcome of one operation
// within a run
type OperationResult struct {
	ID                 int64     `json:"id"`
	RunID              string    `json:"run_id"`
	OperationID        string    `json:"operation_id"`
	EntityKind         string    `json:"entity_kind"`
	Verb               string    `json:"verb"`
	Collection         string    `json:"collection"`
	Success            bool      `json:"success"`
	ProducedIdentifier string    `json:"produced_identifier"`
	StatusCode         int       `json:"status_code"`
	Error              *string   `json:"error,omitempty"`
	StartedAt          time.Time `json:"started_at"`
	DurationMS         int64     `json:"duration_ms"`
}

// Store defines the interface for the persistence layer
type Store interface {
	workflow.PolicyStore

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, succeeded, failed int, errMsg *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)

	// OperationResult operations
	AppendOperationResult(ctx context.Context, result *OperationResult) error
	ListOperationResultsByRun(ctx context.Context, runID string) ([]*OperationResult, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
