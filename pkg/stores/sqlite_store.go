package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/ledgersmith/ledgersmith/pkg/engine"
	"github.com/ledgersmith/ledgersmith/pkg/workflow"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeLayout = "2006-01-02 15:04:05"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	return &SQLiteStore{
		path: cfg.Path,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SavePolicy inserts or updates one approval policy
func (s *SQLiteStore) SavePolicy(ctx context.Context, policy *workflow.Policy) error {
	query := `
		INSERT INTO workflow_policies (id, verb, collection, level, success_count, failure_count, last_executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			level = excluded.level,
			success_count = excluded.success_count,
			failure_count = excluded.failure_count,
			last_executed_at = excluded.last_executed_at
	`

	// Zero timestamps persist as NULL so hydration round-trips them as zero.
	var lastExecuted *string
	if !policy.LastExecutedAt.IsZero() {
		formatted := policy.LastExecutedAt.UTC().Format(timeLayout)
		lastExecuted = &formatted
	}

	_, err := s.db.ExecContext(ctx, query,
		policy.ID,
		string(policy.Key.Verb),
		policy.Key.Collection,
		string(policy.Level),
		policy.SuccessCount,
		policy.FailureCount,
		lastExecuted,
	)

	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}

	return nil
}

// ListPolicies returns every persisted approval policy
func (s *SQLiteStore) ListPolicies(ctx context.Context) ([]*workflow.Policy, error) {
	query := `
		SELECT id, verb, collection, level, success_count, failure_count, last_executed_at
		FROM workflow_policies
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	policies := []*workflow.Policy{}
	for rows.Next() {
		var (
			policy       workflow.Policy
			verb         string
			collection   string
			level        string
			lastExecuted *string
		)
		err := rows.Scan(
			&policy.ID,
			&verb,
			&collection,
			&level,
			&policy.SuccessCount,
			&policy.FailureCount,
			&lastExecuted,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}

		policy.Key = workflow.PolicyKey{Verb: engine.Verb(verb), Collection: collection}
		policy.Level = workflow.ApprovalLevel(level)
		if lastExecuted != nil {
			ts, err := time.Parse(timeLayout, *lastExecuted)
			if err != nil {
				return nil, fmt.Errorf("failed to parse policy timestamp: %w", err)
			}
			policy.LastExecutedAt = ts
		}
		policies = append(policies, &policy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policies: %w", err)
	}

	return policies, nil
}

// CreateRun creates a new run record
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (id, batch_path, status, total, succeeded, failed, started_at, completed_at, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.BatchPath,
		run.Status,
		run.Total,
		run.Succeeded,
		run.Failed,
		run.StartedAt.UTC().Format(timeLayout),
		formatNullableTime(run.CompletedAt),
		run.Error,
		run.CreatedAt.UTC().Format(timeLayout),
	)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, batch_path, status, total, succeeded, failed, started_at, completed_at, error, created_at
		FROM runs
		WHERE id = ?
	`

	run := &Run{}
	var startedAt, createdAt string
	var completedAt *string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.BatchPath,
		&run.Status,
		&run.Total,
		&run.Succeeded,
		&run.Failed,
		&startedAt,
		&completedAt,
		&run.Error,
		&createdAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
	}
	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
	}
	if completedAt != nil {
		ts, err := time.Parse(timeLayout, *completedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
		}
		run.CompletedAt = &ts
	}

	return run, nil
}

// CompleteRun stamps a run's terminal status and outcome counters
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, succeeded, failed int, errMsg *string) error {
	query := `
		UPDATE runs
		SET status = ?, succeeded = ?, failed = ?, error = ?, completed_at = ?
		WHERE id = ?
	`

	completedAt := time.Now().UTC().Format(timeLayout)
	result, err := s.db.ExecContext(ctx, query, status, succeeded, failed, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// ListRuns lists runs with pagination, most recent first
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, batch_path, status, total, succeeded, failed, started_at, completed_at, error, created_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run := &Run{}
		var startedAt, createdAt string
		var completedAt *string
		err := rows.Scan(
			&run.ID,
			&run.BatchPath,
			&run.Status,
			&run.Total,
			&run.Succeeded,
			&run.Failed,
			&startedAt,
			&completedAt,
			&run.Error,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
		}
		if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
		}
		if completedAt != nil {
			ts, err := time.Parse(timeLayout, *completedAt)
			if err != nil {
				return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
			}
			run.CompletedAt = &ts
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// AppendOperationResult appends one operation outcome to a run's history
func (s *SQLiteStore) AppendOperationResult(ctx context.Context, opResult *OperationResult) error {
	query := `
		INSERT INTO operation_results (
			run_id, operation_id, entity_kind, verb, collection,
			success, produced_identifier, status_code, error, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		opResult.RunID,
		opResult.OperationID,
		opResult.EntityKind,
		opResult.Verb,
		opResult.Collection,
		opResult.Success,
		opResult.ProducedIdentifier,
		opResult.StatusCode,
		opResult.Error,
		opResult.StartedAt.UTC().Format(timeLayout),
		opResult.DurationMS,
	)

	if err != nil {
		return fmt.Errorf("failed to append operation result: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get operation result ID: %w", err)
	}

	opResult.ID = id
	return nil
}

// ListOperationResultsByRun lists all operation results for a run in
// execution order
func (s *SQLiteStore) ListOperationResultsByRun(ctx context.Context, runID string) ([]*OperationResult, error) {
	query := `
		SELECT id, run_id, operation_id, entity_kind, verb, collection,
			   success, produced_identifier, status_code, error, started_at, duration_ms
		FROM operation_results
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operation results: %w", err)
	}
	defer rows.Close()

	results := []*OperationResult{}
	for rows.Next() {
		r := &OperationResult{}
		var startedAt string
		err := rows.Scan(
			&r.ID,
			&r.RunID,
			&r.OperationID,
			&r.EntityKind,
			&r.Verb,
			&r.Collection,
			&r.Success,
			&r.ProducedIdentifier,
			&r.StatusCode,
			&r.Error,
			&startedAt,
			&r.DurationMS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation result: %w", err)
		}

		if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse result timestamp: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation results: %w", err)
	}

	return results, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

func formatNullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(timeLayout)
	return &formatted
}
