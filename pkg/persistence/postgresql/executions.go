package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/persistence"
)

// ExecutionRepository handles workflow execution database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const executionColumns = `
	id
  , definition_id
  , customer_id
  , assigned_owner_id
  , escalation_owner_id
  , status
  , priority_score
  , snooze_until
  , version
  , created_at
  , updated_at
`

// Create inserts a new execution. The partial unique index on
// (customer_id, definition_id) rejects a second non-terminal row, which
// is surfaced as ErrDuplicateExecution.
func (r *ExecutionRepository) Create(ctx context.Context, execution *models.WorkflowExecution) error {
	now := time.Now().UTC()

	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	execution.UpdatedAt = now

	query := `
		INSERT INTO workflow_executions (id, definition_id, customer_id, assigned_owner_id,
			escalation_owner_id, status, priority_score, snooze_until, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.DefinitionID,
		execution.CustomerID,
		execution.AssignedOwnerID,
		execution.EscalationOwnerID,
		execution.Status,
		execution.PriorityScore,
		execution.SnoozeUntil,
		execution.Version,
		execution.CreatedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "workflow_executions_active_pair") {
			return persistence.NewStoreError("Create", execution.ID, persistence.ErrDuplicateExecution)
		}

		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// Update persists the execution guarded by the version the caller read.
// A lost race leaves zero rows affected and maps to ErrVersionConflict.
func (r *ExecutionRepository) Update(ctx context.Context, execution *models.WorkflowExecution) error {
	execution.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE workflow_executions SET
			assigned_owner_id = $3,
			escalation_owner_id = $4,
			status = $5,
			priority_score = $6,
			snooze_until = $7,
			version = version + 1,
			updated_at = $8
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		execution.ID,
		execution.Version,
		execution.AssignedOwnerID,
		execution.EscalationOwnerID,
		execution.Status,
		execution.PriorityScore,
		execution.SnoozeUntil,
		execution.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		_, err := r.GetByID(ctx, execution.ID)
		if err != nil {
			return err
		}

		return persistence.NewStoreError("Update", execution.ID, persistence.ErrVersionConflict)
	}

	execution.Version++

	return nil
}

func (r *ExecutionRepository) GetActiveByPair(ctx context.Context, customerID, definitionID string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE customer_id = $1 AND definition_id = $2
		  AND status NOT IN ('completed', 'completed_with_pending_tasks', 'skipped', 'failed')
	`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, customerID, definitionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE assigned_owner_id = $1
		  AND status NOT IN ('completed', 'completed_with_pending_tasks', 'skipped', 'failed')
		ORDER BY created_at
	`

	return r.queryExecutions(ctx, query, ownerID)
}

func (r *ExecutionRepository) ListActive(ctx context.Context) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + `
		FROM workflow_executions
		WHERE status NOT IN ('completed', 'completed_with_pending_tasks', 'skipped', 'failed')
		ORDER BY created_at
	`

	return r.queryExecutions(ctx, query)
}

func (r *ExecutionRepository) CountActiveByOwner(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT assigned_owner_id, COUNT(*)
		FROM workflow_executions
		WHERE status NOT IN ('completed', 'completed_with_pending_tasks', 'skipped', 'failed')
		GROUP BY assigned_owner_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count executions by owner: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			ownerID string
			count   int
		)

		err := rows.Scan(&ownerID, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan owner count: %w", err)
		}

		counts[ownerID] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating owner counts: %w", err)
	}

	return counts, nil
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.WorkflowExecution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.WorkflowExecution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(scanner interface{ Scan(dest ...any) error }) (*models.WorkflowExecution, error) {
	var execution models.WorkflowExecution

	err := scanner.Scan(
		&execution.ID,
		&execution.DefinitionID,
		&execution.CustomerID,
		&execution.AssignedOwnerID,
		&execution.EscalationOwnerID,
		&execution.Status,
		&execution.PriorityScore,
		&execution.SnoozeUntil,
		&execution.Version,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &execution, nil
}
