package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/persistence"
)

// TaskRepository handles task database operations.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const taskColumns = `
	id
  , workflow_execution_id
  , title
  , type
  , owner
  , owner_id
  , status
  , requires_decision
  , snooze_count
  , first_snoozed_at
  , snooze_deadline
  , snoozed_until
  , crm_payload
  , version
  , created_at
  , updated_at
`

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	task.UpdatedAt = now

	payloadJSON, err := json.Marshal(task.CRMPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal crm payload: %w", err)
	}

	query := `
		INSERT INTO tasks (id, workflow_execution_id, title, type, owner, owner_id, status,
			requires_decision, snooze_count, first_snoozed_at, snooze_deadline, snoozed_until,
			crm_payload, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		task.WorkflowExecutionID,
		task.Title,
		task.Type,
		task.Owner,
		task.OwnerID,
		task.Status,
		task.RequiresDecision,
		task.SnoozeCount,
		task.FirstSnoozedAt,
		task.SnoozeDeadline,
		task.SnoozedUntil,
		payloadJSON,
		task.Version,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTaskNotFound
		}

		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	return task, nil
}

// Update persists the task guarded by the version the caller read, so two
// concurrent transitions cannot both succeed.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()

	payloadJSON, err := json.Marshal(task.CRMPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal crm payload: %w", err)
	}

	query := `
		UPDATE tasks SET
			workflow_execution_id = $3,
			status = $4,
			requires_decision = $5,
			snooze_count = $6,
			first_snoozed_at = $7,
			snooze_deadline = $8,
			snoozed_until = $9,
			crm_payload = $10,
			version = version + 1,
			updated_at = $11
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.Version,
		task.WorkflowExecutionID,
		task.Status,
		task.RequiresDecision,
		task.SnoozeCount,
		task.FirstSnoozedAt,
		task.SnoozeDeadline,
		task.SnoozedUntil,
		payloadJSON,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		_, err := r.GetByID(ctx, task.ID)
		if err != nil {
			return err
		}

		return persistence.NewStoreError("Update", task.ID, persistence.ErrVersionConflict)
	}

	task.Version++

	return nil
}

func (r *TaskRepository) ListByExecution(ctx context.Context, executionID string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE workflow_execution_id = $1 ORDER BY created_at`

	return r.queryTasks(ctx, query, executionID)
}

func (r *TaskRepository) ListSnoozed(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = 'snoozed' ORDER BY created_at`

	return r.queryTasks(ctx, query)
}

func (r *TaskRepository) ListOpenByCustomer(ctx context.Context, customerID string) ([]*models.Task, error) {
	query := `
		SELECT
			t.id
		  , t.workflow_execution_id
		  , t.title
		  , t.type
		  , t.owner
		  , t.owner_id
		  , t.status
		  , t.requires_decision
		  , t.snooze_count
		  , t.first_snoozed_at
		  , t.snooze_deadline
		  , t.snoozed_until
		  , t.crm_payload
		  , t.version
		  , t.created_at
		  , t.updated_at
		FROM tasks t
		JOIN workflow_executions e ON e.id = t.workflow_execution_id
		WHERE e.customer_id = $1
		  AND t.status IN ('pending', 'snoozed')
		ORDER BY t.created_at
	`

	return r.queryTasks(ctx, query, customerID)
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, task)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*models.Task, error) {
	var (
		task        models.Task
		payloadJSON []byte
	)

	err := scanner.Scan(
		&task.ID,
		&task.WorkflowExecutionID,
		&task.Title,
		&task.Type,
		&task.Owner,
		&task.OwnerID,
		&task.Status,
		&task.RequiresDecision,
		&task.SnoozeCount,
		&task.FirstSnoozedAt,
		&task.SnoozeDeadline,
		&task.SnoozedUntil,
		&payloadJSON,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if payloadJSON != nil {
		err := json.Unmarshal(payloadJSON, &task.CRMPayload)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal crm payload: %w", err)
		}
	}

	return &task, nil
}
