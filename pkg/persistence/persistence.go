// Package persistence provides the data storage abstraction layer for
// definitions, executions, tasks, and notifications.
package persistence

import (
	"context"
	"time"

	"github.com/renewos/renewos/pkg/models"
)

type Persistence interface {
	Definitions() DefinitionRepository
	Executions() ExecutionRepository
	Tasks() TaskRepository
	Notifications() NotificationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefinitionRepository stores workflow definitions.
type DefinitionRepository interface {
	GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error)
	GetActive(ctx context.Context) ([]*models.WorkflowDefinition, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	Save(ctx context.Context, definition *models.WorkflowDefinition) error
}

// ExecutionRepository stores workflow executions. Create enforces the
// at-most-one-active-execution-per-(customer, definition) invariant at
// the data layer: concurrent creates for the same pair are serialized by
// a uniqueness constraint, not application locking.
type ExecutionRepository interface {
	// Create inserts a new execution. Returns ErrDuplicateExecution when a
	// non-terminal execution already exists for the same pair.
	Create(ctx context.Context, execution *models.WorkflowExecution) error

	GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error)

	// Update persists the execution if the stored version still matches
	// execution.Version, then increments it. Returns ErrVersionConflict on
	// a lost race.
	Update(ctx context.Context, execution *models.WorkflowExecution) error

	// GetActiveByPair returns the non-terminal execution for the pair, or
	// nil when none exists.
	GetActiveByPair(ctx context.Context, customerID, definitionID string) (*models.WorkflowExecution, error)

	ListByOwner(ctx context.Context, ownerID string) ([]*models.WorkflowExecution, error)
	ListActive(ctx context.Context) ([]*models.WorkflowExecution, error)

	// CountActiveByOwner returns non-terminal execution counts per owner,
	// used by workload balancing.
	CountActiveByOwner(ctx context.Context) (map[string]int, error)
}

// TaskRepository stores tasks. Update is a compare-and-swap on the task
// version so two concurrent transitions cannot both succeed.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	ListByExecution(ctx context.Context, executionID string) ([]*models.Task, error)
	ListSnoozed(ctx context.Context) ([]*models.Task, error)

	// ListOpenByCustomer returns pending and snoozed tasks across every
	// execution belonging to the customer, for transfer discovery.
	ListOpenByCustomer(ctx context.Context, customerID string) ([]*models.Task, error)
}

// ListNotificationsOptions controls notification feed retrieval.
type ListNotificationsOptions struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationRepository stores notifications keyed for idempotent
// delivery.
type NotificationRepository interface {
	// CreateIfAbsent inserts the notification unless one already exists
	// for the same (rule, event, recipient) key. Reports whether a row was
	// created.
	CreateIfAbsent(ctx context.Context, notification *models.Notification) (bool, error)

	// ListByRecipient returns the feed, unread first, newest first within
	// each group.
	ListByRecipient(ctx context.Context, recipientID string, opts ListNotificationsOptions) ([]*models.Notification, error)

	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, recipientID string) error

	// CountSince reports notifications created at or after the cut-off,
	// used to verify reconciliation idempotence.
	CountSince(ctx context.Context, cutoff time.Time) (int, error)
}
