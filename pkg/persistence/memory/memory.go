// Package memory provides an in-memory persistence implementation used by
// tests and local development. It enforces the same uniqueness and
// version-conflict behavior as the PostgreSQL implementation.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/persistence"
)

// Persistence implements persistence.Persistence with mutex-guarded maps.
type Persistence struct {
	mu            sync.RWMutex
	definitions   map[string]*models.WorkflowDefinition
	executions    map[string]*models.WorkflowExecution
	tasks         map[string]*models.Task
	notifications map[string]*models.Notification

	// Idempotency index: (rule, event, recipient) -> notification id.
	notificationKeys map[string]string
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	return &Persistence{
		definitions:      make(map[string]*models.WorkflowDefinition),
		executions:       make(map[string]*models.WorkflowExecution),
		tasks:            make(map[string]*models.Task),
		notifications:    make(map[string]*models.Notification),
		notificationKeys: make(map[string]string),
	}
}

func (p *Persistence) Definitions() persistence.DefinitionRepository {
	return &definitionRepository{p: p}
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return &executionRepository{p: p}
}

func (p *Persistence) Tasks() persistence.TaskRepository {
	return &taskRepository{p: p}
}

func (p *Persistence) Notifications() persistence.NotificationRepository {
	return &notificationRepository{p: p}
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func copyExecution(e *models.WorkflowExecution) *models.WorkflowExecution {
	clone := *e

	if e.SnoozeUntil != nil {
		t := *e.SnoozeUntil
		clone.SnoozeUntil = &t
	}

	if e.EscalationOwnerID != nil {
		s := *e.EscalationOwnerID
		clone.EscalationOwnerID = &s
	}

	return &clone
}

func copyTask(t *models.Task) *models.Task {
	clone := *t

	clone.FirstSnoozedAt = copyTime(t.FirstSnoozedAt)
	clone.SnoozeDeadline = copyTime(t.SnoozeDeadline)
	clone.SnoozedUntil = copyTime(t.SnoozedUntil)

	return &clone
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	c := *t

	return &c
}
