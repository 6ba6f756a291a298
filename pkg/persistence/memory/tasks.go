package memory

import (
	"context"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/persistence"
)

type taskRepository struct {
	p *Persistence
}

func (r *taskRepository) Create(_ context.Context, task *models.Task) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.tasks[task.ID] = copyTask(task)

	return nil
}

func (r *taskRepository) GetByID(_ context.Context, id string) (*models.Task, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	task, ok := r.p.tasks[id]
	if !ok {
		return nil, persistence.ErrTaskNotFound
	}

	return copyTask(task), nil
}

func (r *taskRepository) Update(_ context.Context, task *models.Task) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	existing, ok := r.p.tasks[task.ID]
	if !ok {
		return persistence.ErrTaskNotFound
	}

	if existing.Version != task.Version {
		return persistence.NewStoreError("Update", task.ID, persistence.ErrVersionConflict)
	}

	task.Version++
	r.p.tasks[task.ID] = copyTask(task)

	return nil
}

func (r *taskRepository) ListByExecution(_ context.Context, executionID string) ([]*models.Task, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	tasks := make([]*models.Task, 0)

	for _, task := range r.p.tasks {
		if task.WorkflowExecutionID == executionID {
			tasks = append(tasks, copyTask(task))
		}
	}

	return tasks, nil
}

func (r *taskRepository) ListSnoozed(_ context.Context) ([]*models.Task, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	tasks := make([]*models.Task, 0)

	for _, task := range r.p.tasks {
		if task.Status == models.TaskStatusSnoozed {
			tasks = append(tasks, copyTask(task))
		}
	}

	return tasks, nil
}

func (r *taskRepository) ListOpenByCustomer(_ context.Context, customerID string) ([]*models.Task, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	tasks := make([]*models.Task, 0)

	for _, task := range r.p.tasks {
		if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusSnoozed {
			continue
		}

		execution, ok := r.p.executions[task.WorkflowExecutionID]
		if !ok || execution.CustomerID != customerID {
			continue
		}

		tasks = append(tasks, copyTask(task))
	}

	return tasks, nil
}
