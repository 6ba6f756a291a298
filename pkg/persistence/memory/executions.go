package memory

import (
	"context"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/persistence"
)

type definitionRepository struct {
	p *Persistence
}

func (r *definitionRepository) GetAll(_ context.Context) ([]*models.WorkflowDefinition, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	definitions := make([]*models.WorkflowDefinition, 0, len(r.p.definitions))
	for _, d := range r.p.definitions {
		clone := *d
		definitions = append(definitions, &clone)
	}

	return definitions, nil
}

func (r *definitionRepository) GetActive(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*models.WorkflowDefinition, 0, len(all))

	for _, d := range all {
		if d.Active {
			active = append(active, d)
		}
	}

	return active, nil
}

func (r *definitionRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	definition, ok := r.p.definitions[id]
	if !ok {
		return nil, persistence.ErrDefinitionNotFound
	}

	clone := *definition

	return &clone, nil
}

func (r *definitionRepository) Save(_ context.Context, definition *models.WorkflowDefinition) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := *definition
	r.p.definitions[definition.ID] = &clone

	return nil
}

type executionRepository struct {
	p *Persistence
}

func (r *executionRepository) Create(_ context.Context, execution *models.WorkflowExecution) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	// The mutex makes check-then-insert atomic here, mirroring the partial
	// unique index the PostgreSQL implementation relies on.
	for _, existing := range r.p.executions {
		if existing.CustomerID == execution.CustomerID &&
			existing.DefinitionID == execution.DefinitionID &&
			!existing.Status.IsTerminal() {
			return persistence.NewStoreError("Create", execution.ID, persistence.ErrDuplicateExecution)
		}
	}

	r.p.executions[execution.ID] = copyExecution(execution)

	return nil
}

func (r *executionRepository) GetByID(_ context.Context, id string) (*models.WorkflowExecution, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	execution, ok := r.p.executions[id]
	if !ok {
		return nil, persistence.ErrExecutionNotFound
	}

	return copyExecution(execution), nil
}

func (r *executionRepository) Update(_ context.Context, execution *models.WorkflowExecution) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	existing, ok := r.p.executions[execution.ID]
	if !ok {
		return persistence.ErrExecutionNotFound
	}

	if existing.Version != execution.Version {
		return persistence.NewStoreError("Update", execution.ID, persistence.ErrVersionConflict)
	}

	execution.Version++
	r.p.executions[execution.ID] = copyExecution(execution)

	return nil
}

func (r *executionRepository) GetActiveByPair(_ context.Context, customerID, definitionID string) (*models.WorkflowExecution, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	for _, execution := range r.p.executions {
		if execution.CustomerID == customerID &&
			execution.DefinitionID == definitionID &&
			!execution.Status.IsTerminal() {
			return copyExecution(execution), nil
		}
	}

	return nil, nil
}

func (r *executionRepository) ListByOwner(_ context.Context, ownerID string) ([]*models.WorkflowExecution, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	executions := make([]*models.WorkflowExecution, 0)

	for _, execution := range r.p.executions {
		if execution.AssignedOwnerID == ownerID && !execution.Status.IsTerminal() {
			executions = append(executions, copyExecution(execution))
		}
	}

	return executions, nil
}

func (r *executionRepository) ListActive(_ context.Context) ([]*models.WorkflowExecution, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	executions := make([]*models.WorkflowExecution, 0)

	for _, execution := range r.p.executions {
		if !execution.Status.IsTerminal() {
			executions = append(executions, copyExecution(execution))
		}
	}

	return executions, nil
}

func (r *executionRepository) CountActiveByOwner(_ context.Context) (map[string]int, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	counts := make(map[string]int)

	for _, execution := range r.p.executions {
		if !execution.Status.IsTerminal() {
			counts[execution.AssignedOwnerID]++
		}
	}

	return counts, nil
}
