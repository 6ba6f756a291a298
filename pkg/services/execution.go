package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/renewos/renewos/pkg/eventbus"
	"github.com/renewos/renewos/pkg/events"
	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/notify"
	"github.com/renewos/renewos/pkg/persistence"
	"github.com/renewos/renewos/pkg/ranker"
	"github.com/renewos/renewos/pkg/signals"
)

// OwnerDirectory lists the user ids eligible to receive new work.
type OwnerDirectory interface {
	ListOwners(ctx context.Context) ([]string, error)
}

// StaticOwners is an OwnerDirectory over a fixed roster.
type StaticOwners []string

func (o StaticOwners) ListOwners(_ context.Context) ([]string, error) {
	return o, nil
}

// Execution instantiates and mutates workflow executions.
type Execution struct {
	persistence persistence.Persistence
	source      signals.Source
	interpreter *signals.Interpreter
	ranker      *ranker.Ranker
	owners      OwnerDirectory
	publisher   eventbus.EventPublisher
	dispatcher  *notify.Dispatcher
	clock       clock.Clock
	logger      *slog.Logger
}

func NewExecution(
	p persistence.Persistence,
	source signals.Source,
	interpreter *signals.Interpreter,
	rnk *ranker.Ranker,
	owners OwnerDirectory,
	publisher eventbus.EventPublisher,
	dispatcher *notify.Dispatcher,
	clk clock.Clock,
	logger *slog.Logger,
) *Execution {
	return &Execution{
		persistence: p,
		source:      source,
		interpreter: interpreter,
		ranker:      rnk,
		owners:      owners,
		publisher:   publisher,
		dispatcher:  dispatcher,
		clock:       clk,
		logger:      logger.With("module", "services"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Execution) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// EvaluateCustomer runs the signal interpreter over all active definitions
// and instantiates one execution per newly eligible definition. Idempotent:
// definitions with an existing active execution are skipped, and a lost
// uniqueness race counts as already-instantiated rather than failing the
// batch.
func (s *Execution) EvaluateCustomer(ctx context.Context, customerID string) ([]*models.WorkflowExecution, error) {
	if customerID == "" {
		return nil, &ServiceError{Op: "EvaluateCustomer", Code: "invalid_request", Message: "customer id is required", Err: ErrInvalidRequest}
	}

	customerSignals, err := s.source.GetSignals(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read customer signals: %w", err)
	}

	definitions, err := s.persistence.Definitions().GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions: %w", err)
	}

	eligible := s.interpreter.Eligible(ctx, definitions, customerSignals)

	created := make([]*models.WorkflowExecution, 0, len(eligible))

	for _, definition := range eligible {
		existing, err := s.persistence.Executions().GetActiveByPair(ctx, customerID, definition.ID)
		if err != nil {
			return created, fmt.Errorf("failed to check active pair: %w", err)
		}

		if existing != nil {
			continue
		}

		execution, err := s.instantiate(ctx, definition, customerID)
		if err != nil {
			if persistence.IsDuplicateExecution(err) {
				continue
			}

			return created, err
		}

		created = append(created, execution)
	}

	return created, nil
}

func (s *Execution) instantiate(ctx context.Context, definition *models.WorkflowDefinition, customerID string) (*models.WorkflowExecution, error) {
	ownerID, err := s.leastLoadedOwner(ctx)
	if err != nil {
		return nil, err
	}

	score := definition.BasePriorityWeight
	if score == 0 {
		score = definition.Type.TierWeight()
	}

	now := s.clock.Now().UTC()

	execution := &models.WorkflowExecution{
		ID:              uuid.New().String(),
		DefinitionID:    definition.ID,
		CustomerID:      customerID,
		AssignedOwnerID: ownerID,
		Status:          models.ExecutionStatusNotStarted,
		PriorityScore:   score,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.persistence.Executions().Create(ctx, execution)
	if err != nil {
		return nil, err
	}

	event := events.ExecutionCreated{
		BaseEvent:     events.NewBaseEvent(events.ExecutionCreatedEvent),
		ExecutionID:   execution.ID,
		DefinitionID:  definition.ID,
		CustomerID:    customerID,
		OwnerID:       ownerID,
		PriorityScore: score,
	}

	s.publish(ctx, execution.ID, event)
	s.dispatcher.DispatchEvent(ctx, &event)

	return execution, nil
}

// leastLoadedOwner picks the owner with the fewest active executions, ties
// broken by id so assignment is deterministic.
func (s *Execution) leastLoadedOwner(ctx context.Context) (string, error) {
	owners, err := s.owners.ListOwners(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list owners: %w", err)
	}

	if len(owners) == 0 {
		return "", &ServiceError{Op: "leastLoadedOwner", Code: "no_owners", Message: "owner roster is empty", Err: ErrNoOwnersAvailable}
	}

	counts, err := s.persistence.Executions().CountActiveByOwner(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to count executions: %w", err)
	}

	sorted := make([]string, len(owners))
	copy(sorted, owners)
	sort.Strings(sorted)

	best := sorted[0]
	for _, owner := range sorted[1:] {
		if counts[owner] < counts[best] {
			best = owner
		}
	}

	return best, nil
}

func (s *Execution) GetByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	return s.persistence.Executions().GetByID(ctx, id)
}

// UpdateStatus transitions an execution. Terminal states are irreversible;
// snoozing goes through Snooze so the wake time is always present. An
// execution completed while it still has open tasks lands in
// completed_with_pending_tasks instead.
func (s *Execution) UpdateStatus(ctx context.Context, id string, status models.ExecutionStatus) (*models.WorkflowExecution, error) {
	if !status.Valid() {
		return nil, &ServiceError{Op: "UpdateStatus", Code: "invalid_status", Message: fmt.Sprintf("unknown status %q", status), Err: ErrInvalidStatus}
	}

	if status == models.ExecutionStatusSnoozed {
		return nil, &ServiceError{Op: "UpdateStatus", Code: "invalid_status", Message: "use the snooze endpoint to snooze", Err: ErrInvalidStatus}
	}

	execution, err := s.persistence.Executions().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if execution.Status.IsTerminal() {
		return nil, &ServiceError{Op: "UpdateStatus", Code: "terminal", Message: "execution already terminal", Err: ErrTerminalState}
	}

	if status == models.ExecutionStatusCompleted {
		open, err := s.openTaskCount(ctx, id)
		if err != nil {
			return nil, err
		}

		if open > 0 {
			status = models.ExecutionStatusCompletedPending
		}
	}

	from := execution.Status
	execution.Status = status
	execution.SnoozeUntil = nil

	err = s.persistence.Executions().Update(ctx, execution)
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, execution, from)

	return execution, nil
}

// Snooze parks the execution until the given wake time.
func (s *Execution) Snooze(ctx context.Context, id string, until time.Time) (*models.WorkflowExecution, error) {
	if !until.After(s.clock.Now()) {
		return nil, &ServiceError{Op: "Snooze", Code: "invalid_snooze", Message: "snooze until must be in the future", Err: ErrInvalidSnoozeUntil}
	}

	execution, err := s.persistence.Executions().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if execution.Status.IsTerminal() {
		return nil, &ServiceError{Op: "Snooze", Code: "terminal", Message: "execution already terminal", Err: ErrTerminalState}
	}

	from := execution.Status
	until = until.UTC()
	execution.Status = models.ExecutionStatusSnoozed
	execution.SnoozeUntil = &until
	execution.PriorityScore = s.scoreSnoozed(execution)

	err = s.persistence.Executions().Update(ctx, execution)
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, execution, from)

	return execution, nil
}

// Escalate records an escalation owner alongside the assigned owner. The
// assigned owner is never replaced.
func (s *Execution) Escalate(ctx context.Context, id, escalationOwnerID, reason string) (*models.WorkflowExecution, error) {
	if escalationOwnerID == "" {
		return nil, &ServiceError{Op: "Escalate", Code: "empty_owner", Message: "escalation owner id is required", Err: ErrEmptyOwnerID}
	}

	execution, err := s.persistence.Executions().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if execution.Status.IsTerminal() {
		return nil, &ServiceError{Op: "Escalate", Code: "terminal", Message: "execution already terminal", Err: ErrTerminalState}
	}

	execution.EscalationOwnerID = &escalationOwnerID

	err = s.persistence.Executions().Update(ctx, execution)
	if err != nil {
		return nil, err
	}

	event := events.ExecutionEscalated{
		BaseEvent:         events.NewBaseEvent(events.ExecutionEscalatedEvent),
		ExecutionID:       execution.ID,
		CustomerID:        execution.CustomerID,
		OwnerID:           execution.AssignedOwnerID,
		EscalationOwnerID: escalationOwnerID,
		Reason:            reason,
	}

	s.publish(ctx, execution.ID, event)
	s.dispatcher.DispatchEvent(ctx, &event)

	return execution, nil
}

// Rescore recomputes and caches the priority score for one execution.
// Reports whether the cached score changed.
func (s *Execution) Rescore(ctx context.Context, execution *models.WorkflowExecution) (bool, error) {
	definition, err := s.persistence.Definitions().GetByID(ctx, execution.DefinitionID)
	if err != nil {
		return false, err
	}

	customerSignals, err := s.source.GetSignals(ctx, execution.CustomerID)
	if err != nil {
		return false, err
	}

	score := s.ranker.Score(execution, definition, customerSignals)
	if score == execution.PriorityScore {
		return false, nil
	}

	execution.PriorityScore = score

	err = s.persistence.Executions().Update(ctx, execution)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (s *Execution) scoreSnoozed(execution *models.WorkflowExecution) int {
	// Snoozed scoring needs no definition or signals.
	return s.ranker.Score(execution, &models.WorkflowDefinition{}, &models.CustomerSignals{})
}

func (s *Execution) openTaskCount(ctx context.Context, executionID string) (int, error) {
	tasks, err := s.persistence.Tasks().ListByExecution(ctx, executionID)
	if err != nil {
		return 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	open := 0

	for _, task := range tasks {
		if !task.Status.IsTerminal() {
			open++
		}
	}

	return open, nil
}

func (s *Execution) publishStatusChange(ctx context.Context, execution *models.WorkflowExecution, from models.ExecutionStatus) {
	event := events.ExecutionStatusChanged{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStatusChangedEvent),
		ExecutionID: execution.ID,
		CustomerID:  execution.CustomerID,
		OwnerID:     execution.AssignedOwnerID,
		From:        from,
		To:          execution.Status,
	}

	s.publish(ctx, execution.ID, event)
	s.dispatcher.DispatchEvent(ctx, &event)
}

func (s *Execution) publish(ctx context.Context, key string, event eventbus.Event) {
	err := s.publisher.Publish(ctx, key, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(),
			"key", key,
			"error", err)
	}
}
