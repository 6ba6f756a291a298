package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/renewos/renewos/pkg/crm"
	"github.com/renewos/renewos/pkg/eventbus"
	"github.com/renewos/renewos/pkg/events"
	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/notify"
	"github.com/renewos/renewos/pkg/persistence"
)

// TaskManager drives the task state machine, including the hard-ceiling
// snooze episode and the forced decision.
//
// pending and in_progress move freely between each other; either may enter
// snoozed. A snoozed task wakes to pending or, once past its episode
// deadline, is flagged for a forced decision that only an explicit act_now
// or skip_forever resolves. Any non-terminal state may complete or skip.
type TaskManager struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	dispatcher  *notify.Dispatcher
	crmQueue    crm.Queue
	clock       clock.Clock
	logger      *slog.Logger
}

func NewTaskManager(
	p persistence.Persistence,
	publisher eventbus.EventPublisher,
	dispatcher *notify.Dispatcher,
	crmQueue crm.Queue,
	clk clock.Clock,
	logger *slog.Logger,
) *TaskManager {
	return &TaskManager{
		persistence: p,
		publisher:   publisher,
		dispatcher:  dispatcher,
		crmQueue:    crmQueue,
		clock:       clk,
		logger:      logger.With("module", "services"),
	}
}

// Create attaches a new task to an active execution.
func (s *TaskManager) Create(ctx context.Context, task *models.Task) (*models.Task, error) {
	if task.WorkflowExecutionID == "" || task.Title == "" {
		return nil, &ServiceError{Op: "Create", Code: "invalid_request", Message: "execution id and title are required", Err: ErrInvalidRequest}
	}

	execution, err := s.persistence.Executions().GetByID(ctx, task.WorkflowExecutionID)
	if err != nil {
		return nil, err
	}

	if execution.Status.IsTerminal() {
		return nil, &ServiceError{Op: "Create", Code: "terminal", Message: "execution already terminal", Err: ErrTerminalState}
	}

	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	if task.Type == "" {
		task.Type = models.TaskTypeGeneral
	}

	if task.Owner == "" {
		task.Owner = models.TaskOwnerHuman
	}

	if task.OwnerID == "" {
		task.OwnerID = execution.AssignedOwnerID
	}

	task.Status = models.TaskStatusPending
	task.CreatedAt = s.clock.Now().UTC()
	task.UpdatedAt = task.CreatedAt

	err = s.persistence.Tasks().Create(ctx, task)
	if err != nil {
		return nil, err
	}

	event := events.TaskCreated{
		BaseEvent:   events.NewBaseEvent(events.TaskCreatedEvent),
		TaskID:      task.ID,
		ExecutionID: task.WorkflowExecutionID,
		OwnerID:     task.OwnerID,
		Owner:       task.Owner,
		Title:       task.Title,
	}
	s.publish(ctx, task.ID, event)
	s.dispatcher.DispatchEvent(ctx, &event)

	return task, nil
}

func (s *TaskManager) GetByID(ctx context.Context, id string) (*models.Task, error) {
	return s.persistence.Tasks().GetByID(ctx, id)
}

func (s *TaskManager) ListByExecution(ctx context.Context, executionID string) ([]*models.Task, error) {
	return s.persistence.Tasks().ListByExecution(ctx, executionID)
}

func (s *TaskManager) ListOpenByCustomer(ctx context.Context, customerID string) ([]*models.Task, error) {
	return s.persistence.Tasks().ListOpenByCustomer(ctx, customerID)
}

// Snooze defers a task. Legal only from pending or in_progress and never
// while a forced decision is pending. The first snooze of an episode fixes
// the deadline at now plus the ceiling; it never moves for the rest of the
// episode, and wake times past it are rejected rather than clamped.
func (s *TaskManager) Snooze(ctx context.Context, id string, until time.Time) (*models.Task, error) {
	task, err := s.persistence.Tasks().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if task.RequiresDecision {
		return nil, &ServiceError{Op: "Snooze", Code: "decision_pending", Message: "resolve the pending decision first", Err: ErrDecisionPending}
	}

	if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusInProgress {
		return nil, &ServiceError{Op: "Snooze", Code: "illegal_transition", Message: fmt.Sprintf("cannot snooze from %q", task.Status), Err: ErrIllegalTransition}
	}

	now := s.clock.Now().UTC()

	if !until.After(now) {
		return nil, &ServiceError{Op: "Snooze", Code: "invalid_snooze", Message: "snooze until must be in the future", Err: ErrInvalidSnoozeUntil}
	}

	if !task.InEpisode() {
		first := now
		deadline := now.Add(models.SnoozeCeiling)
		task.FirstSnoozedAt = &first
		task.SnoozeDeadline = &deadline
	}

	until = until.UTC()

	if until.After(*task.SnoozeDeadline) {
		return nil, &ServiceError{
			Op:      "Snooze",
			Code:    "beyond_deadline",
			Message: fmt.Sprintf("snooze until exceeds the deadline %s", task.SnoozeDeadline.Format(time.RFC3339)),
			Err:     ErrSnoozeBeyondDeadline,
		}
	}

	task.SnoozedUntil = &until
	task.SnoozeCount++
	task.Status = models.TaskStatusSnoozed

	err = s.persistence.Tasks().Update(ctx, task)
	if err != nil {
		return nil, err
	}

	event := events.TaskSnoozed{
		BaseEvent:    events.NewBaseEvent(events.TaskSnoozedEvent),
		TaskID:       task.ID,
		ExecutionID:  task.WorkflowExecutionID,
		OwnerID:      task.OwnerID,
		Title:        task.Title,
		SnoozedUntil: until,
		Deadline:     *task.SnoozeDeadline,
		SnoozeCount:  task.SnoozeCount,
	}
	s.publish(ctx, task.ID, event)
	s.dispatcher.DispatchEvent(ctx, &event)

	return task, nil
}

// Wake moves a snoozed task back to pending once its wake time has passed.
// The guard conditions are re-checked here so the sweep can call it blindly;
// it reports whether the task actually transitioned. Episode counters
// survive the wake, so a re-snooze stays bounded by the original deadline.
func (s *TaskManager) Wake(ctx context.Context, task *models.Task) (bool, error) {
	if task.Status != models.TaskStatusSnoozed || task.RequiresDecision {
		return false, nil
	}

	now := s.clock.Now()

	if task.SnoozedUntil == nil || now.Before(*task.SnoozedUntil) {
		return false, nil
	}

	// Past the episode deadline the forced decision must surface; waking
	// here would let the task slip back to pending unflagged.
	if task.SnoozeDeadline != nil && !now.Before(*task.SnoozeDeadline) {
		return false, nil
	}

	task.Status = models.TaskStatusPending

	err := s.persistence.Tasks().Update(ctx, task)
	if err != nil {
		return false, err
	}

	event := events.TaskWoken{
		BaseEvent:   events.NewBaseEvent(events.TaskWokenEvent),
		TaskID:      task.ID,
		ExecutionID: task.WorkflowExecutionID,
		OwnerID:     task.OwnerID,
		Title:       task.Title,
		SnoozeCount: task.SnoozeCount,
	}
	event.ID = s.wakeEventID(task)

	s.publish(ctx, task.ID, event)
	s.dispatcher.DispatchEvent(ctx, &event)

	return true, nil
}

// DeadlineCheck flags a snoozed task past its episode deadline for a forced
// decision and sends the urgent alert. The event id is derived from the
// episode, so re-running the check never duplicates the notification.
func (s *TaskManager) DeadlineCheck(ctx context.Context, task *models.Task) (bool, error) {
	if task.Status != models.TaskStatusSnoozed || task.RequiresDecision {
		return false, nil
	}

	if task.SnoozeDeadline == nil || s.clock.Now().Before(*task.SnoozeDeadline) {
		return false, nil
	}

	task.RequiresDecision = true

	err := s.persistence.Tasks().Update(ctx, task)
	if err != nil {
		return false, err
	}

	event := events.TaskDecisionRequired{
		BaseEvent:   events.NewBaseEvent(events.TaskDecisionRequiredEvent),
		TaskID:      task.ID,
		ExecutionID: task.WorkflowExecutionID,
		OwnerID:     task.OwnerID,
		Title:       task.Title,
		SnoozeCount: task.SnoozeCount,
		Deadline:    *task.SnoozeDeadline,
	}
	event.ID = s.deadlineEventID(task)

	s.publish(ctx, task.ID, event)
	s.dispatcher.DispatchEvent(ctx, &event)

	return true, nil
}

// ResolveDecision closes a forced decision with one of the two terminal
// choices. act_now puts the task back in progress for a fresh start;
// skip_forever ends it for good. Nothing else clears the flag.
func (s *TaskManager) ResolveDecision(ctx context.Context, id string, choice models.DecisionChoice) (*models.Task, error) {
	if choice != models.DecisionActNow && choice != models.DecisionSkipForever {
		return nil, &ServiceError{Op: "ResolveDecision", Code: "invalid_decision", Message: fmt.Sprintf("unknown choice %q", choice), Err: ErrInvalidDecision}
	}

	task, err := s.persistence.Tasks().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !task.RequiresDecision {
		return nil, &ServiceError{Op: "ResolveDecision", Code: "no_decision", Message: "task has no pending decision", Err: ErrNoDecisionPending}
	}

	switch choice {
	case models.DecisionActNow:
		task.Status = models.TaskStatusInProgress
	case models.DecisionSkipForever:
		task.Status = models.TaskStatusSkipped
	}

	task.RequiresDecision = false
	task.ClearEpisode()

	err = s.persistence.Tasks().Update(ctx, task)
	if err != nil {
		return nil, err
	}

	event := events.TaskDecisionResolved{
		BaseEvent:   events.NewBaseEvent(events.TaskDecisionResolvedEvent),
		TaskID:      task.ID,
		ExecutionID: task.WorkflowExecutionID,
		OwnerID:     task.OwnerID,
		Title:       task.Title,
		Choice:      choice,
	}
	s.publish(ctx, task.ID, event)
	s.dispatcher.DispatchEvent(ctx, &event)

	return task, nil
}

// UpdateStatus handles the plain transitions: pending and in_progress swap
// freely, and any non-terminal task may complete or skip. Snoozing goes
// through Snooze; a pending decision blocks everything but ResolveDecision.
func (s *TaskManager) UpdateStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, &ServiceError{Op: "UpdateStatus", Code: "invalid_status", Message: fmt.Sprintf("unknown status %q", status), Err: ErrInvalidStatus}
	}

	if status == models.TaskStatusSnoozed {
		return nil, &ServiceError{Op: "UpdateStatus", Code: "invalid_status", Message: "use the snooze endpoint to snooze", Err: ErrInvalidStatus}
	}

	task, err := s.persistence.Tasks().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if task.Status.IsTerminal() {
		return nil, &ServiceError{Op: "UpdateStatus", Code: "terminal", Message: "task already terminal", Err: ErrTerminalState}
	}

	if task.RequiresDecision {
		return nil, &ServiceError{Op: "UpdateStatus", Code: "decision_pending", Message: "resolve the pending decision first", Err: ErrDecisionPending}
	}

	switch status {
	case models.TaskStatusPending, models.TaskStatusInProgress:
		if task.Status == models.TaskStatusSnoozed {
			return nil, &ServiceError{Op: "UpdateStatus", Code: "illegal_transition", Message: "snoozed tasks wake via the sweep", Err: ErrIllegalTransition}
		}
	case models.TaskStatusCompleted, models.TaskStatusSkipped:
		task.ClearEpisode()
	}

	task.Status = status

	err = s.persistence.Tasks().Update(ctx, task)
	if err != nil {
		return nil, err
	}

	if status == models.TaskStatusCompleted && task.Type == models.TaskTypeUpdateCRM {
		s.enqueueCRMUpdate(ctx, task)
	}

	return task, nil
}

// Transfer re-parents an open task onto another active execution for the
// same customer. Snooze counters persist across the transfer.
func (s *TaskManager) Transfer(ctx context.Context, id, targetExecutionID string) (*models.Task, error) {
	task, err := s.persistence.Tasks().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusSnoozed {
		return nil, &ServiceError{Op: "Transfer", Code: "illegal_transition", Message: fmt.Sprintf("cannot transfer from %q", task.Status), Err: ErrIllegalTransition}
	}

	target, err := s.persistence.Executions().GetByID(ctx, targetExecutionID)
	if err != nil {
		return nil, err
	}

	if target.Status.IsTerminal() {
		return nil, &ServiceError{Op: "Transfer", Code: "target_terminal", Message: "target execution is not active", Err: ErrTransferTarget}
	}

	from := task.WorkflowExecutionID
	task.WorkflowExecutionID = target.ID

	err = s.persistence.Tasks().Update(ctx, task)
	if err != nil {
		return nil, err
	}

	event := events.TaskTransferred{
		BaseEvent:       events.NewBaseEvent(events.TaskTransferredEvent),
		TaskID:          task.ID,
		OwnerID:         task.OwnerID,
		Title:           task.Title,
		FromExecutionID: from,
		ToExecutionID:   target.ID,
	}
	s.publish(ctx, task.ID, event)
	s.dispatcher.DispatchEvent(ctx, &event)

	return task, nil
}

func (s *TaskManager) enqueueCRMUpdate(ctx context.Context, task *models.Task) {
	execution, err := s.persistence.Executions().GetByID(ctx, task.WorkflowExecutionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to resolve execution for crm update",
			"task_id", task.ID, "error", err)

		return
	}

	err = s.crmQueue.Enqueue(ctx, crm.Update{
		TaskID:     task.ID,
		CustomerID: execution.CustomerID,
		Fields:     task.CRMPayload,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue crm update",
			"task_id", task.ID, "error", err)
	}
}

// Deterministic event ids keyed by the episode make sweep notifications
// idempotent across re-runs.
func (s *TaskManager) deadlineEventID(task *models.Task) string {
	return fmt.Sprintf("deadline-%s-%d", task.ID, task.FirstSnoozedAt.Unix())
}

func (s *TaskManager) wakeEventID(task *models.Task) string {
	return fmt.Sprintf("wake-%s-%d-%d", task.ID, task.FirstSnoozedAt.Unix(), task.SnoozeCount)
}

func (s *TaskManager) publish(ctx context.Context, key string, event eventbus.Event) {
	err := s.publisher.Publish(ctx, key, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(),
			"key", key,
			"error", err)
	}
}
