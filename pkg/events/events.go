// Package events defines event types published across the workflow lifecycle.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/renewos/renewos/pkg/models"
)

type EventType string

// Topic carries every lifecycle event; consumers demultiplex on the
// event_type metadata field.
const Topic = "renewos.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionCreatedEvent       EventType = "execution.created"
	ExecutionStatusChangedEvent EventType = "execution.status_changed"
	ExecutionEscalatedEvent     EventType = "execution.escalated"

	// Task lifecycle events.
	TaskCreatedEvent          EventType = "task.created"
	TaskSnoozedEvent          EventType = "task.snoozed"
	TaskWokenEvent            EventType = "task.woken"
	TaskDecisionRequiredEvent EventType = "task.decision_required"
	TaskDecisionResolvedEvent EventType = "task.decision_resolved"
	TaskTransferredEvent      EventType = "task.transferred"

	// Sweep events.
	ReconciliationCompletedEvent EventType = "reconciliation.completed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

type ExecutionCreated struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	DefinitionID  string `json:"definition_id"`
	CustomerID    string `json:"customer_id"`
	OwnerID       string `json:"owner_id"`
	PriorityScore int    `json:"priority_score"`
}

func (e ExecutionCreated) GetType() EventType {
	return ExecutionCreatedEvent
}

type ExecutionStatusChanged struct {
	BaseEvent

	ExecutionID string                 `json:"execution_id"`
	CustomerID  string                 `json:"customer_id"`
	OwnerID     string                 `json:"owner_id"`
	From        models.ExecutionStatus `json:"from"`
	To          models.ExecutionStatus `json:"to"`
}

func (e ExecutionStatusChanged) GetType() EventType {
	return ExecutionStatusChangedEvent
}

type ExecutionEscalated struct {
	BaseEvent

	ExecutionID       string `json:"execution_id"`
	CustomerID        string `json:"customer_id"`
	OwnerID           string `json:"owner_id"`
	EscalationOwnerID string `json:"escalation_owner_id"`
	Reason            string `json:"reason,omitempty"`
}

func (e ExecutionEscalated) GetType() EventType {
	return ExecutionEscalatedEvent
}

type TaskCreated struct {
	BaseEvent

	TaskID      string           `json:"task_id"`
	ExecutionID string           `json:"execution_id"`
	OwnerID     string           `json:"owner_id"`
	Owner       models.TaskOwner `json:"owner"`
	Title       string           `json:"title"`
}

func (e TaskCreated) GetType() EventType {
	return TaskCreatedEvent
}

type TaskSnoozed struct {
	BaseEvent

	TaskID       string    `json:"task_id"`
	ExecutionID  string    `json:"execution_id"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	SnoozedUntil time.Time `json:"snoozed_until"`
	Deadline     time.Time `json:"deadline"`
	SnoozeCount  int       `json:"snooze_count"`
}

func (e TaskSnoozed) GetType() EventType {
	return TaskSnoozedEvent
}

type TaskWoken struct {
	BaseEvent

	TaskID      string `json:"task_id"`
	ExecutionID string `json:"execution_id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	SnoozeCount int    `json:"snooze_count"`
}

func (e TaskWoken) GetType() EventType {
	return TaskWokenEvent
}

// TaskDecisionRequired fires when a snoozed task crosses its deadline and the
// owner must choose between acting now and skipping forever.
type TaskDecisionRequired struct {
	BaseEvent

	TaskID      string    `json:"task_id"`
	ExecutionID string    `json:"execution_id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	SnoozeCount int       `json:"snooze_count"`
	Deadline    time.Time `json:"deadline"`
}

func (e TaskDecisionRequired) GetType() EventType {
	return TaskDecisionRequiredEvent
}

type TaskDecisionResolved struct {
	BaseEvent

	TaskID      string                `json:"task_id"`
	ExecutionID string                `json:"execution_id"`
	OwnerID     string                `json:"owner_id"`
	Title       string                `json:"title"`
	Choice      models.DecisionChoice `json:"choice"`
}

func (e TaskDecisionResolved) GetType() EventType {
	return TaskDecisionResolvedEvent
}

type TaskTransferred struct {
	BaseEvent

	TaskID          string `json:"task_id"`
	OwnerID         string `json:"owner_id"`
	Title           string `json:"title"`
	FromExecutionID string `json:"from_execution_id"`
	ToExecutionID   string `json:"to_execution_id"`
}

func (e TaskTransferred) GetType() EventType {
	return TaskTransferredEvent
}

type ReconciliationCompleted struct {
	BaseEvent

	Woken    int           `json:"woken"`
	Flagged  int           `json:"flagged"`
	Rescored int           `json:"rescored"`
	Duration time.Duration `json:"duration"`
}

func (e ReconciliationCompleted) GetType() EventType {
	return ReconciliationCompletedEvent
}
