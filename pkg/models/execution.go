package models

import "time"

// ExecutionStatus represents the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusNotStarted       ExecutionStatus = "not_started"
	ExecutionStatusUnderway         ExecutionStatus = "underway"
	ExecutionStatusCompleted        ExecutionStatus = "completed"
	ExecutionStatusCompletedPending ExecutionStatus = "completed_with_pending_tasks"
	ExecutionStatusSnoozed          ExecutionStatus = "snoozed"
	ExecutionStatusSkipped          ExecutionStatus = "skipped"
	ExecutionStatusFailed           ExecutionStatus = "failed"
)

// IsTerminal reports whether the execution has reached a final state.
// At most one non-terminal execution may exist per (customer, definition).
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusCompletedPending,
		ExecutionStatusSkipped, ExecutionStatusFailed:
		return true
	}

	return false
}

// Valid reports whether the status is a known execution status.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionStatusNotStarted, ExecutionStatusUnderway,
		ExecutionStatusCompleted, ExecutionStatusCompletedPending,
		ExecutionStatusSnoozed, ExecutionStatusSkipped, ExecutionStatusFailed:
		return true
	}

	return false
}

// WorkflowExecution is a single instantiation of a definition for a
// customer. SnoozeUntil is set if and only if Status is snoozed.
type WorkflowExecution struct {
	ID                string          `json:"id"`
	DefinitionID      string          `json:"definition_id"   validate:"required"`
	CustomerID        string          `json:"customer_id"     validate:"required"`
	AssignedOwnerID   string          `json:"assigned_owner_id"`
	EscalationOwnerID *string         `json:"escalation_owner_id,omitempty"` // Never replaces the assigned owner
	Status            ExecutionStatus `json:"status"`
	PriorityScore     int             `json:"priority_score"` // Cached, recomputed by the daily sweep
	SnoozeUntil       *time.Time      `json:"snooze_until,omitempty"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
