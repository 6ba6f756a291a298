package models

import "time"

// SnoozeCeiling is the hard limit of a snooze episode. The deadline is
// fixed at the first snooze and never moves for the rest of the episode.
const SnoozeCeiling = 7 * 24 * time.Hour

// TaskOwner identifies who is responsible for performing a task.
type TaskOwner string

const (
	TaskOwnerAI    TaskOwner = "ai"
	TaskOwnerHuman TaskOwner = "human"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusSnoozed    TaskStatus = "snoozed"
	TaskStatusSkipped    TaskStatus = "skipped"
)

// IsTerminal reports whether the task has reached a final state.
// Tasks are never hard-deleted; they terminate via completed or skipped.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusSkipped
}

// Valid reports whether the status is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusSnoozed, TaskStatusSkipped:
		return true
	}

	return false
}

// DecisionChoice is one of the two terminal outcomes of a forced decision.
type DecisionChoice string

const (
	DecisionActNow      DecisionChoice = "act_now"
	DecisionSkipForever DecisionChoice = "skip_forever"
)

// TaskType distinguishes tasks whose resolution triggers an external side
// effect from plain checklist work.
type TaskType string

const (
	TaskTypeGeneral   TaskType = "general"
	TaskTypeUpdateCRM TaskType = "update_crm"
)

// Task is a unit of work inside a workflow execution. Tasks reference
// their execution by id only; the execution never holds task pointers, so
// terminating an execution requires no graph traversal.
//
// A snooze episode runs from the first snooze until wake, skip, or a
// forced decision. FirstSnoozedAt and SnoozeDeadline are set once per
// episode; SnoozedUntil moves with every re-snooze but may never pass the
// deadline. RequiresDecision, once set, is cleared only by an explicit
// act_now or skip_forever choice.
type Task struct {
	ID                  string         `json:"id"`
	WorkflowExecutionID string         `json:"workflow_execution_id" validate:"required"`
	Title               string         `json:"title"                 validate:"required"`
	Type                TaskType       `json:"type"`
	Owner               TaskOwner      `json:"owner"`
	OwnerID             string         `json:"owner_id"`
	Status              TaskStatus     `json:"status"`
	RequiresDecision    bool           `json:"requires_decision"`
	SnoozeCount         int            `json:"snooze_count"`
	FirstSnoozedAt      *time.Time     `json:"first_snoozed_at,omitempty"`
	SnoozeDeadline      *time.Time     `json:"snooze_deadline,omitempty"`
	SnoozedUntil        *time.Time     `json:"snoozed_until,omitempty"`
	CRMPayload          map[string]any `json:"crm_payload,omitempty"`
	Version             int64          `json:"version"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// InEpisode reports whether the task is inside an open snooze episode.
func (t *Task) InEpisode() bool {
	return t.FirstSnoozedAt != nil
}

// ClearEpisode resets all snooze-episode state. Called when an episode
// ends via wake-and-complete, skip, or an act_now decision.
func (t *Task) ClearEpisode() {
	t.SnoozeCount = 0
	t.FirstSnoozedAt = nil
	t.SnoozeDeadline = nil
	t.SnoozedUntil = nil
}
