// Package notify evaluates conditional notification rules on state
// transitions and delivers deduplicated, templated alerts.
package notify

import (
	"github.com/renewos/renewos/pkg/events"
	"github.com/renewos/renewos/pkg/models"
)

// Recipient expressions resolved against the transition context.
const (
	RecipientOwner           = "owner"
	RecipientEscalationOwner = "escalation_owner"
)

// Rule binds a conditional alert to an event type. The condition is
// evaluated against the transition context only; the message template may
// reference any context field.
type Rule struct {
	ID         string                      `json:"id"`
	Event      events.EventType            `json:"event"`
	Type       string                      `json:"type"`
	Priority   models.NotificationPriority `json:"priority"`
	Condition  *models.Predicate           `json:"condition,omitempty"`
	Recipients []string                    `json:"recipients"`
	Template   string                      `json:"template"`
}

// DefaultRules is the built-in rule set covering the lifecycle transitions
// the engine alerts on out of the box.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:         "task-decision-required",
			Event:      events.TaskDecisionRequiredEvent,
			Type:       "forced_decision",
			Priority:   models.PriorityUrgent,
			Recipients: []string{RecipientOwner},
			Template:   "Task {{.task_title}} hit its snooze deadline. Choose act now or skip forever.",
		},
		{
			ID:         "task-woken",
			Event:      events.TaskWokenEvent,
			Type:       "task_woken",
			Priority:   models.PriorityNormal,
			Recipients: []string{RecipientOwner},
			Template:   "Task {{.task_title}} is awake and back in your queue.",
		},
		{
			ID:         "execution-escalated",
			Event:      events.ExecutionEscalatedEvent,
			Type:       "escalation",
			Priority:   models.PriorityHigh,
			Recipients: []string{RecipientOwner, RecipientEscalationOwner},
			Template:   "Workflow for customer {{.customer_id}} was escalated.",
		},
		{
			ID:       "high-risk-execution-created",
			Event:    events.ExecutionCreatedEvent,
			Type:     "new_work",
			Priority: models.PriorityHigh,
			Condition: &models.Predicate{
				Op: models.OpGte, Field: "priority_score", Value: 900,
			},
			Recipients: []string{RecipientOwner},
			Template:   "New high-priority workflow for customer {{.customer_id}} (score {{.priority_score}}).",
		},
	}
}
