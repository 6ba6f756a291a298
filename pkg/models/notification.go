package models

import "time"

// NotificationPriority ranges from 1 (urgent) to 5 (informational).
type NotificationPriority int

const (
	PriorityUrgent NotificationPriority = 1
	PriorityHigh   NotificationPriority = 2
	PriorityNormal NotificationPriority = 3
	PriorityLow    NotificationPriority = 4
	PriorityInfo   NotificationPriority = 5
)

// Notification is an alert produced by the dispatcher. Immutable except
// for the read flag. At most one notification exists per
// (rule, triggering event, recipient).
type Notification struct {
	ID              string               `json:"id"`
	RecipientID     string               `json:"recipient_id"`
	RuleID          string               `json:"rule_id"`
	EventID         string               `json:"event_id"`   // Triggering event; part of the idempotency key
	SourceRef       string               `json:"source_ref"` // Task or execution id
	Type            string               `json:"type"`
	Priority        NotificationPriority `json:"priority"`
	Read            bool                 `json:"read"`
	ResolvedMessage string               `json:"resolved_message"`
	Metadata        map[string]any       `json:"metadata,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}
