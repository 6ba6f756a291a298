// Package models defines the core domain models for renewal workflow orchestration.
package models

import "time"

// WorkflowType classifies a definition and fixes its priority tier.
type WorkflowType string

const (
	WorkflowTypeRisk        WorkflowType = "risk"
	WorkflowTypeOpportunity WorkflowType = "opportunity"
	WorkflowTypeStrategic   WorkflowType = "strategic"
	WorkflowTypeRenewal     WorkflowType = "renewal"
	WorkflowTypeCustom      WorkflowType = "custom"
)

// TierWeight returns the base priority weight for the workflow type.
// Tier ordering is fixed: risk > opportunity > strategic > renewal > custom.
func (t WorkflowType) TierWeight() int {
	switch t {
	case WorkflowTypeRisk:
		return 900
	case WorkflowTypeOpportunity:
		return 800
	case WorkflowTypeStrategic:
		return 700
	case WorkflowTypeRenewal:
		return 600
	case WorkflowTypeCustom:
		return 500
	default:
		return 0
	}
}

// Valid reports whether the workflow type is one of the known tiers.
func (t WorkflowType) Valid() bool {
	switch t {
	case WorkflowTypeRisk, WorkflowTypeOpportunity, WorkflowTypeStrategic,
		WorkflowTypeRenewal, WorkflowTypeCustom:
		return true
	}

	return false
}

// WorkflowDefinition is a reusable workflow blueprint. Executions are
// instantiated from a definition when its trigger predicate holds for a
// customer's signals.
type WorkflowDefinition struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"                 validate:"required,min=3"`
	Description        string         `json:"description"`
	Type               WorkflowType   `json:"type"                 validate:"required"`
	Trigger            *Predicate     `json:"trigger"`
	BasePriorityWeight int            `json:"base_priority_weight"`
	SequenceNumber     int            `json:"sequence_number"` // Fixed demo-mode ordering
	Active             bool           `json:"active"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
