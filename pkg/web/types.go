package web

import "time"

// Request bodies for the mutation endpoints. Validation runs before any
// service call so malformed input never reaches the state machine.

type UpdateExecutionStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type SnoozeRequest struct {
	Until time.Time `json:"until" validate:"required"`
}

type EscalateRequest struct {
	EscalationOwnerID string `json:"escalation_owner_id" validate:"required"`
	Reason            string `json:"reason"`
}

type CreateTaskRequest struct {
	Title      string         `json:"title"       validate:"required"`
	Type       string         `json:"type"        validate:"omitempty,oneof=general update_crm"`
	Owner      string         `json:"owner"       validate:"omitempty,oneof=ai human"`
	OwnerID    string         `json:"owner_id"`
	CRMPayload map[string]any `json:"crm_payload"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type DecisionRequest struct {
	Choice string `json:"choice" validate:"required,oneof=act_now skip_forever"`
}

type TransferRequest struct {
	TargetExecutionID string `json:"target_execution_id" validate:"required"`
}
