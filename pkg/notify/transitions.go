package notify

import (
	"context"

	"github.com/renewos/renewos/pkg/events"
)

// TransitionContextFor maps a lifecycle event to the context its rules
// evaluate against. The event id carries through, so dispatching the same
// event from two paths stays idempotent. Events with no recipient-facing
// payload (reconciliation summaries) report false.
func TransitionContextFor(event any) (events.EventType, *TransitionContext, bool) {
	switch e := event.(type) {
	case *events.ExecutionCreated:
		return events.ExecutionCreatedEvent, &TransitionContext{
			EventID:   e.ID,
			SourceRef: e.ExecutionID,
			OwnerID:   e.OwnerID,
			Fields: map[string]any{
				"execution_id":   e.ExecutionID,
				"customer_id":    e.CustomerID,
				"priority_score": e.PriorityScore,
			},
			Metrics: map[string]float64{"priority_score": float64(e.PriorityScore)},
		}, true
	case *events.ExecutionStatusChanged:
		return events.ExecutionStatusChangedEvent, &TransitionContext{
			EventID:   e.ID,
			SourceRef: e.ExecutionID,
			OwnerID:   e.OwnerID,
			Fields: map[string]any{
				"execution_id": e.ExecutionID,
				"customer_id":  e.CustomerID,
				"from":         string(e.From),
				"to":           string(e.To),
			},
			Metrics: map[string]float64{},
		}, true
	case *events.ExecutionEscalated:
		return events.ExecutionEscalatedEvent, &TransitionContext{
			EventID:           e.ID,
			SourceRef:         e.ExecutionID,
			OwnerID:           e.OwnerID,
			EscalationOwnerID: e.EscalationOwnerID,
			Fields: map[string]any{
				"execution_id": e.ExecutionID,
				"customer_id":  e.CustomerID,
				"reason":       e.Reason,
			},
			Metrics: map[string]float64{},
		}, true
	case *events.TaskCreated:
		return events.TaskCreatedEvent, &TransitionContext{
			EventID:   e.ID,
			SourceRef: e.TaskID,
			OwnerID:   e.OwnerID,
			Fields: map[string]any{
				"task_id":    e.TaskID,
				"task_title": e.Title,
			},
			Metrics: map[string]float64{},
		}, true
	case *events.TaskSnoozed:
		return events.TaskSnoozedEvent, &TransitionContext{
			EventID:   e.ID,
			SourceRef: e.TaskID,
			OwnerID:   e.OwnerID,
			Fields: map[string]any{
				"task_id":    e.TaskID,
				"task_title": e.Title,
			},
			Metrics: map[string]float64{"snooze_count": float64(e.SnoozeCount)},
		}, true
	case *events.TaskWoken:
		return events.TaskWokenEvent, &TransitionContext{
			EventID:   e.ID,
			SourceRef: e.TaskID,
			OwnerID:   e.OwnerID,
			Fields: map[string]any{
				"task_id":    e.TaskID,
				"task_title": e.Title,
			},
			Metrics: map[string]float64{"snooze_count": float64(e.SnoozeCount)},
		}, true
	case *events.TaskDecisionRequired:
		return events.TaskDecisionRequiredEvent, &TransitionContext{
			EventID:   e.ID,
			SourceRef: e.TaskID,
			OwnerID:   e.OwnerID,
			Fields: map[string]any{
				"task_id":    e.TaskID,
				"task_title": e.Title,
			},
			Metrics: map[string]float64{"snooze_count": float64(e.SnoozeCount)},
		}, true
	case *events.TaskDecisionResolved:
		return events.TaskDecisionResolvedEvent, &TransitionContext{
			EventID:   e.ID,
			SourceRef: e.TaskID,
			OwnerID:   e.OwnerID,
			Fields: map[string]any{
				"task_id":    e.TaskID,
				"task_title": e.Title,
				"choice":     string(e.Choice),
			},
			Metrics: map[string]float64{},
		}, true
	case *events.TaskTransferred:
		return events.TaskTransferredEvent, &TransitionContext{
			EventID:   e.ID,
			SourceRef: e.TaskID,
			OwnerID:   e.OwnerID,
			Fields: map[string]any{
				"task_id":           e.TaskID,
				"task_title":        e.Title,
				"from_execution_id": e.FromExecutionID,
				"to_execution_id":   e.ToExecutionID,
			},
			Metrics: map[string]float64{},
		}, true
	default:
		return "", nil, false
	}
}

// DispatchEvent evaluates the rules bound to the event's type. Unmapped
// events dispatch nothing.
func (d *Dispatcher) DispatchEvent(ctx context.Context, event any) int {
	eventType, tctx, ok := TransitionContextFor(event)
	if !ok {
		return 0
	}

	return d.Dispatch(ctx, eventType, tctx)
}
