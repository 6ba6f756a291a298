package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/renewos/renewos/pkg/events"
	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/persistence"
)

// TransitionContext is the data a rule sees for one state transition. The
// condition is evaluated against Metrics only; the message template renders
// against Fields.
type TransitionContext struct {
	EventID           string
	SourceRef         string
	OwnerID           string
	EscalationOwnerID string
	Fields            map[string]any
	Metrics           map[string]float64
}

// Dispatcher evaluates the rule set bound to each event type. A failing rule
// is logged and skipped; it never blocks the remaining rules.
type Dispatcher struct {
	rules         map[events.EventType][]Rule
	notifications persistence.NotificationRepository
	clock         clock.Clock
	logger        *slog.Logger
}

func NewDispatcher(rules []Rule, notifications persistence.NotificationRepository, clk clock.Clock, logger *slog.Logger) *Dispatcher {
	byEvent := make(map[events.EventType][]Rule)
	for _, rule := range rules {
		byEvent[rule.Event] = append(byEvent[rule.Event], rule)
	}

	return &Dispatcher{
		rules:         byEvent,
		notifications: notifications,
		clock:         clk,
		logger:        logger.With("module", "notify"),
	}
}

// Dispatch runs every rule bound to the event type and returns how many
// notifications were actually created. Delivery is idempotent per
// (rule, event, recipient), so re-dispatching the same event is a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType events.EventType, tctx *TransitionContext) int {
	created := 0

	for _, rule := range d.rules[eventType] {
		n, err := d.dispatchRule(ctx, rule, tctx)
		if err != nil {
			d.logger.ErrorContext(ctx, "notification rule failed",
				"rule_id", rule.ID,
				"event_id", tctx.EventID,
				"error", err)

			continue
		}

		created += n
	}

	return created
}

func (d *Dispatcher) dispatchRule(ctx context.Context, rule Rule, tctx *TransitionContext) (int, error) {
	match, err := rule.Condition.Evaluate(tctx.Metrics)
	if err != nil {
		return 0, fmt.Errorf("condition: %w", err)
	}

	if !match {
		return 0, nil
	}

	message, err := renderMessage(rule.Template, tctx.Fields)
	if err != nil {
		return 0, fmt.Errorf("template: %w", err)
	}

	created := 0
	metadata := transitionMetadata(tctx)

	for _, recipientID := range resolveRecipients(rule.Recipients, tctx) {
		notification := &models.Notification{
			ID:              uuid.New().String(),
			RecipientID:     recipientID,
			RuleID:          rule.ID,
			EventID:         tctx.EventID,
			SourceRef:       tctx.SourceRef,
			Type:            rule.Type,
			Priority:        rule.Priority,
			ResolvedMessage: message,
			Metadata:        metadata,
			CreatedAt:       d.clock.Now().UTC(),
		}

		inserted, err := d.notifications.CreateIfAbsent(ctx, notification)
		if err != nil {
			return created, fmt.Errorf("persist: %w", err)
		}

		if inserted {
			created++
		}
	}

	return created, nil
}

// resolveRecipients maps recipient expressions to a de-duplicated ordered
// set of user ids. Unresolvable expressions are treated as literal ids.
func resolveRecipients(expressions []string, tctx *TransitionContext) []string {
	seen := make(map[string]struct{}, len(expressions))
	recipients := make([]string, 0, len(expressions))

	for _, expr := range expressions {
		var id string

		switch expr {
		case RecipientOwner:
			id = tctx.OwnerID
		case RecipientEscalationOwner:
			id = tctx.EscalationOwnerID
		default:
			id = expr
		}

		if id == "" {
			continue
		}

		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}

		recipients = append(recipients, id)
	}

	return recipients
}

// transitionMetadata snapshots the transition's metrics onto the stored
// notification, so counters like snooze_count survive past the episode.
func transitionMetadata(tctx *TransitionContext) map[string]any {
	if len(tctx.Metrics) == 0 {
		return nil
	}

	metadata := make(map[string]any, len(tctx.Metrics))
	for name, value := range tctx.Metrics {
		metadata[name] = value
	}

	return metadata
}

func renderMessage(tmpl string, fields map[string]any) (string, error) {
	parsed, err := template.New("message").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer

	err = parsed.Execute(&buf, fields)
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}
