// Package signals evaluates customer health signals against workflow triggers.
package signals

import (
	"context"
	"log/slog"

	"github.com/renewos/renewos/pkg/models"
)

// Interpreter matches customer signals against definition triggers.
type Interpreter struct {
	logger *slog.Logger
}

func NewInterpreter(logger *slog.Logger) *Interpreter {
	return &Interpreter{logger: logger.With("module", "signals")}
}

// Eligible returns the definitions whose trigger predicate holds for the
// given signals. A definition whose predicate fails to evaluate is skipped
// and logged rather than aborting the whole evaluation.
func (i *Interpreter) Eligible(ctx context.Context, definitions []*models.WorkflowDefinition, signals *models.CustomerSignals) []*models.WorkflowDefinition {
	metrics := signals.PredicateContext()

	eligible := make([]*models.WorkflowDefinition, 0)

	for _, definition := range definitions {
		if !definition.Active {
			continue
		}

		match, err := definition.Trigger.Evaluate(metrics)
		if err != nil {
			i.logger.WarnContext(ctx, "skipping definition with unevaluable trigger",
				"definition_id", definition.ID,
				"customer_id", signals.CustomerID,
				"error", err)

			continue
		}

		if match {
			eligible = append(eligible, definition)
		}
	}

	return eligible
}
