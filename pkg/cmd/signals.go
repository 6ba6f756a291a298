package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/signals"
)

// NewSignalSource builds the customer signal store. When a signals file is
// configured its contents seed the store; otherwise the store starts empty
// and customers evaluate against no signals until one is set.
func NewSignalSource(ctx context.Context, logger *slog.Logger, path string) signals.Source {
	source := signals.NewStaticSource()

	if path == "" {
		logger.WarnContext(ctx, "no signals file configured, signal store starts empty")

		return source
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("failed to read signals file: %w", err))
	}

	var all []models.CustomerSignals

	err = json.Unmarshal(raw, &all)
	if err != nil {
		panic(fmt.Errorf("failed to parse signals file: %w", err))
	}

	riskScorer := signals.NewScorer(signals.DefaultRiskRules())
	opportunityScorer := signals.NewScorer(signals.DefaultOpportunityRules())

	for i := range all {
		entry := &all[i]

		// Feeds that ship only raw metrics get their derived scores
		// computed here.
		if entry.RiskScore == 0 && len(entry.Metrics) > 0 {
			entry.RiskScore = riskScorer.Score(entry.Metrics)
		}

		if entry.OpportunityScore == 0 && len(entry.Metrics) > 0 {
			entry.OpportunityScore = opportunityScorer.Score(entry.Metrics)
		}

		source.Set(entry)
	}

	logger.InfoContext(ctx, "loaded customer signals", "path", path, "count", len(all))

	return source
}
