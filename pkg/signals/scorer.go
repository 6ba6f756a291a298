package signals

import "math"

// ScoreRule contributes a weighted metric to a derived score. Missing metrics
// contribute nothing so partial signal payloads still score.
type ScoreRule struct {
	Metric string  `json:"metric"`
	Weight float64 `json:"weight"`
}

// Scorer folds raw metrics into a bounded 0-10 score.
type Scorer struct {
	rules []ScoreRule
}

func NewScorer(rules []ScoreRule) *Scorer {
	return &Scorer{rules: rules}
}

// DefaultRiskRules derive a churn risk score from the raw metric feed.
func DefaultRiskRules() []ScoreRule {
	return []ScoreRule{
		{Metric: "support_escalations", Weight: 1.0},
		{Metric: "usage_decline_pct", Weight: 0.1},
		{Metric: "sentiment_score", Weight: -0.5},
	}
}

// DefaultOpportunityRules derive an expansion opportunity score.
func DefaultOpportunityRules() []ScoreRule {
	return []ScoreRule{
		{Metric: "seat_utilization_pct", Weight: 0.05},
		{Metric: "feature_adoption_pct", Weight: 0.05},
		{Metric: "expansion_requests", Weight: 2.0},
	}
}

func (s *Scorer) Score(metrics map[string]float64) int {
	var total float64

	for _, rule := range s.rules {
		value, ok := metrics[rule.Metric]
		if !ok {
			continue
		}

		total += rule.Weight * value
	}

	score := int(math.Round(total))

	if score < 0 {
		return 0
	}

	if score > 10 {
		return 10
	}

	return score
}
