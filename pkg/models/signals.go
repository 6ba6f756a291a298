package models

// CustomerSignals holds the numeric inputs read from the customer-signal
// store. Raw metrics feed the signal interpreter; the derived fields feed
// the priority ranker.
type CustomerSignals struct {
	CustomerID string `json:"customer_id"`

	// Derived, bounded scores.
	OpportunityScore int `json:"opportunity_score"` // 0-10
	RiskScore        int `json:"risk_score"`        // 0-10

	// Ranking inputs.
	RevenueTier    int `json:"revenue_tier"`     // 0-5, ARR bucket
	ChurnRiskScore int `json:"churn_risk_score"` // 0-10
	UsageScore     int `json:"usage_score"`      // 0-100

	// Raw metrics evaluated by trigger predicates and scoring rules.
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Metric returns a raw metric value and whether it is present.
func (s *CustomerSignals) Metric(name string) (float64, bool) {
	v, ok := s.Metrics[name]

	return v, ok
}

// PredicateContext exposes the signals to the predicate interpreter.
// Derived scores are addressable under stable names alongside raw metrics.
func (s *CustomerSignals) PredicateContext() map[string]float64 {
	ctx := make(map[string]float64, len(s.Metrics)+5)
	for k, v := range s.Metrics {
		ctx[k] = v
	}

	ctx["opportunity_score"] = float64(s.OpportunityScore)
	ctx["risk_score"] = float64(s.RiskScore)
	ctx["revenue_tier"] = float64(s.RevenueTier)
	ctx["churn_risk_score"] = float64(s.ChurnRiskScore)
	ctx["usage_score"] = float64(s.UsageScore)

	return ctx
}
