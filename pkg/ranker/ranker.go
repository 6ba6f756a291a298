// Package ranker computes deterministic priority scores and orders per-owner
// work queues.
package ranker

import (
	"math"
	"sort"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/renewos/renewos/pkg/models"
)

// Urgency buckets a score into a coarse display tier.
type Urgency string

const (
	UrgencyUrgent Urgency = "urgent"
	UrgencyHigh   Urgency = "high"
	UrgencyNormal Urgency = "normal"
	UrgencyLow    Urgency = "low"
)

// Ranker scores executions. The clock is injected so deadline math is
// testable day by day.
type Ranker struct {
	clock clock.Clock
}

func New(clk clock.Clock) *Ranker {
	return &Ranker{clock: clk}
}

// Score maps an execution's state and its customer's signals to an integer
// rank. Pure apart from the clock read.
//
// Snoozed executions are scored purely on proximity to their wake time:
// near-due or overdue items outrank all active work, far-future items decay
// below it. Active executions start from the tier weight of their workflow
// type and gain bounded signal boosts.
func (r *Ranker) Score(execution *models.WorkflowExecution, definition *models.WorkflowDefinition, signals *models.CustomerSignals) int {
	if execution.Status == models.ExecutionStatusSnoozed && execution.SnoozeUntil != nil {
		days := daysUntil(r.clock.Now(), *execution.SnoozeUntil)

		if days <= 3 {
			return 1000 + days
		}

		return 400 - days
	}

	score := definition.BasePriorityWeight
	if score == 0 {
		score = definition.Type.TierWeight()
	}

	score += signals.RevenueTier * 5

	switch definition.Type {
	case models.WorkflowTypeRisk:
		score += signals.ChurnRiskScore * 5
	case models.WorkflowTypeOpportunity:
		score += signals.UsageScore / 10
	}

	return score
}

// UrgencyFor buckets a computed score for feed rendering.
func UrgencyFor(score int) Urgency {
	switch {
	case score >= 1000:
		return UrgencyUrgent
	case score >= 900:
		return UrgencyHigh
	case score >= 600:
		return UrgencyNormal
	default:
		return UrgencyLow
	}
}

// QueueEntry pairs an execution with its scoring inputs and result.
type QueueEntry struct {
	Execution  *models.WorkflowExecution  `json:"execution"`
	Definition *models.WorkflowDefinition `json:"definition"`
	Score      int                        `json:"score"`
	Urgency    Urgency                    `json:"urgency"`
}

// Order sorts a queue in place. In demo mode ordering follows each
// definition's configured sequence number and ignores computed scores, so
// presentations walk the queue in a fixed story order. Otherwise entries are
// sorted by score descending with creation time ascending as the tiebreak.
func Order(entries []QueueEntry, demoMode bool) {
	if demoMode {
		sort.SliceStable(entries, func(a, b int) bool {
			if entries[a].Definition.SequenceNumber != entries[b].Definition.SequenceNumber {
				return entries[a].Definition.SequenceNumber < entries[b].Definition.SequenceNumber
			}

			return entries[a].Execution.CreatedAt.Before(entries[b].Execution.CreatedAt)
		})

		return
	}

	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].Score != entries[b].Score {
			return entries[a].Score > entries[b].Score
		}

		return entries[a].Execution.CreatedAt.Before(entries[b].Execution.CreatedAt)
	})
}

func daysUntil(now, until time.Time) int {
	return int(math.Floor(until.Sub(now).Hours() / 24))
}
