// Package reconcile implements the daily sweep that wakes snoozed tasks,
// flags overdue decisions, and refreshes cached priority scores.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/renewos/renewos/pkg/eventbus"
	"github.com/renewos/renewos/pkg/events"
	"github.com/renewos/renewos/pkg/lock"
	"github.com/renewos/renewos/pkg/persistence"
	"github.com/renewos/renewos/pkg/services"
)

const (
	dailyLockKey = "renewos:jobs:reconcile"
	wakeLockKey  = "renewos:jobs:wake"
	lockTTL      = 15 * time.Minute
)

// Result summarizes what one sweep actually changed.
type Result struct {
	Woken    int
	Flagged  int
	Rescored int
	Skipped  bool
}

// Reconciler runs the sweep. Per-item failures are logged and skipped; the
// sweep always covers every remaining item. Re-running within the same day
// changes nothing because every mutation re-checks its guard and every
// notification carries an episode-derived idempotency key.
type Reconciler struct {
	persistence persistence.Persistence
	tasks       *services.TaskManager
	executions  *services.Execution
	locker      lock.Locker
	publisher   eventbus.EventPublisher
	clock       clock.Clock
	logger      *slog.Logger
}

func New(
	p persistence.Persistence,
	tasks *services.TaskManager,
	executions *services.Execution,
	locker lock.Locker,
	publisher eventbus.EventPublisher,
	clk clock.Clock,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		persistence: p,
		tasks:       tasks,
		executions:  executions,
		locker:      locker,
		publisher:   publisher,
		clock:       clk,
		logger:      logger.With("module", "reconcile"),
	}
}

// Run executes the full daily sweep under the distributed lock. When
// another replica holds the lock the run is skipped, not queued.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	release, acquired, err := r.locker.Acquire(ctx, dailyLockKey, lockTTL)
	if err != nil {
		return Result{}, err
	}

	if !acquired {
		r.logger.InfoContext(ctx, "reconciliation already running elsewhere, skipping")

		return Result{Skipped: true}, nil
	}

	defer func() {
		err := release(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to release reconcile lock", "error", err)
		}
	}()

	started := r.clock.Now()
	result := Result{}

	woken, flagged := r.sweepTasks(ctx)
	result.Woken = woken
	result.Flagged = flagged
	result.Rescored = r.rescoreExecutions(ctx)

	duration := r.clock.Now().Sub(started)

	event := events.ReconciliationCompleted{
		BaseEvent: events.NewBaseEvent(events.ReconciliationCompletedEvent),
		Woken:     result.Woken,
		Flagged:   result.Flagged,
		Rescored:  result.Rescored,
		Duration:  duration,
	}

	err = r.publisher.Publish(ctx, "reconcile", event)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to publish reconciliation event", "error", err)
	}

	r.logger.InfoContext(ctx, "reconciliation completed",
		"woken", result.Woken,
		"flagged", result.Flagged,
		"rescored", result.Rescored,
		"duration", duration)

	return result, nil
}

// WakeSweep wakes due tasks without the rest of the daily work. Scheduled
// more frequently so tasks do not stay asleep until the next midnight.
func (r *Reconciler) WakeSweep(ctx context.Context) (Result, error) {
	release, acquired, err := r.locker.Acquire(ctx, wakeLockKey, lockTTL)
	if err != nil {
		return Result{}, err
	}

	if !acquired {
		return Result{Skipped: true}, nil
	}

	defer func() {
		err := release(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to release wake lock", "error", err)
		}
	}()

	woken, _ := r.sweepTasks(ctx)

	return Result{Woken: woken}, nil
}

func (r *Reconciler) sweepTasks(ctx context.Context) (int, int) {
	snoozed, err := r.persistence.Tasks().ListSnoozed(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to list snoozed tasks", "error", err)

		return 0, 0
	}

	woken, flagged := 0, 0

	for _, task := range snoozed {
		// Deadline flagging wins over waking: a task past both its wake
		// time and its deadline must surface the forced decision, never
		// silently return to pending.
		didFlag, err := r.tasks.DeadlineCheck(ctx, task)
		if err != nil {
			r.logger.ErrorContext(ctx, "deadline check failed", "task_id", task.ID, "error", err)

			continue
		}

		if didFlag {
			flagged++

			continue
		}

		didWake, err := r.tasks.Wake(ctx, task)
		if err != nil {
			r.logger.ErrorContext(ctx, "wake failed", "task_id", task.ID, "error", err)

			continue
		}

		if didWake {
			woken++
		}
	}

	return woken, flagged
}

func (r *Reconciler) rescoreExecutions(ctx context.Context) int {
	active, err := r.persistence.Executions().ListActive(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to list active executions", "error", err)

		return 0
	}

	rescored := 0

	for _, execution := range active {
		changed, err := r.executions.Rescore(ctx, execution)
		if err != nil {
			r.logger.WarnContext(ctx, "rescore failed",
				"execution_id", execution.ID,
				"error", err)

			continue
		}

		if changed {
			rescored++
		}
	}

	return rescored
}
