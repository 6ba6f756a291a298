package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewos/renewos/pkg/events"
	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/notify"
	"github.com/renewos/renewos/pkg/services"
)

func seedTask(t *testing.T, f *fixture) *models.Task {
	t.Helper()

	ctx := context.Background()

	execution := &models.WorkflowExecution{
		ID:              "exec-1",
		DefinitionID:    "def-1",
		CustomerID:      "cust-1",
		AssignedOwnerID: "csm-1",
		Status:          models.ExecutionStatusUnderway,
	}
	require.NoError(t, f.store.Executions().Create(ctx, execution))

	task, err := f.tasks.Create(ctx, &models.Task{
		WorkflowExecutionID: execution.ID,
		Title:               "Review renewal terms",
	})
	require.NoError(t, err)

	return task
}

func TestSnoozeFixesDeadlineOnFirstSnooze(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	task := seedTask(t, f)

	first := f.clock.Now()

	task, err := f.tasks.Snooze(ctx, task.ID, first.Add(2*24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusSnoozed, task.Status)
	assert.Equal(t, 1, task.SnoozeCount)
	require.NotNil(t, task.SnoozeDeadline)
	assert.Equal(t, first.Add(models.SnoozeCeiling).UTC(), task.SnoozeDeadline.UTC())

	// Wake two days in, then re-snooze. The deadline must not move.
	f.clock.Add(2 * 24 * time.Hour)

	woken, err := f.tasks.Wake(ctx, task)
	require.NoError(t, err)
	require.True(t, woken)

	task, err = f.tasks.Snooze(ctx, task.ID, f.clock.Now().Add(3*24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, task.SnoozeCount)
	assert.Equal(t, first.Add(models.SnoozeCeiling).UTC(), task.SnoozeDeadline.UTC())
}

func TestSnoozeFiresRulesBoundToTaskSnoozed(t *testing.T) {
	t.Parallel()

	rules := append(notify.DefaultRules(), notify.Rule{
		ID:         "task-snoozed-digest",
		Event:      events.TaskSnoozedEvent,
		Type:       "task_snoozed",
		Priority:   models.PriorityInfo,
		Recipients: []string{notify.RecipientOwner},
		Template:   "Task {{.task_title}} snoozed.",
	})

	f := newFixtureWithRules(rules)
	ctx := context.Background()
	task := seedTask(t, f)

	_, err := f.tasks.Snooze(ctx, task.ID, f.clock.Now().Add(24*time.Hour))
	require.NoError(t, err)

	feed := notificationsFor(t, f, "csm-1")
	require.Len(t, feed, 1)
	assert.Equal(t, "task_snoozed", feed[0].Type)
	assert.Equal(t, "Task Review renewal terms snoozed.", feed[0].ResolvedMessage)
	assert.Equal(t, float64(1), feed[0].Metadata["snooze_count"])
}

func TestSnoozeBeyondDeadlineRejectedNotClamped(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	task := seedTask(t, f)

	task, err := f.tasks.Snooze(ctx, task.ID, f.clock.Now().Add(24*time.Hour))
	require.NoError(t, err)

	f.clock.Add(24 * time.Hour)

	_, err = f.tasks.Wake(ctx, task)
	require.NoError(t, err)

	// 6 days remain in the episode; asking for 8 is past the ceiling.
	_, err = f.tasks.Snooze(ctx, task.ID, f.clock.Now().Add(8*24*time.Hour))
	require.ErrorIs(t, err, services.ErrSnoozeBeyondDeadline)
	assert.True(t, services.IsValidationError(err))

	stored, err := f.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.SnoozeCount)
}

func TestWakeAtFiveDaysButFlagAtSevenDays(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// A 5-day snooze wakes normally at day 5.
	f := newFixture()
	task := seedTask(t, f)

	task, err := f.tasks.Snooze(ctx, task.ID, f.clock.Now().Add(5*24*time.Hour))
	require.NoError(t, err)

	f.clock.Add(5 * 24 * time.Hour)

	flagged, err := f.tasks.DeadlineCheck(ctx, task)
	require.NoError(t, err)
	assert.False(t, flagged)

	woken, err := f.tasks.Wake(ctx, task)
	require.NoError(t, err)
	assert.True(t, woken)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.False(t, task.RequiresDecision)

	// A 10-day snooze request is rejected outright, so the longest possible
	// episode hits the deadline at day 7 with snoozedUntil still ahead.
	g := newFixture()
	task2 := seedTask(t, g)

	_, err = g.tasks.Snooze(ctx, task2.ID, g.clock.Now().Add(10*24*time.Hour))
	require.ErrorIs(t, err, services.ErrSnoozeBeyondDeadline)

	task2, err = g.tasks.Snooze(ctx, task2.ID, g.clock.Now().Add(7*24*time.Hour))
	require.NoError(t, err)

	g.clock.Add(7 * 24 * time.Hour)

	woken, err = g.tasks.Wake(ctx, task2)
	require.NoError(t, err)
	assert.False(t, woken, "a flaggable task must not silently wake")

	flagged, err = g.tasks.DeadlineCheck(ctx, task2)
	require.NoError(t, err)
	assert.True(t, flagged)
	assert.True(t, task2.RequiresDecision)
	assert.Equal(t, models.TaskStatusSnoozed, task2.Status)
}

func TestDeadlineCheckNotifiesOwnerOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	task := seedTask(t, f)

	task, err := f.tasks.Snooze(ctx, task.ID, f.clock.Now().Add(6*24*time.Hour))
	require.NoError(t, err)

	f.clock.Add(7 * 24 * time.Hour)

	flagged, err := f.tasks.DeadlineCheck(ctx, task)
	require.NoError(t, err)
	require.True(t, flagged)

	feed := notificationsFor(t, f, "csm-1")
	require.Len(t, feed, 1)
	assert.Equal(t, models.PriorityUrgent, feed[0].Priority)

	// Re-running the check against fresh state is a no-op.
	stored, err := f.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)

	flagged, err = f.tasks.DeadlineCheck(ctx, stored)
	require.NoError(t, err)
	assert.False(t, flagged)
	assert.Len(t, notificationsFor(t, f, "csm-1"), 1)
}

func TestResolveDecisionSkipForever(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	task := flaggedTask(t, f)

	// Snoozing or completing around the prompt is refused.
	_, err := f.tasks.Snooze(ctx, task.ID, f.clock.Now().Add(time.Hour))
	require.ErrorIs(t, err, services.ErrDecisionPending)

	_, err = f.tasks.UpdateStatus(ctx, task.ID, models.TaskStatusCompleted)
	require.ErrorIs(t, err, services.ErrDecisionPending)

	resolved, err := f.tasks.ResolveDecision(ctx, task.ID, models.DecisionSkipForever)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusSkipped, resolved.Status)
	assert.False(t, resolved.RequiresDecision)
	assert.Nil(t, resolved.SnoozeDeadline)

	// Terminal and gone for good.
	_, err = f.tasks.UpdateStatus(ctx, resolved.ID, models.TaskStatusPending)
	require.ErrorIs(t, err, services.ErrTerminalState)
}

func TestResolveDecisionActNowStartsFreshEpisode(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	task := flaggedTask(t, f)

	resolved, err := f.tasks.ResolveDecision(ctx, task.ID, models.DecisionActNow)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStatusInProgress, resolved.Status)
	assert.False(t, resolved.RequiresDecision)
	assert.Equal(t, 0, resolved.SnoozeCount)
	assert.Nil(t, resolved.FirstSnoozedAt)

	// The next snooze opens a brand-new 7-day episode.
	resnoozed, err := f.tasks.Snooze(ctx, resolved.ID, f.clock.Now().Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, resnoozed.SnoozeCount)
	assert.Equal(t, f.clock.Now().Add(models.SnoozeCeiling).UTC(), resnoozed.SnoozeDeadline.UTC())
}

func TestResolveDecisionRequiresPendingDecision(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	task := seedTask(t, f)

	_, err := f.tasks.ResolveDecision(ctx, task.ID, models.DecisionActNow)
	require.ErrorIs(t, err, services.ErrNoDecisionPending)

	_, err = f.tasks.ResolveDecision(ctx, task.ID, "later")
	require.ErrorIs(t, err, services.ErrInvalidDecision)
}

func TestConcurrentResolveDecisionLosesOnVersion(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	task := flaggedTask(t, f)

	_, err := f.tasks.ResolveDecision(ctx, task.ID, models.DecisionActNow)
	require.NoError(t, err)

	// A second caller holding the stale flagged copy loses cleanly.
	stale := *task
	stale.Status = models.TaskStatusSkipped
	stale.RequiresDecision = false

	err = f.store.Tasks().Update(ctx, &stale)
	require.Error(t, err)
	assert.True(t, services.IsConflictError(err))
}

func TestTransferPreservesSnoozeCounters(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	task := seedTask(t, f)

	require.NoError(t, f.store.Executions().Create(ctx, &models.WorkflowExecution{
		ID:              "exec-2",
		DefinitionID:    "def-2",
		CustomerID:      "cust-1",
		AssignedOwnerID: "csm-1",
		Status:          models.ExecutionStatusNotStarted,
	}))

	task, err := f.tasks.Snooze(ctx, task.ID, f.clock.Now().Add(24*time.Hour))
	require.NoError(t, err)

	transferred, err := f.tasks.Transfer(ctx, task.ID, "exec-2")
	require.NoError(t, err)

	assert.Equal(t, "exec-2", transferred.WorkflowExecutionID)
	assert.Equal(t, 1, transferred.SnoozeCount)
	assert.NotNil(t, transferred.SnoozeDeadline)
	assert.Equal(t, 1, f.publisher.published(events.TaskTransferredEvent))
}

func TestTransferRejectsTerminalTarget(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	task := seedTask(t, f)

	require.NoError(t, f.store.Executions().Create(ctx, &models.WorkflowExecution{
		ID:              "exec-done",
		DefinitionID:    "def-2",
		CustomerID:      "cust-1",
		AssignedOwnerID: "csm-1",
		Status:          models.ExecutionStatusCompleted,
	}))

	_, err := f.tasks.Transfer(ctx, task.ID, "exec-done")
	require.ErrorIs(t, err, services.ErrTransferTarget)
}

func TestCompletingUpdateCRMTaskEnqueuesJob(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.store.Executions().Create(ctx, &models.WorkflowExecution{
		ID:              "exec-1",
		DefinitionID:    "def-1",
		CustomerID:      "cust-1",
		AssignedOwnerID: "csm-1",
		Status:          models.ExecutionStatusUnderway,
	}))

	task, err := f.tasks.Create(ctx, &models.Task{
		WorkflowExecutionID: "exec-1",
		Title:               "Push renewal date",
		Type:                models.TaskTypeUpdateCRM,
		CRMPayload:          map[string]any{"renewal_date": "2026-12-01"},
	})
	require.NoError(t, err)

	_, err = f.tasks.UpdateStatus(ctx, task.ID, models.TaskStatusCompleted)
	require.NoError(t, err)

	dequeueCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	update, err := f.crmQueue.Dequeue(dequeueCtx)
	require.NoError(t, err)
	assert.Equal(t, task.ID, update.TaskID)
	assert.Equal(t, "cust-1", update.CustomerID)
	assert.Equal(t, "2026-12-01", update.Fields["renewal_date"])
}

// flaggedTask snoozes a fresh task to its ceiling and advances past the
// deadline so the forced decision is pending.
func flaggedTask(t *testing.T, f *fixture) *models.Task {
	t.Helper()

	ctx := context.Background()
	task := seedTask(t, f)

	task, err := f.tasks.Snooze(ctx, task.ID, f.clock.Now().Add(7*24*time.Hour))
	require.NoError(t, err)

	f.clock.Add(7 * 24 * time.Hour)

	flagged, err := f.tasks.DeadlineCheck(ctx, task)
	require.NoError(t, err)
	require.True(t, flagged)

	return task
}
