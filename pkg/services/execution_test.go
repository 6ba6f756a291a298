package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/services"
)

func seedDefinition(t *testing.T, f *fixture, definition *models.WorkflowDefinition) {
	t.Helper()

	if definition.Name == "" {
		definition.Name = "Renewal play"
	}

	definition.Active = true
	require.NoError(t, f.store.Definitions().Save(context.Background(), definition))
}

func TestEvaluateCustomerInstantiatesEligibleDefinitions(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	seedDefinition(t, f, &models.WorkflowDefinition{
		ID:   "risk-play",
		Type: models.WorkflowTypeRisk,
		Trigger: &models.Predicate{
			Op: models.OpGte, Field: "risk_score", Value: 7,
		},
	})
	seedDefinition(t, f, &models.WorkflowDefinition{
		ID:   "expansion-play",
		Type: models.WorkflowTypeOpportunity,
		Trigger: &models.Predicate{
			Op: models.OpGte, Field: "opportunity_score", Value: 8,
		},
	})

	f.source.Set(&models.CustomerSignals{CustomerID: "cust-1", RiskScore: 9, OpportunityScore: 2})

	created, err := f.executions.EvaluateCustomer(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, created, 1)

	execution := created[0]
	assert.Equal(t, "risk-play", execution.DefinitionID)
	assert.Equal(t, models.ExecutionStatusNotStarted, execution.Status)
	assert.Equal(t, "csm-1", execution.AssignedOwnerID)

	// Initial score is tier-only; signal boosts arrive with the first sweep.
	assert.Equal(t, 900, execution.PriorityScore)

	// Re-evaluating the same signals never double-instantiates.
	created, err = f.executions.EvaluateCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestEvaluateCustomerAssignsLeastLoadedOwner(t *testing.T) {
	t.Parallel()

	f := newFixture("csm-a", "csm-b")
	ctx := context.Background()

	require.NoError(t, f.store.Executions().Create(ctx, &models.WorkflowExecution{
		ID:              "busy",
		DefinitionID:    "other-def",
		CustomerID:      "cust-0",
		AssignedOwnerID: "csm-a",
		Status:          models.ExecutionStatusUnderway,
	}))

	seedDefinition(t, f, &models.WorkflowDefinition{ID: "renewal-play", Type: models.WorkflowTypeRenewal})
	f.source.Set(&models.CustomerSignals{CustomerID: "cust-1"})

	created, err := f.executions.EvaluateCustomer(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "csm-b", created[0].AssignedOwnerID)
}

func TestUpdateStatusTerminalIsIrreversible(t *testing.T) {
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

	_, err := f.executions.UpdateStatus(ctx, "exec-1", models.ExecutionStatusSkipped)
	require.NoError(t, err)

	_, err = f.executions.UpdateStatus(ctx, "exec-1", models.ExecutionStatusUnderway)
	require.ErrorIs(t, err, services.ErrTerminalState)
	assert.True(t, services.IsConflictError(err))
}

func TestCompleteWithOpenTasksLandsInCompletedPending(t *testing.T) {
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

	_, err := f.tasks.Create(ctx, &models.Task{WorkflowExecutionID: "exec-1", Title: "Loose end"})
	require.NoError(t, err)

	execution, err := f.executions.UpdateStatus(ctx, "exec-1", models.ExecutionStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompletedPending, execution.Status)
}

func TestSnoozeSetsWakeTimeAndSnoozedScore(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.store.Executions().Create(ctx, &models.WorkflowExecution{
		ID:              "exec-1",
		DefinitionID:    "def-1",
		CustomerID:      "cust-1",
		AssignedOwnerID: "csm-1",
		Status:          models.ExecutionStatusUnderway,
		PriorityScore:   965,
	}))

	execution, err := f.executions.Snooze(ctx, "exec-1", f.clock.Now().Add(48*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSnoozed, execution.Status)
	require.NotNil(t, execution.SnoozeUntil)
	assert.Equal(t, 1002, execution.PriorityScore)

	// Leaving the snoozed state clears the wake time.
	execution, err = f.executions.UpdateStatus(ctx, "exec-1", models.ExecutionStatusUnderway)
	require.NoError(t, err)
	assert.Nil(t, execution.SnoozeUntil)
}

func TestEscalateKeepsAssignedOwner(t *testing.T) {
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

	execution, err := f.executions.Escalate(ctx, "exec-1", "manager-1", "renewal at risk")
	require.NoError(t, err)

	assert.Equal(t, "csm-1", execution.AssignedOwnerID)
	require.NotNil(t, execution.EscalationOwnerID)
	assert.Equal(t, "manager-1", *execution.EscalationOwnerID)

	// Both parties get the escalation alert.
	assert.Len(t, notificationsFor(t, f, "csm-1"), 1)
	assert.Len(t, notificationsFor(t, f, "manager-1"), 1)
}

func TestRescoreCachesNewScore(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	seedDefinition(t, f, &models.WorkflowDefinition{ID: "risk-play", Type: models.WorkflowTypeRisk})
	f.source.Set(&models.CustomerSignals{CustomerID: "cust-1", RevenueTier: 5, ChurnRiskScore: 8})

	require.NoError(t, f.store.Executions().Create(ctx, &models.WorkflowExecution{
		ID:              "exec-1",
		DefinitionID:    "risk-play",
		CustomerID:      "cust-1",
		AssignedOwnerID: "csm-1",
		Status:          models.ExecutionStatusUnderway,
		PriorityScore:   900,
	}))

	execution, err := f.executions.GetByID(ctx, "exec-1")
	require.NoError(t, err)

	changed, err := f.executions.Rescore(ctx, execution)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 965, execution.PriorityScore)

	// Identical inputs yield an identical score, so nothing changes.
	changed, err = f.executions.Rescore(ctx, execution)
	require.NoError(t, err)
	assert.False(t, changed)
}
