package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewos/renewos/pkg/channels/gochannel"
	"github.com/renewos/renewos/pkg/crm"
	"github.com/renewos/renewos/pkg/eventbus"
	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/persistence"
	"github.com/renewos/renewos/pkg/persistence/memory"
	"github.com/renewos/renewos/pkg/services"
	"github.com/renewos/renewos/pkg/signals"
)

func setupTestAPI(t *testing.T) (*fiber.App, persistence.Persistence, *signals.StaticSource) {
	t.Helper()

	store := memory.NewPersistence()
	source := signals.NewStaticSource()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	api := NewAPI(
		slog.Default(),
		store,
		source,
		bus,
		crm.NewMemoryQueue(16),
		services.StaticOwners{"csm-1"},
	)

	return api.App(), store, source
}

func seedRiskPlay(t *testing.T, store persistence.Persistence, source *signals.StaticSource) {
	t.Helper()

	err := store.Definitions().Save(context.Background(), &models.WorkflowDefinition{
		ID:   "risk-play",
		Name: "Churn Risk Play",
		Type: models.WorkflowTypeRisk,
		Trigger: &models.Predicate{
			Op:    models.OpGte,
			Field: "risk_score",
			Value: 7,
		},
		Active: true,
	})
	require.NoError(t, err)

	source.Set(&models.CustomerSignals{
		CustomerID:     "cust-1",
		RiskScore:      8,
		RevenueTier:    5,
		ChurnRiskScore: 8,
	})
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "RenewOS API", string(body))
}

func TestAPI_Liveness(t *testing.T) {
	app, _, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_EvaluateCustomerAndReadQueue(t *testing.T) {
	app, store, source := setupTestAPI(t)
	seedRiskPlay(t, store, source)

	req := httptest.NewRequest(http.MethodPost, "/customers/cust-1/evaluate", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var evaluated struct {
		Created []*models.WorkflowExecution `json:"created"`
	}

	err = json.NewDecoder(resp.Body).Decode(&evaluated)
	require.NoError(t, err)
	require.Len(t, evaluated.Created, 1)
	assert.Equal(t, 900, evaluated.Created[0].PriorityScore)

	req = httptest.NewRequest(http.MethodGet, "/queue/csm-1", nil)
	req.Header.Set("Accept", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var queue struct {
		Entries []struct {
			Score   int    `json:"score"`
			Urgency string `json:"urgency"`
		} `json:"entries"`
		TotalCount int `json:"total_count"`
	}

	err = json.NewDecoder(resp.Body).Decode(&queue)
	require.NoError(t, err)
	require.Len(t, queue.Entries, 1)
	assert.Equal(t, 1, queue.TotalCount)
	assert.Equal(t, 900, queue.Entries[0].Score)
}

func TestAPI_TaskLifecycle(t *testing.T) {
	app, store, source := setupTestAPI(t)
	seedRiskPlay(t, store, source)

	req := httptest.NewRequest(http.MethodPost, "/customers/cust-1/evaluate", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	executions, err := store.Executions().ListByOwner(context.Background(), "csm-1")
	require.NoError(t, err)
	require.Len(t, executions, 1)

	createBody, err := json.Marshal(map[string]any{
		"title": "Schedule renewal call",
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/executions/"+executions[0].ID+"/tasks", bytes.NewReader(createBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var task models.Task

	err = json.NewDecoder(resp.Body).Decode(&task)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, task.Status)

	snoozeBody, err := json.Marshal(map[string]any{
		"until": time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/tasks/"+task.ID+"/snooze", bytes.NewReader(snoozeBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snoozed models.Task

	err = json.NewDecoder(resp.Body).Decode(&snoozed)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSnoozed, snoozed.Status)
	assert.Equal(t, 1, snoozed.SnoozeCount)
	require.NotNil(t, snoozed.SnoozeDeadline)
}

func TestAPI_SnoozeBeyondDeadlineReturnsBadRequest(t *testing.T) {
	app, store, source := setupTestAPI(t)
	seedRiskPlay(t, store, source)

	req := httptest.NewRequest(http.MethodPost, "/customers/cust-1/evaluate", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	executions, err := store.Executions().ListByOwner(context.Background(), "csm-1")
	require.NoError(t, err)
	require.Len(t, executions, 1)

	task := &models.Task{
		WorkflowExecutionID: executions[0].ID,
		Title:               "Review usage dip",
	}

	createBody, err := json.Marshal(task)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/executions/"+executions[0].ID+"/tasks", bytes.NewReader(createBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Task

	err = json.NewDecoder(resp.Body).Decode(&created)
	require.NoError(t, err)

	// A first snooze past the seven day ceiling is rejected outright.
	snoozeBody, err := json.Marshal(map[string]any{
		"until": time.Now().UTC().Add(10 * 24 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/tasks/"+created.ID+"/snooze", bytes.NewReader(snoozeBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem struct {
		Type   string `json:"type"`
		Detail string `json:"detail"`
	}

	err = json.NewDecoder(resp.Body).Decode(&problem)
	require.NoError(t, err)
	assert.Equal(t, "validation_error", problem.Type)
}

func TestAPI_DecisionWithoutFlagReturnsConflict(t *testing.T) {
	app, store, source := setupTestAPI(t)
	seedRiskPlay(t, store, source)

	req := httptest.NewRequest(http.MethodPost, "/customers/cust-1/evaluate", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	executions, err := store.Executions().ListByOwner(context.Background(), "csm-1")
	require.NoError(t, err)
	require.Len(t, executions, 1)

	createBody, err := json.Marshal(map[string]any{"title": "Prep QBR deck"})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/executions/"+executions[0].ID+"/tasks", bytes.NewReader(createBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	var created models.Task

	err = json.NewDecoder(resp.Body).Decode(&created)
	require.NoError(t, err)

	decisionBody, err := json.Marshal(map[string]any{"choice": "act_now"})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/tasks/"+created.ID+"/decision", bytes.NewReader(decisionBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_GetExecution_NotFound(t *testing.T) {
	app, _, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/executions/missing", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_NotificationFeed(t *testing.T) {
	app, store, source := setupTestAPI(t)
	seedRiskPlay(t, store, source)

	req := httptest.NewRequest(http.MethodPost, "/customers/cust-1/evaluate", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	// Instantiation at score 900 trips the high-risk rule, so the owner's
	// feed is not empty.
	req = httptest.NewRequest(http.MethodGet, "/notifications/csm-1", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var feed []*models.Notification

	err = json.NewDecoder(resp.Body).Decode(&feed)
	require.NoError(t, err)
	assert.NotEmpty(t, feed)
}

func TestAPI_CORS_Headers(t *testing.T) {
	app, _, _ := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/queue/csm-1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
