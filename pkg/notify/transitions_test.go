package notify_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewos/renewos/pkg/events"
	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/notify"
	"github.com/renewos/renewos/pkg/persistence"
	"github.com/renewos/renewos/pkg/persistence/memory"
)

func TestDispatchEventCoversStatusChange(t *testing.T) {
	t.Parallel()

	store := memory.NewPersistence()

	rules := []notify.Rule{
		{
			ID:         "execution-failed",
			Event:      events.ExecutionStatusChangedEvent,
			Type:       "status_changed",
			Priority:   models.PriorityNormal,
			Recipients: []string{notify.RecipientOwner},
			Template:   "Workflow for customer {{.customer_id}} moved from {{.from}} to {{.to}}.",
		},
	}

	dispatcher := notify.NewDispatcher(rules, store.Notifications(), clock.New(), slog.Default())

	event := events.ExecutionStatusChanged{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStatusChangedEvent),
		ExecutionID: "exec-1",
		CustomerID:  "cust-1",
		OwnerID:     "csm-1",
		From:        models.ExecutionStatusUnderway,
		To:          models.ExecutionStatusFailed,
	}

	assert.Equal(t, 1, dispatcher.DispatchEvent(context.Background(), &event))

	feed, err := store.Notifications().ListByRecipient(context.Background(), "csm-1", persistence.ListNotificationsOptions{})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "Workflow for customer cust-1 moved from underway to failed.", feed[0].ResolvedMessage)
	assert.Equal(t, event.ID, feed[0].EventID)
}

func TestDispatchEventIgnoresUnmappedEvents(t *testing.T) {
	t.Parallel()

	store := memory.NewPersistence()
	dispatcher := notify.NewDispatcher(notify.DefaultRules(), store.Notifications(), clock.New(), slog.Default())

	event := events.ReconciliationCompleted{
		BaseEvent: events.NewBaseEvent(events.ReconciliationCompletedEvent),
		Woken:     2,
	}

	assert.Equal(t, 0, dispatcher.DispatchEvent(context.Background(), &event))
}

func TestTransitionContextCarriesEventID(t *testing.T) {
	t.Parallel()

	event := events.TaskSnoozed{
		BaseEvent:   events.NewBaseEvent(events.TaskSnoozedEvent),
		TaskID:      "task-1",
		OwnerID:     "csm-1",
		Title:       "Review renewal terms",
		SnoozeCount: 2,
	}

	eventType, tctx, ok := notify.TransitionContextFor(&event)
	require.True(t, ok)

	assert.Equal(t, events.TaskSnoozedEvent, eventType)
	assert.Equal(t, event.ID, tctx.EventID)
	assert.Equal(t, "task-1", tctx.SourceRef)
	assert.Equal(t, float64(2), tctx.Metrics["snooze_count"])
}
