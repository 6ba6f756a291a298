package services_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/renewos/renewos/pkg/crm"
	"github.com/renewos/renewos/pkg/eventbus"
	"github.com/renewos/renewos/pkg/events"
	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/notify"
	"github.com/renewos/renewos/pkg/persistence"
	"github.com/renewos/renewos/pkg/persistence/memory"
	"github.com/renewos/renewos/pkg/ranker"
	"github.com/renewos/renewos/pkg/services"
	"github.com/renewos/renewos/pkg/signals"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) published(eventType events.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0

	for _, e := range p.events {
		if e.GetType() == eventType {
			count++
		}
	}

	return count
}

type fixture struct {
	store      *memory.Persistence
	source     *signals.StaticSource
	publisher  *recordingPublisher
	crmQueue   *crm.MemoryQueue
	clock      *clock.Mock
	executions *services.Execution
	tasks      *services.TaskManager
	queue      *services.Queue
}

func newFixture(owners ...string) *fixture {
	return newFixtureWithRules(notify.DefaultRules(), owners...)
}

func newFixtureWithRules(rules []notify.Rule, owners ...string) *fixture {
	if len(owners) == 0 {
		owners = []string{"csm-1"}
	}

	store := memory.NewPersistence()
	source := signals.NewStaticSource()
	publisher := &recordingPublisher{}
	crmQueue := crm.NewMemoryQueue(16)
	mock := clock.NewMock()
	logger := slog.Default()

	dispatcher := notify.NewDispatcher(rules, store.Notifications(), mock, logger)
	rnk := ranker.New(mock)

	return &fixture{
		store:     store,
		source:    source,
		publisher: publisher,
		crmQueue:  crmQueue,
		clock:     mock,
		executions: services.NewExecution(
			store, source, signals.NewInterpreter(logger), rnk,
			services.StaticOwners(owners), publisher, dispatcher, mock, logger,
		),
		tasks: services.NewTaskManager(store, publisher, dispatcher, crmQueue, mock, logger),
		queue: services.NewQueue(store, logger),
	}
}

func notificationsFor(t *testing.T, f *fixture, recipientID string) []*models.Notification {
	t.Helper()

	feed, err := f.store.Notifications().ListByRecipient(context.Background(), recipientID, persistence.ListNotificationsOptions{})
	require.NoError(t, err)

	return feed
}
