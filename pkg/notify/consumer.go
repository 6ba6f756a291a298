package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/renewos/renewos/pkg/eventbus"
	"github.com/renewos/renewos/pkg/events"
)

var transitionEvents = []events.EventType{
	events.ExecutionCreatedEvent,
	events.ExecutionStatusChangedEvent,
	events.ExecutionEscalatedEvent,
	events.TaskCreatedEvent,
	events.TaskSnoozedEvent,
	events.TaskWokenEvent,
	events.TaskDecisionRequiredEvent,
	events.TaskDecisionResolvedEvent,
	events.TaskTransferredEvent,
}

// Consumer feeds bus-delivered lifecycle events into the dispatcher, so a
// replica that did not originate a transition still evaluates its rules.
// The idempotent delivery key makes the overlap with the originating
// replica's synchronous dispatch a no-op.
type Consumer struct {
	bus        eventbus.EventSubscriber
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewConsumer(bus eventbus.EventSubscriber, dispatcher *Dispatcher, logger *slog.Logger) *Consumer {
	return &Consumer{
		bus:        bus,
		dispatcher: dispatcher,
		logger:     logger.With("module", "notify"),
	}
}

// Start registers a handler for every lifecycle event type and begins
// consuming. Returns once the subscription is running.
func (c *Consumer) Start(ctx context.Context) error {
	for _, eventType := range transitionEvents {
		err := c.bus.Handle(eventType, c.handle)
		if err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	err := c.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.logger.InfoContext(ctx, "notification consumer started", "event_types", len(transitionEvents))

	return nil
}

func (c *Consumer) handle(ctx context.Context, event any) error {
	c.dispatcher.DispatchEvent(ctx, event)

	return nil
}
