package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/renewos/renewos/pkg/otelhelper"
)

// Worker drains the queue and applies each update against the connector,
// retrying transient failures with exponential backoff. Permanent failures
// are logged and dropped.
type Worker struct {
	queue      Queue
	connector  Connector
	logger     *slog.Logger
	tracer     trace.Tracer
	maxElapsed time.Duration
}

func NewWorker(queue Queue, connector Connector, logger *slog.Logger) *Worker {
	return &Worker{
		queue:      queue,
		connector:  connector,
		logger:     logger.With("module", "crm"),
		maxElapsed: 2 * time.Minute,
	}
}

// WithTracer enables a span per applied update.
func (w *Worker) WithTracer(tracer trace.Tracer) *Worker {
	w.tracer = tracer

	return w
}

// Run processes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		update, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}

			if errors.Is(err, redis.Nil) {
				continue
			}

			w.logger.ErrorContext(ctx, "failed to dequeue crm update", "error", err)

			continue
		}

		err = w.process(ctx, update)
		if err != nil {
			w.logger.ErrorContext(ctx, "crm update failed permanently",
				"task_id", update.TaskID,
				"customer_id", update.CustomerID,
				"error", err)
		}
	}
}

func (w *Worker) process(ctx context.Context, update Update) error {
	if w.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, w.tracer, "crm.worker apply",
			attribute.String(otelhelper.TaskIDKey, update.TaskID),
			attribute.String(otelhelper.CustomerIDKey, update.CustomerID))
		defer span.End()
	}

	operation := func() error {
		result, err := w.connector.ApplyUpdate(ctx, update)
		if err != nil {
			return backoff.Permanent(err)
		}

		if result.Success {
			return nil
		}

		if result.Retryable {
			return fmt.Errorf("retryable crm failure: %s", result.Message)
		}

		return backoff.Permanent(fmt.Errorf("permanent crm failure: %s", result.Message))
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = w.maxElapsed

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
