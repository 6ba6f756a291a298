// Package main provides the RenewOS scheduler, which runs the daily
// reconciliation sweep, the hourly wake sweep, and the CRM update worker.
package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/renewos/renewos/pkg/crm"
	"github.com/renewos/renewos/pkg/otelhelper"
	"github.com/renewos/renewos/pkg/reconcile"
)

type Scheduler struct {
	reconciler    *reconcile.Reconciler
	crmWorker     *crm.Worker
	reconcileSpec string
	wakeSpec      string
	tracer        trace.Tracer
	logger        *slog.Logger
	cron          *cron.Cron
}

func NewScheduler(
	reconciler *reconcile.Reconciler,
	crmWorker *crm.Worker,
	reconcileSpec string,
	wakeSpec string,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		reconciler:    reconciler,
		crmWorker:     crmWorker,
		reconcileSpec: reconcileSpec,
		wakeSpec:      wakeSpec,
		tracer:        tracer,
		logger:        logger.With("module", "scheduler"),
	}
}

// Start registers the cron jobs and the CRM worker, then blocks until the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.reconcileSpec, func() {
		s.runReconcile(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}

	_, err = s.cron.AddFunc(s.wakeSpec, func() {
		s.runWakeSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule wake sweep: %w", err)
	}

	go func() {
		err := s.crmWorker.Run(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "crm worker stopped", "error", err)
		}
	}()

	s.cron.Start()
	s.logger.InfoContext(ctx, "scheduler started",
		"reconcile_cron", s.reconcileSpec,
		"wake_cron", s.wakeSpec)

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	return nil
}

func (s *Scheduler) runReconcile(ctx context.Context) {
	spanCtx, span := otelhelper.StartSpan(ctx, s.tracer, "scheduler.reconcile run")
	defer span.End()

	result, err := s.reconciler.Run(spanCtx)
	if err != nil {
		otelhelper.SetError(span, err)
		s.logger.ErrorContext(spanCtx, "reconciliation run failed", "error", err)

		return
	}

	if result.Skipped {
		s.logger.InfoContext(spanCtx, "reconciliation skipped, lock held elsewhere")
	}
}

func (s *Scheduler) runWakeSweep(ctx context.Context) {
	spanCtx, span := otelhelper.StartSpan(ctx, s.tracer, "scheduler.wake sweep")
	defer span.End()

	result, err := s.reconciler.WakeSweep(spanCtx)
	if err != nil {
		otelhelper.SetError(span, err)
		s.logger.ErrorContext(spanCtx, "wake sweep failed", "error", err)

		return
	}

	if result.Woken > 0 {
		s.logger.InfoContext(spanCtx, "wake sweep completed", "woken", result.Woken)
	}
}
