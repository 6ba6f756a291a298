package main

import (
	"context"
	"fmt"
	"os"

	"github.com/benbjohnson/clock"
	cli "github.com/urfave/cli/v3"

	"github.com/renewos/renewos/pkg/cmd"
	"github.com/renewos/renewos/pkg/crm"
	"github.com/renewos/renewos/pkg/log"
	"github.com/renewos/renewos/pkg/notify"
	"github.com/renewos/renewos/pkg/otelhelper"
	"github.com/renewos/renewos/pkg/ranker"
	"github.com/renewos/renewos/pkg/reconcile"
	"github.com/renewos/renewos/pkg/services"
	"github.com/renewos/renewos/pkg/signals"
)

func main() {
	logger := log.WithModule("scheduler")

	cmdRoot := &cli.Command{
		Name:                  "renewos-scheduler",
		Usage:                 "Run the daily reconciliation sweep and the CRM update worker",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for job locks and the CRM update queue",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "crm-endpoint",
				Usage:   "CRM webhook endpoint for field updates",
				Sources: cli.EnvVars("CRM_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "crm-token",
				Usage:   "Bearer token for the CRM endpoint",
				Sources: cli.EnvVars("CRM_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "signals-path",
				Usage:   "JSON file of customer signals to seed the signal store",
				Sources: cli.EnvVars("SIGNALS_PATH"),
			},
			&cli.StringFlag{
				Name:    "reconcile-cron",
				Usage:   "Cron expression for the daily reconciliation sweep",
				Value:   "0 5 * * *",
				Sources: cli.EnvVars("RECONCILE_CRON"),
			},
			&cli.StringFlag{
				Name:    "wake-cron",
				Usage:   "Cron expression for the wake sweep",
				Value:   "@hourly",
				Sources: cli.EnvVars("WAKE_CRON"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing RenewOS Scheduler")

			tracer, err := otelhelper.NewTracer(ctx, "renewos-scheduler")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "renewos-scheduler", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			redisClient := cmd.NewRedisClient(command.String("redis-url"))
			locker := cmd.NewLocker(redisClient, logger)
			crmQueue := cmd.NewCRMQueue(redisClient, logger)
			connector := cmd.NewCRMConnector(command.String("crm-endpoint"), command.String("crm-token"), logger)
			source := cmd.NewSignalSource(ctx, logger, command.String("signals-path"))

			clk := clock.New()
			interpreter := signals.NewInterpreter(logger)
			rnk := ranker.New(clk)
			dispatcher := notify.NewDispatcher(notify.DefaultRules(), persistence.Notifications(), clk, logger)

			consumer := notify.NewConsumer(eventBus, dispatcher, logger)

			err = consumer.Start(ctx)
			if err != nil {
				return fmt.Errorf("failed to start notification consumer: %w", err)
			}

			taskService := services.NewTaskManager(persistence, eventBus, dispatcher, crmQueue, clk, logger)
			executionService := services.NewExecution(persistence, source, interpreter, rnk, services.StaticOwners(nil), eventBus, dispatcher, clk, logger)

			reconciler := reconcile.New(persistence, taskService, executionService, locker, eventBus, clk, logger)
			crmWorker := crm.NewWorker(crmQueue, connector, logger).WithTracer(tracer)

			scheduler := NewScheduler(
				reconciler,
				crmWorker,
				command.String("reconcile-cron"),
				command.String("wake-cron"),
				tracer,
				logger,
			)

			return scheduler.Start(ctx)
		},
	}

	err := cmdRoot.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
