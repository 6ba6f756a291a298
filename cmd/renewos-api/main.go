package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/renewos/renewos/pkg/cmd"
	"github.com/renewos/renewos/pkg/definitions"
	"github.com/renewos/renewos/pkg/log"
	"github.com/renewos/renewos/pkg/services"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	cmdRoot := &cli.Command{
		Name:                  "renewos-api",
		Usage:                 "Serve the renewal workflow queue and task API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
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
				Usage:   "Redis connection URL for the CRM update queue",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "definitions-path",
				Usage:   "Directory of workflow definition JSON files to load at startup",
				Sources: cli.EnvVars("DEFINITIONS_PATH"),
			},
			&cli.StringFlag{
				Name:    "signals-path",
				Usage:   "JSON file of customer signals to seed the signal store",
				Sources: cli.EnvVars("SIGNALS_PATH"),
			},
			&cli.StringSliceFlag{
				Name:    "owners",
				Usage:   "User ids eligible to receive new executions",
				Sources: cli.EnvVars("OWNER_IDS"),
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

			logger.InfoContext(ctx, "Initializing RenewOS API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "renewos-api", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			redisClient := cmd.NewRedisClient(command.String("redis-url"))
			crmQueue := cmd.NewCRMQueue(redisClient, logger)
			source := cmd.NewSignalSource(ctx, logger, command.String("signals-path"))

			if dir := command.String("definitions-path"); dir != "" {
				loader, err := definitions.NewLoader(persistence.Definitions(), logger)
				if err != nil {
					return err
				}

				loaded, err := loader.LoadDir(ctx, dir)
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "Loaded workflow definitions", "count", loaded)
			}

			api := NewAPI(
				logger,
				persistence,
				source,
				eventBus,
				crmQueue,
				services.StaticOwners(command.StringSlice("owners")),
			)

			err := api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := cmdRoot.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
