// Package main provides the RenewOS API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/renewos/renewos/pkg/crm"
	"github.com/renewos/renewos/pkg/eventbus"
	"github.com/renewos/renewos/pkg/notify"
	"github.com/renewos/renewos/pkg/persistence"
	"github.com/renewos/renewos/pkg/ranker"
	"github.com/renewos/renewos/pkg/services"
	"github.com/renewos/renewos/pkg/signals"
	"github.com/renewos/renewos/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	source      signals.Source
	eventBus    eventbus.EventBus
	crmQueue    crm.Queue
	owners      services.OwnerDirectory
	clock       clock.Clock
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	source signals.Source,
	eventBus eventbus.EventBus,
	crmQueue crm.Queue,
	owners services.OwnerDirectory,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		source:      source,
		eventBus:    eventBus,
		crmQueue:    crmQueue,
		owners:      owners,
		clock:       clock.New(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	interpreter := signals.NewInterpreter(a.logger)
	rnk := ranker.New(a.clock)
	dispatcher := notify.NewDispatcher(notify.DefaultRules(), a.persistence.Notifications(), a.clock, a.logger)

	executionService := services.NewExecution(a.persistence, a.source, interpreter, rnk, a.owners, a.eventBus, dispatcher, a.clock, a.logger)
	taskService := services.NewTaskManager(a.persistence, a.eventBus, dispatcher, a.crmQueue, a.clock, a.logger)
	queueService := services.NewQueue(a.persistence, a.logger)
	feedService := services.NewNotificationFeed(a.persistence)

	handlers := web.NewAPIHandlers(executionService, taskService, queueService, feedService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("RenewOS API")
	})

	app.Get("/queue/:ownerId", handlers.GetQueue)

	customers := app.Group("/customers")
	customers.Post("/:customerId/evaluate", handlers.EvaluateCustomer)
	customers.Get("/:customerId/tasks", handlers.GetOpenTasksByCustomer)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Patch("/:id/status", handlers.UpdateExecutionStatus)
	e.Post("/:id/snooze", handlers.SnoozeExecution)
	e.Post("/:id/escalate", handlers.EscalateExecution)
	e.Post("/:id/tasks", handlers.CreateTask)
	e.Get("/:id/tasks", handlers.GetExecutionTasks)

	t := app.Group("/tasks")
	t.Get("/:id", handlers.GetTask)
	t.Post("/:id/snooze", handlers.SnoozeTask)
	t.Patch("/:id/status", handlers.UpdateTaskStatus)
	t.Post("/:id/decision", handlers.ResolveTaskDecision)
	t.Post("/:id/transfer", handlers.TransferTask)

	n := app.Group("/notifications")
	n.Post("/read-all", handlers.MarkAllNotificationsRead)
	n.Get("/:recipientId", handlers.GetNotifications)
	n.Post("/:id/read", handlers.MarkNotificationRead)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
