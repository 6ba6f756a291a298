// Package web provides the REST API over the orchestration services.
package web

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/services"
)

// ActorHeader carries the acting user's id, supplied by the authentication
// layer in front of this API.
const ActorHeader = "X-Actor-ID"

type APIHandlers struct {
	executionService *services.Execution
	taskService      *services.TaskManager
	queueService     *services.Queue
	feedService      *services.NotificationFeed
	validator        *validator.Validate
}

func NewAPIHandlers(
	executionService *services.Execution,
	taskService *services.TaskManager,
	queueService *services.Queue,
	feedService *services.NotificationFeed,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		executionService: executionService,
		taskService:      taskService,
		queueService:     queueService,
		feedService:      feedService,
		validator:        validator,
	}
}

func (h *APIHandlers) GetQueue(c fiber.Ctx) error {
	ownerID := c.Params("ownerId")
	if ownerID == "" {
		return badRequest(c, "Owner ID is required")
	}

	req := services.GetQueueRequest{OwnerID: ownerID}

	var err error

	req.Limit, err = queryInt(c, "limit")
	if err != nil {
		return badRequest(c, "Invalid limit: "+err.Error())
	}

	req.Offset, err = queryInt(c, "offset")
	if err != nil {
		return badRequest(c, "Invalid offset: "+err.Error())
	}

	if demoStr := c.Query("demo"); demoStr != "" {
		req.DemoMode, err = strconv.ParseBool(demoStr)
		if err != nil {
			return badRequest(c, "Invalid demo flag: "+err.Error())
		}
	}

	result, err := h.queueService.GetQueue(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"entries":       result.Entries,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

func (h *APIHandlers) EvaluateCustomer(c fiber.Ctx) error {
	customerID := c.Params("customerId")
	if customerID == "" {
		return badRequest(c, "Customer ID is required")
	}

	created, err := h.executionService.EvaluateCustomer(c.Context(), customerID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"created": created,
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.executionService.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) UpdateExecutionStatus(c fiber.Ctx) error {
	var req UpdateExecutionStatusRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(req)
	if err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	execution, err := h.executionService.UpdateStatus(c.Context(), c.Params("id"), models.ExecutionStatus(req.Status))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) SnoozeExecution(c fiber.Ctx) error {
	var req SnoozeRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(req)
	if err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	execution, err := h.executionService.Snooze(c.Context(), c.Params("id"), req.Until)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) EscalateExecution(c fiber.Ctx) error {
	var req EscalateRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(req)
	if err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	execution, err := h.executionService.Escalate(c.Context(), c.Params("id"), req.EscalationOwnerID, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) CreateTask(c fiber.Ctx) error {
	var req CreateTaskRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(req)
	if err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	task, err := h.taskService.Create(c.Context(), &models.Task{
		WorkflowExecutionID: c.Params("id"),
		Title:               req.Title,
		Type:                models.TaskType(req.Type),
		Owner:               models.TaskOwner(req.Owner),
		OwnerID:             req.OwnerID,
		CRMPayload:          req.CRMPayload,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(task)
}

func (h *APIHandlers) GetExecutionTasks(c fiber.Ctx) error {
	tasks, err := h.taskService.ListByExecution(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(tasks)
}

func (h *APIHandlers) GetOpenTasksByCustomer(c fiber.Ctx) error {
	customerID := c.Params("customerId")
	if customerID == "" {
		return badRequest(c, "Customer ID is required")
	}

	tasks, err := h.taskService.ListOpenByCustomer(c.Context(), customerID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(tasks)
}

func (h *APIHandlers) GetTask(c fiber.Ctx) error {
	task, err := h.taskService.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) SnoozeTask(c fiber.Ctx) error {
	var req SnoozeRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(req)
	if err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	task, err := h.taskService.Snooze(c.Context(), c.Params("id"), req.Until)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) UpdateTaskStatus(c fiber.Ctx) error {
	var req UpdateTaskStatusRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(req)
	if err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	task, err := h.taskService.UpdateStatus(c.Context(), c.Params("id"), models.TaskStatus(req.Status))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) ResolveTaskDecision(c fiber.Ctx) error {
	var req DecisionRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(req)
	if err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	task, err := h.taskService.ResolveDecision(c.Context(), c.Params("id"), models.DecisionChoice(req.Choice))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) TransferTask(c fiber.Ctx) error {
	var req TransferRequest

	err := c.Bind().Body(&req)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	err = h.validator.Struct(req)
	if err != nil {
		return badRequest(c, "Validation failed: "+err.Error())
	}

	task, err := h.taskService.Transfer(c.Context(), c.Params("id"), req.TargetExecutionID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(task)
}

func (h *APIHandlers) GetNotifications(c fiber.Ctx) error {
	recipientID := c.Params("recipientId")
	if recipientID == "" {
		return badRequest(c, "Recipient ID is required")
	}

	req := services.ListFeedRequest{RecipientID: recipientID}

	var err error

	req.Limit, err = queryInt(c, "limit")
	if err != nil {
		return badRequest(c, "Invalid limit: "+err.Error())
	}

	req.Offset, err = queryInt(c, "offset")
	if err != nil {
		return badRequest(c, "Invalid offset: "+err.Error())
	}

	if unreadStr := c.Query("unread"); unreadStr != "" {
		req.UnreadOnly, err = strconv.ParseBool(unreadStr)
		if err != nil {
			return badRequest(c, "Invalid unread flag: "+err.Error())
		}
	}

	feed, err := h.feedService.List(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(feed)
}

func (h *APIHandlers) MarkNotificationRead(c fiber.Ctx) error {
	err := h.feedService.MarkRead(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) MarkAllNotificationsRead(c fiber.Ctx) error {
	actorID := c.Get(ActorHeader)
	if actorID == "" {
		return badRequest(c, "X-Actor-ID header is required")
	}

	err := h.feedService.MarkAllRead(c.Context(), actorID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.executionService.HealthCheck(c.Context())
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unhealthy",
			"message": message,
		})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}

func queryInt(c fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}

	return strconv.Atoi(raw)
}
