package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/renewos/renewos/pkg/persistence"
	"github.com/renewos/renewos/pkg/ranker"
)

// Queue assembles per-owner ordered work queues from cached priority
// scores. Reads never block on the daily sweep; whatever score was cached
// last is what orders the queue.
type Queue struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewQueue(p persistence.Persistence, logger *slog.Logger) *Queue {
	return &Queue{
		persistence: p,
		logger:      logger.With("module", "services"),
	}
}

// GetQueueRequest describes a queue read.
type GetQueueRequest struct {
	OwnerID  string `validate:"required"`
	Limit    int    `validate:"min=0,max=100"`
	Offset   int    `validate:"min=0"`
	DemoMode bool
}

// GetQueueResponse is one page of an owner's queue.
type GetQueueResponse struct {
	Entries     []ranker.QueueEntry `json:"entries"`
	TotalCount  int                 `json:"total_count"`
	HasNextPage bool                `json:"has_next_page"`
}

// GetQueue returns the owner's active executions in priority order, or in
// fixed sequence order when demo mode is on.
func (s *Queue) GetQueue(ctx context.Context, req GetQueueRequest) (*GetQueueResponse, error) {
	if req.OwnerID == "" {
		return nil, &ServiceError{Op: "GetQueue", Code: "empty_owner", Message: "owner id is required", Err: ErrEmptyOwnerID}
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	executions, err := s.persistence.Executions().ListByOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	entries := make([]ranker.QueueEntry, 0, len(executions))

	for _, execution := range executions {
		definition, err := s.persistence.Definitions().GetByID(ctx, execution.DefinitionID)
		if err != nil {
			// A dangling definition reference should not hide the rest of
			// the queue.
			s.logger.WarnContext(ctx, "skipping execution with missing definition",
				"execution_id", execution.ID,
				"definition_id", execution.DefinitionID,
				"error", err)

			continue
		}

		entries = append(entries, ranker.QueueEntry{
			Execution:  execution,
			Definition: definition,
			Score:      execution.PriorityScore,
			Urgency:    ranker.UrgencyFor(execution.PriorityScore),
		})
	}

	ranker.Order(entries, req.DemoMode)

	total := len(entries)

	start := req.Offset
	if start > total {
		start = total
	}

	end := start + req.Limit
	if end > total {
		end = total
	}

	return &GetQueueResponse{
		Entries:     entries[start:end],
		TotalCount:  total,
		HasNextPage: end < total,
	}, nil
}
