package services

import (
	"context"
	"fmt"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/persistence"
)

// NotificationFeed serves the per-recipient alert feed.
type NotificationFeed struct {
	persistence persistence.Persistence
}

func NewNotificationFeed(p persistence.Persistence) *NotificationFeed {
	return &NotificationFeed{persistence: p}
}

// ListFeedRequest describes a feed read.
type ListFeedRequest struct {
	RecipientID string `validate:"required"`
	UnreadOnly  bool
	Limit       int `validate:"min=0,max=100"`
	Offset      int `validate:"min=0"`
}

// List returns the recipient's feed, unread first, newest first within each
// group.
func (s *NotificationFeed) List(ctx context.Context, req ListFeedRequest) ([]*models.Notification, error) {
	if req.RecipientID == "" {
		return nil, &ServiceError{Op: "List", Code: "invalid_request", Message: "recipient id is required", Err: ErrInvalidRequest}
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 50
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	feed, err := s.persistence.Notifications().ListByRecipient(ctx, req.RecipientID, persistence.ListNotificationsOptions{
		UnreadOnly: req.UnreadOnly,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return feed, nil
}

func (s *NotificationFeed) MarkRead(ctx context.Context, id string) error {
	return s.persistence.Notifications().MarkRead(ctx, id)
}

func (s *NotificationFeed) MarkAllRead(ctx context.Context, recipientID string) error {
	if recipientID == "" {
		return &ServiceError{Op: "MarkAllRead", Code: "invalid_request", Message: "recipient id is required", Err: ErrInvalidRequest}
	}

	return s.persistence.Notifications().MarkAllRead(ctx, recipientID)
}
