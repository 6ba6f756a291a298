package memory

import (
	"context"
	"sort"
	"time"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/persistence"
)

type notificationRepository struct {
	p *Persistence
}

func notificationKey(n *models.Notification) string {
	return n.RuleID + "|" + n.EventID + "|" + n.RecipientID
}

func (r *notificationRepository) CreateIfAbsent(_ context.Context, notification *models.Notification) (bool, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	key := notificationKey(notification)
	if _, exists := r.p.notificationKeys[key]; exists {
		return false, nil
	}

	clone := *notification
	r.p.notifications[notification.ID] = &clone
	r.p.notificationKeys[key] = notification.ID

	return true, nil
}

func (r *notificationRepository) ListByRecipient(_ context.Context, recipientID string, opts persistence.ListNotificationsOptions) ([]*models.Notification, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	notifications := make([]*models.Notification, 0)

	for _, n := range r.p.notifications {
		if n.RecipientID != recipientID {
			continue
		}

		if opts.UnreadOnly && n.Read {
			continue
		}

		clone := *n
		notifications = append(notifications, &clone)
	}

	// Unread first, newest first within each group.
	sort.Slice(notifications, func(i, j int) bool {
		if notifications[i].Read != notifications[j].Read {
			return !notifications[i].Read
		}

		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(notifications) {
			return []*models.Notification{}, nil
		}

		notifications = notifications[opts.Offset:]
	}

	if opts.Limit > 0 && len(notifications) > opts.Limit {
		notifications = notifications[:opts.Limit]
	}

	return notifications, nil
}

func (r *notificationRepository) MarkRead(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	notification, ok := r.p.notifications[id]
	if !ok {
		return persistence.ErrNotificationNotFound
	}

	notification.Read = true

	return nil
}

func (r *notificationRepository) MarkAllRead(_ context.Context, recipientID string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	for _, notification := range r.p.notifications {
		if notification.RecipientID == recipientID {
			notification.Read = true
		}
	}

	return nil
}

func (r *notificationRepository) CountSince(_ context.Context, cutoff time.Time) (int, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	count := 0

	for _, notification := range r.p.notifications {
		if !notification.CreatedAt.Before(cutoff) {
			count++
		}
	}

	return count, nil
}
