package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/renewos/renewos/pkg/models"
	"github.com/renewos/renewos/pkg/persistence"
)

// NotificationRepository handles notification database operations.
type NotificationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// CreateIfAbsent inserts the notification; ON CONFLICT DO NOTHING on the
// delivery key makes duplicate dispatch a no-op.
func (r *NotificationRepository) CreateIfAbsent(ctx context.Context, notification *models.Notification) (bool, error) {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(notification.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO notifications (id, recipient_id, rule_id, event_id, source_ref, type,
			priority, read, resolved_message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT ON CONSTRAINT notifications_delivery_key DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		notification.ID,
		notification.RecipientID,
		notification.RuleID,
		notification.EventID,
		notification.SourceRef,
		notification.Type,
		notification.Priority,
		notification.Read,
		notification.ResolvedMessage,
		metadataJSON,
		notification.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create notification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, opts persistence.ListNotificationsOptions) ([]*models.Notification, error) {
	query := `
		SELECT id, recipient_id, rule_id, event_id, source_ref, type,
			priority, read, resolved_message, metadata, created_at
		FROM notifications
		WHERE recipient_id = $1
	`

	if opts.UnreadOnly {
		query += ` AND NOT read`
	}

	query += ` ORDER BY read, created_at DESC`

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query += fmt.Sprintf(` LIMIT %d OFFSET %d`, limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	notifications := make([]*models.Notification, 0)

	for rows.Next() {
		var (
			notification models.Notification
			metadataJSON []byte
		)

		err := rows.Scan(
			&notification.ID,
			&notification.RecipientID,
			&notification.RuleID,
			&notification.EventID,
			&notification.SourceRef,
			&notification.Type,
			&notification.Priority,
			&notification.Read,
			&notification.ResolvedMessage,
			&metadataJSON,
			&notification.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		if metadataJSON != nil {
			err := json.Unmarshal(metadataJSON, &notification.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		notifications = append(notifications, &notification)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrNotificationNotFound
	}

	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE recipient_id = $1`, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}

	return nil
}

func (r *NotificationRepository) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE created_at >= $1`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	return count, nil
}
