package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"campusevents/internal/model"
)

// NotificationRepository owns the notifications table.
type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// Insert creates a notification and returns its id.
func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO notifications (user_id, title, message, type, related_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, n.UserID, n.Title, n.Message, n.Type, n.RelatedID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert notification: %w", err)
	}
	return id, nil
}

// ListLatest returns the user's newest notifications, read or not.
func (r *NotificationRepository) ListLatest(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, title, message, type, related_id, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Title,
			&n.Message,
			&n.Type,
			&n.RelatedID,
			&n.Read,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadCount returns the number of unread notifications for the user.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM notifications WHERE user_id = $1 AND read = false
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flags one notification read; the user_id guard keeps users from
// touching rows they do not own.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead flags every unread notification of the user read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE notifications SET read = true WHERE user_id = $1 AND read = false
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}
