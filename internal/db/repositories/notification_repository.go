package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/google/uuid"
)

// NotificationRepository handles in-app notifications
type NotificationRepository struct {
	q DBTX
}

// Create inserts a notification
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	if len(n.Payload) == 0 {
		n.Payload = []byte("{}")
	}
	query := `
		INSERT INTO notifications (id, community_id, user_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.q.ExecContext(ctx, query, n.ID, n.CommunityID, n.UserID, n.Kind, []byte(n.Payload), n.CreatedAt); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// List returns the user's notifications in a community, newest first
func (r *NotificationRepository) List(ctx context.Context, userID, communityID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `SELECT id, community_id, user_id, kind, payload, read_at, created_at FROM notifications
		WHERE user_id = $1 AND community_id = $2`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT $3`

	out := []models.Notification{}
	if err := r.q.SelectContext(ctx, &out, query, userID, communityID, limit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// MarkRead marks one notification read; it reports false when no row of the
// user in that community matched
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, communityID, id string, now time.Time) (bool, error) {
	query := `UPDATE notifications SET read_at = COALESCE(read_at, $4)
		WHERE id = $1 AND user_id = $2 AND community_id = $3`
	res, err := r.q.ExecContext(ctx, query, id, userID, communityID, now)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkAllRead marks every unread notification of the user in a community read
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID, communityID string, now time.Time) (int64, error) {
	query := `UPDATE notifications SET read_at = $3 WHERE user_id = $1 AND community_id = $2 AND read_at IS NULL`
	res, err := r.q.ExecContext(ctx, query, userID, communityID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return res.RowsAffected()
}
