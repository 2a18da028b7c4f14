package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/google/uuid"
)

// ModerationRepository appends and reads moderation log entries. Entries are
// never updated or deleted.
type ModerationRepository struct {
	q DBTX
}

// Append inserts a moderation log entry
func (r *ModerationRepository) Append(ctx context.Context, l *models.ModerationLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO moderation_logs (id, community_id, moderator_profile_id, target_profile_id, action, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query,
		l.ID, l.CommunityID, l.ModeratorProfileID, l.TargetProfileID, l.Action, l.Reason, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append moderation log: %w", err)
	}
	return nil
}

// List returns a community's moderation log, newest first
func (r *ModerationRepository) List(ctx context.Context, communityID string, limit, offset int) ([]models.ModerationLog, error) {
	query := `
		SELECT id, community_id, moderator_profile_id, target_profile_id, action, reason, created_at
		FROM moderation_logs
		WHERE community_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	out := []models.ModerationLog{}
	if err := r.q.SelectContext(ctx, &out, query, communityID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list moderation logs: %w", err)
	}
	return out, nil
}
