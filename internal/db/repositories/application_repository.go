package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/google/uuid"
)

// ApplicationRepository handles membership application database operations
type ApplicationRepository struct {
	q DBTX
}

const applicationColumns = `id, community_id, user_id, profile_name, profile_username, message, status,
	rejection_reason, reviewed_by, reviewed_at, profile_id, created_at, updated_at`

func (r *ApplicationRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Application, error) {
	var a models.Application
	if err := r.q.GetContext(ctx, &a, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return &a, nil
}

// Create inserts a pending application together with its attachments
func (r *ApplicationRepository) Create(ctx context.Context, a *models.Application) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.Status = models.ApplicationPending
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO community_applications (id, community_id, user_id, profile_name, profile_username,
			message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q.ExecContext(ctx, query,
		a.ID, a.CommunityID, a.UserID, a.ProfileName, a.ProfileUsername, a.Message, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	for _, imageID := range a.AttachmentIDs {
		if _, err := r.q.ExecContext(ctx,
			`INSERT INTO application_attachments (application_id, image_id) VALUES ($1, $2)`,
			a.ID, imageID); err != nil {
			return fmt.Errorf("failed to attach image to application: %w", err)
		}
	}
	return nil
}

// GetByID returns an application scoped to its community
func (r *ApplicationRepository) GetByID(ctx context.Context, communityID, id string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM community_applications WHERE id = $1 AND community_id = $2`
	return r.getOne(ctx, query, id, communityID)
}

// GetForUpdate is GetByID with a row lock, used by review transactions
func (r *ApplicationRepository) GetForUpdate(ctx context.Context, communityID, id string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM community_applications
		WHERE id = $1 AND community_id = $2 FOR UPDATE`
	return r.getOne(ctx, query, id, communityID)
}

// GetPending returns the user's pending application for a community, or nil
func (r *ApplicationRepository) GetPending(ctx context.Context, userID, communityID string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM community_applications
		WHERE user_id = $1 AND community_id = $2 AND status = 'pending'`
	return r.getOne(ctx, query, userID, communityID)
}

// Save persists review fields
func (r *ApplicationRepository) Save(ctx context.Context, a *models.Application) error {
	query := `
		UPDATE community_applications
		SET status = $2, rejection_reason = $3, reviewed_by = $4, reviewed_at = $5, profile_id = $6, updated_at = $7
		WHERE id = $1
	`
	_, err := r.q.ExecContext(ctx, query,
		a.ID, a.Status, a.RejectionReason, a.ReviewedBy, a.ReviewedAt, a.ProfileID, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save application: %w", err)
	}
	return nil
}

// List returns a community's applications, optionally filtered by status, newest first
func (r *ApplicationRepository) List(ctx context.Context, communityID string, status *models.ApplicationStatus) ([]models.ApplicationWithUser, error) {
	query := `
		SELECT a.id, a.community_id, a.user_id, a.profile_name, a.profile_username, a.message, a.status,
			a.rejection_reason, a.reviewed_by, a.reviewed_at, a.profile_id, a.created_at, a.updated_at,
			u.name AS user_name, u.email AS user_email
		FROM community_applications a
		JOIN users u ON u.id = a.user_id
		WHERE a.community_id = $1
	`
	args := []interface{}{communityID}
	if status != nil {
		query += ` AND a.status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY a.created_at DESC`

	out := []models.ApplicationWithUser{}
	if err := r.q.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return out, nil
}

// ListForUser returns the user's own applications to a community
func (r *ApplicationRepository) ListForUser(ctx context.Context, userID, communityID string) ([]models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM community_applications
		WHERE user_id = $1 AND community_id = $2 ORDER BY created_at DESC`
	out := []models.Application{}
	if err := r.q.SelectContext(ctx, &out, query, userID, communityID); err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return out, nil
}
