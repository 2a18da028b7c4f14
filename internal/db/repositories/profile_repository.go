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

// ProfileRepository handles profile database operations
type ProfileRepository struct {
	q DBTX
}

const profileColumns = `id, community_id, name, username, bio, avatar_image_id, is_primary,
	activated_at, deactivated_at, muted_at, created_at, updated_at, deleted_at`

const profileColumnsP = `p.id, p.community_id, p.name, p.username, p.bio, p.avatar_image_id, p.is_primary,
	p.activated_at, p.deactivated_at, p.muted_at, p.created_at, p.updated_at, p.deleted_at`

func (r *ProfileRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Profile, error) {
	var p models.Profile
	if err := r.q.GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// Create inserts a profile
func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
		p.UpdatedAt = p.CreatedAt
	}
	query := `
		INSERT INTO profiles (id, community_id, name, username, bio, avatar_image_id, is_primary,
			activated_at, deactivated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.q.ExecContext(ctx, query,
		p.ID, p.CommunityID, p.Name, p.Username, p.Bio, p.AvatarImageID, p.IsPrimary,
		p.ActivatedAt, p.DeactivatedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetByID returns a non-deleted profile
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1 AND deleted_at IS NULL`
	return r.getOne(ctx, query, id)
}

// GetInCommunity returns a non-deleted profile only when it belongs to communityID
func (r *ProfileRepository) GetInCommunity(ctx context.Context, communityID, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles
		WHERE id = $1 AND community_id = $2 AND deleted_at IS NULL FOR UPDATE`
	return r.getOne(ctx, query, id, communityID)
}

// GetByUsername finds the live profile holding username in a community
func (r *ProfileRepository) GetByUsername(ctx context.Context, communityID, username string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles
		WHERE community_id = $1 AND username = $2 AND deleted_at IS NULL`
	return r.getOne(ctx, query, communityID, username)
}

// Save persists all mutable profile fields
func (r *ProfileRepository) Save(ctx context.Context, p *models.Profile) error {
	query := `
		UPDATE profiles
		SET name = $2, username = $3, bio = $4, avatar_image_id = $5, is_primary = $6,
			activated_at = $7, deactivated_at = $8, muted_at = $9, deleted_at = $10, updated_at = $11
		WHERE id = $1
	`
	_, err := r.q.ExecContext(ctx, query,
		p.ID, p.Name, p.Username, p.Bio, p.AvatarImageID, p.IsPrimary,
		p.ActivatedAt, p.DeactivatedAt, p.MutedAt, p.DeletedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// ListForUser returns the user's live profiles in a community with the
// ownership role the user holds on each
func (r *ProfileRepository) ListForUser(ctx context.Context, userID, communityID string) ([]models.OwnedProfile, error) {
	query := `
		SELECT ` + profileColumnsP + `, po.role AS ownership_role
		FROM profiles p
		JOIN profile_ownerships po ON po.profile_id = p.id
		WHERE po.user_id = $1 AND p.community_id = $2 AND p.deleted_at IS NULL
		ORDER BY p.is_primary DESC, p.created_at
	`
	out := []models.OwnedProfile{}
	if err := r.q.SelectContext(ctx, &out, query, userID, communityID); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return out, nil
}

// GetPrimary returns the user's active primary owned profile in a community
func (r *ProfileRepository) GetPrimary(ctx context.Context, userID, communityID string) (*models.Profile, error) {
	query := `
		SELECT ` + profileColumnsP + `
		FROM profiles p
		JOIN profile_ownerships po ON po.profile_id = p.id AND po.role = 'owner'
		WHERE po.user_id = $1 AND p.community_id = $2 AND p.is_primary
			AND p.deleted_at IS NULL AND p.activated_at IS NOT NULL AND p.deactivated_at IS NULL
		LIMIT 1
	`
	return r.getOne(ctx, query, userID, communityID)
}

// GetAnyActiveOwned returns the oldest active profile the user owns in a community
func (r *ProfileRepository) GetAnyActiveOwned(ctx context.Context, userID, communityID string) (*models.Profile, error) {
	query := `
		SELECT ` + profileColumnsP + `
		FROM profiles p
		JOIN profile_ownerships po ON po.profile_id = p.id AND po.role = 'owner'
		WHERE po.user_id = $1 AND p.community_id = $2
			AND p.deleted_at IS NULL AND p.activated_at IS NOT NULL AND p.deactivated_at IS NULL
		ORDER BY p.created_at
		LIMIT 1
	`
	return r.getOne(ctx, query, userID, communityID)
}

// CountActiveOwned counts active profiles the user owns in a community
func (r *ProfileRepository) CountActiveOwned(ctx context.Context, userID, communityID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM profiles p
		JOIN profile_ownerships po ON po.profile_id = p.id AND po.role = 'owner'
		WHERE po.user_id = $1 AND p.community_id = $2
			AND p.deleted_at IS NULL AND p.activated_at IS NOT NULL AND p.deactivated_at IS NULL
	`
	var n int
	if err := r.q.GetContext(ctx, &n, query, userID, communityID); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}

// DeactivateOwnedByUser deactivates every active profile the user owns in a
// community and returns how many changed
func (r *ProfileRepository) DeactivateOwnedByUser(ctx context.Context, userID, communityID string, now time.Time) (int64, error) {
	query := `
		UPDATE profiles SET deactivated_at = $3, updated_at = $3
		WHERE community_id = $2 AND deleted_at IS NULL AND deactivated_at IS NULL
			AND id IN (SELECT profile_id FROM profile_ownerships WHERE user_id = $1 AND role = 'owner')
	`
	res, err := r.q.ExecContext(ctx, query, userID, communityID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate profiles: %w", err)
	}
	return res.RowsAffected()
}

// ClearPrimary unsets is_primary on the user's owned profiles in a community
// other than keepID
func (r *ProfileRepository) ClearPrimary(ctx context.Context, userID, communityID, keepID string, now time.Time) error {
	query := `
		UPDATE profiles SET is_primary = FALSE, updated_at = $4
		WHERE community_id = $2 AND id <> $3 AND is_primary
			AND id IN (SELECT profile_id FROM profile_ownerships WHERE user_id = $1 AND role = 'owner')
	`
	if _, err := r.q.ExecContext(ctx, query, userID, communityID, keepID, now); err != nil {
		return fmt.Errorf("failed to clear primary profile: %w", err)
	}
	return nil
}

// ListByCommunity returns all live profiles of a community, for exports
func (r *ProfileRepository) ListByCommunity(ctx context.Context, communityID string) ([]models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles
		WHERE community_id = $1 AND deleted_at IS NULL ORDER BY created_at`
	out := []models.Profile{}
	if err := r.q.SelectContext(ctx, &out, query, communityID); err != nil {
		return nil, fmt.Errorf("failed to list community profiles: %w", err)
	}
	return out, nil
}
