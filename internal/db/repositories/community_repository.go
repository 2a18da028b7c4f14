package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/google/uuid"
)

// CommunityRepository handles community database operations
type CommunityRepository struct {
	q DBTX
}

const communityColumns = `id, slug, name, description, custom_domain, domain_verification_token,
	domain_verified_at, recruiting_starts_at, recruiting_ends_at, starts_at, ends_at,
	created_at, updated_at, deleted_at`

// Create inserts a community
func (r *CommunityRepository) Create(ctx context.Context, c *models.Community) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.Slug = strings.ToLower(c.Slug)
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO communities (id, slug, name, description, recruiting_starts_at, recruiting_ends_at,
			starts_at, ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		c.ID, c.Slug, c.Name, c.Description, c.RecruitingStartsAt, c.RecruitingEndsAt,
		c.StartsAt, c.EndsAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create community: %w", err)
	}
	return nil
}

func (r *CommunityRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.Community, error) {
	query := `SELECT ` + communityColumns + ` FROM communities WHERE ` + where + ` AND deleted_at IS NULL`

	var c models.Community
	if err := r.q.GetContext(ctx, &c, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get community: %w", err)
	}
	return &c, nil
}

// GetByID retrieves a live community by ID
func (r *CommunityRepository) GetByID(ctx context.Context, id string) (*models.Community, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetBySlug retrieves a live community by slug
func (r *CommunityRepository) GetBySlug(ctx context.Context, slug string) (*models.Community, error) {
	return r.getOne(ctx, "slug = $1", strings.ToLower(slug))
}

// GetByVerifiedDomain retrieves the community whose verified custom domain matches host
func (r *CommunityRepository) GetByVerifiedDomain(ctx context.Context, host string) (*models.Community, error) {
	return r.getOne(ctx, "custom_domain = $1 AND domain_verified_at IS NOT NULL", strings.ToLower(host))
}

// Update saves editable community fields
func (r *CommunityRepository) Update(ctx context.Context, c *models.Community) error {
	c.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE communities
		SET name = $2, description = $3, recruiting_starts_at = $4, recruiting_ends_at = $5,
			starts_at = $6, ends_at = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := r.q.ExecContext(ctx, query,
		c.ID, c.Name, c.Description, c.RecruitingStartsAt, c.RecruitingEndsAt, c.StartsAt, c.EndsAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update community: %w", err)
	}
	return nil
}

// SoftDelete marks a community deleted
func (r *CommunityRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE communities SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.q.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("failed to delete community: %w", err)
	}
	return nil
}

// SetCustomDomain stores an unverified custom domain with a fresh verification token
func (r *CommunityRepository) SetCustomDomain(ctx context.Context, id string, domain *string, token *string, now time.Time) error {
	query := `
		UPDATE communities
		SET custom_domain = $2, domain_verification_token = $3, domain_verified_at = NULL, updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL
	`
	if _, err := r.q.ExecContext(ctx, query, id, domain, token, now); err != nil {
		return fmt.Errorf("failed to set custom domain: %w", err)
	}
	return nil
}

// MarkDomainVerified records a successful DNS verification
func (r *CommunityRepository) MarkDomainVerified(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE communities SET domain_verified_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.q.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("failed to verify custom domain: %w", err)
	}
	return nil
}

// ListForUser returns live communities where the user holds an active membership
func (r *CommunityRepository) ListForUser(ctx context.Context, userID string) ([]models.CommunityMembership, error) {
	query := `
		SELECT c.id, c.slug, c.name, c.description, c.custom_domain, c.domain_verification_token,
			c.domain_verified_at, c.recruiting_starts_at, c.recruiting_ends_at, c.starts_at, c.ends_at,
			c.created_at, c.updated_at, c.deleted_at,
			m.role AS membership_role, m.id AS membership_id, m.activated_at AS membership_activated_at
		FROM communities c
		JOIN memberships m ON m.community_id = c.id
		WHERE m.user_id = $1 AND m.activated_at IS NOT NULL AND m.deactivated_at IS NULL
			AND c.deleted_at IS NULL
		ORDER BY c.name
	`
	out := []models.CommunityMembership{}
	if err := r.q.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}
	return out, nil
}
