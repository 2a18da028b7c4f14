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

// MembershipRepository handles membership database operations
type MembershipRepository struct {
	q DBTX
}

const membershipColumns = `id, user_id, community_id, role, activated_at, deactivated_at, created_at, updated_at`

const activeMembership = `activated_at IS NOT NULL AND deactivated_at IS NULL`

func (r *MembershipRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Membership, error) {
	var m models.Membership
	if err := r.q.GetContext(ctx, &m, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

// Get returns the user's membership row in a community regardless of state
func (r *MembershipRepository) Get(ctx context.Context, userID, communityID string) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE user_id = $1 AND community_id = $2`
	return r.getOne(ctx, query, userID, communityID)
}

// GetActive returns the user's active membership, or nil
func (r *MembershipRepository) GetActive(ctx context.Context, userID, communityID string) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships
		WHERE user_id = $1 AND community_id = $2 AND ` + activeMembership
	return r.getOne(ctx, query, userID, communityID)
}

// GetByID returns a membership by ID scoped to its community; rows from other
// communities are reported as missing.
func (r *MembershipRepository) GetByID(ctx context.Context, communityID, id string) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE id = $1 AND community_id = $2 FOR UPDATE`
	return r.getOne(ctx, query, id, communityID)
}

// GetActiveOwner returns the community's active owner membership
func (r *MembershipRepository) GetActiveOwner(ctx context.Context, communityID string) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships
		WHERE community_id = $1 AND role = 'owner' AND ` + activeMembership + ` FOR UPDATE`
	return r.getOne(ctx, query, communityID)
}

// Create inserts a membership
func (r *MembershipRepository) Create(ctx context.Context, m *models.Membership) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
		m.UpdatedAt = m.CreatedAt
	}
	query := `
		INSERT INTO memberships (id, user_id, community_id, role, activated_at, deactivated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q.ExecContext(ctx, query,
		m.ID, m.UserID, m.CommunityID, m.Role, m.ActivatedAt, m.DeactivatedAt, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

// Save persists role and lifecycle changes
func (r *MembershipRepository) Save(ctx context.Context, m *models.Membership) error {
	query := `
		UPDATE memberships
		SET role = $2, activated_at = $3, deactivated_at = $4, updated_at = $5
		WHERE id = $1
	`
	if _, err := r.q.ExecContext(ctx, query, m.ID, m.Role, m.ActivatedAt, m.DeactivatedAt, m.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save membership: %w", err)
	}
	return nil
}

// ListMembers returns active members with account details and primary profile
func (r *MembershipRepository) ListMembers(ctx context.Context, communityID string) ([]models.MemberWithUser, error) {
	query := `
		SELECT m.id, m.user_id, m.community_id, m.role, m.activated_at, m.deactivated_at,
			m.created_at, m.updated_at,
			u.name AS user_name, u.email AS user_email,
			p.id AS primary_profile_id, p.username AS primary_username
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		LEFT JOIN profile_ownerships po ON po.user_id = m.user_id AND po.role = 'owner'
			AND po.profile_id IN (
				SELECT id FROM profiles
				WHERE community_id = m.community_id AND is_primary AND deleted_at IS NULL
			)
		LEFT JOIN profiles p ON p.id = po.profile_id
		WHERE m.community_id = $1 AND m.activated_at IS NOT NULL AND m.deactivated_at IS NULL
		ORDER BY CASE m.role WHEN 'owner' THEN 0 WHEN 'moderator' THEN 1 ELSE 2 END, m.activated_at
	`
	out := []models.MemberWithUser{}
	if err := r.q.SelectContext(ctx, &out, query, communityID); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return out, nil
}
