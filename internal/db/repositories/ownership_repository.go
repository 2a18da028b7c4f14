package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/community-hub/community-hub/internal/db/models"
)

// OwnershipRepository handles profile_ownerships rows, which decide who may
// manage or act as a profile
type OwnershipRepository struct {
	q DBTX
}

// Get returns the user's ownership row on a profile, or nil
func (r *OwnershipRepository) Get(ctx context.Context, userID, profileID string) (*models.ProfileOwnership, error) {
	query := `SELECT user_id, profile_id, role, created_at FROM profile_ownerships WHERE user_id = $1 AND profile_id = $2`
	var o models.ProfileOwnership
	if err := r.q.GetContext(ctx, &o, query, userID, profileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile ownership: %w", err)
	}
	return &o, nil
}

// Create inserts an ownership row
func (r *OwnershipRepository) Create(ctx context.Context, o *models.ProfileOwnership) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO profile_ownerships (user_id, profile_id, role, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.q.ExecContext(ctx, query, o.UserID, o.ProfileID, o.Role, o.CreatedAt); err != nil {
		return fmt.Errorf("failed to create profile ownership: %w", err)
	}
	return nil
}

// Delete removes a user's ownership row and reports whether one existed
func (r *OwnershipRepository) Delete(ctx context.Context, userID, profileID string) (bool, error) {
	query := `DELETE FROM profile_ownerships WHERE user_id = $1 AND profile_id = $2`
	res, err := r.q.ExecContext(ctx, query, userID, profileID)
	if err != nil {
		return false, fmt.Errorf("failed to delete profile ownership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountOwners counts owner-role rows on a profile
func (r *OwnershipRepository) CountOwners(ctx context.Context, profileID string) (int, error) {
	query := `SELECT COUNT(*) FROM profile_ownerships WHERE profile_id = $1 AND role = 'owner'`
	var n int
	if err := r.q.GetContext(ctx, &n, query, profileID); err != nil {
		return 0, fmt.Errorf("failed to count profile owners: %w", err)
	}
	return n, nil
}

// ListShares returns every user with access to a profile
func (r *OwnershipRepository) ListShares(ctx context.Context, profileID string) ([]models.ProfileShare, error) {
	query := `
		SELECT po.user_id, u.name AS user_name, u.email AS user_email, po.role, po.created_at
		FROM profile_ownerships po
		JOIN users u ON u.id = po.user_id
		WHERE po.profile_id = $1
		ORDER BY po.role DESC, po.created_at
	`
	out := []models.ProfileShare{}
	if err := r.q.SelectContext(ctx, &out, query, profileID); err != nil {
		return nil, fmt.Errorf("failed to list profile shares: %w", err)
	}
	return out, nil
}

// DeleteAdminGrantsInCommunity drops every admin grant the user holds on
// profiles of a community
func (r *OwnershipRepository) DeleteAdminGrantsInCommunity(ctx context.Context, userID, communityID string) (int64, error) {
	query := `
		DELETE FROM profile_ownerships
		WHERE user_id = $1 AND role = 'admin'
			AND profile_id IN (SELECT id FROM profiles WHERE community_id = $2)
	`
	res, err := r.q.ExecContext(ctx, query, userID, communityID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete admin grants: %w", err)
	}
	return res.RowsAffected()
}
