// Package authz carries the authenticated caller from the HTTP layer into the
// services and holds the role checks they share.
package authz

import (
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/models"
)

// AuthContext describes the caller of a community-scoped request
type AuthContext struct {
	UserID string
	Email  string
	// CommunityID is the community the request was resolved to
	CommunityID string
	// Membership is the caller's active membership in CommunityID, or nil
	Membership *models.Membership
}

// Role returns the caller's role, or "" without an active membership
func (a *AuthContext) Role() models.Role {
	if a == nil || a.Membership == nil {
		return ""
	}
	return a.Membership.Role
}

// RequireRole checks that m is an active membership holding one of allowed.
// A missing membership and a wrong role are reported with different codes.
func RequireRole(m *models.Membership, allowed ...models.Role) error {
	if m == nil || !m.IsActive() {
		return apperr.Forbidden(apperr.CodeNotAMember)
	}
	if len(allowed) > 0 && !m.Role.In(allowed...) {
		return apperr.Forbidden(apperr.CodeInsufficientRole)
	}
	return nil
}

// Staff are the roles allowed to moderate
var Staff = []models.Role{models.RoleOwner, models.RoleModerator}
