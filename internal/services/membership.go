package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/authz"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/google/uuid"
)

// MembershipService manages who belongs to a community and with which role
type MembershipService struct {
	base
}

func NewMembershipService(store *repositories.Store, publisher events.Publisher) *MembershipService {
	return &MembershipService{base: newBase(store, publisher)}
}

// GetUserMembership returns the user's active membership, or nil
func (s *MembershipService) GetUserMembership(ctx context.Context, userID, communityID string) (*models.Membership, error) {
	return s.store.Memberships().GetActive(ctx, userID, communityID)
}

// ValidateMembershipRole returns the user's membership when it holds one of
// allowed; with no roles given any active membership passes
func (s *MembershipService) ValidateMembershipRole(ctx context.Context, userID, communityID string, allowed ...models.Role) (*models.Membership, error) {
	return requireRole(ctx, s.store, userID, communityID, allowed...)
}

// ActivateMembership creates the membership or reactivates a previous one.
// It never creates a profile.
func (s *MembershipService) ActivateMembership(ctx context.Context, userID, communityID string, role models.Role) (*models.Membership, error) {
	var m *models.Membership
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		var err error
		m, err = activateMembership(ctx, tx, userID, communityID, role, s.now())
		return err
	})
	return m, err
}

// activateMembership inserts or reactivates a membership. An existing higher
// role is kept.
func activateMembership(ctx context.Context, st *repositories.Store, userID, communityID string, role models.Role, now time.Time) (*models.Membership, error) {
	m, err := st.Memberships().Get(ctx, userID, communityID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = models.NewMembership(uuid.New().String(), userID, communityID, role, now)
		if err := st.Memberships().Create(ctx, m); err != nil {
			return nil, err
		}
		return m, nil
	}

	// a returning member starts over at the requested role; only an active
	// membership keeps a higher role it already holds
	switch {
	case !m.IsActive():
		if err := m.Activate(now); err != nil {
			return nil, apperr.Internal(err)
		}
		m.Role = role
	case role.Rank() > m.Role.Rank():
		m.Role = role
		m.UpdatedAt = now
	default:
		return m, nil
	}
	if err := st.Memberships().Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// deactivateMember ends a membership together with everything it enabled in
// the community: the member's owned profiles and the admin grants they hold.
func deactivateMember(ctx context.Context, st *repositories.Store, m *models.Membership, now time.Time) error {
	if err := m.Deactivate(now); err != nil {
		return apperr.NotFound(codeNotFound).Wrap(err)
	}
	if err := st.Memberships().Save(ctx, m); err != nil {
		return err
	}
	if _, err := st.Profiles().DeactivateOwnedByUser(ctx, m.UserID, m.CommunityID, now); err != nil {
		return err
	}
	if _, err := st.Ownerships().DeleteAdminGrantsInCommunity(ctx, m.UserID, m.CommunityID); err != nil {
		return err
	}
	return nil
}

// RemoveMember deactivates another member. Only the owner may remove members
// and the owner cannot be removed.
func (s *MembershipService) RemoveMember(ctx context.Context, communityID, membershipID, requesterID string) error {
	var target *models.Membership
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		if _, err := requireRole(ctx, tx, requesterID, communityID, models.RoleOwner); err != nil {
			return err
		}
		var err error
		target, err = tx.Memberships().GetByID(ctx, communityID, membershipID)
		if err != nil {
			return err
		}
		if target == nil || !target.IsActive() {
			return apperr.NotFound(codeNotFound)
		}
		if target.Role == models.RoleOwner {
			return apperr.BadRequest("cannot_remove_owner")
		}
		return deactivateMember(ctx, tx, target, s.now())
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "member removed", "community_id", communityID, "membership_id", membershipID, "removed_by", requesterID)
	s.publish(ctx, events.Event{
		Type: events.MemberRemoved, CommunityID: communityID, ActorID: requesterID, SubjectID: target.UserID,
	})
	return nil
}

// UpdateMemberRole changes a member's role. Promoting someone to owner
// transfers ownership: the previous owner becomes a moderator in the same
// transaction.
func (s *MembershipService) UpdateMemberRole(ctx context.Context, communityID, membershipID string, newRole models.Role, requesterID string) (*models.Membership, error) {
	if !newRole.Valid() {
		return nil, apperr.BadRequest("invalid_role")
	}

	var target *models.Membership
	var transferred bool
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		requester, err := requireRole(ctx, tx, requesterID, communityID, models.RoleOwner)
		if err != nil {
			return err
		}
		target, err = tx.Memberships().GetByID(ctx, communityID, membershipID)
		if err != nil {
			return err
		}
		if target == nil || !target.IsActive() {
			return apperr.NotFound(codeNotFound)
		}
		if target.Role == newRole {
			return nil
		}
		now := s.now()

		switch {
		case newRole == models.RoleOwner:
			// The old owner is demoted first so the one-owner index never sees two
			requester.Role = models.RoleModerator
			requester.UpdatedAt = now
			if err := tx.Memberships().Save(ctx, requester); err != nil {
				return err
			}
			transferred = true
		case target.Role == models.RoleOwner:
			return apperr.BadRequest("owner_must_transfer")
		}

		previous := target.Role
		target.Role = newRole
		target.UpdatedAt = now
		if err := tx.Memberships().Save(ctx, target); err != nil {
			return err
		}
		if previous == models.RoleModerator && newRole == models.RoleMember {
			if _, err := tx.Ownerships().DeleteAdminGrantsInCommunity(ctx, target.UserID, communityID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := events.MemberRoleChanged
	if transferred {
		eventType = events.OwnershipTransfered
	}
	slog.InfoContext(ctx, "member role updated", "community_id", communityID, "membership_id", membershipID, "role", newRole)
	s.publish(ctx, events.Event{
		Type: eventType, CommunityID: communityID, ActorID: requesterID, SubjectID: target.UserID,
		Data: map[string]interface{}{"role": string(newRole)},
	})
	return target, nil
}

// LeaveCommunity deactivates the caller's own membership. The owner must
// transfer ownership first.
func (s *MembershipService) LeaveCommunity(ctx context.Context, userID, communityID string) error {
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		m, err := requireRole(ctx, tx, userID, communityID)
		if err != nil {
			return err
		}
		if m.Role == models.RoleOwner {
			return apperr.BadRequest("owner_cannot_leave")
		}
		return deactivateMember(ctx, tx, m, s.now())
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.Event{Type: events.MemberLeft, CommunityID: communityID, ActorID: userID, SubjectID: userID})
	return nil
}

// ListMembers returns active members for staff
func (s *MembershipService) ListMembers(ctx context.Context, communityID, requesterID string) ([]models.MemberWithUser, error) {
	if _, err := requireRole(ctx, s.store, requesterID, communityID, authz.Staff...); err != nil {
		return nil, err
	}
	return s.store.Memberships().ListMembers(ctx, communityID)
}
