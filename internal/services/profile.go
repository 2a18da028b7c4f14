package services

import (
	"context"
	"log/slog"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/community-hub/community-hub/internal/validation"
)

// ProfileService owns profile access control and profile management
type ProfileService struct {
	base
}

func NewProfileService(store *repositories.Store, publisher events.Publisher) *ProfileService {
	return &ProfileService{base: newBase(store, publisher)}
}

// CanManageProfile reports whether the user holds the owner role on the profile
func (s *ProfileService) CanManageProfile(ctx context.Context, userID, profileID string) (bool, error) {
	o, err := s.store.Ownerships().Get(ctx, userID, profileID)
	if err != nil {
		return false, err
	}
	return o != nil && o.Role == models.OwnershipOwner, nil
}

// CanUseProfile reports whether the user may act as the profile
func (s *ProfileService) CanUseProfile(ctx context.Context, userID, profileID string) (bool, error) {
	o, err := s.store.Ownerships().Get(ctx, userID, profileID)
	if err != nil {
		return false, err
	}
	return o != nil, nil
}

// ValidateAndGetProfile returns the profile when the user may use it inside
// communityID. Any mismatch yields nil, nil so callers answer 404 without
// revealing that the profile exists elsewhere.
func (s *ProfileService) ValidateAndGetProfile(ctx context.Context, userID, profileID, communityID string, requireActive bool) (*models.Profile, error) {
	return usableProfile(ctx, s.store, userID, profileID, communityID, requireActive)
}

func usableProfile(ctx context.Context, st *repositories.Store, userID, profileID, communityID string, requireActive bool) (*models.Profile, error) {
	p, err := st.Profiles().GetByID(ctx, profileID)
	if err != nil || p == nil {
		return nil, err
	}
	if p.CommunityID != communityID {
		return nil, nil
	}
	o, err := st.Ownerships().Get(ctx, userID, profileID)
	if err != nil || o == nil {
		return nil, err
	}
	if requireActive {
		if !p.IsActive() {
			return nil, nil
		}
		m, err := st.Memberships().GetActive(ctx, userID, communityID)
		if err != nil || m == nil {
			return nil, err
		}
	}
	return p, nil
}

// actingProfile resolves a profile the user acts as, mapping absence to 404
// and a muted profile to 403
func actingProfile(ctx context.Context, st *repositories.Store, userID, profileID, communityID string) (*models.Profile, error) {
	p, err := usableProfile(ctx, st, userID, profileID, communityID, true)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound(codeNotFound)
	}
	if p.IsMuted() {
		return nil, apperr.Forbidden("profile_muted")
	}
	return p, nil
}

// managedProfile loads a community profile for update and requires the owner
// role. A user with no relation gets 404; a shared admin gets 403.
func managedProfile(ctx context.Context, st *repositories.Store, userID, profileID, communityID string) (*models.Profile, error) {
	p, err := st.Profiles().GetInCommunity(ctx, communityID, profileID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound(codeNotFound)
	}
	o, err := st.Ownerships().Get(ctx, userID, profileID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.NotFound(codeNotFound)
	}
	if o.Role != models.OwnershipOwner {
		return nil, apperr.Forbidden(codeNotProfileOwner)
	}
	return p, nil
}

// ShareProfileWithUser grants another active member the admin role on a
// profile. Primary profiles cannot be shared, and only moderators and the
// owner may hold delegated access.
func (s *ProfileService) ShareProfileWithUser(ctx context.Context, communityID, profileID, ownerID, granteeID string) (*models.ProfileOwnership, error) {
	var grant *models.ProfileOwnership
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		if _, err := requireRole(ctx, tx, ownerID, communityID); err != nil {
			return err
		}
		p, err := managedProfile(ctx, tx, ownerID, profileID, communityID)
		if err != nil {
			return err
		}
		if p.IsPrimary {
			return apperr.BadRequest("primary_not_shareable")
		}
		m, err := tx.Memberships().GetActive(ctx, granteeID, communityID)
		if err != nil {
			return err
		}
		if m == nil {
			return apperr.BadRequest("target_not_member")
		}
		if !m.Role.In(models.RoleOwner, models.RoleModerator) {
			return apperr.BadRequest("grantee_not_staff")
		}
		existing, err := tx.Ownerships().Get(ctx, granteeID, profileID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict(apperr.CodeAlreadyShared)
		}
		grant = &models.ProfileOwnership{
			UserID: granteeID, ProfileID: profileID, Role: models.OwnershipAdmin, CreatedAt: s.now(),
		}
		return apperr.FromDB(tx.Ownerships().Create(ctx, grant))
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "profile shared", "community_id", communityID, "profile_id", profileID, "user_id", granteeID)
	return grant, nil
}

// RemoveUserFromProfileSharing removes a user's relation to a profile. Users
// may always remove themselves, except the last owner.
func (s *ProfileService) RemoveUserFromProfileSharing(ctx context.Context, communityID, profileID, requesterID, targetUserID string) error {
	return s.store.InTx(ctx, func(tx *repositories.Store) error {
		if requesterID == targetUserID {
			p, err := tx.Profiles().GetInCommunity(ctx, communityID, profileID)
			if err != nil {
				return err
			}
			if p == nil {
				return apperr.NotFound(codeNotFound)
			}
		} else if _, err := managedProfile(ctx, tx, requesterID, profileID, communityID); err != nil {
			return err
		}

		target, err := tx.Ownerships().Get(ctx, targetUserID, profileID)
		if err != nil {
			return err
		}
		if target == nil {
			return apperr.NotFound("share_not_found")
		}
		if target.Role == models.OwnershipOwner {
			n, err := tx.Ownerships().CountOwners(ctx, profileID)
			if err != nil {
				return err
			}
			if n <= 1 {
				return apperr.BadRequest("cannot_remove_last_owner")
			}
		}
		_, err = tx.Ownerships().Delete(ctx, targetUserID, profileID)
		return err
	})
}

// ListProfileShares returns the users a managed profile is shared with
func (s *ProfileService) ListProfileShares(ctx context.Context, communityID, profileID, requesterID string) ([]models.ProfileShare, error) {
	if _, err := managedProfile(ctx, s.store, requesterID, profileID, communityID); err != nil {
		return nil, err
	}
	return s.store.Ownerships().ListShares(ctx, profileID)
}

// ProfileInput carries the editable fields of a profile
type ProfileInput struct {
	Name          string
	Username      string
	Bio           string
	AvatarImageID *string
}

func (s *ProfileService) checkAvatar(ctx context.Context, st *repositories.Store, userID, communityID string, avatarID *string) error {
	if avatarID == nil || *avatarID == "" {
		return nil
	}
	n, err := st.Images().CountOwned(ctx, userID, communityID, []string{*avatarID})
	if err != nil {
		return err
	}
	if n != 1 {
		return apperr.BadRequest("invalid_attachment")
	}
	return nil
}

// CreateProfile adds a profile owned by the caller. The caller's first
// profile in the community becomes primary.
func (s *ProfileService) CreateProfile(ctx context.Context, communityID, userID string, in ProfileInput) (*models.Profile, error) {
	username := validation.NormalizeUsername(in.Username)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, apperr.BadRequest(apperr.CodeInvalidRequest, err.Error())
	}

	var p *models.Profile
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		if _, err := requireRole(ctx, tx, userID, communityID); err != nil {
			return err
		}
		if err := s.checkAvatar(ctx, tx, userID, communityID, in.AvatarImageID); err != nil {
			return err
		}
		taken, err := tx.Profiles().GetByUsername(ctx, communityID, username)
		if err != nil {
			return err
		}
		if taken != nil {
			return apperr.Conflict(apperr.CodeUsernameTaken)
		}
		n, err := tx.Profiles().CountActiveOwned(ctx, userID, communityID)
		if err != nil {
			return err
		}

		now := s.now()
		p = &models.Profile{
			CommunityID:   communityID,
			Name:          in.Name,
			Username:      username,
			Bio:           in.Bio,
			AvatarImageID: in.AvatarImageID,
			IsPrimary:     n == 0,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		p.ActivatedAt = &now
		if err := tx.Profiles().Create(ctx, p); err != nil {
			return apperr.FromDB(err)
		}
		return tx.Ownerships().Create(ctx, &models.ProfileOwnership{
			UserID: userID, ProfileID: p.ID, Role: models.OwnershipOwner, CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProfile edits a managed profile
func (s *ProfileService) UpdateProfile(ctx context.Context, communityID, profileID, userID string, in ProfileInput) (*models.Profile, error) {
	var p *models.Profile
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		var err error
		p, err = managedProfile(ctx, tx, userID, profileID, communityID)
		if err != nil {
			return err
		}
		if in.Username != "" {
			username := validation.NormalizeUsername(in.Username)
			if err := validation.ValidateUsername(username); err != nil {
				return apperr.BadRequest(apperr.CodeInvalidRequest, err.Error())
			}
			if username != p.Username {
				taken, err := tx.Profiles().GetByUsername(ctx, communityID, username)
				if err != nil {
					return err
				}
				if taken != nil {
					return apperr.Conflict(apperr.CodeUsernameTaken)
				}
				p.Username = username
			}
		}
		if err := s.checkAvatar(ctx, tx, userID, communityID, in.AvatarImageID); err != nil {
			return err
		}
		if in.Name != "" {
			p.Name = in.Name
		}
		p.Bio = in.Bio
		p.AvatarImageID = in.AvatarImageID
		p.UpdatedAt = s.now()
		return apperr.FromDB(tx.Profiles().Save(ctx, p))
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProfile soft-deletes a managed profile. The primary profile and the
// caller's last active profile cannot be deleted.
func (s *ProfileService) DeleteProfile(ctx context.Context, communityID, profileID, userID string) error {
	return s.store.InTx(ctx, func(tx *repositories.Store) error {
		p, err := managedProfile(ctx, tx, userID, profileID, communityID)
		if err != nil {
			return err
		}
		if p.IsPrimary {
			return apperr.BadRequest("primary_not_deletable")
		}
		if p.IsActive() {
			n, err := tx.Profiles().CountActiveOwned(ctx, userID, communityID)
			if err != nil {
				return err
			}
			if n <= 1 {
				return apperr.BadRequest("last_profile")
			}
		}
		if err := transition(p.Delete(s.now()), codeNotFound); err != nil {
			return err
		}
		return tx.Profiles().Save(ctx, p)
	})
}

// SetPrimaryProfile makes a managed active profile the caller's only primary
func (s *ProfileService) SetPrimaryProfile(ctx context.Context, communityID, profileID, userID string) (*models.Profile, error) {
	var p *models.Profile
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		var err error
		p, err = managedProfile(ctx, tx, userID, profileID, communityID)
		if err != nil {
			return err
		}
		if !p.IsActive() {
			return apperr.BadRequest("profile_inactive")
		}
		now := s.now()
		if err := tx.Profiles().ClearPrimary(ctx, userID, communityID, p.ID, now); err != nil {
			return err
		}
		if p.IsPrimary {
			return nil
		}
		p.IsPrimary = true
		p.UpdatedAt = now
		return tx.Profiles().Save(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListMyProfiles returns owned and shared profiles with the caller's role
func (s *ProfileService) ListMyProfiles(ctx context.Context, communityID, userID string) ([]models.OwnedProfile, error) {
	return s.store.Profiles().ListForUser(ctx, userID, communityID)
}

// GetProfile returns the public view of a profile inside the community
func (s *ProfileService) GetProfile(ctx context.Context, communityID, profileID string) (*models.Profile, error) {
	p, err := s.store.Profiles().GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.CommunityID != communityID {
		return nil, apperr.NotFound(codeNotFound)
	}
	return p, nil
}
