package services

import (
	"context"
	"log/slog"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/authz"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/community-hub/community-hub/internal/telemetry"
)

// ModerationService mutes and unmutes profiles and keeps the moderation log
type ModerationService struct {
	base
}

func NewModerationService(store *repositories.Store, publisher events.Publisher) *ModerationService {
	return &ModerationService{base: newBase(store, publisher)}
}

// MuteProfile silences a profile in the community
func (s *ModerationService) MuteProfile(ctx context.Context, communityID, targetProfileID, requesterID, reason string) (*models.ModerationLog, error) {
	return s.setMuted(ctx, communityID, targetProfileID, requesterID, reason, true)
}

// UnmuteProfile lifts a mute
func (s *ModerationService) UnmuteProfile(ctx context.Context, communityID, targetProfileID, requesterID, reason string) (*models.ModerationLog, error) {
	return s.setMuted(ctx, communityID, targetProfileID, requesterID, reason, false)
}

func (s *ModerationService) setMuted(ctx context.Context, communityID, targetProfileID, requesterID, reason string, mute bool) (*models.ModerationLog, error) {
	action := models.ModerationUnmute
	if mute {
		action = models.ModerationMute
	}

	var entry *models.ModerationLog
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		if _, err := requireRole(ctx, tx, requesterID, communityID, authz.Staff...); err != nil {
			return err
		}
		moderator, err := moderatorProfile(ctx, tx, requesterID, communityID)
		if err != nil {
			return err
		}
		target, err := tx.Profiles().GetInCommunity(ctx, communityID, targetProfileID)
		if err != nil {
			return err
		}
		if target == nil {
			return apperr.NotFound(codeNotFound)
		}
		if mute {
			own, err := tx.Ownerships().Get(ctx, requesterID, target.ID)
			if err != nil {
				return err
			}
			if own != nil && own.Role == models.OwnershipOwner {
				return apperr.BadRequest("cannot_mute_self")
			}
		}

		now := s.now()
		switch {
		case mute && target.IsMuted():
			return apperr.Conflict("already_muted")
		case !mute && !target.IsMuted():
			return apperr.Conflict("not_muted")
		case mute:
			target.MutedAt = &now
		default:
			target.MutedAt = nil
		}
		target.UpdatedAt = now
		if err := tx.Profiles().Save(ctx, target); err != nil {
			return err
		}

		entry = &models.ModerationLog{
			CommunityID:        communityID,
			ModeratorProfileID: moderator.ID,
			TargetProfileID:    target.ID,
			Action:             action,
			Reason:             reason,
		}
		return tx.Moderation().Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	telemetry.ModerationActionsTotal.WithLabelValues(string(action)).Inc()
	slog.InfoContext(ctx, "moderation action",
		"community_id", communityID, "action", action, "target_profile_id", targetProfileID, "moderator_id", requesterID)
	eventType := events.ProfileUnmuted
	if mute {
		eventType = events.ProfileMuted
	}
	s.publish(ctx, events.Event{
		Type: eventType, CommunityID: communityID, ActorID: requesterID, SubjectID: targetProfileID,
		Data: map[string]interface{}{"reason": reason},
	})
	return entry, nil
}

// moderatorProfile picks the profile a moderation action is attributed to
func moderatorProfile(ctx context.Context, st *repositories.Store, userID, communityID string) (*models.Profile, error) {
	p, err := st.Profiles().GetPrimary(ctx, userID, communityID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}
	p, err = st.Profiles().GetAnyActiveOwned(ctx, userID, communityID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.BadRequest("no_moderator_profile")
	}
	return p, nil
}

// ListModerationLogs returns the newest entries first
func (s *ModerationService) ListModerationLogs(ctx context.Context, communityID, requesterID string, limit, offset int) ([]models.ModerationLog, error) {
	if _, err := requireRole(ctx, s.store, requesterID, communityID, authz.Staff...); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Moderation().List(ctx, communityID, limit, offset)
}
