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
	"github.com/community-hub/community-hub/internal/validation"
	"github.com/google/uuid"
)

// ApplicationService runs the membership application lifecycle
type ApplicationService struct {
	base
	notifications *NotificationService
}

func NewApplicationService(store *repositories.Store, publisher events.Publisher, notifications *NotificationService) *ApplicationService {
	return &ApplicationService{base: newBase(store, publisher), notifications: notifications}
}

// CreateApplicationInput is a user's request to join a community
type CreateApplicationInput struct {
	UserID          string
	CommunityID     string
	ProfileName     string
	ProfileUsername string
	Message         string
	AttachmentIDs   []string
}

// CreateApplication records a pending application. It is refused while the
// user is already a member, has a pending application, or recruiting is closed.
func (s *ApplicationService) CreateApplication(ctx context.Context, in CreateApplicationInput) (*models.Application, error) {
	username := validation.NormalizeUsername(in.ProfileUsername)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, apperr.BadRequest(apperr.CodeInvalidRequest, err.Error())
	}

	community, err := s.store.Communities().GetByID(ctx, in.CommunityID)
	if err != nil {
		return nil, err
	}
	if community == nil {
		return nil, apperr.NotFound("community_not_found")
	}
	if !community.IsRecruiting(s.now()) {
		return nil, apperr.BadRequest("recruiting_closed")
	}

	attachments := uniqueStrings(in.AttachmentIDs)
	app := &models.Application{
		CommunityID:     in.CommunityID,
		UserID:          in.UserID,
		ProfileName:     in.ProfileName,
		ProfileUsername: username,
		Message:         in.Message,
		AttachmentIDs:   attachments,
	}

	err = s.store.InTx(ctx, func(tx *repositories.Store) error {
		m, err := tx.Memberships().GetActive(ctx, in.UserID, in.CommunityID)
		if err != nil {
			return err
		}
		if m != nil {
			return apperr.Conflict("already_member")
		}
		pending, err := tx.Applications().GetPending(ctx, in.UserID, in.CommunityID)
		if err != nil {
			return err
		}
		if pending != nil {
			return apperr.Conflict("application_pending")
		}
		if len(attachments) > 0 {
			n, err := tx.Images().CountOwned(ctx, in.UserID, in.CommunityID, attachments)
			if err != nil {
				return err
			}
			if n != len(attachments) {
				return apperr.BadRequest("invalid_attachment")
			}
		}
		return tx.Applications().Create(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "application submitted", "community_id", in.CommunityID, "application_id", app.ID)
	return app, nil
}

// ApproveMembershipApplication approves a pending application. In one
// transaction it activates the membership, creates or reactivates the
// applicant's profile, makes that profile the sole primary, and records the
// decision. A profile row is reused only when this same application produced
// it before; any other holder of the username is a conflict.
func (s *ApplicationService) ApproveMembershipApplication(ctx context.Context, communityID, applicationID, reviewerID string) (*models.Application, error) {
	var app *models.Application
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		if _, err := requireRole(ctx, tx, reviewerID, communityID, authz.Staff...); err != nil {
			return err
		}
		var err error
		app, err = tx.Applications().GetForUpdate(ctx, communityID, applicationID)
		if err != nil {
			return err
		}
		if app == nil {
			return apperr.NotFound(codeNotFound)
		}
		if app.Status != models.ApplicationPending {
			return apperr.Conflict("application_not_pending")
		}
		now := s.now()

		if _, err := activateMembership(ctx, tx, app.UserID, communityID, models.RoleMember, now); err != nil {
			return err
		}

		profile, err := tx.Profiles().GetByUsername(ctx, communityID, app.ProfileUsername)
		if err != nil {
			return err
		}
		switch {
		case profile == nil:
			profile = &models.Profile{
				ID:          uuid.New().String(),
				CommunityID: communityID,
				Name:        app.ProfileName,
				Username:    app.ProfileUsername,
				IsPrimary:   true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			profile.ActivatedAt = &now
			if err := tx.Profiles().Create(ctx, profile); err != nil {
				return err
			}
			if err := tx.Ownerships().Create(ctx, &models.ProfileOwnership{
				UserID: app.UserID, ProfileID: profile.ID, Role: models.OwnershipOwner, CreatedAt: now,
			}); err != nil {
				return err
			}
		case app.ProfileID != nil && *app.ProfileID == profile.ID:
			if !profile.IsActive() {
				if err := profile.Activate(now); err != nil {
					return apperr.Internal(err)
				}
			}
			profile.IsPrimary = true
			profile.UpdatedAt = now
			if err := tx.Profiles().Save(ctx, profile); err != nil {
				return err
			}
		default:
			return apperr.Conflict(apperr.CodeUsernameTaken)
		}

		if err := tx.Profiles().ClearPrimary(ctx, app.UserID, communityID, profile.ID, now); err != nil {
			return err
		}

		app.Status = models.ApplicationApproved
		app.RejectionReason = nil
		app.ReviewedBy = &reviewerID
		app.ReviewedAt = &now
		app.ProfileID = &profile.ID
		app.UpdatedAt = now
		return tx.Applications().Save(ctx, app)
	})
	if err != nil {
		return nil, err
	}

	s.decided(ctx, app, events.ApplicationApproved, reviewerID)
	return app, nil
}

// RejectMembershipApplication moves a pending application to rejected
func (s *ApplicationService) RejectMembershipApplication(ctx context.Context, communityID, applicationID, reviewerID, reason string) (*models.Application, error) {
	var app *models.Application
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		if _, err := requireRole(ctx, tx, reviewerID, communityID, authz.Staff...); err != nil {
			return err
		}
		var err error
		app, err = tx.Applications().GetForUpdate(ctx, communityID, applicationID)
		if err != nil {
			return err
		}
		if app == nil {
			return apperr.NotFound(codeNotFound)
		}
		if app.Status != models.ApplicationPending {
			return apperr.Conflict("application_not_pending")
		}
		now := s.now()
		app.Status = models.ApplicationRejected
		app.RejectionReason = nil
		if reason != "" {
			app.RejectionReason = &reason
		}
		app.ReviewedBy = &reviewerID
		app.ReviewedAt = &now
		app.UpdatedAt = now
		return tx.Applications().Save(ctx, app)
	})
	if err != nil {
		return nil, err
	}

	s.decided(ctx, app, events.ApplicationRejected, reviewerID)
	return app, nil
}

// RevokeApplicationReview returns a reviewed application to pending. Revoking
// an approval deactivates the membership and the profiles it enabled; the
// profile row is kept so a later approval reuses it.
func (s *ApplicationService) RevokeApplicationReview(ctx context.Context, communityID, applicationID, reviewerID string) (*models.Application, error) {
	var app *models.Application
	err := s.store.InTx(ctx, func(tx *repositories.Store) error {
		if _, err := requireRole(ctx, tx, reviewerID, communityID, authz.Staff...); err != nil {
			return err
		}
		var err error
		app, err = tx.Applications().GetForUpdate(ctx, communityID, applicationID)
		if err != nil {
			return err
		}
		if app == nil {
			return apperr.NotFound(codeNotFound)
		}
		if !app.IsReviewed() {
			return apperr.Conflict("application_not_reviewed")
		}
		now := s.now()

		if app.Status == models.ApplicationApproved {
			m, err := tx.Memberships().GetActive(ctx, app.UserID, communityID)
			if err != nil {
				return err
			}
			if m != nil {
				if m.Role == models.RoleOwner {
					return apperr.BadRequest("cannot_revoke_owner")
				}
				if err := deactivateMember(ctx, tx, m, now); err != nil {
					return err
				}
			}
		}

		app.Status = models.ApplicationPending
		app.RejectionReason = nil
		app.ReviewedBy = nil
		app.ReviewedAt = nil
		app.UpdatedAt = now
		return tx.Applications().Save(ctx, app)
	})
	if err != nil {
		return nil, err
	}

	telemetry.ApplicationDecisionsTotal.WithLabelValues("revoked").Inc()
	s.publish(ctx, events.Event{
		Type: events.ApplicationRevoked, CommunityID: communityID, ActorID: reviewerID, SubjectID: app.ID,
	})
	return app, nil
}

func (s *ApplicationService) decided(ctx context.Context, app *models.Application, eventType, reviewerID string) {
	telemetry.ApplicationDecisionsTotal.WithLabelValues(string(app.Status)).Inc()
	slog.InfoContext(ctx, "application reviewed",
		"community_id", app.CommunityID, "application_id", app.ID, "status", app.Status, "reviewed_by", reviewerID)
	s.publish(ctx, events.Event{
		Type: eventType, CommunityID: app.CommunityID, ActorID: reviewerID, SubjectID: app.ID,
		Data: map[string]interface{}{"user_id": app.UserID},
	})
	if s.notifications != nil {
		s.notifications.ApplicationDecided(ctx, app)
	}
}

// ListApplications returns a community's applications for staff
func (s *ApplicationService) ListApplications(ctx context.Context, communityID, requesterID string, status *models.ApplicationStatus) ([]models.ApplicationWithUser, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.BadRequest(apperr.CodeInvalidRequest, "status")
	}
	if _, err := requireRole(ctx, s.store, requesterID, communityID, authz.Staff...); err != nil {
		return nil, err
	}
	return s.store.Applications().List(ctx, communityID, status)
}

// ListMyApplications returns the caller's own applications
func (s *ApplicationService) ListMyApplications(ctx context.Context, userID, communityID string) ([]models.Application, error) {
	return s.store.Applications().ListForUser(ctx, userID, communityID)
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
