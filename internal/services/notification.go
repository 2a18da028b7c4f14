package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/community-hub/community-hub/internal/mail"
	"github.com/community-hub/community-hub/internal/safego"
	"github.com/community-hub/community-hub/internal/telemetry"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationService records in-app notifications and sends decision mail
type NotificationService struct {
	base
	mailer mail.Mailer
	spawn  func(task string, fn func())
}

func NewNotificationService(store *repositories.Store, publisher events.Publisher, mailer mail.Mailer) *NotificationService {
	if mailer == nil {
		mailer = mail.NopMailer{}
	}
	return &NotificationService{base: newBase(store, publisher), mailer: mailer, spawn: safego.Go}
}

// Notify creates one notification per recipient. Failures are logged; a
// missed notification never fails the action that caused it.
func (s *NotificationService) Notify(ctx context.Context, communityID string, userIDs []string, kind string, payload map[string]interface{}) {
	if len(userIDs) == 0 {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode notification payload", "kind", kind, "error", err)
		return
	}
	seen := make(map[string]bool, len(userIDs))
	for _, userID := range userIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		n := &models.Notification{CommunityID: communityID, UserID: userID, Kind: kind, Payload: raw}
		if err := s.store.Notifications().Create(ctx, n); err != nil {
			slog.ErrorContext(ctx, "failed to create notification", "kind", kind, "user_id", userID, "error", err)
		}
	}
}

// ApplicationDecided notifies the applicant in-app and by mail
func (s *NotificationService) ApplicationDecided(ctx context.Context, app *models.Application) {
	kind := models.NotificationApplicationRejected
	if app.Status == models.ApplicationApproved {
		kind = models.NotificationApplicationApproved
	}
	payload := map[string]interface{}{"application_id": app.ID}
	if app.RejectionReason != nil {
		payload["reason"] = *app.RejectionReason
	}
	s.Notify(ctx, app.CommunityID, []string{app.UserID}, kind, payload)

	user, err := s.store.Users().GetByID(ctx, app.UserID)
	if err != nil || user == nil {
		slog.WarnContext(ctx, "skipping decision email, applicant not found", "user_id", app.UserID, "error", err)
		return
	}
	community, err := s.store.Communities().GetByID(ctx, app.CommunityID)
	if err != nil || community == nil {
		slog.WarnContext(ctx, "skipping decision email, community not found", "community_id", app.CommunityID, "error", err)
		return
	}

	decision := mail.Decision{
		To:            user.Email,
		UserName:      user.Name,
		CommunityName: community.Name,
		Approved:      app.Status == models.ApplicationApproved,
	}
	if app.RejectionReason != nil {
		decision.Reason = *app.RejectionReason
	}
	// The request context is cancelled once the response is written
	mailCtx := context.WithoutCancel(ctx)
	s.spawn("application-decision-mail", func() {
		if err := s.mailer.SendApplicationDecision(mailCtx, decision); err != nil {
			slog.ErrorContext(mailCtx, "failed to send decision email", "application_id", app.ID, "error", err)
			return
		}
		telemetry.NotificationEmailsSentTotal.Inc()
	})
}

// List returns the caller's notifications in one community
func (s *NotificationService) List(ctx context.Context, userID, communityID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	return s.store.Notifications().List(ctx, userID, communityID, unreadOnly, limit)
}

// MarkRead marks one of the caller's notifications read
func (s *NotificationService) MarkRead(ctx context.Context, userID, communityID, notificationID string) error {
	ok, err := s.store.Notifications().MarkRead(ctx, userID, communityID, notificationID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound(codeNotFound)
	}
	return nil
}

// MarkAllRead marks every unread notification read and returns how many changed
func (s *NotificationService) MarkAllRead(ctx context.Context, userID, communityID string) (int64, error) {
	return s.store.Notifications().MarkAllRead(ctx, userID, communityID, s.now())
}
