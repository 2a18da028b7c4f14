// Package services implements the platform's business rules on top of the
// repositories: who may join, act as a profile, moderate, and publish. Every
// multi-step mutation runs inside one transaction opened with Store.InTx.
// Events and notifications are sent only after the transaction commits, and
// their failures are logged rather than returned.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/authz"
	"github.com/community-hub/community-hub/internal/config"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/community-hub/community-hub/internal/mail"
	"github.com/community-hub/community-hub/internal/storage"
)

// Codes used only by services
const (
	codeNotProfileOwner = "not_profile_owner"
	codeNotFound        = apperr.CodeNotFound
)

// base carries what every service needs
type base struct {
	store  *repositories.Store
	events events.Publisher
	now    func() time.Time
}

func newBase(store *repositories.Store, publisher events.Publisher) base {
	if publisher == nil {
		publisher = events.NewLogPublisher(nil)
	}
	return base{
		store:  store,
		events: publisher,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// publish sends a domain event; delivery failures never fail the request
func (b *base) publish(ctx context.Context, e events.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = b.now()
	}
	if err := b.events.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "type", e.Type, "community_id", e.CommunityID, "error", err)
	}
}

// requireRole loads the user's active membership and checks its role
func requireRole(ctx context.Context, st *repositories.Store, userID, communityID string, allowed ...models.Role) (*models.Membership, error) {
	m, err := st.Memberships().GetActive(ctx, userID, communityID)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireRole(m, allowed...); err != nil {
		return nil, err
	}
	return m, nil
}

// transition maps a rejected lifecycle move to a conflict
func transition(err error, code string) error {
	if err == nil {
		return nil
	}
	return apperr.Conflict(code).Wrap(err)
}

// Services groups the service layer for the HTTP handlers and jobs
type Services struct {
	Memberships   *MembershipService
	Applications  *ApplicationService
	Profiles      *ProfileService
	Communities   *CommunityService
	Moderation    *ModerationService
	Posts         *PostService
	Messages      *MessageService
	Notifications *NotificationService
	Boards        *BoardService
	Images        *ImageService
	Analytics     *AnalyticsService
	Exports       *ExportService
	Accounts      *AccountService
}

// New wires every service over one store, publisher, mailer and storage backend
func New(cfg *config.Config, store *repositories.Store, publisher events.Publisher, mailer mail.Mailer, backend storage.Storage) *Services {
	notifications := NewNotificationService(store, publisher, mailer)
	return &Services{
		Memberships:   NewMembershipService(store, publisher),
		Applications:  NewApplicationService(store, publisher, notifications),
		Profiles:      NewProfileService(store, publisher),
		Communities:   NewCommunityService(store, publisher, cfg.Tenancy),
		Moderation:    NewModerationService(store, publisher),
		Posts:         NewPostService(store, publisher, notifications),
		Messages:      NewMessageService(store, publisher, notifications),
		Notifications: notifications,
		Boards:        NewBoardService(store, publisher),
		Images:        NewImageService(store, backend, cfg.Storage),
		Analytics:     NewAnalyticsService(store),
		Exports:       NewExportService(store, publisher, backend, cfg.Storage.SignedURLTTL),
		Accounts:      NewAccountService(store),
	}
}
