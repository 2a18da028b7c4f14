// Package console implements the /console surface: the cross-community API
// behind the operator dashboard. Callers authenticate with a session cookie
// and address communities by ID in the path.
package console

import (
	"context"
	"net/http"

	"github.com/community-hub/community-hub/internal/auth/oidc"
	"github.com/community-hub/community-hub/internal/config"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/middleware"
	"github.com/community-hub/community-hub/internal/services"
	"github.com/gin-gonic/gin"
)

// SSOProvider is the single sign-on flow used by the console login
type SSOProvider interface {
	AuthURL(state string) string
	Authenticate(ctx context.Context, code string) (*oidc.Identity, error)
}

// Handlers serves the /console routes
type Handlers struct {
	cfg   *config.Config
	svc   *services.Services
	audit *repositories.AuditRepository
	sso   SSOProvider
}

// NewHandlers creates the /console handlers. sso may be nil when single
// sign-on is disabled.
func NewHandlers(cfg *config.Config, svc *services.Services, audit *repositories.AuditRepository, sso SSOProvider) *Handlers {
	return &Handlers{cfg: cfg, svc: svc, audit: audit, sso: sso}
}

// caller returns the :communityId community and the authenticated user ID
func caller(c *gin.Context) (communityID, userID string) {
	if community := middleware.CurrentCommunity(c); community != nil {
		communityID = community.ID
	}
	return communityID, middleware.CurrentUserID(c)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
