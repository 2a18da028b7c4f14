// Package app implements the /app surface: the community-scoped API used by
// members from a community's own domain. Every route runs after tenant
// resolution, so handlers read the community from the request context and
// never from the URL.
package app

import (
	"net/http"

	"github.com/community-hub/community-hub/internal/config"
	"github.com/community-hub/community-hub/internal/middleware"
	"github.com/community-hub/community-hub/internal/services"
	"github.com/gin-gonic/gin"
)

// Handlers serves the /app routes
type Handlers struct {
	cfg *config.Config
	svc *services.Services
}

// NewHandlers creates the /app handlers
func NewHandlers(cfg *config.Config, svc *services.Services) *Handlers {
	return &Handlers{cfg: cfg, svc: svc}
}

// caller returns the resolved community ID and the authenticated user ID
func caller(c *gin.Context) (communityID, userID string) {
	if community := middleware.CurrentCommunity(c); community != nil {
		communityID = community.ID
	}
	return communityID, middleware.CurrentUserID(c)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
