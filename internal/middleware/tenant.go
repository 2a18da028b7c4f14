package middleware

import (
	"context"
	"net"
	"net/url"
	"strings"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/gin-gonic/gin"
)

// CommunityResolver finds the community a request addresses
type CommunityResolver interface {
	ResolveHost(ctx context.Context, host string) (*models.Community, error)
	GetCommunity(ctx context.Context, communityID string) (*models.Community, error)
}

// requestHost returns the hostname the browser addressed: the Origin header
// when present, else Host, without port
func requestHost(c *gin.Context) (string, bool) {
	host := c.Request.Host
	if origin := c.GetHeader("Origin"); origin != "" && origin != "null" {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return "", false
		}
		host = u.Host
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	return host, host != ""
}

// TenantMiddleware resolves the community of an /app request from its host
func TenantMiddleware(resolver CommunityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		host, ok := requestHost(c)
		if !ok {
			apperr.Respond(c, apperr.BadRequest("missing_host"))
			return
		}
		community, err := resolver.ResolveHost(c.Request.Context(), host)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.Set(ContextCommunity, community)
		c.Next()
	}
}

// ConsoleCommunityMiddleware resolves the :communityId path parameter
func ConsoleCommunityMiddleware(resolver CommunityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		community, err := resolver.GetCommunity(c.Request.Context(), c.Param("communityId"))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.Set(ContextCommunity, community)
		c.Next()
	}
}
