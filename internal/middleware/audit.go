package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/safego"
	"github.com/gin-gonic/gin"
)

// auditResources maps a route segment to the resource type it addresses
var auditResources = map[string]string{
	"communities":  "community",
	"domain":       "community",
	"members":      "membership",
	"applications": "application",
	"profiles":     "profile",
	"boards":       "board",
	"exports":      "export",
	"images":       "image",
}

// auditSpawn launches the write; tests replace it to run inline
var auditSpawn = safego.Go

// auditTarget derives the resource type and ID from a route template such as
// /console/communities/:communityId/members/:membershipId/role
func auditTarget(c *gin.Context) (resourceType, resourceID string) {
	segments := strings.Split(strings.Trim(c.FullPath(), "/"), "/")
	for i, seg := range segments {
		rt, ok := auditResources[seg]
		if !ok {
			continue
		}
		resourceType, resourceID = rt, ""
		if i+1 < len(segments) && strings.HasPrefix(segments[i+1], ":") {
			resourceID = c.Param(segments[i+1][1:])
		}
	}
	if resourceType == "community" && resourceID == "" {
		resourceID = c.Param("communityId")
	}
	return resourceType, resourceID
}

// ConsoleAuditMiddleware records successful console mutations. The row is
// written after the response in a separate goroutine.
func ConsoleAuditMiddleware(repo *repositories.AuditRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			return
		}

		entry := &models.AuditLog{
			Action:   c.Request.Method + " " + c.FullPath(),
			Metadata: map[string]interface{}{"status_code": status},
		}
		if id := CurrentUserID(c); id != "" {
			entry.UserID = &id
		}
		if community := CurrentCommunity(c); community != nil {
			entry.CommunityID = &community.ID
		}
		if rt, rid := auditTarget(c); rt != "" {
			entry.ResourceType = &rt
			if rid != "" {
				entry.ResourceID = &rid
			}
		}
		if method := c.GetString(ContextAuthMethod); method != "" {
			entry.Metadata["auth_method"] = method
		}
		ip := c.ClientIP()
		entry.IPAddress = &ip

		auditSpawn("console-audit", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := repo.CreateAuditLog(ctx, entry); err != nil {
				slog.Error("failed to write audit log", "action", entry.Action, "error", err)
			}
		})
	}
}
