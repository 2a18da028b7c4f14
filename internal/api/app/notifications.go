package app

import (
	"net/http"

	"github.com/community-hub/community-hub/internal/api/params"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/gin-gonic/gin"
)

// ListNotifications lists the caller's notifications in this community
// GET /app/notifications?unread=true&limit=
func (h *Handlers) ListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := params.Int(c, "limit", 0)
		if !ok {
			return
		}
		communityID, userID := caller(c)
		items, err := h.svc.Notifications.List(c.Request.Context(), userID, communityID, params.Bool(c, "unread"), limit)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": items})
	}
}

// MarkNotificationRead marks one notification read
// POST /app/notifications/:notificationId/read
func (h *Handlers) MarkNotificationRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		if err := h.svc.Notifications.MarkRead(c.Request.Context(), userID, communityID, c.Param("notificationId")); err != nil {
			apperr.Respond(c, err)
			return
		}
		noContent(c)
	}
}

// MarkAllNotificationsRead marks every unread notification read
// POST /app/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		n, err := h.svc.Notifications.MarkAllRead(c.Request.Context(), userID, communityID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}
