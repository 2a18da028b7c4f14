package app

import (
	"net/http"

	"github.com/community-hub/community-hub/internal/api/params"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/services"
	"github.com/gin-gonic/gin"
)

type applicationRequest struct {
	ProfileName     string   `json:"profile_name" binding:"required,max=100"`
	ProfileUsername string   `json:"profile_username" binding:"required,username"`
	Message         string   `json:"message" binding:"max=5000"`
	AttachmentIDs   []string `json:"attachment_ids" binding:"max=10,dive,uuid"`
}

// Apply submits a membership application with the profile to create on approval
// POST /app/applications
func (h *Handlers) Apply() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req applicationRequest
		if !params.BindJSON(c, &req) {
			return
		}
		communityID, userID := caller(c)
		app, err := h.svc.Applications.CreateApplication(c.Request.Context(), services.CreateApplicationInput{
			UserID:          userID,
			CommunityID:     communityID,
			ProfileName:     req.ProfileName,
			ProfileUsername: req.ProfileUsername,
			Message:         req.Message,
			AttachmentIDs:   req.AttachmentIDs,
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, app)
	}
}

// ListMyApplications lists the caller's applications to this community
// GET /app/applications/me
func (h *Handlers) ListMyApplications() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		apps, err := h.svc.Applications.ListMyApplications(c.Request.Context(), userID, communityID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"applications": apps})
	}
}
