package console

import (
	"net/http"

	"github.com/community-hub/community-hub/internal/api/params"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/gin-gonic/gin"
)

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// bindReason reads an optional {"reason": ...} body
func bindReason(c *gin.Context) (string, bool) {
	var req reasonRequest
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if !params.BindJSON(c, &req) {
		return "", false
	}
	return req.Reason, true
}

// ListMembers lists active members with their primary profile; staff only
// GET /console/communities/:communityId/members
func (h *Handlers) ListMembers() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		members, err := h.svc.Memberships.ListMembers(c.Request.Context(), communityID, userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"members": members})
	}
}

// UpdateMemberRole changes a member's role. Granting owner transfers ownership.
// PUT /console/communities/:communityId/members/:membershipId/role
func (h *Handlers) UpdateMemberRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req roleRequest
		if !params.BindJSON(c, &req) {
			return
		}
		role, err := models.ParseRole(req.Role)
		if err != nil {
			apperr.Respond(c, apperr.BadRequest("invalid_role"))
			return
		}
		communityID, userID := caller(c)
		m, err := h.svc.Memberships.UpdateMemberRole(c.Request.Context(), communityID, c.Param("membershipId"), role, userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// RemoveMember deactivates a member
// DELETE /console/communities/:communityId/members/:membershipId
func (h *Handlers) RemoveMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		if err := h.svc.Memberships.RemoveMember(c.Request.Context(), communityID, c.Param("membershipId"), userID); err != nil {
			apperr.Respond(c, err)
			return
		}
		noContent(c)
	}
}

// ListApplications lists membership applications, optionally by status
// GET /console/communities/:communityId/applications?status=
func (h *Handlers) ListApplications() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.ApplicationStatus
		if raw := c.Query("status"); raw != "" {
			s := models.ApplicationStatus(raw)
			if !s.Valid() {
				apperr.Respond(c, apperr.BadRequest(apperr.CodeInvalidRequest, "status must be pending, approved or rejected"))
				return
			}
			status = &s
		}
		communityID, userID := caller(c)
		apps, err := h.svc.Applications.ListApplications(c.Request.Context(), communityID, userID, status)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"applications": apps})
	}
}

// ApproveApplication approves a pending application and activates the applicant
// POST /console/communities/:communityId/applications/:applicationId/approve
func (h *Handlers) ApproveApplication() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		app, err := h.svc.Applications.ApproveMembershipApplication(c.Request.Context(), communityID, c.Param("applicationId"), userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

// RejectApplication rejects a pending application
// POST /console/communities/:communityId/applications/:applicationId/reject
func (h *Handlers) RejectApplication() gin.HandlerFunc {
	return func(c *gin.Context) {
		reason, ok := bindReason(c)
		if !ok {
			return
		}
		communityID, userID := caller(c)
		app, err := h.svc.Applications.RejectMembershipApplication(c.Request.Context(), communityID, c.Param("applicationId"), userID, reason)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

// RevokeApplication returns a reviewed application to pending
// POST /console/communities/:communityId/applications/:applicationId/revoke
func (h *Handlers) RevokeApplication() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		app, err := h.svc.Applications.RevokeApplicationReview(c.Request.Context(), communityID, c.Param("applicationId"), userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, app)
	}
}

// MuteProfile mutes a profile and logs the action
// POST /console/communities/:communityId/profiles/:profileId/mute
func (h *Handlers) MuteProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		reason, ok := bindReason(c)
		if !ok {
			return
		}
		communityID, userID := caller(c)
		entry, err := h.svc.Moderation.MuteProfile(c.Request.Context(), communityID, c.Param("profileId"), userID, reason)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

// UnmuteProfile lifts a mute
// POST /console/communities/:communityId/profiles/:profileId/unmute
func (h *Handlers) UnmuteProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		reason, ok := bindReason(c)
		if !ok {
			return
		}
		communityID, userID := caller(c)
		entry, err := h.svc.Moderation.UnmuteProfile(c.Request.Context(), communityID, c.Param("profileId"), userID, reason)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

// ListModerationLogs pages through moderation actions, newest first
// GET /console/communities/:communityId/moderation-logs?limit=&offset=
func (h *Handlers) ListModerationLogs() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := params.Int(c, "limit", 50)
		if !ok {
			return
		}
		offset, ok := params.Int(c, "offset", 0)
		if !ok {
			return
		}
		communityID, userID := caller(c)
		logs, err := h.svc.Moderation.ListModerationLogs(c.Request.Context(), communityID, userID, limit, offset)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs})
	}
}
