package console

import (
	"net/http"

	"github.com/community-hub/community-hub/internal/api/params"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/gin-gonic/gin"
)

const maxAuditPage = 200

// TimeSeries returns activity counts per interval
// GET /console/communities/:communityId/analytics/timeseries?metric=&from=&to=&interval=
func (h *Handlers) TimeSeries() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, ok := params.RequiredTime(c, "from")
		if !ok {
			return
		}
		to, ok := params.RequiredTime(c, "to")
		if !ok {
			return
		}
		interval := c.DefaultQuery("interval", "day")
		communityID, userID := caller(c)
		points, err := h.svc.Analytics.TimeSeries(c.Request.Context(), communityID, userID, c.Query("metric"), from, to, interval)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"metric": c.Query("metric"), "interval": interval, "points": points})
	}
}

// Heatmap returns post counts by weekday and hour
// GET /console/communities/:communityId/analytics/heatmap?from=&to=
func (h *Handlers) Heatmap() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, ok := params.RequiredTime(c, "from")
		if !ok {
			return
		}
		to, ok := params.RequiredTime(c, "to")
		if !ok {
			return
		}
		communityID, userID := caller(c)
		cells, err := h.svc.Analytics.Heatmap(c.Request.Context(), communityID, userID, from, to)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cells": cells})
	}
}

// RequestExport queues a data export
// POST /console/communities/:communityId/exports
func (h *Handlers) RequestExport() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		job, err := h.svc.Exports.RequestExport(c.Request.Context(), communityID, userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusAccepted, job)
	}
}

// GetExport reports an export's status with a download URL once complete
// GET /console/communities/:communityId/exports/:exportId
func (h *Handlers) GetExport() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		status, err := h.svc.Exports.GetExport(c.Request.Context(), communityID, c.Param("exportId"), userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// UploadImage stores an image, such as a community banner
// POST /console/communities/:communityId/images
func (h *Handlers) UploadImage() gin.HandlerFunc {
	return func(c *gin.Context) {
		file, ok := params.File(c, h.cfg.Storage.MaxUploadBytes)
		if !ok {
			return
		}
		defer file.Close()

		communityID, userID := caller(c)
		img, err := h.svc.Images.Upload(c.Request.Context(), communityID, userID, file)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, img)
	}
}

// ListAuditLogs pages through the community's console audit trail
// GET /console/communities/:communityId/audit-logs?action=&user_id=&from=&to=&limit=&offset=
func (h *Handlers) ListAuditLogs() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := params.Int(c, "limit", 50)
		if !ok {
			return
		}
		if limit == 0 || limit > maxAuditPage {
			limit = maxAuditPage
		}
		offset, ok := params.Int(c, "offset", 0)
		if !ok {
			return
		}
		from, ok := params.OptionalTime(c, "from")
		if !ok {
			return
		}
		to, ok := params.OptionalTime(c, "to")
		if !ok {
			return
		}

		communityID, _ := caller(c)
		logs, total, err := h.audit.ListAuditLogs(c.Request.Context(), repositories.AuditFilters{
			CommunityID: &communityID,
			UserID:      params.OptionalString(c, "user_id"),
			Action:      params.OptionalString(c, "action"),
			StartDate:   from,
			EndDate:     to,
		}, limit, offset)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs, "total": total, "limit": limit, "offset": offset})
	}
}
