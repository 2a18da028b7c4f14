package console

import (
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Chains are the middleware the /console routes are mounted behind
type Chains struct {
	// AuthRateLimit guards signup and login
	AuthRateLimit gin.HandlerFunc
	// Authenticated resolves the session user
	Authenticated gin.HandlerFunc
	// Community resolves :communityId and loads the caller's membership
	Community []gin.HandlerFunc
	// Audit records successful mutations
	Audit gin.HandlerFunc
}

// Register mounts the /console routes on rg
func (h *Handlers) Register(rg *gin.RouterGroup, chains Chains) {
	public := rg.Group("/auth")
	{
		public.POST("/signup", chains.AuthRateLimit, h.Signup())
		public.POST("/login", chains.AuthRateLimit, h.Login())
		public.POST("/logout", h.Logout())
		public.GET("/oidc/login", h.OIDCLogin())
		public.GET("/oidc/callback", h.OIDCCallback())
	}

	authed := rg.Group("", chains.Authenticated, chains.Audit)
	{
		authed.GET("/me", h.GetMe())
		authed.GET("/communities", h.ListCommunities())
		authed.POST("/communities", h.CreateCommunity())
	}

	community := authed.Group("/communities/:communityId", chains.Community...)
	community.Use(middleware.RequireMember())
	{
		community.GET("", h.GetCommunity())
		community.PUT("", h.UpdateCommunity())
		community.DELETE("", h.DeleteCommunity())
		community.PUT("/domain", h.SetDomain())
		community.POST("/domain/verify", h.VerifyDomain())

		community.GET("/members", h.ListMembers())
		community.PUT("/members/:membershipId/role", h.UpdateMemberRole())
		community.DELETE("/members/:membershipId", h.RemoveMember())

		community.GET("/applications", h.ListApplications())
		community.POST("/applications/:applicationId/approve", h.ApproveApplication())
		community.POST("/applications/:applicationId/reject", h.RejectApplication())
		community.POST("/applications/:applicationId/revoke", h.RevokeApplication())

		community.POST("/profiles/:profileId/mute", h.MuteProfile())
		community.POST("/profiles/:profileId/unmute", h.UnmuteProfile())
		community.GET("/moderation-logs", h.ListModerationLogs())

		community.GET("/boards", h.ListBoards())
		community.POST("/boards", h.CreateBoard())
		community.PUT("/boards/:boardId", h.UpdateBoard())
		community.DELETE("/boards/:boardId", h.DeleteBoard())

		community.GET("/analytics/timeseries", h.TimeSeries())
		community.GET("/analytics/heatmap", h.Heatmap())

		community.POST("/exports", h.RequestExport())
		community.GET("/exports/:exportId", h.GetExport())

		community.POST("/images", h.UploadImage())

		community.GET("/audit-logs", middleware.RequireRole(models.RoleOwner), h.ListAuditLogs())
	}
}
