package app

import (
	"github.com/community-hub/community-hub/internal/authz"
	"github.com/community-hub/community-hub/internal/middleware"
	"github.com/gin-gonic/gin"
)

// Register mounts the /app routes on rg, which must already resolve the
// tenant. authenticated is the chain that authenticates the caller and loads
// their membership.
func (h *Handlers) Register(rg *gin.RouterGroup, authenticated ...gin.HandlerFunc) {
	rg.POST("/auth/login", h.Login())

	authed := rg.Group("", authenticated...)
	{
		authed.GET("/community", h.GetCommunity())
		authed.GET("/me", h.GetMe())
		authed.POST("/applications", h.Apply())
		authed.GET("/applications/me", h.ListMyApplications())

		authed.GET("/notifications", h.ListNotifications())
		authed.POST("/notifications/read-all", h.MarkAllNotificationsRead())
		authed.POST("/notifications/:notificationId/read", h.MarkNotificationRead())
	}

	members := authed.Group("", middleware.RequireMember())
	{
		members.GET("/me/profiles", h.ListMyProfiles())
		members.POST("/me/profiles", h.CreateProfile())
		members.PUT("/me/profiles/:profileId", h.UpdateProfile())
		members.DELETE("/me/profiles/:profileId", h.DeleteProfile())
		members.POST("/me/profiles/:profileId/primary", h.SetPrimaryProfile())
		members.GET("/me/profiles/:profileId/shares", h.ListProfileShares())
		members.POST("/me/profiles/:profileId/shares", h.ShareProfile())
		members.DELETE("/me/profiles/:profileId/shares/:userId", h.UnshareProfile())
		members.POST("/me/leave", h.Leave())
		members.GET("/me/bookmarks", h.ListBookmarks())

		members.GET("/profiles/:profileId", h.GetProfile())

		members.GET("/posts", h.ListPosts())
		members.POST("/posts", h.CreatePost())
		members.GET("/posts/:postId", h.GetPost())
		members.DELETE("/posts/:postId", h.DeletePost())
		members.GET("/posts/:postId/replies", h.ListReplies())
		members.POST("/posts/:postId/reactions", h.AddReaction())
		members.DELETE("/posts/:postId/reactions", h.RemoveReaction())
		members.POST("/posts/:postId/bookmark", h.Bookmark())
		members.DELETE("/posts/:postId/bookmark", h.Unbookmark())

		members.GET("/boards", h.ListBoards())

		members.GET("/conversations", h.ListConversations())
		members.POST("/conversations", h.CreateConversation())
		members.GET("/conversations/:conversationId/messages", h.ListMessages())
		members.POST("/conversations/:conversationId/messages", h.SendMessage())

		members.POST("/images", h.UploadImage())
	}

	staff := members.Group("", middleware.RequireRole(authz.Staff...))
	{
		staff.POST("/posts/:postId/pin", h.Pin())
		staff.DELETE("/posts/:postId/pin", h.Unpin())
	}
}
