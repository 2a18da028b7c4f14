package app

import (
	"net/http"
	"time"

	"github.com/community-hub/community-hub/internal/api/params"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/services"
	"github.com/gin-gonic/gin"
)

type postRequest struct {
	ProfileID   string     `json:"profile_id" binding:"required"`
	BoardID     *string    `json:"board_id"`
	ParentID    *string    `json:"parent_id"`
	Body        string     `json:"body" binding:"required,max=10000"`
	ImageID     *string    `json:"image_id" binding:"omitempty,uuid"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// ListPosts returns the feed, optionally narrowed to one board
// GET /app/posts?board_id=&cursor=&limit=
func (h *Handlers) ListPosts() gin.HandlerFunc {
	return func(c *gin.Context) {
		var after *repositories.FeedCursor
		if raw := c.Query("cursor"); raw != "" {
			cursor, err := services.ParseFeedCursor(raw)
			if err != nil {
				apperr.Respond(c, apperr.BadRequest(apperr.CodeInvalidRequest, "cursor"))
				return
			}
			after = cursor
		}
		limit, ok := params.Int(c, "limit", 0)
		if !ok {
			return
		}
		communityID, _ := caller(c)
		feed, err := h.svc.Posts.ListFeed(c.Request.Context(), communityID, params.OptionalString(c, "board_id"), after, limit)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, feed)
	}
}

// CreatePost publishes a post or reply, or schedules a top-level post
// POST /app/posts
func (h *Handlers) CreatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req postRequest
		if !params.BindJSON(c, &req) {
			return
		}
		communityID, userID := caller(c)
		post, err := h.svc.Posts.CreatePost(c.Request.Context(), communityID, userID, services.CreatePostInput{
			ProfileID:   req.ProfileID,
			BoardID:     req.BoardID,
			ParentID:    req.ParentID,
			Body:        req.Body,
			ImageID:     req.ImageID,
			ScheduledAt: req.ScheduledAt,
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, post)
	}
}

// GetPost returns one visible post
// GET /app/posts/:postId
func (h *Handlers) GetPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		post, err := h.svc.Posts.GetPost(c.Request.Context(), communityID, c.Param("postId"), userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, post)
	}
}

// DeletePost soft-deletes a post
// DELETE /app/posts/:postId
func (h *Handlers) DeletePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		if err := h.svc.Posts.DeletePost(c.Request.Context(), communityID, c.Param("postId"), userID); err != nil {
			apperr.Respond(c, err)
			return
		}
		noContent(c)
	}
}

// ListReplies returns a post's published replies
// GET /app/posts/:postId/replies
func (h *Handlers) ListReplies() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, _ := caller(c)
		replies, err := h.svc.Posts.ListReplies(c.Request.Context(), communityID, c.Param("postId"))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"replies": replies})
	}
}

type reactionRequest struct {
	ProfileID string `json:"profile_id" form:"profile_id" binding:"required"`
	Emoji     string `json:"emoji" form:"emoji" binding:"required,emoji"`
}

// AddReaction reacts to a post as one of the caller's profiles
// POST /app/posts/:postId/reactions
func (h *Handlers) AddReaction() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reactionRequest
		if !params.BindJSON(c, &req) {
			return
		}
		communityID, userID := caller(c)
		if err := h.svc.Posts.AddReaction(c.Request.Context(), communityID, c.Param("postId"), userID, req.ProfileID, req.Emoji); err != nil {
			apperr.Respond(c, err)
			return
		}
		noContent(c)
	}
}

// RemoveReaction withdraws a reaction; parameters come from the query string
// DELETE /app/posts/:postId/reactions?profile_id=&emoji=
func (h *Handlers) RemoveReaction() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reactionRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			apperr.Respond(c, apperr.BadRequest(apperr.CodeInvalidRequest, err.Error()))
			return
		}
		communityID, userID := caller(c)
		if err := h.svc.Posts.RemoveReaction(c.Request.Context(), communityID, c.Param("postId"), userID, req.ProfileID, req.Emoji); err != nil {
			apperr.Respond(c, err)
			return
		}
		noContent(c)
	}
}

// Bookmark saves a post for the caller
// POST /app/posts/:postId/bookmark
func (h *Handlers) Bookmark() gin.HandlerFunc {
	return h.setBookmark(true)
}

// Unbookmark removes a saved post
// DELETE /app/posts/:postId/bookmark
func (h *Handlers) Unbookmark() gin.HandlerFunc {
	return h.setBookmark(false)
}

func (h *Handlers) setBookmark(saved bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		if err := h.svc.Posts.Bookmark(c.Request.Context(), communityID, c.Param("postId"), userID, saved); err != nil {
			apperr.Respond(c, err)
			return
		}
		noContent(c)
	}
}

// Pin pins a top-level post; staff only
// POST /app/posts/:postId/pin
func (h *Handlers) Pin() gin.HandlerFunc {
	return h.setPinned(true)
}

// Unpin removes a pin
// DELETE /app/posts/:postId/pin
func (h *Handlers) Unpin() gin.HandlerFunc {
	return h.setPinned(false)
}

func (h *Handlers) setPinned(pinned bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		if err := h.svc.Posts.SetPinned(c.Request.Context(), communityID, c.Param("postId"), userID, pinned); err != nil {
			apperr.Respond(c, err)
			return
		}
		noContent(c)
	}
}

// ListBoards lists the community's boards
// GET /app/boards
func (h *Handlers) ListBoards() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		boards, err := h.svc.Boards.ListBoards(c.Request.Context(), communityID, userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"boards": boards})
	}
}
