package app

import (
	"net/http"

	"github.com/community-hub/community-hub/internal/api/params"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/services"
	"github.com/gin-gonic/gin"
)

type conversationRequest struct {
	ProfileID      string   `json:"profile_id" binding:"required"`
	Kind           string   `json:"kind" binding:"required,oneof=direct group"`
	Title          string   `json:"title" binding:"max=200"`
	ParticipantIDs []string `json:"participant_ids" binding:"required,min=1,max=50"`
}

// requireProfileParam reads the acting profile from ?profile_id=
func requireProfileParam(c *gin.Context) (string, bool) {
	id := c.Query("profile_id")
	if id == "" {
		apperr.Respond(c, apperr.BadRequest(apperr.CodeInvalidRequest, "profile_id is required"))
		return "", false
	}
	return id, true
}

// ListConversations lists conversations of an acting profile
// GET /app/conversations?profile_id=
func (h *Handlers) ListConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		profileID, ok := requireProfileParam(c)
		if !ok {
			return
		}
		communityID, userID := caller(c)
		convs, err := h.svc.Messages.ListConversations(c.Request.Context(), communityID, userID, profileID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": convs})
	}
}

// CreateConversation opens a direct or group conversation
// POST /app/conversations
func (h *Handlers) CreateConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req conversationRequest
		if !params.BindJSON(c, &req) {
			return
		}
		communityID, userID := caller(c)
		conv, err := h.svc.Messages.CreateConversation(c.Request.Context(), communityID, userID, services.CreateConversationInput{
			ProfileID:      req.ProfileID,
			Kind:           models.ConversationKind(req.Kind),
			Title:          req.Title,
			ParticipantIDs: req.ParticipantIDs,
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, conv)
	}
}

// ListMessages pages backwards through a conversation
// GET /app/conversations/:conversationId/messages?profile_id=&before=&limit=
func (h *Handlers) ListMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		profileID, ok := requireProfileParam(c)
		if !ok {
			return
		}
		before, ok := params.OptionalTime(c, "before")
		if !ok {
			return
		}
		limit, ok := params.Int(c, "limit", 0)
		if !ok {
			return
		}
		communityID, userID := caller(c)
		msgs, err := h.svc.Messages.ListMessages(c.Request.Context(), communityID, c.Param("conversationId"), userID, profileID, before, limit)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

type messageRequest struct {
	ProfileID string `json:"profile_id" binding:"required"`
	Body      string `json:"body" binding:"required,max=10000"`
}

// SendMessage posts a message as a participant profile
// POST /app/conversations/:conversationId/messages
func (h *Handlers) SendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req messageRequest
		if !params.BindJSON(c, &req) {
			return
		}
		communityID, userID := caller(c)
		msg, err := h.svc.Messages.SendMessage(c.Request.Context(), communityID, c.Param("conversationId"), userID, req.ProfileID, req.Body)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}
