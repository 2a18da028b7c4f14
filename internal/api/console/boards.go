package console

import (
	"net/http"

	"github.com/community-hub/community-hub/internal/api/params"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/services"
	"github.com/gin-gonic/gin"
)

type boardRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=1000"`
	Position    int    `json:"position" binding:"min=0"`
}

func (r boardRequest) input() services.BoardInput {
	return services.BoardInput{Name: r.Name, Description: r.Description, Position: r.Position}
}

// ListBoards lists the community's boards
// GET /console/communities/:communityId/boards
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

// CreateBoard adds a board
// POST /console/communities/:communityId/boards
func (h *Handlers) CreateBoard() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req boardRequest
		if !params.BindJSON(c, &req) {
			return
		}
		communityID, userID := caller(c)
		board, err := h.svc.Boards.CreateBoard(c.Request.Context(), communityID, userID, req.input())
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, board)
	}
}

// UpdateBoard renames or reorders a board
// PUT /console/communities/:communityId/boards/:boardId
func (h *Handlers) UpdateBoard() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req boardRequest
		if !params.BindJSON(c, &req) {
			return
		}
		communityID, userID := caller(c)
		board, err := h.svc.Boards.UpdateBoard(c.Request.Context(), communityID, c.Param("boardId"), userID, req.input())
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, board)
	}
}

// DeleteBoard removes a board; its posts stay in the main feed
// DELETE /console/communities/:communityId/boards/:boardId
func (h *Handlers) DeleteBoard() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		if err := h.svc.Boards.DeleteBoard(c.Request.Context(), communityID, c.Param("boardId"), userID); err != nil {
			apperr.Respond(c, err)
			return
		}
		noContent(c)
	}
}
