package app

import (
	"net/http"
	"time"

	"github.com/community-hub/community-hub/internal/api/params"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/auth"
	"github.com/community-hub/community-hub/internal/middleware"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges credentials for an app token bound to the resolved community.
// Non-members may log in so they can apply.
// POST /app/auth/login
func (h *Handlers) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !params.BindJSON(c, &req) {
			return
		}
		community := middleware.CurrentCommunity(c)

		user, err := h.svc.Accounts.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		ttl := h.cfg.Auth.AppSessionTTL
		token, err := auth.GenerateAppToken(user.ID, user.Email, community.ID, ttl)
		if err != nil {
			apperr.Respond(c, apperr.Internal(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_at": time.Now().UTC().Add(ttl),
			"user":       user,
		})
	}
}
