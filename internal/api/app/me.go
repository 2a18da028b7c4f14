package app

import (
	"net/http"

	"github.com/community-hub/community-hub/internal/api/params"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/middleware"
	"github.com/community-hub/community-hub/internal/services"
	"github.com/gin-gonic/gin"
)

// GetCommunity returns the resolved community
// GET /app/community
func (h *Handlers) GetCommunity() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, middleware.CurrentCommunity(c))
	}
}

// GetMe returns the caller, their membership in this community and the
// profiles they can act as
// GET /app/me
func (h *Handlers) GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		resp := gin.H{"user": middleware.CurrentUser(c), "membership": nil, "profiles": []interface{}{}}
		if ac := middleware.CurrentAuth(c); ac != nil && ac.Membership != nil {
			profiles, err := h.svc.Profiles.ListMyProfiles(c.Request.Context(), communityID, userID)
			if err != nil {
				apperr.Respond(c, err)
				return
			}
			resp["membership"] = ac.Membership
			resp["profiles"] = profiles
		}
		c.JSON(http.StatusOK, resp)
	}
}

type profileRequest struct {
	Name          string  `json:"name" binding:"required,max=100"`
	Username      string  `json:"username" binding:"required,username"`
	Bio           string  `json:"bio" binding:"max=1000"`
	AvatarImageID *string `json:"avatar_image_id" binding:"omitempty,uuid"`
}

func (r profileRequest) input() services.ProfileInput {
	return services.ProfileInput{Name: r.Name, Username: r.Username, Bio: r.Bio, AvatarImageID: r.AvatarImageID}
}

// ListMyProfiles lists the profiles the caller owns or shares
// GET /app/me/profiles
func (h *Handlers) ListMyProfiles() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		profiles, err := h.svc.Profiles.ListMyProfiles(c.Request.Context(), communityID, userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"profiles": profiles})
	}
}

// CreateProfile creates an additional profile owned by the caller
// POST /app/me/profiles
func (h *Handlers) CreateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req profileRequest
		if !params.BindJSON(c, &req) {
			return
		}
		communityID, userID := caller(c)
		p, err := h.svc.Profiles.CreateProfile(c.Request.Context(), communityID, userID, req.input())
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

// UpdateProfile edits a profile the caller can manage
// PUT /app/me/profiles/:profileId
func (h *Handlers) UpdateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req profileRequest
		if !params.BindJSON(c, &req) {
			return
		}
		communityID, userID := caller(c)
		p, err := h.svc.Profiles.UpdateProfile(c.Request.Context(), communityID, c.Param("profileId"), userID, req.input())
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// DeleteProfile deactivates a non-primary profile
// DELETE /app/me/profiles/:profileId
func (h *Handlers) DeleteProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		if err := h.svc.Profiles.DeleteProfile(c.Request.Context(), communityID, c.Param("profileId"), userID); err != nil {
			apperr.Respond(c, err)
			return
		}
		noContent(c)
	}
}

// SetPrimaryProfile makes one of the caller's owned profiles primary
// POST /app/me/profiles/:profileId/primary
func (h *Handlers) SetPrimaryProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		p, err := h.svc.Profiles.SetPrimaryProfile(c.Request.Context(), communityID, c.Param("profileId"), userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// ListProfileShares lists who else may act as a profile
// GET /app/me/profiles/:profileId/shares
func (h *Handlers) ListProfileShares() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		shares, err := h.svc.Profiles.ListProfileShares(c.Request.Context(), communityID, c.Param("profileId"), userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"shares": shares})
	}
}

type shareRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// ShareProfile grants another member admin access to a profile
// POST /app/me/profiles/:profileId/shares
func (h *Handlers) ShareProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req shareRequest
		if !params.BindJSON(c, &req) {
			return
		}
		communityID, userID := caller(c)
		grant, err := h.svc.Profiles.ShareProfileWithUser(c.Request.Context(), communityID, c.Param("profileId"), userID, req.UserID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, grant)
	}
}

// UnshareProfile removes a user's access to a profile
// DELETE /app/me/profiles/:profileId/shares/:userId
func (h *Handlers) UnshareProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		err := h.svc.Profiles.RemoveUserFromProfileSharing(c.Request.Context(), communityID, c.Param("profileId"), userID, c.Param("userId"))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		noContent(c)
	}
}

// Leave ends the caller's membership
// POST /app/me/leave
func (h *Handlers) Leave() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		if err := h.svc.Memberships.LeaveCommunity(c.Request.Context(), userID, communityID); err != nil {
			apperr.Respond(c, err)
			return
		}
		noContent(c)
	}
}

// ListBookmarks lists the caller's saved posts
// GET /app/me/bookmarks
func (h *Handlers) ListBookmarks() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		posts, err := h.svc.Posts.ListBookmarks(c.Request.Context(), communityID, userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"posts": posts})
	}
}

// GetProfile returns a profile of the community
// GET /app/profiles/:profileId
func (h *Handlers) GetProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, _ := caller(c)
		p, err := h.svc.Profiles.GetProfile(c.Request.Context(), communityID, c.Param("profileId"))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
