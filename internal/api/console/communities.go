package console

import (
	"net/http"
	"time"

	"github.com/community-hub/community-hub/internal/api/params"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/middleware"
	"github.com/community-hub/community-hub/internal/services"
	"github.com/gin-gonic/gin"
)

type communityRequest struct {
	Name               string     `json:"name" binding:"required,max=100"`
	Description        string     `json:"description" binding:"max=2000"`
	RecruitingStartsAt *time.Time `json:"recruiting_starts_at"`
	RecruitingEndsAt   *time.Time `json:"recruiting_ends_at"`
	StartsAt           *time.Time `json:"starts_at"`
	EndsAt             *time.Time `json:"ends_at"`
}

func (r communityRequest) input(slug string) services.CommunityInput {
	return services.CommunityInput{
		Slug:               slug,
		Name:               r.Name,
		Description:        r.Description,
		RecruitingStartsAt: r.RecruitingStartsAt,
		RecruitingEndsAt:   r.RecruitingEndsAt,
		StartsAt:           r.StartsAt,
		EndsAt:             r.EndsAt,
	}
}

type createCommunityRequest struct {
	communityRequest
	Slug                 string `json:"slug" binding:"required,slug"`
	OwnerProfileName     string `json:"owner_profile_name" binding:"required,max=100"`
	OwnerProfileUsername string `json:"owner_profile_username" binding:"required,username"`
}

type domainRequest struct {
	Domain string `json:"domain" binding:"max=253"`
}

// ListCommunities lists the caller's communities with their role in each
// GET /console/communities
func (h *Handlers) ListCommunities() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, userID := caller(c)
		communities, err := h.svc.Communities.ListMyCommunities(c.Request.Context(), userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"communities": communities})
	}
}

// CreateCommunity founds a community owned by the caller
// POST /console/communities
func (h *Handlers) CreateCommunity() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createCommunityRequest
		if !params.BindJSON(c, &req) {
			return
		}
		_, userID := caller(c)
		community, err := h.svc.Communities.CreateCommunity(c.Request.Context(), userID, services.CreateCommunityInput{
			CommunityInput:       req.input(req.Slug),
			OwnerProfileName:     req.OwnerProfileName,
			OwnerProfileUsername: req.OwnerProfileUsername,
		})
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, community)
	}
}

// GetCommunity returns one community
// GET /console/communities/:communityId
func (h *Handlers) GetCommunity() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, middleware.CurrentCommunity(c))
	}
}

// UpdateCommunity edits the community settings
// PUT /console/communities/:communityId
func (h *Handlers) UpdateCommunity() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req communityRequest
		if !params.BindJSON(c, &req) {
			return
		}
		communityID, userID := caller(c)
		community, err := h.svc.Communities.UpdateCommunity(c.Request.Context(), communityID, userID, req.input(""))
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, community)
	}
}

// DeleteCommunity soft-deletes the community
// DELETE /console/communities/:communityId
func (h *Handlers) DeleteCommunity() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		if err := h.svc.Communities.DeleteCommunity(c.Request.Context(), communityID, userID); err != nil {
			apperr.Respond(c, err)
			return
		}
		noContent(c)
	}
}

// SetDomain sets or clears the custom domain and returns the TXT record that
// proves control of it
// PUT /console/communities/:communityId/domain
func (h *Handlers) SetDomain() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req domainRequest
		if !params.BindJSON(c, &req) {
			return
		}
		communityID, userID := caller(c)
		challenge, err := h.svc.Communities.SetCustomDomain(c.Request.Context(), communityID, userID, req.Domain)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		if challenge == nil {
			noContent(c)
			return
		}
		c.JSON(http.StatusOK, challenge)
	}
}

// VerifyDomain checks the TXT record and activates the custom domain
// POST /console/communities/:communityId/domain/verify
func (h *Handlers) VerifyDomain() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID, userID := caller(c)
		community, err := h.svc.Communities.VerifyCustomDomain(c.Request.Context(), communityID, userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, community)
	}
}
