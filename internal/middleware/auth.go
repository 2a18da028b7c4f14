package middleware

import (
	"strings"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/auth"
	"github.com/community-hub/community-hub/internal/authz"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/gin-gonic/gin"
)

// Context keys set by the authentication and tenant middleware
const (
	ContextUser       = "user"
	ContextUserID     = "user_id"
	ContextClaims     = "session_claims"
	ContextAuthMethod = "auth_method"
	ContextCommunity  = "community"
	ContextAuth       = "auth"
)

// bearerToken returns the token of an "Authorization: Bearer" header, or ""
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// authenticate validates token for scope and loads its user
func authenticate(c *gin.Context, users *repositories.UserRepository, token string, scope auth.Scope) (*auth.Claims, bool) {
	if token == "" {
		apperr.Respond(c, apperr.Unauthorized(apperr.CodeUnauthenticated))
		return nil, false
	}
	claims, err := auth.ValidateJWT(token)
	if err != nil || claims.Scope != scope {
		apperr.Respond(c, apperr.Unauthorized(apperr.CodeUnauthenticated))
		return nil, false
	}

	user, err := users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		apperr.Respond(c, err)
		return nil, false
	}
	if user == nil {
		apperr.Respond(c, apperr.Unauthorized(apperr.CodeUnauthenticated))
		return nil, false
	}

	c.Set(ContextUser, user)
	c.Set(ContextUserID, user.ID)
	c.Set(ContextClaims, claims)
	return claims, true
}

// AppAuthMiddleware authenticates /app requests with an app-scoped bearer
// token. It runs after TenantMiddleware: a token issued for another community
// is rejected with 403 community_mismatch.
func AppAuthMiddleware(users *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, users, bearerToken(c), auth.ScopeApp)
		if !ok {
			return
		}
		if community := CurrentCommunity(c); community == nil || community.ID != claims.CommunityID {
			apperr.Respond(c, apperr.Forbidden("community_mismatch"))
			return
		}
		c.Set(ContextAuthMethod, "app_token")
		c.Next()
	}
}

// ConsoleAuthMiddleware authenticates /console requests from the session
// cookie, falling back to a console-scoped bearer token
func ConsoleAuthMiddleware(cookieName string, users *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := "cookie"
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			token = bearerToken(c)
			method = "console_token"
		}
		if _, ok := authenticate(c, users, token, auth.ScopeConsole); !ok {
			return
		}
		c.Set(ContextAuthMethod, method)
		c.Next()
	}
}

// MembershipMiddleware builds the request's authz.AuthContext from the
// resolved community and the caller's active membership, which may be absent
func MembershipMiddleware(memberships *repositories.MembershipRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		community := CurrentCommunity(c)
		if user == nil || community == nil {
			apperr.Respond(c, apperr.Unauthorized(apperr.CodeUnauthenticated))
			return
		}
		m, err := memberships.GetActive(c.Request.Context(), user.ID, community.ID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.Set(ContextAuth, &authz.AuthContext{
			UserID:      user.ID,
			Email:       user.Email,
			CommunityID: community.ID,
			Membership:  m,
		})
		c.Next()
	}
}

// RequireRole aborts unless the caller is an active member holding one of
// allowed. With no roles any active member passes.
func RequireRole(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m *models.Membership
		if ac := CurrentAuth(c); ac != nil {
			m = ac.Membership
		}
		if err := authz.RequireRole(m, allowed...); err != nil {
			apperr.Respond(c, err)
			return
		}
		c.Next()
	}
}

// RequireMember is RequireRole with any role
func RequireMember() gin.HandlerFunc {
	return RequireRole()
}

// CurrentUser returns the authenticated user, or nil
func CurrentUser(c *gin.Context) *models.User {
	u, _ := c.Get(ContextUser)
	user, _ := u.(*models.User)
	return user
}

// CurrentUserID returns the authenticated user's ID, or ""
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// CurrentCommunity returns the community the request resolved to, or nil
func CurrentCommunity(c *gin.Context) *models.Community {
	v, _ := c.Get(ContextCommunity)
	community, _ := v.(*models.Community)
	return community
}

// CurrentAuth returns the request's AuthContext, or nil before MembershipMiddleware
func CurrentAuth(c *gin.Context) *authz.AuthContext {
	v, _ := c.Get(ContextAuth)
	ac, _ := v.(*authz.AuthContext)
	return ac
}
