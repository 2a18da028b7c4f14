package console

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/community-hub/community-hub/internal/api/params"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/auth"
	"github.com/community-hub/community-hub/internal/auth/oidc"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/middleware"
	"github.com/gin-gonic/gin"
)

const (
	ssoStateCookie = "cmh_sso_state"
	ssoStatePath   = "/console/auth/oidc"
	ssoStateTTL    = 10 * time.Minute
)

type signupRequest struct {
	Email    string `json:"email" binding:"required,email,max=320"`
	Name     string `json:"name" binding:"required,max=100"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// issueSession signs a console token and stores it in the session cookie
func (h *Handlers) issueSession(c *gin.Context, user *models.User) (string, time.Time, error) {
	ttl := h.cfg.Auth.ConsoleSessionTTL
	token, err := auth.GenerateConsoleToken(user.ID, user.Email, ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	cookie := h.cfg.Auth.Cookie
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.Name, token, int(ttl.Seconds()), "/", cookie.Domain, cookie.Secure, true)
	return token, time.Now().UTC().Add(ttl), nil
}

// startSession responds with the session token for non-browser clients
func (h *Handlers) startSession(c *gin.Context, status int, user *models.User) {
	token, expiresAt, err := h.issueSession(c, user)
	if err != nil {
		apperr.Respond(c, apperr.Internal(err))
		return
	}
	c.JSON(status, gin.H{"token": token, "expires_at": expiresAt, "user": user})
}

// Signup creates an account and starts a session
// POST /console/auth/signup
func (h *Handlers) Signup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signupRequest
		if !params.BindJSON(c, &req) {
			return
		}
		user, err := h.svc.Accounts.Signup(c.Request.Context(), req.Email, req.Name, req.Password)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		h.startSession(c, http.StatusCreated, user)
	}
}

// Login starts a session from email and password
// POST /console/auth/login
func (h *Handlers) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !params.BindJSON(c, &req) {
			return
		}
		user, err := h.svc.Accounts.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		h.startSession(c, http.StatusOK, user)
	}
}

// Logout clears the session cookie
// POST /console/auth/logout
func (h *Handlers) Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie := h.cfg.Auth.Cookie
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookie.Name, "", -1, "/", cookie.Domain, cookie.Secure, true)
		noContent(c)
	}
}

// OIDCLogin redirects to the identity provider. The state travels in a
// short-lived cookie scoped to the callback path.
// GET /console/auth/oidc/login
func (h *Handlers) OIDCLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.sso == nil {
			apperr.Respond(c, apperr.NotFound("sso_disabled"))
			return
		}
		state, err := oidc.NewState()
		if err != nil {
			apperr.Respond(c, apperr.Internal(err))
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(ssoStateCookie, state, int(ssoStateTTL.Seconds()), ssoStatePath, "", h.cfg.Auth.Cookie.Secure, true)
		c.Redirect(http.StatusFound, h.sso.AuthURL(state))
	}
}

// OIDCCallback completes single sign-on and starts a session. Browsers are
// sent back to the console when a base URL is configured.
// GET /console/auth/oidc/callback?code=&state=
func (h *Handlers) OIDCCallback() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.sso == nil {
			apperr.Respond(c, apperr.NotFound("sso_disabled"))
			return
		}
		expected, _ := c.Cookie(ssoStateCookie)
		c.SetCookie(ssoStateCookie, "", -1, ssoStatePath, "", h.cfg.Auth.Cookie.Secure, true)

		state := c.Query("state")
		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
			apperr.Respond(c, apperr.BadRequest("invalid_sso_state"))
			return
		}
		code := c.Query("code")
		if code == "" {
			apperr.Respond(c, apperr.BadRequest(apperr.CodeInvalidRequest, "code is required"))
			return
		}

		identity, err := h.sso.Authenticate(c.Request.Context(), code)
		if err != nil {
			slog.Warn("sso authentication failed", "error", err)
			apperr.Respond(c, apperr.Unauthorized("invalid_credentials").Wrap(err))
			return
		}
		user, err := h.svc.Accounts.LoginOIDC(c.Request.Context(), identity)
		if err != nil {
			apperr.Respond(c, err)
			return
		}

		if base := h.cfg.Server.BaseURL; base != "" {
			if _, _, err := h.issueSession(c, user); err != nil {
				apperr.Respond(c, apperr.Internal(err))
				return
			}
			c.Redirect(http.StatusFound, base+"/")
			return
		}
		h.startSession(c, http.StatusOK, user)
	}
}

// GetMe returns the caller and the communities they belong to
// GET /console/me
func (h *Handlers) GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, userID := caller(c)
		communities, err := h.svc.Communities.ListMyCommunities(c.Request.Context(), userID)
		if err != nil {
			apperr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c), "communities": communities})
	}
}
