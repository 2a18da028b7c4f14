package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/community-hub/community-hub/internal/auth"
	"github.com/community-hub/community-hub/internal/auth/oidc"
	"github.com/community-hub/community-hub/internal/authz"
	"github.com/community-hub/community-hub/internal/config"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/community-hub/community-hub/internal/mail"
	"github.com/community-hub/community-hub/internal/middleware"
	"github.com/community-hub/community-hub/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionCookie = "cmh_session"

var (
	fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	userCols = []string{"id", "email", "name", "password_hash", "oidc_sub", "created_at", "updated_at", "deleted_at"}
)

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type fakeSSO struct {
	identity *oidc.Identity
	err      error
	codes    []string
}

func (f *fakeSSO) AuthURL(state string) string {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeSSO) Authenticate(_ context.Context, code string) (*oidc.Identity, error) {
	f.codes = append(f.codes, code)
	return f.identity, f.err
}

type harness struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
	cfg    *config.Config
}

// setup mounts the console routes behind fake auth chains. An empty userID
// leaves requests unauthenticated; a nil role makes the caller a non-member.
func setup(t *testing.T, userID string, role *models.Role, sso SSOProvider) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Auth: config.AuthConfig{
			ConsoleSessionTTL: 12 * time.Hour,
			Cookie:            config.CookieConfig{Name: sessionCookie},
		},
		Storage: config.StorageConfig{MaxUploadBytes: 1 << 20},
	}
	store := repositories.NewStore(sqlx.NewDb(db, "postgres"))
	svc := services.New(cfg, store, events.NewLogPublisher(nil), mail.NopMailer{}, nil)

	pass := func(c *gin.Context) { c.Next() }
	authenticated := func(c *gin.Context) {
		if userID == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(middleware.ContextUser, &models.User{ID: userID, Email: userID + "@example.com"})
		c.Set(middleware.ContextUserID, userID)
	}
	community := func(c *gin.Context) {
		c.Set(middleware.ContextCommunity, &models.Community{ID: c.Param("communityId"), Slug: "club", Name: "Club"})
		ac := &authz.AuthContext{UserID: userID, CommunityID: c.Param("communityId")}
		if role != nil {
			ac.Membership = models.NewMembership("m-1", userID, c.Param("communityId"), *role, fixedNow)
		}
		c.Set(middleware.ContextAuth, ac)
	}

	r := gin.New()
	NewHandlers(cfg, svc, store.Audit(), sso).Register(r.Group("/console"), Chains{
		AuthRateLimit: pass,
		Authenticated: authenticated,
		Community:     []gin.HandlerFunc{community},
		Audit:         pass,
	})
	return &harness{router: r, mock: mock, cfg: cfg}
}

func rolePtr(r models.Role) *models.Role { return &r }

func (h *harness) do(method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct{ Code string } `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error.Code
}

// ---------------------------------------------------------------------------
// Password auth
// ---------------------------------------------------------------------------

func TestSignup_SetsSessionCookie(t *testing.T) {
	h := setup(t, "", nil, nil)
	h.mock.ExpectQuery("SELECT.*FROM users WHERE email = \\$1").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(userCols))
	h.mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))

	w := h.do(http.MethodPost, "/console/auth/signup", `{"email":"ada@example.com","name":"Ada","password":"correct-horse"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	ck := findCookie(w, sessionCookie)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	claims, err := auth.ValidateJWT(ck.Value)
	require.NoError(t, err)
	assert.Equal(t, auth.ScopeConsole, claims.Scope)
	assert.Empty(t, claims.CommunityID)
	assert.NotContains(t, w.Body.String(), "password_hash")
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestSignup_ShortPassword(t *testing.T) {
	h := setup(t, "", nil, nil)
	w := h.do(http.MethodPost, "/console/auth/signup", `{"email":"ada@example.com","name":"Ada","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignup_EmailTaken(t *testing.T) {
	h := setup(t, "", nil, nil)
	h.mock.ExpectQuery("SELECT.*FROM users").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "ada@example.com", "Ada", nil, nil, fixedNow, fixedNow, nil))

	w := h.do(http.MethodPost, "/console/auth/signup", `{"email":"ada@example.com","name":"Ada","password":"correct-horse"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "email_taken", errorCode(t, w))
}

func TestLogin_WrongPassword(t *testing.T) {
	h := setup(t, "", nil, nil)
	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	h.mock.ExpectQuery("SELECT.*FROM users").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "ada@example.com", "Ada", hash, nil, fixedNow, fixedNow, nil))

	w := h.do(http.MethodPost, "/console/auth/login", `{"email":"ada@example.com","password":"battery-staple"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", errorCode(t, w))
	assert.Nil(t, findCookie(w, sessionCookie))
}

func TestLogout_ClearsCookie(t *testing.T) {
	h := setup(t, "", nil, nil)
	w := h.do(http.MethodPost, "/console/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	ck := findCookie(w, sessionCookie)
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
	assert.Less(t, ck.MaxAge, 0)
}

// ---------------------------------------------------------------------------
// Single sign-on
// ---------------------------------------------------------------------------

func TestOIDC_Disabled(t *testing.T) {
	h := setup(t, "", nil, nil)
	for _, path := range []string{"/console/auth/oidc/login", "/console/auth/oidc/callback?code=x&state=y"} {
		w := h.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "sso_disabled", errorCode(t, w), path)
	}
}

func TestOIDCLogin_RedirectsWithStateCookie(t *testing.T) {
	h := setup(t, "", nil, &fakeSSO{})
	w := h.do(http.MethodGet, "/console/auth/oidc/login", "")

	require.Equal(t, http.StatusFound, w.Code)
	ck := findCookie(w, ssoStateCookie)
	require.NotNil(t, ck)
	assert.Equal(t, ssoStatePath, ck.Path)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, ck.Value, loc.Query().Get("state"))
}

func TestOIDCCallback_StateMismatch(t *testing.T) {
	sso := &fakeSSO{}
	h := setup(t, "", nil, sso)

	tests := map[string][]*http.Cookie{
		"no cookie":    nil,
		"wrong cookie": {{Name: ssoStateCookie, Value: "other"}},
	}
	for name, cookies := range tests {
		w := h.do(http.MethodGet, "/console/auth/oidc/callback?code=abc&state=expected", "", cookies...)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Equal(t, "invalid_sso_state", errorCode(t, w), name)
	}
	assert.Empty(t, sso.codes, "code must not be exchanged without a matching state")
}

func TestOIDCCallback_ProviderError(t *testing.T) {
	h := setup(t, "", nil, &fakeSSO{err: errors.New("exchange failed")})
	w := h.do(http.MethodGet, "/console/auth/oidc/callback?code=abc&state=s1", "",
		&http.Cookie{Name: ssoStateCookie, Value: "s1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOIDCCallback_RedirectsToConsole(t *testing.T) {
	sso := &fakeSSO{identity: &oidc.Identity{Subject: "sub-1", Email: "ada@example.com", Name: "Ada"}}
	h := setup(t, "", nil, sso)
	h.cfg.Server.BaseURL = "https://console.example.com"
	h.mock.ExpectQuery("SELECT.*FROM users WHERE oidc_sub = \\$1").
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "ada@example.com", "Ada", nil, "sub-1", fixedNow, fixedNow, nil))

	w := h.do(http.MethodGet, "/console/auth/oidc/callback?code=abc&state=s1", "",
		&http.Cookie{Name: ssoStateCookie, Value: "s1"})

	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "https://console.example.com/", w.Header().Get("Location"))
	assert.Equal(t, []string{"abc"}, sso.codes)
	require.NotNil(t, findCookie(w, sessionCookie))
	cleared := findCookie(w, ssoStateCookie)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

// ---------------------------------------------------------------------------
// Communities
// ---------------------------------------------------------------------------

func TestConsoleRequiresSession(t *testing.T) {
	h := setup(t, "", nil, nil)
	w := h.do(http.MethodGet, "/console/communities", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateCommunity_Validation(t *testing.T) {
	h := setup(t, "u-1", nil, nil)
	tests := map[string]string{
		"bad slug":      `{"slug":"Not A Slug","name":"Club","owner_profile_name":"Ada","owner_profile_username":"ada"}`,
		"missing name":  `{"slug":"club","owner_profile_name":"Ada","owner_profile_username":"ada"}`,
		"bad username":  `{"slug":"club","name":"Club","owner_profile_name":"Ada","owner_profile_username":"a d a"}`,
		"missing owner": `{"slug":"club","name":"Club"}`,
	}
	for name, body := range tests {
		w := h.do(http.MethodPost, "/console/communities", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestCommunityRoutesRequireMembership(t *testing.T) {
	h := setup(t, "u-1", nil, nil)
	w := h.do(http.MethodGet, "/console/communities/c-1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_a_member", errorCode(t, w))
}

func TestGetCommunity_Member(t *testing.T) {
	h := setup(t, "u-1", rolePtr(models.RoleMember), nil)
	w := h.do(http.MethodGet, "/console/communities/c-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"c-1"`)
}

// ---------------------------------------------------------------------------
// Members, applications and moderation
// ---------------------------------------------------------------------------

func TestUpdateMemberRole_UnknownRole(t *testing.T) {
	h := setup(t, "u-1", rolePtr(models.RoleOwner), nil)
	w := h.do(http.MethodPut, "/console/communities/c-1/members/m-2/role", `{"role":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_role", errorCode(t, w))
}

func TestListApplications_BadStatus(t *testing.T) {
	h := setup(t, "u-1", rolePtr(models.RoleModerator), nil)
	w := h.do(http.MethodGet, "/console/communities/c-1/applications?status=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListModerationLogs_BadPaging(t *testing.T) {
	h := setup(t, "u-1", rolePtr(models.RoleModerator), nil)
	w := h.do(http.MethodGet, "/console/communities/c-1/moderation-logs?offset=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ---------------------------------------------------------------------------
// Boards and analytics
// ---------------------------------------------------------------------------

func TestCreateBoard_Validation(t *testing.T) {
	h := setup(t, "u-1", rolePtr(models.RoleOwner), nil)
	w := h.do(http.MethodPost, "/console/communities/c-1/boards", `{"name":"","position":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimeSeries_RequiresRange(t *testing.T) {
	h := setup(t, "u-1", rolePtr(models.RoleOwner), nil)
	w := h.do(http.MethodGet, "/console/communities/c-1/analytics/timeseries?metric=posts", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/console/communities/c-1/analytics/heatmap?from=2026-05-01T00:00:00Z&to=soon", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ---------------------------------------------------------------------------
// Audit logs
// ---------------------------------------------------------------------------

func TestListAuditLogs_OwnerOnly(t *testing.T) {
	h := setup(t, "u-1", rolePtr(models.RoleModerator), nil)
	w := h.do(http.MethodGet, "/console/communities/c-1/audit-logs", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "insufficient_role", errorCode(t, w))
}

func TestListAuditLogs_ScopedToCommunity(t *testing.T) {
	h := setup(t, "u-1", rolePtr(models.RoleOwner), nil)
	h.mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_logs WHERE 1=1 AND community_id = \\$1 AND action = \\$2").
		WithArgs("c-1", "DELETE /console/communities/:communityId").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	h.mock.ExpectQuery("SELECT id, user_id, community_id, action.*FROM audit_logs").
		WithArgs("c-1", "DELETE /console/communities/:communityId", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "community_id", "action", "resource_type", "resource_id", "metadata", "ip_address", "created_at",
		}).AddRow("a-1", "u-1", "c-1", "DELETE /console/communities/:communityId", "community", "c-1",
			[]byte(`{"status_code":204}`), "127.0.0.1", fixedNow))

	w := h.do(http.MethodGet, "/console/communities/c-1/audit-logs?limit=10&action="+
		url.QueryEscape("DELETE /console/communities/:communityId"), "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Logs  []map[string]interface{} `json:"logs"`
		Total int                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Logs, 1)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}
