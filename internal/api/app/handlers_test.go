package app

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/community-hub/community-hub/internal/auth"
	"github.com/community-hub/community-hub/internal/authz"
	"github.com/community-hub/community-hub/internal/config"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/community-hub/community-hub/internal/mail"
	"github.com/community-hub/community-hub/internal/middleware"
	"github.com/community-hub/community-hub/internal/services"
	"github.com/community-hub/community-hub/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv("CMH_JWT_SECRET", "test-jwt-secret-that-is-32-chars!!")
	if err := validation.RegisterWithGin(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var (
	fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	club     = &models.Community{ID: "c-1", Slug: "club", Name: "Club"}
	userCols = []string{"id", "email", "name", "password_hash", "oidc_sub", "created_at", "updated_at", "deleted_at"}
)

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

// caller stands in for tenant resolution, app auth and membership loading
type testCaller struct {
	userID string
	role   *models.Role
}

func (tc testCaller) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextCommunity, club)
		if tc.userID == "" {
			return
		}
		c.Set(middleware.ContextUser, &models.User{ID: tc.userID, Email: tc.userID + "@example.com"})
		c.Set(middleware.ContextUserID, tc.userID)
		ac := &authz.AuthContext{UserID: tc.userID, CommunityID: club.ID}
		if tc.role != nil {
			ac.Membership = models.NewMembership("m-"+tc.userID, tc.userID, club.ID, *tc.role, fixedNow)
		}
		c.Set(middleware.ContextAuth, ac)
	}
}

func member(role models.Role) testCaller { return testCaller{userID: "u-1", role: &role} }

var outsider = testCaller{userID: "u-1"}

func newRouter(t *testing.T, tc testCaller) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Auth:    config.AuthConfig{AppSessionTTL: time.Hour},
		Storage: config.StorageConfig{MaxUploadBytes: 1 << 20, ThumbnailWidth: 64},
	}
	store := repositories.NewStore(sqlx.NewDb(db, "postgres"))
	svc := services.New(cfg, store, events.NewLogPublisher(nil), mail.NopMailer{}, nil)

	r := gin.New()
	app := r.Group("/app", tc.middleware())
	NewHandlers(cfg, svc).Register(app)
	return r, mock
}

func do(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
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
// Login
// ---------------------------------------------------------------------------

func TestLogin_IssuesTokenBoundToCommunity(t *testing.T) {
	r, mock := newRouter(t, testCaller{})
	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	mock.ExpectQuery("SELECT.*FROM users WHERE email = \\$1").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "ada@example.com", "Ada", hash, nil, fixedNow, fixedNow, nil))

	w := do(r, http.MethodPost, "/app/auth/login", `{"email":"Ada@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct{ Token string }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	claims, err := auth.ValidateJWT(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.ScopeApp, claims.Scope)
	assert.Equal(t, "c-1", claims.CommunityID)
	assert.Equal(t, "u-1", claims.UserID)
	assert.NotContains(t, w.Body.String(), "password_hash")
}

func TestLogin_WrongPassword(t *testing.T) {
	r, mock := newRouter(t, testCaller{})
	mock.ExpectQuery("SELECT.*FROM users").WillReturnRows(sqlmock.NewRows(userCols))

	w := do(r, http.MethodPost, "/app/auth/login", `{"email":"nobody@example.com","password":"whatever"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", errorCode(t, w))
}

func TestLogin_InvalidBody(t *testing.T) {
	r, _ := newRouter(t, testCaller{})
	w := do(r, http.MethodPost, "/app/auth/login", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", errorCode(t, w))
}

// ---------------------------------------------------------------------------
// Community and me
// ---------------------------------------------------------------------------

func TestGetCommunity(t *testing.T) {
	r, _ := newRouter(t, outsider)
	w := do(r, http.MethodGet, "/app/community", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"slug":"club"`)
}

func TestGetMe_NonMember(t *testing.T) {
	r, mock := newRouter(t, outsider)
	w := do(r, http.MethodGet, "/app/me", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "null", string(resp["membership"]))
	assert.Equal(t, "[]", string(resp["profiles"]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Route guards
// ---------------------------------------------------------------------------

func TestMemberRoutesRejectOutsiders(t *testing.T) {
	r, _ := newRouter(t, outsider)
	for _, path := range []string{"/app/posts", "/app/boards", "/app/me/profiles", "/app/me/bookmarks"} {
		w := do(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusForbidden, w.Code, path)
		assert.Equal(t, "not_a_member", errorCode(t, w), path)
	}
}

func TestPinRequiresStaff(t *testing.T) {
	r, _ := newRouter(t, member(models.RoleMember))
	w := do(r, http.MethodPost, "/app/posts/p-1/pin", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "insufficient_role", errorCode(t, w))
}

// ---------------------------------------------------------------------------
// Posts
// ---------------------------------------------------------------------------

func TestListPosts_FirstPage(t *testing.T) {
	r, mock := newRouter(t, member(models.RoleMember))
	mock.ExpectQuery("SELECT.*FROM posts p.*pinned_at IS NOT NULL").
		WithArgs("c-1", "b-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT.*FROM posts p.*pinned_at IS NULL").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := do(r, http.MethodGet, "/app/posts?board_id=b-1&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"posts":[]}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPosts_BadCursor(t *testing.T) {
	r, _ := newRouter(t, member(models.RoleMember))
	for _, cursor := range []string{"yesterday", "%%%", "MjAyNi0wNS0wMQ"} {
		w := do(r, http.MethodGet, "/app/posts?cursor="+cursor, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "cursor %q", cursor)
	}
}

func TestCreatePost_Validation(t *testing.T) {
	r, _ := newRouter(t, member(models.RoleMember))
	tests := map[string]string{
		"missing body":    `{"profile_id":"p-1"}`,
		"missing profile": `{"body":"hi"}`,
		"bad image id":    `{"profile_id":"p-1","body":"hi","image_id":"nope"}`,
	}
	for name, body := range tests {
		w := do(r, http.MethodPost, "/app/posts", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestRemoveReaction_RequiresQuery(t *testing.T) {
	r, _ := newRouter(t, member(models.RoleMember))
	w := do(r, http.MethodDelete, "/app/posts/p-1/reactions?profile_id=p-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateProfile_UsernameRule(t *testing.T) {
	r, _ := newRouter(t, member(models.RoleMember))
	w := do(r, http.MethodPost, "/app/me/profiles", `{"name":"Ada","username":"no spaces"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Username failed username")
}

// ---------------------------------------------------------------------------
// Messaging and notifications
// ---------------------------------------------------------------------------

func TestListConversations_RequiresProfile(t *testing.T) {
	r, _ := newRouter(t, member(models.RoleMember))
	w := do(r, http.MethodGet, "/app/conversations", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateConversation_KindValidated(t *testing.T) {
	r, _ := newRouter(t, member(models.RoleMember))
	w := do(r, http.MethodPost, "/app/conversations", `{"profile_id":"p-1","kind":"broadcast","participant_ids":["p-2"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	r, mock := newRouter(t, outsider)
	mock.ExpectExec("UPDATE notifications SET read_at").
		WithArgs("u-1", "c-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	w := do(r, http.MethodPost, "/app/notifications/read-all", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":3}`, w.Body.String())
}

func TestMarkNotificationRead_NotFound(t *testing.T) {
	r, mock := newRouter(t, outsider)
	mock.ExpectExec("UPDATE notifications SET read_at").WillReturnResult(sqlmock.NewResult(0, 0))

	w := do(r, http.MethodPost, "/app/notifications/n-9/read", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

func TestUploadImage_RejectsNonImage(t *testing.T) {
	r, _ := newRouter(t, member(models.RoleMember))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("plain text, not an image"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/app/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unsupported_media_type", errorCode(t, w))
}
