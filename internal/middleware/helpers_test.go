package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/jmoiron/sqlx"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

var userCols = []string{"id", "email", "name", "password_hash", "oidc_sub", "created_at", "updated_at", "deleted_at"}

var membershipCols = []string{"id", "user_id", "community_id", "role", "activated_at", "deactivated_at", "created_at", "updated_at"}

func newTestStore(t *testing.T) (*repositories.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewStore(sqlx.NewDb(db, "postgres")), mock
}

func expectUser(mock sqlmock.Sqlmock, id string) {
	mock.ExpectQuery("SELECT.*FROM users WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(id, id+"@example.com", "Test User", nil, nil, fixedNow, fixedNow, nil))
}

func expectMembership(mock sqlmock.Sqlmock, userID, communityID string, role models.Role) {
	mock.ExpectQuery("SELECT.*FROM memberships WHERE user_id = \\$1 AND community_id = \\$2").
		WithArgs(userID, communityID).
		WillReturnRows(sqlmock.NewRows(membershipCols).
			AddRow("m-"+userID, userID, communityID, string(role), fixedNow, nil, fixedNow, fixedNow))
}

func expectNoMembership(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT.*FROM memberships").WillReturnRows(sqlmock.NewRows(membershipCols))
}

// fakeResolver maps hosts and IDs to communities without a database
type fakeResolver struct {
	byHost map[string]*models.Community
	byID   map[string]*models.Community
	hosts  []string
}

func (f *fakeResolver) ResolveHost(_ context.Context, host string) (*models.Community, error) {
	f.hosts = append(f.hosts, host)
	if c, ok := f.byHost[host]; ok {
		return c, nil
	}
	return nil, apperr.NotFound("community_not_found")
}

func (f *fakeResolver) GetCommunity(_ context.Context, id string) (*models.Community, error) {
	if c, ok := f.byID[id]; ok {
		return c, nil
	}
	return nil, apperr.NotFound("community_not_found")
}

func newFakeResolver() *fakeResolver {
	club := &models.Community{ID: "c-1", Slug: "club"}
	return &fakeResolver{
		byHost: map[string]*models.Community{"club.hub.example.com": club},
		byID:   map[string]*models.Community{"c-1": club},
	}
}

// errorCode decodes the code of an apperr JSON body
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return body.Error.Code
}
