package repositories

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/community-hub/community-hub/internal/db/models"
)

func TestUserCreate_NormalizesEmailWithoutPassword(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "ada@example.com", "Ada", nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &models.User{Email: "  Ada@Example.COM ", Name: "Ada"}
	if err := store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" || u.Email != "ada@example.com" {
		t.Errorf("user = %+v", u)
	}
	expectationsMet(t, mock)
}

func TestUserGetByEmail_CaseInsensitive(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE email = \\$1 AND deleted_at IS NULL").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u-1", "ada@example.com", "Ada", "hash", nil, fixedNow, fixedNow, nil))

	u, err := store.Users().GetByEmail(context.Background(), "ADA@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if u == nil || !u.HasPassword() {
		t.Fatalf("user = %+v", u)
	}
}

func TestUserGetByOIDCSub_NotFound(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE oidc_sub = \\$1").
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows(userCols))

	u, err := store.Users().GetByOIDCSub(context.Background(), "sub-1")
	if err != nil || u != nil {
		t.Fatalf("GetByOIDCSub = %v, %v; want nil, nil", u, err)
	}
}

func TestUserLinkOIDCSub(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("UPDATE users SET oidc_sub = \\$2").
		WithArgs("u-1", "sub-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Users().LinkOIDCSub(context.Background(), "u-1", "sub-1"); err != nil {
		t.Fatalf("LinkOIDCSub: %v", err)
	}
	expectationsMet(t, mock)
}
