package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/auth"
	"github.com/community-hub/community-hub/internal/auth/oidc"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
)

// AccountService manages platform accounts and their credentials
type AccountService struct {
	store *repositories.Store
}

func NewAccountService(store *repositories.Store) *AccountService {
	return &AccountService{store: store}
}

// Signup creates a password account
func (s *AccountService) Signup(ctx context.Context, email, name, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.BadRequest(apperr.CodeInvalidRequest, "email")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, apperr.BadRequest(apperr.CodeInvalidRequest, err.Error())
		}
		return nil, apperr.Internal(err)
	}
	existing, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("email_taken")
	}
	u := &models.User{Email: email, Name: strings.TrimSpace(name), PasswordHash: &hash}
	if err := s.store.Users().Create(ctx, u); err != nil {
		return nil, apperr.FromDB(err)
	}
	slog.InfoContext(ctx, "account created", "user_id", u.ID)
	return u, nil
}

// Login checks an email and password
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if u == nil || !u.HasPassword() || !auth.CheckPassword(*u.PasswordHash, password) {
		return nil, apperr.Unauthorized("invalid_credentials")
	}
	return u, nil
}

// LoginOIDC finds the account for an identity provider subject. An account
// with the same email is linked on first sign-in; otherwise one is created.
func (s *AccountService) LoginOIDC(ctx context.Context, id *oidc.Identity) (*models.User, error) {
	u, err := s.store.Users().GetByOIDCSub(ctx, id.Subject)
	if err != nil || u != nil {
		return u, err
	}
	if id.Email == "" {
		return nil, apperr.Unauthorized("invalid_credentials")
	}

	u, err = s.store.Users().GetByEmail(ctx, strings.ToLower(id.Email))
	if err != nil {
		return nil, err
	}
	if u != nil {
		if err := s.store.Users().LinkOIDCSub(ctx, u.ID, id.Subject); err != nil {
			return nil, err
		}
		u.OIDCSub = &id.Subject
		slog.InfoContext(ctx, "linked sso identity", "user_id", u.ID)
		return u, nil
	}

	sub := id.Subject
	u = &models.User{Email: id.Email, Name: id.Name, OIDCSub: &sub}
	if err := s.store.Users().Create(ctx, u); err != nil {
		return nil, apperr.FromDB(err)
	}
	slog.InfoContext(ctx, "account created from sso", "user_id", u.ID)
	return u, nil
}

// GetUser returns an account or 404
func (s *AccountService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound(codeNotFound)
	}
	return u, nil
}
