package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/google/uuid"
)

// UserRepository handles user database operations
type UserRepository struct {
	q DBTX
}

const userColumns = `id, email, name, password_hash, oidc_sub, created_at, updated_at, deleted_at`

// Create inserts a new user, assigning an ID when none is set. Emails are
// stored lowercased.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, name, password_hash, oidc_sub, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.q.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.OIDCSub, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` AND deleted_at IS NULL`

	var user models.User
	if err := r.q.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

// GetByOIDCSub retrieves a user by OIDC subject
func (r *UserRepository) GetByOIDCSub(ctx context.Context, sub string) (*models.User, error) {
	return r.getOne(ctx, "oidc_sub = $1", sub)
}

// LinkOIDCSub attaches an OIDC subject to an existing account
func (r *UserRepository) LinkOIDCSub(ctx context.Context, userID, sub string) error {
	query := `UPDATE users SET oidc_sub = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, userID, sub, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to link oidc subject: %w", err)
	}
	return nil
}
