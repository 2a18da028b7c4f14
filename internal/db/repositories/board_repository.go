package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/google/uuid"
)

// BoardRepository handles board database operations
type BoardRepository struct {
	q DBTX
}

const boardColumns = `id, community_id, name, description, position, created_at, updated_at, deleted_at`

// List returns a community's live boards in display order
func (r *BoardRepository) List(ctx context.Context, communityID string) ([]models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards
		WHERE community_id = $1 AND deleted_at IS NULL ORDER BY position, name`
	out := []models.Board{}
	if err := r.q.SelectContext(ctx, &out, query, communityID); err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	return out, nil
}

// GetByID returns a live board scoped to its community
func (r *BoardRepository) GetByID(ctx context.Context, communityID, id string) (*models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE id = $1 AND community_id = $2 AND deleted_at IS NULL`
	var b models.Board
	if err := r.q.GetContext(ctx, &b, query, id, communityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return &b, nil
}

// Create inserts a board
func (r *BoardRepository) Create(ctx context.Context, b *models.Board) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	query := `
		INSERT INTO boards (id, community_id, name, description, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.q.ExecContext(ctx, query, b.ID, b.CommunityID, b.Name, b.Description, b.Position, b.CreatedAt, b.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}
	return nil
}

// Update saves a board's name, description and position
func (r *BoardRepository) Update(ctx context.Context, b *models.Board) error {
	b.UpdatedAt = time.Now().UTC()
	query := `UPDATE boards SET name = $2, description = $3, position = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, b.ID, b.Name, b.Description, b.Position, b.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update board: %w", err)
	}
	return nil
}

// SoftDelete marks a board deleted
func (r *BoardRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE boards SET deleted_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("failed to delete board: %w", err)
	}
	return nil
}
