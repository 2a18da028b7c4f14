package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ImageRepository handles uploaded image metadata
type ImageRepository struct {
	q DBTX
}

// Create inserts image metadata after the blob has been stored
func (r *ImageRepository) Create(ctx context.Context, img *models.Image) error {
	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	img.CreatedAt = time.Now().UTC()
	query := `
		INSERT INTO images (id, community_id, uploaded_by, path, thumbnail_path, content_type, size,
			checksum, width, height, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.q.ExecContext(ctx, query,
		img.ID, img.CommunityID, img.UploadedBy, img.Path, img.ThumbnailPath, img.ContentType,
		img.Size, img.Checksum, img.Width, img.Height, img.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	return nil
}

// GetByID returns image metadata
func (r *ImageRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	query := `
		SELECT id, community_id, uploaded_by, path, thumbnail_path, content_type, size, checksum,
			width, height, created_at
		FROM images WHERE id = $1
	`
	var img models.Image
	if err := r.q.GetContext(ctx, &img, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &img, nil
}

// CountOwned counts how many of ids were uploaded by userID into communityID
func (r *ImageRepository) CountOwned(ctx context.Context, userID, communityID string, ids []string) (int, error) {
	query := `SELECT COUNT(*) FROM images WHERE uploaded_by = $1 AND community_id = $2 AND id = ANY($3)`
	var n int
	if err := r.q.GetContext(ctx, &n, query, userID, communityID, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return n, nil
}
