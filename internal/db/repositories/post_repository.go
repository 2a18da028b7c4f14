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

// PostRepository handles posts, reactions, and bookmarks
type PostRepository struct {
	q DBTX
}

const postColumns = `id, community_id, board_id, profile_id, parent_id, root_id, body, image_id,
	scheduled_at, published_at, pinned_at, created_at, updated_at, deleted_at`

const postViewSelect = `
	SELECT p.id, p.community_id, p.board_id, p.profile_id, p.parent_id, p.root_id, p.body, p.image_id,
		p.scheduled_at, p.published_at, p.pinned_at, p.created_at, p.updated_at, p.deleted_at,
		pr.name AS author_name, pr.username AS author_username,
		(SELECT COUNT(*) FROM posts r WHERE r.parent_id = p.id AND r.deleted_at IS NULL AND r.published_at IS NOT NULL) AS reply_count,
		(SELECT COUNT(*) FROM post_reactions x WHERE x.post_id = p.id) AS reaction_count
	FROM posts p
	JOIN profiles pr ON pr.id = p.profile_id
`

// FeedQuery selects a page of top-level published posts
type FeedQuery struct {
	CommunityID string
	BoardID     *string
	After       *FeedCursor
	Limit       int
}

// FeedCursor is the (published_at, id) key of the last post on a page.
// Posts published at the same instant are ordered by id.
type FeedCursor struct {
	PublishedAt time.Time
	ID          string
}

// Create inserts a post
func (r *PostRepository) Create(ctx context.Context, p *models.Post) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	query := `
		INSERT INTO posts (id, community_id, board_id, profile_id, parent_id, root_id, body, image_id,
			scheduled_at, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.q.ExecContext(ctx, query,
		p.ID, p.CommunityID, p.BoardID, p.ProfileID, p.ParentID, p.RootID, p.Body, p.ImageID,
		p.ScheduledAt, p.PublishedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// GetByID returns a live post scoped to its community
func (r *PostRepository) GetByID(ctx context.Context, communityID, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND community_id = $2 AND deleted_at IS NULL`
	var p models.Post
	if err := r.q.GetContext(ctx, &p, query, id, communityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &p, nil
}

// GetView returns a live post with author and counters
func (r *PostRepository) GetView(ctx context.Context, communityID, id string) (*models.PostView, error) {
	query := postViewSelect + ` WHERE p.id = $1 AND p.community_id = $2 AND p.deleted_at IS NULL`
	var v models.PostView
	if err := r.q.GetContext(ctx, &v, query, id, communityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &v, nil
}

// ListFeed returns unpinned top-level published posts, newest first, after the cursor
func (r *PostRepository) ListFeed(ctx context.Context, fq FeedQuery) ([]models.PostView, error) {
	query := postViewSelect + `
		WHERE p.community_id = $1 AND p.parent_id IS NULL AND p.deleted_at IS NULL
			AND p.published_at IS NOT NULL AND p.pinned_at IS NULL`
	args := []interface{}{fq.CommunityID}
	if fq.BoardID != nil {
		args = append(args, *fq.BoardID)
		query += fmt.Sprintf(` AND p.board_id = $%d`, len(args))
	}
	if fq.After != nil {
		args = append(args, fq.After.PublishedAt, fq.After.ID)
		query += fmt.Sprintf(` AND (p.published_at, p.id) < ($%d, $%d)`, len(args)-1, len(args))
	}
	args = append(args, fq.Limit)
	query += fmt.Sprintf(` ORDER BY p.published_at DESC, p.id DESC LIMIT $%d`, len(args))

	out := []models.PostView{}
	if err := r.q.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list feed: %w", err)
	}
	return out, nil
}

// ListPinned returns pinned top-level posts, most recently pinned first
func (r *PostRepository) ListPinned(ctx context.Context, communityID string, boardID *string) ([]models.PostView, error) {
	query := postViewSelect + `
		WHERE p.community_id = $1 AND p.parent_id IS NULL AND p.deleted_at IS NULL
			AND p.published_at IS NOT NULL AND p.pinned_at IS NOT NULL`
	args := []interface{}{communityID}
	if boardID != nil {
		query += ` AND p.board_id = $2`
		args = append(args, *boardID)
	}
	query += ` ORDER BY p.pinned_at DESC`

	out := []models.PostView{}
	if err := r.q.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list pinned posts: %w", err)
	}
	return out, nil
}

// ListReplies returns published direct replies to a post, oldest first
func (r *PostRepository) ListReplies(ctx context.Context, communityID, parentID string) ([]models.PostView, error) {
	query := postViewSelect + `
		WHERE p.community_id = $1 AND p.parent_id = $2 AND p.deleted_at IS NULL AND p.published_at IS NOT NULL
		ORDER BY p.published_at`
	out := []models.PostView{}
	if err := r.q.SelectContext(ctx, &out, query, communityID, parentID); err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	return out, nil
}

// ListPublished returns every published post of a community, for exports
func (r *PostRepository) ListPublished(ctx context.Context, communityID string) ([]models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE community_id = $1 AND deleted_at IS NULL AND published_at IS NOT NULL ORDER BY published_at`
	out := []models.Post{}
	if err := r.q.SelectContext(ctx, &out, query, communityID); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return out, nil
}

// SoftDelete marks a post deleted
func (r *PostRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE posts SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.q.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

// SetPinned pins (non-nil) or unpins (nil) a post
func (r *PostRepository) SetPinned(ctx context.Context, id string, pinnedAt *time.Time) error {
	query := `UPDATE posts SET pinned_at = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, id, pinnedAt); err != nil {
		return fmt.Errorf("failed to pin post: %w", err)
	}
	return nil
}

// PublishDue publishes scheduled posts whose time has come and returns the count
func (r *PostRepository) PublishDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE posts SET published_at = scheduled_at, updated_at = $1
		WHERE published_at IS NULL AND deleted_at IS NULL AND scheduled_at IS NOT NULL AND scheduled_at <= $1
	`
	res, err := r.q.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to publish scheduled posts: %w", err)
	}
	return res.RowsAffected()
}

// AddReaction records a reaction; it reports false when it already existed
func (r *PostRepository) AddReaction(ctx context.Context, re *models.Reaction) (bool, error) {
	if re.CreatedAt.IsZero() {
		re.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO post_reactions (post_id, profile_id, emoji, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`
	res, err := r.q.ExecContext(ctx, query, re.PostID, re.ProfileID, re.Emoji, re.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to add reaction: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RemoveReaction deletes a reaction; it reports false when none existed
func (r *PostRepository) RemoveReaction(ctx context.Context, postID, profileID, emoji string) (bool, error) {
	query := `DELETE FROM post_reactions WHERE post_id = $1 AND profile_id = $2 AND emoji = $3`
	res, err := r.q.ExecContext(ctx, query, postID, profileID, emoji)
	if err != nil {
		return false, fmt.Errorf("failed to remove reaction: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// AddBookmark saves a post for a user; idempotent
func (r *PostRepository) AddBookmark(ctx context.Context, userID, postID string) error {
	query := `INSERT INTO bookmarks (user_id, post_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	if _, err := r.q.ExecContext(ctx, query, userID, postID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to add bookmark: %w", err)
	}
	return nil
}

// RemoveBookmark removes a saved post; idempotent
func (r *PostRepository) RemoveBookmark(ctx context.Context, userID, postID string) error {
	query := `DELETE FROM bookmarks WHERE user_id = $1 AND post_id = $2`
	if _, err := r.q.ExecContext(ctx, query, userID, postID); err != nil {
		return fmt.Errorf("failed to remove bookmark: %w", err)
	}
	return nil
}

// ListBookmarks returns the user's bookmarked live posts in a community
func (r *PostRepository) ListBookmarks(ctx context.Context, userID, communityID string) ([]models.PostView, error) {
	query := postViewSelect + `
		JOIN bookmarks b ON b.post_id = p.id
		WHERE b.user_id = $1 AND p.community_id = $2 AND p.deleted_at IS NULL AND p.published_at IS NOT NULL
		ORDER BY b.created_at DESC`
	out := []models.PostView{}
	if err := r.q.SelectContext(ctx, &out, query, userID, communityID); err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return out, nil
}
