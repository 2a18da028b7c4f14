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

// ConversationRepository handles conversations, participants, and messages
type ConversationRepository struct {
	q DBTX
}

// Create inserts a conversation and its participants
func (r *ConversationRepository) Create(ctx context.Context, c *models.Conversation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `INSERT INTO conversations (id, community_id, kind, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.q.ExecContext(ctx, query, c.ID, c.CommunityID, c.Kind, c.Title, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	for _, profileID := range c.ParticipantIDs {
		if _, err := r.q.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, profile_id, joined_at) VALUES ($1, $2, $3)`,
			c.ID, profileID, now); err != nil {
			return fmt.Errorf("failed to add conversation participant: %w", err)
		}
	}
	return nil
}

// FindDirect returns the direct conversation between two profiles, or nil
func (r *ConversationRepository) FindDirect(ctx context.Context, communityID, a, b string) (*models.Conversation, error) {
	query := `
		SELECT c.id, c.community_id, c.kind, c.title, c.created_at, c.updated_at
		FROM conversations c
		WHERE c.community_id = $1 AND c.kind = 'direct'
			AND EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = c.id AND profile_id = $2)
			AND EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = c.id AND profile_id = $3)
		LIMIT 1
	`
	var c models.Conversation
	if err := r.q.GetContext(ctx, &c, query, communityID, a, b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find direct conversation: %w", err)
	}
	c.ParticipantIDs = []string{a, b}
	return &c, nil
}

// GetByID returns a conversation in a community with its participant IDs
func (r *ConversationRepository) GetByID(ctx context.Context, communityID, id string) (*models.Conversation, error) {
	query := `SELECT id, community_id, kind, title, created_at, updated_at FROM conversations WHERE id = $1 AND community_id = $2`
	var c models.Conversation
	if err := r.q.GetContext(ctx, &c, query, id, communityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	ids := []string{}
	if err := r.q.SelectContext(ctx, &ids,
		`SELECT profile_id FROM conversation_participants WHERE conversation_id = $1 ORDER BY joined_at, profile_id`, id); err != nil {
		return nil, fmt.Errorf("failed to list conversation participants: %w", err)
	}
	c.ParticipantIDs = ids
	return &c, nil
}

// ListForProfile returns conversations the profile participates in, most recently active first
func (r *ConversationRepository) ListForProfile(ctx context.Context, communityID, profileID string) ([]models.Conversation, error) {
	query := `
		SELECT c.id, c.community_id, c.kind, c.title, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE c.community_id = $1 AND cp.profile_id = $2
		ORDER BY c.updated_at DESC
	`
	out := []models.Conversation{}
	if err := r.q.SelectContext(ctx, &out, query, communityID, profileID); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return out, nil
}

// AddMessage appends a message and bumps the conversation's activity time
func (r *ConversationRepository) AddMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now().UTC()
	query := `INSERT INTO messages (id, conversation_id, profile_id, body, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.q.ExecContext(ctx, query, m.ID, m.ConversationID, m.ProfileID, m.Body, m.CreatedAt); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`, m.ConversationID, m.CreatedAt); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// ListMessages returns messages newest first, before the cursor
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]models.Message, error) {
	query := `SELECT id, conversation_id, profile_id, body, created_at FROM messages WHERE conversation_id = $1`
	args := []interface{}{conversationID}
	if before != nil {
		query += ` AND created_at < $2`
		args = append(args, *before)
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	out := []models.Message{}
	if err := r.q.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return out, nil
}

// OwnerUserIDs returns the owning user of each given profile
func (r *ConversationRepository) OwnerUserIDs(ctx context.Context, profileIDs []string) ([]string, error) {
	query := `SELECT DISTINCT user_id FROM profile_ownerships WHERE role = 'owner' AND profile_id = ANY($1)`
	ids := []string{}
	if err := r.q.SelectContext(ctx, &ids, query, pq.Array(profileIDs)); err != nil {
		return nil, fmt.Errorf("failed to resolve profile owners: %w", err)
	}
	return ids, nil
}
