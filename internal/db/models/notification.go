package models

import (
	"encoding/json"
	"time"
)

// Notification kinds
const (
	NotificationReply               = "post.reply"
	NotificationReaction            = "post.reaction"
	NotificationMessage             = "conversation.message"
	NotificationApplicationApproved = "application.approved"
	NotificationApplicationRejected = "application.rejected"
)

// Notification is an in-app notice for a user within one community
type Notification struct {
	ID          string          `db:"id" json:"id"`
	CommunityID string          `db:"community_id" json:"community_id"`
	UserID      string          `db:"user_id" json:"user_id"`
	Kind        string          `db:"kind" json:"kind"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	ReadAt      *time.Time      `db:"read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
