// Package models - conversation.go defines direct and group conversations between
// profiles of the same community.
package models

import "time"

// ConversationKind distinguishes one-to-one from group conversations
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Conversation is a message thread between profiles
type Conversation struct {
	ID             string           `db:"id" json:"id"`
	CommunityID    string           `db:"community_id" json:"community_id"`
	Kind           ConversationKind `db:"kind" json:"kind"`
	Title          string           `db:"title" json:"title"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
	ParticipantIDs []string         `db:"-" json:"participant_ids"`
}

// Message is a single entry in a conversation
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	ProfileID      string    `db:"profile_id" json:"profile_id"`
	Body           string    `db:"body" json:"body"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
