package models

import "time"

// Board groups posts by topic within a community
type Board struct {
	ID          string     `db:"id" json:"id"`
	CommunityID string     `db:"community_id" json:"community_id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	Position    int        `db:"position" json:"position"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
}
