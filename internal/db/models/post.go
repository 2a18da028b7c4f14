// Package models - post.go defines posts, threaded replies, reactions and bookmarks.
package models

import "time"

// Post is a feed entry or a reply within a thread
type Post struct {
	ID          string     `db:"id" json:"id"`
	CommunityID string     `db:"community_id" json:"community_id"`
	BoardID     *string    `db:"board_id" json:"board_id,omitempty"`
	ProfileID   string     `db:"profile_id" json:"profile_id"`
	ParentID    *string    `db:"parent_id" json:"parent_id,omitempty"`
	RootID      *string    `db:"root_id" json:"root_id,omitempty"`
	Body        string     `db:"body" json:"body"`
	ImageID     *string    `db:"image_id" json:"image_id,omitempty"`
	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
	PinnedAt    *time.Time `db:"pinned_at" json:"pinned_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
}

// IsPublished reports whether the post is visible in feeds
func (p *Post) IsPublished() bool {
	return p.PublishedAt != nil && p.DeletedAt == nil
}

// PostView is a post with author and engagement counters for feed rendering
type PostView struct {
	Post
	AuthorName     string `db:"author_name" json:"author_name"`
	AuthorUsername string `db:"author_username" json:"author_username"`
	ReplyCount     int    `db:"reply_count" json:"reply_count"`
	ReactionCount  int    `db:"reaction_count" json:"reaction_count"`
}

// Reaction is an emoji placed on a post by a profile
type Reaction struct {
	PostID    string    `db:"post_id" json:"post_id"`
	ProfileID string    `db:"profile_id" json:"profile_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Bookmark is a post saved by a user
type Bookmark struct {
	UserID    string    `db:"user_id" json:"user_id"`
	PostID    string    `db:"post_id" json:"post_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
