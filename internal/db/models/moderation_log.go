package models

import "time"

// ModerationAction names a moderation log entry
type ModerationAction string

const (
	ModerationMute   ModerationAction = "mute_profile"
	ModerationUnmute ModerationAction = "unmute_profile"
)

// ModerationLog is an append-only record of a moderation action
type ModerationLog struct {
	ID                 string           `db:"id" json:"id"`
	CommunityID        string           `db:"community_id" json:"community_id"`
	ModeratorProfileID string           `db:"moderator_profile_id" json:"moderator_profile_id"`
	TargetProfileID    string           `db:"target_profile_id" json:"target_profile_id"`
	Action             ModerationAction `db:"action" json:"action"`
	Reason             string           `db:"reason" json:"reason"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
}
