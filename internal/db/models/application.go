// Package models - application.go defines membership applications submitted by
// users and reviewed by community owners and moderators.
package models

import "time"

// ApplicationStatus is the review state of an application
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Valid reports whether s is a known status
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationPending, ApplicationApproved, ApplicationRejected:
		return true
	}
	return false
}

// Application is a request by a user to join a community
type Application struct {
	ID              string            `db:"id" json:"id"`
	CommunityID     string            `db:"community_id" json:"community_id"`
	UserID          string            `db:"user_id" json:"user_id"`
	ProfileName     string            `db:"profile_name" json:"profile_name"`
	ProfileUsername string            `db:"profile_username" json:"profile_username"`
	Message         string            `db:"message" json:"message"`
	Status          ApplicationStatus `db:"status" json:"status"`
	RejectionReason *string           `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedBy      *string           `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	// ProfileID is the profile created by the first approval; it survives a revoke
	// so that re-approval reuses the same profile.
	ProfileID     *string   `db:"profile_id" json:"profile_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
	AttachmentIDs []string  `db:"-" json:"attachment_ids"`
}

// IsReviewed reports whether a decision has been recorded
func (a *Application) IsReviewed() bool {
	return a.Status == ApplicationApproved || a.Status == ApplicationRejected
}

// ApplicationWithUser adds applicant details for reviewers
type ApplicationWithUser struct {
	Application
	UserName  string `db:"user_name" json:"user_name"`
	UserEmail string `db:"user_email" json:"user_email"`
}
