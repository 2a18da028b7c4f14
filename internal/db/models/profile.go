// Package models - profile.go defines community-scoped profiles and the ownership
// rows that grant users the right to manage or act as a profile.
package models

import "time"

// OwnershipRole is the relation between a user and a profile
type OwnershipRole string

const (
	// OwnershipOwner may manage, share, and act as the profile
	OwnershipOwner OwnershipRole = "owner"
	// OwnershipAdmin may act as the profile
	OwnershipAdmin OwnershipRole = "admin"
)

// Profile is a persona inside one community
type Profile struct {
	ID            string  `db:"id" json:"id"`
	CommunityID   string  `db:"community_id" json:"community_id"`
	Name          string  `db:"name" json:"name"`
	Username      string  `db:"username" json:"username"`
	Bio           string  `db:"bio" json:"bio"`
	AvatarImageID *string `db:"avatar_image_id" json:"avatar_image_id,omitempty"`
	IsPrimary     bool    `db:"is_primary" json:"is_primary"`
	Lifecycle
	MutedAt   *time.Time `db:"muted_at" json:"muted_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// State returns the derived lifecycle state
func (p *Profile) State() LifecycleState {
	return StateOf(p.ActivatedAt, p.DeactivatedAt, p.DeletedAt)
}

// IsActive reports whether the profile can currently be used
func (p *Profile) IsActive() bool {
	return p.State() == StateActive
}

// IsMuted reports whether a moderator has muted the profile
func (p *Profile) IsMuted() bool {
	return p.MutedAt != nil
}

// Activate reactivates a pending or deactivated profile
func (p *Profile) Activate(now time.Time) error {
	if err := p.activate(p.State(), now); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// Deactivate disables an active profile without deleting it
func (p *Profile) Deactivate(now time.Time) error {
	if err := p.deactivate(p.State(), now); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// Delete soft-deletes the profile, freeing its username
func (p *Profile) Delete(now time.Time) error {
	if p.State() == StateDeleted {
		return ErrInvalidTransition
	}
	p.DeletedAt = &now
	p.IsPrimary = false
	p.UpdatedAt = now
	return nil
}

// ProfileOwnership grants a user a role on a profile
type ProfileOwnership struct {
	UserID    string        `db:"user_id" json:"user_id"`
	ProfileID string        `db:"profile_id" json:"profile_id"`
	Role      OwnershipRole `db:"role" json:"role"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// OwnedProfile is a profile together with the caller's ownership role
type OwnedProfile struct {
	Profile
	OwnershipRole OwnershipRole `db:"ownership_role" json:"ownership_role"`
}

// ProfileShare lists a user that a profile has been shared with
type ProfileShare struct {
	UserID    string        `db:"user_id" json:"user_id"`
	UserName  string        `db:"user_name" json:"user_name"`
	UserEmail string        `db:"user_email" json:"user_email"`
	Role      OwnershipRole `db:"role" json:"role"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}
