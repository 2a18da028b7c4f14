// Package models - membership.go defines the Membership model linking a user to a
// community with exactly one role, and the closed Role enum used by every
// authorization check.
package models

import (
	"fmt"
	"time"
)

// Role is a member's role within a community
type Role string

const (
	RoleOwner     Role = "owner"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// AllRoles lists the valid roles, highest first
var AllRoles = []Role{RoleOwner, RoleModerator, RoleMember}

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleModerator, RoleMember:
		return true
	}
	return false
}

// In reports whether r is among allowed
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

// Rank orders roles: owner > moderator > member > unknown
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleModerator:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// Membership represents a user's membership in a community
type Membership struct {
	ID          string `db:"id" json:"id"`
	UserID      string `db:"user_id" json:"user_id"`
	CommunityID string `db:"community_id" json:"community_id"`
	Role        Role   `db:"role" json:"role"`
	Lifecycle
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewMembership returns an active membership with a fresh ID
func NewMembership(id, userID, communityID string, role Role, now time.Time) *Membership {
	m := &Membership{
		ID:          id,
		UserID:      userID,
		CommunityID: communityID,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.ActivatedAt = &now
	return m
}

// State returns the derived lifecycle state
func (m *Membership) State() LifecycleState {
	return StateOf(m.ActivatedAt, m.DeactivatedAt, nil)
}

// IsActive reports whether the membership currently grants access
func (m *Membership) IsActive() bool {
	return m.State() == StateActive
}

// Activate reactivates a pending or deactivated membership
func (m *Membership) Activate(now time.Time) error {
	if err := m.activate(m.State(), now); err != nil {
		return err
	}
	m.UpdatedAt = now
	return nil
}

// Deactivate ends an active membership
func (m *Membership) Deactivate(now time.Time) error {
	if err := m.deactivate(m.State(), now); err != nil {
		return err
	}
	m.UpdatedAt = now
	return nil
}

// MemberWithUser is a membership joined with account details and the member's
// primary profile, for console listings
type MemberWithUser struct {
	Membership
	UserName        string  `db:"user_name" json:"user_name"`
	UserEmail       string  `db:"user_email" json:"user_email"`
	PrimaryProfile  *string `db:"primary_profile_id" json:"primary_profile_id,omitempty"`
	PrimaryUsername *string `db:"primary_username" json:"primary_username,omitempty"`
}

// CommunityMembership pairs a community with the caller's membership in it
type CommunityMembership struct {
	Community
	Role         Role       `db:"membership_role" json:"role"`
	MembershipID string     `db:"membership_id" json:"membership_id"`
	JoinedAt     *time.Time `db:"membership_activated_at" json:"joined_at"`
}
