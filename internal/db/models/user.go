// Package models - user.go defines the User model for platform accounts. A user
// exists once across all communities and acts inside each through memberships
// and profiles.
package models

import "time"

// User represents a platform account
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Name         string     `db:"name" json:"name"`
	PasswordHash *string    `db:"password_hash" json:"-"`
	OIDCSub      *string    `db:"oidc_sub" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

// HasPassword reports whether the account can sign in with a password
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
