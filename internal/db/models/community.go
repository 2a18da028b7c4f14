// Package models - community.go defines the Community (tenant) model and its
// recruiting window.
package models

import "time"

// Community represents a tenant on the platform
type Community struct {
	ID                      string     `db:"id" json:"id"`
	Slug                    string     `db:"slug" json:"slug"`
	Name                    string     `db:"name" json:"name"`
	Description             string     `db:"description" json:"description"`
	CustomDomain            *string    `db:"custom_domain" json:"custom_domain,omitempty"`
	DomainVerificationToken *string    `db:"domain_verification_token" json:"-"`
	DomainVerifiedAt        *time.Time `db:"domain_verified_at" json:"domain_verified_at,omitempty"`
	RecruitingStartsAt      *time.Time `db:"recruiting_starts_at" json:"recruiting_starts_at,omitempty"`
	RecruitingEndsAt        *time.Time `db:"recruiting_ends_at" json:"recruiting_ends_at,omitempty"`
	StartsAt                *time.Time `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt                  *time.Time `db:"ends_at" json:"ends_at,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt               *time.Time `db:"deleted_at" json:"-"`
}

// IsRecruiting reports whether applications are accepted at t. Open bounds are
// unrestricted.
func (c *Community) IsRecruiting(t time.Time) bool {
	if c.RecruitingStartsAt != nil && t.Before(*c.RecruitingStartsAt) {
		return false
	}
	if c.RecruitingEndsAt != nil && !t.Before(*c.RecruitingEndsAt) {
		return false
	}
	return true
}

// HasVerifiedDomain reports whether the custom domain may be used for routing
func (c *Community) HasVerifiedDomain() bool {
	return c.CustomDomain != nil && c.DomainVerifiedAt != nil
}
