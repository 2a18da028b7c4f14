// Package models - audit_log.go defines the AuditLog model recording console write
// operations: actor, community, action, affected resource, and client IP.
package models

import "time"

// AuditLog represents an audit log entry for a console mutation
type AuditLog struct {
	ID           string                 `json:"id"`
	UserID       *string                `json:"user_id,omitempty"`
	CommunityID  *string                `json:"community_id,omitempty"`
	Action       string                 `json:"action"` // "POST /console/communities/:communityId/members/:membershipId/role"
	ResourceType *string                `json:"resource_type,omitempty"`
	ResourceID   *string                `json:"resource_id,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"` // JSONB: status code, auth method
	IPAddress    *string                `json:"ip_address,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}
