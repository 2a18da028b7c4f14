// Package auth - scopes.go defines the session scopes. A token is issued for
// exactly one surface: app tokens are bound to a single community, console
// tokens span every community the user belongs to.
package auth

import "fmt"

// Scope identifies the API surface a session token may be used on
type Scope string

const (
	// ScopeApp tokens authenticate /app requests for one community
	ScopeApp Scope = "app"
	// ScopeConsole tokens authenticate /console requests
	ScopeConsole Scope = "console"
)

// ParseScope validates a scope string
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeApp, ScopeConsole:
		return Scope(s), nil
	}
	return "", fmt.Errorf("invalid session scope %q", s)
}
