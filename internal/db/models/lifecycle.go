// Package models - lifecycle.go defines the activation state machine shared by
// memberships and profiles. State is derived from timestamps and only changed
// through the transition methods, which reject invalid moves.
package models

import (
	"errors"
	"time"
)

// LifecycleState is the derived activation state of a membership or profile
type LifecycleState string

const (
	StatePending     LifecycleState = "pending"
	StateActive      LifecycleState = "active"
	StateDeactivated LifecycleState = "deactivated"
	StateDeleted     LifecycleState = "deleted"
)

// ErrInvalidTransition is returned when a lifecycle transition is not allowed
// from the current state.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// StateOf derives the lifecycle state from its timestamps. Deletion wins over
// deactivation, which wins over activation.
func StateOf(activatedAt, deactivatedAt, deletedAt *time.Time) LifecycleState {
	switch {
	case deletedAt != nil:
		return StateDeleted
	case deactivatedAt != nil:
		return StateDeactivated
	case activatedAt != nil:
		return StateActive
	default:
		return StatePending
	}
}

// Lifecycle is embedded by entities that carry activation timestamps.
type Lifecycle struct {
	ActivatedAt   *time.Time `db:"activated_at" json:"activated_at,omitempty"`
	DeactivatedAt *time.Time `db:"deactivated_at" json:"deactivated_at,omitempty"`
}

// activate moves pending or deactivated records to active.
func (l *Lifecycle) activate(state LifecycleState, now time.Time) error {
	if state != StatePending && state != StateDeactivated {
		return ErrInvalidTransition
	}
	l.ActivatedAt = &now
	l.DeactivatedAt = nil
	return nil
}

func (l *Lifecycle) deactivate(state LifecycleState, now time.Time) error {
	if state != StateActive {
		return ErrInvalidTransition
	}
	l.DeactivatedAt = &now
	return nil
}
