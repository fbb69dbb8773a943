package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCanceled  Status = "canceled"
	StatusCompleted Status = "completed"
)

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCanceled, StatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCanceled || s == StatusCompleted
}

// ParseStatus parses a status name.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Role is the privilege level of an actor.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the principal performing an operation.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// SystemActor is used by scheduled jobs.
func SystemActor() Actor {
	return Actor{Role: RoleAdmin}
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanManage reports whether the actor owns the subscription or is an admin.
func (a Actor) CanManage(s *Subscription) bool {
	if a.IsAdmin() {
		return true
	}
	return a.UserID != uuid.Nil && a.UserID == s.UserID()
}
