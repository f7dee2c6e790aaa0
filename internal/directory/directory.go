// Package directory provides access to the external tutor directory, the
// source of truth for which tutors are active and which modules they cover.
package directory

import (
	"context"
)

// Tutor is an active tutor as reported by the directory.
type Tutor struct {
	ID        string   `json:"id"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	Modules   []string `json:"modules"`
}

// User is a platform user identity looked up for notification text.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// FullName returns the user's display name.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Directory is the external collaborator contract.
type Directory interface {
	// ActiveTutors lists active tutors. When moduleCode is empty or the
	// general sentinel, all active tutors are returned; otherwise only
	// tutors covering that module.
	ActiveTutors(ctx context.Context, moduleCode string) ([]Tutor, error)

	// GetUser looks up a user identity by id.
	GetUser(ctx context.Context, id string) (*User, error)
}
