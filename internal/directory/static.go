package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/campuslearn/escalation-platform/internal/model"
)

// StaticDirectory is an in-memory Directory for tests and local development.
type StaticDirectory struct {
	mu     sync.RWMutex
	tutors []Tutor
	users  map[string]User
}

// NewStaticDirectory creates a directory seeded with the given tutors. Each
// tutor is also registered as a user.
func NewStaticDirectory(tutors ...Tutor) *StaticDirectory {
	d := &StaticDirectory{users: make(map[string]User)}
	for _, t := range tutors {
		d.AddTutor(t)
	}
	return d
}

// AddTutor registers a tutor, preserving insertion order.
func (d *StaticDirectory) AddTutor(t Tutor) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tutors = append(d.tutors, t)
	d.users[t.ID] = User{ID: t.ID, FirstName: t.FirstName, LastName: t.LastName, Email: t.Email}
}

// AddUser registers a non-tutor user.
func (d *StaticDirectory) AddUser(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.users[u.ID] = u
}

// ActiveTutors lists tutors in insertion order, optionally module-filtered.
func (d *StaticDirectory) ActiveTutors(ctx context.Context, moduleCode string) ([]Tutor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if moduleCode == "" || moduleCode == model.GeneralModule {
		out := make([]Tutor, len(d.tutors))
		copy(out, d.tutors)
		return out, nil
	}

	var out []Tutor
	for _, t := range d.tutors {
		for _, m := range t.Modules {
			if m == moduleCode {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

// GetUser looks up a user by id.
func (d *StaticDirectory) GetUser(ctx context.Context, id string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	return &u, nil
}
