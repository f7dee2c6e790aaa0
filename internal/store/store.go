// Package store provides persistence for conversations, messages,
// escalations and tutor notifications.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/campuslearn/escalation-platform/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition is returned when an escalation status change is
	// not permitted by the state machine.
	ErrInvalidTransition = errors.New("invalid escalation status transition")

	// ErrTutorAtCapacity is returned when an assignment would push a tutor
	// past their concurrent escalation capacity.
	ErrTutorAtCapacity = errors.New("tutor at capacity")
)

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	// ActiveConversation returns the most recently created active
	// conversation for a user, or ErrNotFound.
	ActiveConversation(ctx context.Context, userID string) (*model.Conversation, error)

	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)

	// ConversationHistory returns a user's conversations ordered by most
	// recently updated, up to limit.
	ConversationHistory(ctx context.Context, userID string, limit int) ([]model.Conversation, error)

	AddMessage(ctx context.Context, msg *model.Message) error
	Messages(ctx context.Context, conversationID string) ([]model.Message, error)
	CountMessages(ctx context.Context, conversationID string) (int, error)

	// SetConversationCount writes the recomputed message count and derived
	// context-limit flag back to the conversation row.
	SetConversationCount(ctx context.Context, id string, count int, limitReached bool) error

	// ClearConversation deletes all messages and resets the counters while
	// leaving the conversation row in place.
	ClearConversation(ctx context.Context, id string) error

	DeactivateConversation(ctx context.Context, id string) error
}

// EscalationStore persists escalation tickets and notification records.
type EscalationStore interface {
	CreateEscalation(ctx context.Context, esc *model.Escalation) error
	GetEscalation(ctx context.Context, id string) (*model.Escalation, error)

	// PendingEscalations returns pending tickets ordered by priority
	// descending, then creation time ascending.
	PendingEscalations(ctx context.Context) ([]model.Escalation, error)

	// EscalationsForTutor returns a tutor's assigned and resolved tickets,
	// newest first.
	EscalationsForTutor(ctx context.Context, tutorID string) ([]model.Escalation, error)

	// AssignedCountsByTutor returns the number of currently assigned
	// escalations per tutor id.
	AssignedCountsByTutor(ctx context.Context) (map[string]int, error)

	// AssignEscalation atomically assigns a tutor to a pending escalation.
	// The ticket must still be pending and the tutor must be below capacity;
	// both conditions are checked inside the same update so concurrent
	// assignments cannot over-commit a tutor. Returns ErrNotFound,
	// ErrInvalidTransition or ErrTutorAtCapacity on failure.
	AssignEscalation(ctx context.Context, id, tutorID string, capacity int, now time.Time) error

	// SetMessageThread records the message thread opened for an assignment.
	SetMessageThread(ctx context.Context, id, threadID string) error

	// TransitionEscalation moves a ticket from one status to another,
	// verifying the current status matches. ResolvedAt is stamped when the
	// target status is resolved.
	TransitionEscalation(ctx context.Context, id string, from, to model.EscalationStatus, now time.Time) error

	EscalationStats(ctx context.Context) (*model.EscalationStats, error)

	CreateTutorNotification(ctx context.Context, n *model.TutorNotification) error
	NotificationsForEscalation(ctx context.Context, escalationID string) ([]model.TutorNotification, error)
}

// Store is the full persistence surface.
type Store interface {
	ConversationStore
	EscalationStore
	Close() error
}
