// Package bridge defines the messaging and notification collaborators the
// escalation coordinator triggers. Delivery mechanics live outside this
// service; implementations here only hand requests off.
package bridge

import (
	"context"
	"time"
)

// ThreadMessage is a private message between two platform users.
type ThreadMessage struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// Messaging opens or continues a private message thread between two users.
type Messaging interface {
	// SendMessage delivers a message and returns the identifier of the
	// thread it landed in, usable as an escalation's messageThreadId.
	SendMessage(ctx context.Context, msg ThreadMessage) (threadID string, err error)
}

// Notification is a delivery request for the notification collaborator.
type Notification struct {
	UserID          string    `json:"user_id"`
	Type            string    `json:"type"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Link            string    `json:"link,omitempty"`
	RelatedEntityID string    `json:"related_entity_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Notifier hands notification delivery requests to the platform's
// notification service.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
