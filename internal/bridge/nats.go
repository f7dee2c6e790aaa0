package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	natsclient "github.com/campuslearn/escalation-platform/internal/nats"
)

// NATSMessaging publishes thread messages to the campus JetStream stream.
type NATSMessaging struct {
	streams *natsclient.StreamManager
}

// NewNATSMessaging creates a messaging bridge over JetStream.
func NewNATSMessaging(streams *natsclient.StreamManager) *NATSMessaging {
	return &NATSMessaging{streams: streams}
}

// SendMessage publishes the message on the pair's thread subject. The thread
// id is derived from the participant pair so repeated sends between the same
// two users continue one thread.
func (m *NATSMessaging) SendMessage(ctx context.Context, msg ThreadMessage) (string, error) {
	threadID := ThreadID(msg.SenderID, msg.ReceiverID)

	payload := struct {
		ThreadMessage
		ThreadID string    `json:"thread_id"`
		SentAt   time.Time `json:"sent_at"`
	}{ThreadMessage: msg, ThreadID: threadID, SentAt: time.Now()}

	if _, err := m.streams.Publish(ctx, natsclient.ThreadSubject(threadID), payload); err != nil {
		return "", fmt.Errorf("publishing thread message: %w", err)
	}
	return threadID, nil
}

// ThreadID returns the deterministic thread identifier for a user pair.
func ThreadID(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return "dm-" + a + "-" + b
}

// NATSNotifier publishes notification delivery requests to JetStream.
type NATSNotifier struct {
	streams *natsclient.StreamManager
}

// NewNATSNotifier creates a notifier over JetStream.
func NewNATSNotifier(streams *natsclient.StreamManager) *NATSNotifier {
	return &NATSNotifier{streams: streams}
}

// Notify publishes the request on the recipient's notification subject.
func (n *NATSNotifier) Notify(ctx context.Context, notif Notification) error {
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}

	subject := natsclient.NotificationSubject(notif.UserID, notif.Type)
	if _, err := n.streams.Publish(ctx, subject, notif); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}
