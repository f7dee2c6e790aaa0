package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/campuslearn/escalation-platform/pkg/metrics"
)

const (
	// StreamName is the name of the campus events stream.
	StreamName = "CAMPUS"

	// SubjectPrefix is the prefix for all campus subjects.
	SubjectPrefix = "campus"
)

// StreamManager handles JetStream stream operations for message threads and
// notification delivery requests.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the campus stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	// Create stream
	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024, // 10GB
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Message threads and notification delivery requests",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// ThreadSubject returns the subject carrying messages for a thread.
func ThreadSubject(threadID string) string {
	return fmt.Sprintf("%s.thread.%s.msg", SubjectPrefix, threadID)
}

// NotificationSubject returns the subject for a user's notifications.
func NotificationSubject(userID, notificationType string) string {
	return fmt.Sprintf("%s.notify.%s.%s", SubjectPrefix, userID, notificationType)
}

// UpdateMetrics refreshes the stream gauges from live stream state.
func (m *StreamManager) UpdateMetrics(ctx context.Context) error {
	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return fmt.Errorf("looking up stream: %w", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("fetching stream info: %w", err)
	}

	metrics.NATSStreamMessages.WithLabelValues(StreamName).Set(float64(info.State.Msgs))
	metrics.NATSStreamBytes.WithLabelValues(StreamName).Set(float64(info.State.Bytes))
	return nil
}

// Publish marshals a payload and publishes it to the given subject.
func (m *StreamManager) Publish(ctx context.Context, subject string, payload any) (uint64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	return ack.Sequence, nil
}
