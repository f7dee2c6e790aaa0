package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campuslearn/escalation-platform/internal/model"
)

// MemoryStore is an in-memory Store implementation for tests and local
// development.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	messages      map[string][]model.Message
	escalations   map[string]*model.Escalation
	notifications map[string][]model.TutorNotification
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]model.Message),
		escalations:   make(map[string]*model.Escalation),
		notifications: make(map[string][]model.TutorNotification),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Ping is a no-op for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// ActiveConversation returns the newest active conversation for a user.
func (s *MemoryStore) ActiveConversation(ctx context.Context, userID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *model.Conversation
	for _, c := range s.conversations {
		if c.OwnerID != userID || !c.IsActive {
			continue
		}
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	clone := *newest
	return &clone, nil
}

// CreateConversation stores a new conversation.
func (s *MemoryStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *conv
	s.conversations[conv.ID] = &clone
	return nil
}

// GetConversation returns a conversation by id.
func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *c
	return &clone, nil
}

// ConversationHistory returns a user's conversations, most recently updated first.
func (s *MemoryStore) ConversationHistory(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convs []model.Conversation
	for _, c := range s.conversations {
		if c.OwnerID == userID {
			convs = append(convs, *c)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

// AddMessage appends a message to a conversation.
func (s *MemoryStore) AddMessage(ctx context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return ErrNotFound
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

// Messages returns all messages in a conversation in creation order.
func (s *MemoryStore) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]model.Message, len(s.messages[conversationID]))
	copy(msgs, s.messages[conversationID])
	return msgs, nil
}

// CountMessages returns the stored message count for a conversation.
func (s *MemoryStore) CountMessages(ctx context.Context, conversationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages[conversationID]), nil
}

// SetConversationCount writes back the recomputed count and limit flag.
func (s *MemoryStore) SetConversationCount(ctx context.Context, id string, count int, limitReached bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.MessageCount = count
	c.ContextLimitReached = limitReached
	c.UpdatedAt = time.Now()
	return nil
}

// ClearConversation deletes all messages and resets the counters.
func (s *MemoryStore) ClearConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.messages, id)
	c.MessageCount = 0
	c.ContextLimitReached = false
	c.UpdatedAt = time.Now()
	return nil
}

// DeactivateConversation flags a conversation inactive.
func (s *MemoryStore) DeactivateConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.IsActive = false
	c.UpdatedAt = time.Now()
	return nil
}

// CreateEscalation stores a new escalation ticket.
func (s *MemoryStore) CreateEscalation(ctx context.Context, esc *model.Escalation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *esc
	s.escalations[esc.ID] = &clone
	return nil
}

// GetEscalation returns an escalation by id.
func (s *MemoryStore) GetEscalation(ctx context.Context, id string) (*model.Escalation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.escalations[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *e
	return &clone, nil
}

// PendingEscalations returns pending tickets, highest priority first, oldest
// first within a priority.
func (s *MemoryStore) PendingEscalations(ctx context.Context) ([]model.Escalation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var escs []model.Escalation
	for _, e := range s.escalations {
		if e.Status == model.EscalationPending {
			escs = append(escs, *e)
		}
	}
	sort.SliceStable(escs, func(i, j int) bool {
		ri, rj := model.PriorityRank(escs[i].Priority), model.PriorityRank(escs[j].Priority)
		if ri != rj {
			return ri > rj
		}
		return escs[i].CreatedAt.Before(escs[j].CreatedAt)
	})
	return escs, nil
}

// EscalationsForTutor returns a tutor's assigned and resolved tickets.
func (s *MemoryStore) EscalationsForTutor(ctx context.Context, tutorID string) ([]model.Escalation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var escs []model.Escalation
	for _, e := range s.escalations {
		if e.TutorID == nil || *e.TutorID != tutorID {
			continue
		}
		if e.Status == model.EscalationAssigned || e.Status == model.EscalationResolved {
			escs = append(escs, *e)
		}
	}
	sort.Slice(escs, func(i, j int) bool {
		return escs[i].CreatedAt.After(escs[j].CreatedAt)
	})
	return escs, nil
}

// AssignedCountsByTutor returns currently assigned counts keyed by tutor id.
func (s *MemoryStore) AssignedCountsByTutor(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.assignedCountsLocked(), nil
}

func (s *MemoryStore) assignedCountsLocked() map[string]int {
	counts := make(map[string]int)
	for _, e := range s.escalations {
		if e.Status == model.EscalationAssigned && e.TutorID != nil {
			counts[*e.TutorID]++
		}
	}
	return counts
}

// AssignEscalation assigns a tutor to a pending escalation. The status and
// capacity checks happen under the same lock as the write.
func (s *MemoryStore) AssignEscalation(ctx context.Context, id, tutorID string, capacity int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.escalations[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != model.EscalationPending {
		return ErrInvalidTransition
	}
	if s.assignedCountsLocked()[tutorID] >= capacity {
		return ErrTutorAtCapacity
	}

	e.TutorID = &tutorID
	e.Status = model.EscalationAssigned
	e.AssignedAt = &now
	e.UpdatedAt = now
	return nil
}

// SetMessageThread records the message thread id opened for an assignment.
func (s *MemoryStore) SetMessageThread(ctx context.Context, id, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.escalations[id]
	if !ok {
		return ErrNotFound
	}
	e.MessageThreadID = &threadID
	e.UpdatedAt = time.Now()
	return nil
}

// TransitionEscalation moves a ticket between statuses, guarding the current
// status under the lock.
func (s *MemoryStore) TransitionEscalation(ctx context.Context, id string, from, to model.EscalationStatus, now time.Time) error {
	if !model.CanTransition(from, to) {
		return ErrInvalidTransition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.escalations[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != from {
		return ErrInvalidTransition
	}

	e.Status = to
	if to == model.EscalationResolved {
		e.ResolvedAt = &now
	}
	e.UpdatedAt = now
	return nil
}

// EscalationStats aggregates ticket counts by status.
func (s *MemoryStore) EscalationStats(ctx context.Context) (*model.EscalationStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.EscalationStats{}
	for _, e := range s.escalations {
		stats.Total++
		switch e.Status {
		case model.EscalationPending:
			stats.Pending++
		case model.EscalationAssigned:
			stats.Assigned++
		case model.EscalationResolved:
			stats.Resolved++
		case model.EscalationCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

// CreateTutorNotification stores a notification delivery record.
func (s *MemoryStore) CreateTutorNotification(ctx context.Context, n *model.TutorNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications[n.EscalationID] = append(s.notifications[n.EscalationID], *n)
	return nil
}

// NotificationsForEscalation returns the delivery records for a ticket.
func (s *MemoryStore) NotificationsForEscalation(ctx context.Context, escalationID string) ([]model.TutorNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := make([]model.TutorNotification, len(s.notifications[escalationID]))
	copy(ns, s.notifications[escalationID])
	return ns, nil
}
