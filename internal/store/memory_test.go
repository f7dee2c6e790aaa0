package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslearn/escalation-platform/internal/model"
)

func newPendingEscalation(id string, priority model.EscalationPriority, createdAt time.Time) *model.Escalation {
	return &model.Escalation{
		ID:               id,
		ConversationID:   "conv-1",
		StudentID:        "student-1",
		OriginalQuestion: "help",
		Status:           model.EscalationPending,
		Priority:         priority,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func TestMemoryStore_AssignEscalation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	require.NoError(t, s.CreateEscalation(ctx, newPendingEscalation("esc-1", model.PriorityHigh, now)))

	require.NoError(t, s.AssignEscalation(ctx, "esc-1", "tutor-1", model.TutorCapacity, now))

	esc, err := s.GetEscalation(ctx, "esc-1")
	require.NoError(t, err)
	assert.Equal(t, model.EscalationAssigned, esc.Status)
	require.NotNil(t, esc.TutorID)
	assert.Equal(t, "tutor-1", *esc.TutorID)
	require.NotNil(t, esc.AssignedAt)
}

func TestMemoryStore_AssignEscalation_NotPending(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	require.NoError(t, s.CreateEscalation(ctx, newPendingEscalation("esc-1", model.PriorityHigh, now)))
	require.NoError(t, s.AssignEscalation(ctx, "esc-1", "tutor-1", model.TutorCapacity, now))

	// Reassignment of an already-assigned ticket is rejected.
	err := s.AssignEscalation(ctx, "esc-1", "tutor-2", model.TutorCapacity, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	esc, err := s.GetEscalation(ctx, "esc-1")
	require.NoError(t, err)
	assert.Equal(t, "tutor-1", *esc.TutorID)
}

func TestMemoryStore_AssignEscalation_CapacityEnforced(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	for i := 0; i < model.TutorCapacity+1; i++ {
		id := string(rune('a' + i))
		require.NoError(t, s.CreateEscalation(ctx, newPendingEscalation(id, model.PriorityMedium, now)))
	}

	for i := 0; i < model.TutorCapacity; i++ {
		id := string(rune('a' + i))
		require.NoError(t, s.AssignEscalation(ctx, id, "tutor-1", model.TutorCapacity, now))
	}

	err := s.AssignEscalation(ctx, string(rune('a'+model.TutorCapacity)), "tutor-1", model.TutorCapacity, now)
	assert.ErrorIs(t, err, ErrTutorAtCapacity)

	counts, err := s.AssignedCountsByTutor(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.TutorCapacity, counts["tutor-1"])
}

func TestMemoryStore_AssignEscalation_NotFound(t *testing.T) {
	s := NewMemoryStore()
	err := s.AssignEscalation(context.Background(), "missing", "tutor-1", model.TutorCapacity, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_TransitionEscalation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	require.NoError(t, s.CreateEscalation(ctx, newPendingEscalation("esc-1", model.PriorityLow, now)))
	require.NoError(t, s.AssignEscalation(ctx, "esc-1", "tutor-1", model.TutorCapacity, now))

	require.NoError(t, s.TransitionEscalation(ctx, "esc-1", model.EscalationAssigned, model.EscalationResolved, now))

	esc, err := s.GetEscalation(ctx, "esc-1")
	require.NoError(t, err)
	assert.Equal(t, model.EscalationResolved, esc.Status)
	require.NotNil(t, esc.ResolvedAt)
}

func TestMemoryStore_TransitionEscalation_RejectsCancelAfterAssign(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	require.NoError(t, s.CreateEscalation(ctx, newPendingEscalation("esc-1", model.PriorityLow, now)))
	require.NoError(t, s.AssignEscalation(ctx, "esc-1", "tutor-1", model.TutorCapacity, now))

	err := s.TransitionEscalation(ctx, "esc-1", model.EscalationAssigned, model.EscalationCancelled, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMemoryStore_TransitionEscalation_StaleFromStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	require.NoError(t, s.CreateEscalation(ctx, newPendingEscalation("esc-1", model.PriorityLow, now)))
	require.NoError(t, s.AssignEscalation(ctx, "esc-1", "tutor-1", model.TutorCapacity, now))

	// Legal transition on paper, but the ticket is no longer pending.
	err := s.TransitionEscalation(ctx, "esc-1", model.EscalationPending, model.EscalationCancelled, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMemoryStore_PendingEscalations_Ordering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now()

	require.NoError(t, s.CreateEscalation(ctx, newPendingEscalation("low-old", model.PriorityLow, base)))
	require.NoError(t, s.CreateEscalation(ctx, newPendingEscalation("high-new", model.PriorityHigh, base.Add(3*time.Minute))))
	require.NoError(t, s.CreateEscalation(ctx, newPendingEscalation("high-old", model.PriorityHigh, base.Add(time.Minute))))
	require.NoError(t, s.CreateEscalation(ctx, newPendingEscalation("medium", model.PriorityMedium, base.Add(2*time.Minute))))

	pending, err := s.PendingEscalations(ctx)
	require.NoError(t, err)

	ids := make([]string, len(pending))
	for i, e := range pending {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"high-old", "high-new", "medium", "low-old"}, ids)
}

func TestMemoryStore_ConversationMessages(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	conv := &model.Conversation{ID: "conv-1", OwnerID: "user-1", IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateConversation(ctx, conv))

	require.NoError(t, s.AddMessage(ctx, &model.Message{ID: "m1", ConversationID: "conv-1", Content: "hi"}))
	require.NoError(t, s.AddMessage(ctx, &model.Message{ID: "m2", ConversationID: "conv-1", Content: "hello", IsFromAssistant: true}))

	count, err := s.CountMessages(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.ClearConversation(ctx, "conv-1"))

	count, err = s.CountMessages(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	got, err := s.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, got.ContextLimitReached)
	assert.Zero(t, got.MessageCount)
}

func TestMemoryStore_AddMessage_MissingConversation(t *testing.T) {
	s := NewMemoryStore()
	err := s.AddMessage(context.Background(), &model.Message{ID: "m1", ConversationID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ActiveConversation_NewestWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now()

	require.NoError(t, s.CreateConversation(ctx, &model.Conversation{
		ID: "old", OwnerID: "user-1", IsActive: true, CreatedAt: base, UpdatedAt: base,
	}))
	require.NoError(t, s.CreateConversation(ctx, &model.Conversation{
		ID: "new", OwnerID: "user-1", IsActive: true, CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute),
	}))
	require.NoError(t, s.CreateConversation(ctx, &model.Conversation{
		ID: "inactive", OwnerID: "user-1", IsActive: false, CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base.Add(2 * time.Minute),
	}))

	conv, err := s.ActiveConversation(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "new", conv.ID)
}
