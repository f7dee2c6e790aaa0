// Package service provides business logic for the escalation platform.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuslearn/escalation-platform/internal/model"
	"github.com/campuslearn/escalation-platform/internal/store"
	"github.com/campuslearn/escalation-platform/pkg/logger"
	"github.com/campuslearn/escalation-platform/pkg/metrics"
)

const defaultConversationTitle = "New Chat"

// ConversationService owns conversation and message records and the
// context-window policy. Store errors are logged and surfaced as absent
// results; callers treat absence as "try again", not a terminal failure.
type ConversationService struct {
	store  store.ConversationStore
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(st store.ConversationStore, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:  st,
		logger: log,
	}
}

// GetActiveConversation returns the most recently created active
// conversation for a user, or nil when there is none.
func (s *ConversationService) GetActiveConversation(ctx context.Context, userID string) *model.Conversation {
	conv, err := s.store.ActiveConversation(ctx, userID)
	if err != nil {
		if err != store.ErrNotFound {
			s.logger.Error("failed to fetch active conversation",
				zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	return conv
}

// CreateConversation starts a new conversation for a user.
func (s *ConversationService) CreateConversation(ctx context.Context, userID, title string) *model.Conversation {
	if title == "" {
		title = defaultConversationTitle
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		OwnerID:   userID,
		Title:     title,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateConversation(ctx, conv); err != nil {
		s.logger.Error("failed to create conversation",
			zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID), zap.String("user_id", userID))
	return conv
}

// GetConversation returns a conversation by id, or nil.
func (s *ConversationService) GetConversation(ctx context.Context, id string) *model.Conversation {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		if err != store.ErrNotFound {
			s.logger.Error("failed to fetch conversation",
				zap.String("conversation_id", id), zap.Error(err))
		}
		return nil
	}
	return conv
}

// GetConversationHistory returns a user's recent conversations, most
// recently updated first.
func (s *ConversationService) GetConversationHistory(ctx context.Context, userID string) []model.Conversation {
	convs, err := s.store.ConversationHistory(ctx, userID, 20)
	if err != nil {
		s.logger.Error("failed to fetch conversation history",
			zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return convs
}

// AddMessage appends a message, then recomputes the conversation's message
// count from the true stored count and updates the context-limit flag.
func (s *ConversationService) AddMessage(ctx context.Context, conversationID string, msg *model.Message) *model.Message {
	msg.ID = uuid.Must(uuid.NewV7()).String()
	msg.ConversationID = conversationID
	msg.CreatedAt = time.Now()

	if err := s.store.AddMessage(ctx, msg); err != nil {
		s.logger.Error("failed to add message",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return nil
	}

	s.updateMessageCount(ctx, conversationID)

	role := "user"
	if msg.IsFromAssistant {
		role = "assistant"
	}
	metrics.MessagesTotal.WithLabelValues(role).Inc()

	return msg
}

// updateMessageCount recounts stored messages rather than incrementing, so
// the count stays true under concurrent appends and partial clears.
func (s *ConversationService) updateMessageCount(ctx context.Context, conversationID string) {
	count, err := s.store.CountMessages(ctx, conversationID)
	if err != nil {
		s.logger.Error("failed to count messages",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return
	}

	limitReached := s.HasReachedLimit(count)
	if err := s.store.SetConversationCount(ctx, conversationID, count, limitReached); err != nil {
		s.logger.Error("failed to update message count",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

// GetMessages returns all messages in a conversation in creation order.
func (s *ConversationService) GetMessages(ctx context.Context, conversationID string) []model.Message {
	msgs, err := s.store.Messages(ctx, conversationID)
	if err != nil {
		s.logger.Error("failed to fetch messages",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return nil
	}
	return msgs
}

// ClearConversation deletes all messages and resets the counters, leaving
// the conversation row itself in place.
func (s *ConversationService) ClearConversation(ctx context.Context, conversationID string) bool {
	if err := s.store.ClearConversation(ctx, conversationID); err != nil {
		s.logger.Error("failed to clear conversation",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return false
	}
	return true
}

// DeactivateConversation flags a conversation inactive without deleting it.
func (s *ConversationService) DeactivateConversation(ctx context.Context, conversationID string) bool {
	if err := s.store.DeactivateConversation(ctx, conversationID); err != nil {
		s.logger.Error("failed to deactivate conversation",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return false
	}
	return true
}

// ShouldShowWarning reports whether the count is inside the warning band
// below the context limit.
func (s *ConversationService) ShouldShowWarning(messageCount int) bool {
	return messageCount >= model.WarningThreshold && messageCount < model.MaxMessages
}

// HasReachedLimit reports whether the count has hit the context limit.
func (s *ConversationService) HasReachedLimit(messageCount int) bool {
	return messageCount >= model.MaxMessages
}

// RemainingMessages returns how many messages are left before the limit.
func (s *ConversationService) RemainingMessages(messageCount int) int {
	if remaining := model.MaxMessages - messageCount; remaining > 0 {
		return remaining
	}
	return 0
}
