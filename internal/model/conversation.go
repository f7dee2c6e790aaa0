// Package model defines data structures for the escalation platform.
package model

import (
	"time"
)

const (
	// MaxMessages is the context limit for a single conversation.
	MaxMessages = 50

	// WarningThreshold is the message count at which the limit warning appears.
	WarningThreshold = 45

	// HistoryWindow is the number of trailing messages sent to the assistant.
	HistoryWindow = 10
)

// Conversation represents a bounded exchange between a user and the assistant.
type Conversation struct {
	ID                  string    `json:"id"`
	OwnerID             string    `json:"owner_id"`
	Title               string    `json:"title"`
	MessageCount        int       `json:"message_count"`
	IsActive            bool      `json:"is_active"`
	ContextLimitReached bool      `json:"context_limit_reached"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Message represents a single conversation message. Messages are immutable
// once created; only count-derived fields on the parent conversation change.
type Message struct {
	ID               string    `json:"id"`
	ConversationID   string    `json:"conversation_id"`
	Content          string    `json:"content"`
	IsFromAssistant  bool      `json:"is_from_assistant"`
	EscalatedToTutor bool      `json:"escalated_to_tutor"`
	TutorModule      *string   `json:"tutor_module,omitempty"`
	ConfidenceScore  *float64  `json:"confidence_score,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// UserProfile is the caller identity the gateway builds prompt context from.
type UserProfile struct {
	ID        string   `json:"id"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	Role      string   `json:"role"`
	Modules   []string `json:"modules"`
}

// AssistantResponse is the interpreted result of one assistant exchange.
type AssistantResponse struct {
	Text                        string   `json:"text"`
	Suggestions                 []string `json:"suggestions,omitempty"`
	Escalated                   bool     `json:"escalated"`
	NeedsEscalationConfirmation bool     `json:"needs_escalation_confirmation"`
	TutorModule                 *string  `json:"tutor_module,omitempty"`
	Confidence                  float64  `json:"confidence"`
}

// CreateConversationRequest is the request to start a new conversation.
type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// ChatRequest is the request to send a message to the assistant.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
}

// ChatResponse carries the assistant reply plus context-window bookkeeping.
type ChatResponse struct {
	ConversationID    string            `json:"conversation_id"`
	UserMessage       *Message          `json:"user_message,omitempty"`
	AssistantMessage  *Message          `json:"assistant_message,omitempty"`
	Response          AssistantResponse `json:"response"`
	MessageCount      int               `json:"message_count"`
	ShowLimitWarning  bool              `json:"show_limit_warning"`
	LimitReached      bool              `json:"limit_reached"`
	RemainingMessages int               `json:"remaining_messages"`
}

// ConfirmEscalationRequest is the caller acting on a suggested hand-off.
type ConfirmEscalationRequest struct {
	ConversationID   string   `json:"conversation_id"`
	OriginalQuestion string   `json:"original_question"`
	ModuleCode       *string  `json:"module_code,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
}

// ListMessagesResponse is the response for listing conversation messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
	Count    int       `json:"count"`
}
