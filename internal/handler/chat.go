// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/campuslearn/escalation-platform/internal/directory"
	"github.com/campuslearn/escalation-platform/internal/middleware"
	"github.com/campuslearn/escalation-platform/internal/model"
	"github.com/campuslearn/escalation-platform/internal/service"
	"github.com/campuslearn/escalation-platform/pkg/logger"
)

// ChatHandler handles the assistant chat endpoints.
type ChatHandler struct {
	conversations *service.ConversationService
	assistant     *service.AssistantGateway
	escalations   *service.EscalationService
	directory     directory.Directory
	logger        *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(
	conversations *service.ConversationService,
	gateway *service.AssistantGateway,
	escalations *service.EscalationService,
	dir directory.Directory,
	log *logger.Logger,
) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		assistant:     gateway,
		escalations:   escalations,
		directory:     dir,
		logger:        log,
	}
}

// Send handles POST /api/v1/chat
//
// One round trip: resolve the caller's conversation, store the user message,
// call the assistant with windowed history, store the interpreted reply, and
// return both messages with context-window bookkeeping.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv := h.resolveConversation(r, userID, req.ConversationID)
	if conv == nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve conversation")
		return
	}

	// A conversation at its context limit never reaches the assistant.
	if conv.ContextLimitReached || h.conversations.HasReachedLimit(conv.MessageCount) {
		writeJSON(w, http.StatusConflict, model.ChatResponse{
			ConversationID:    conv.ID,
			MessageCount:      conv.MessageCount,
			LimitReached:      true,
			RemainingMessages: 0,
			Response: model.AssistantResponse{
				Text: "This conversation has reached its limit. Please start a new chat to continue.",
			},
		})
		return
	}

	history := h.conversations.GetMessages(ctx, conv.ID)

	userMsg := h.conversations.AddMessage(ctx, conv.ID, &model.Message{
		Content: req.Content,
	})
	if userMsg == nil {
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	resp := h.assistant.SendMessage(ctx, req.Content, h.profile(r), history, conv.ID)

	confidence := resp.Confidence
	assistantMsg := h.conversations.AddMessage(ctx, conv.ID, &model.Message{
		Content:         resp.Text,
		IsFromAssistant: true,
		TutorModule:     resp.TutorModule,
		ConfidenceScore: &confidence,
	})

	count := conv.MessageCount
	if updated := h.conversations.GetConversation(ctx, conv.ID); updated != nil {
		count = updated.MessageCount
	}

	writeJSON(w, http.StatusOK, model.ChatResponse{
		ConversationID:    conv.ID,
		UserMessage:       userMsg,
		AssistantMessage:  assistantMsg,
		Response:          *resp,
		MessageCount:      count,
		ShowLimitWarning:  h.conversations.ShouldShowWarning(count),
		LimitReached:      h.conversations.HasReachedLimit(count),
		RemainingMessages: h.conversations.RemainingMessages(count),
	})
}

// ConfirmEscalation handles POST /api/v1/chat/escalate
//
// The student accepted the assistant's hand-off offer. A ticket is created
// with priority derived from the stored confidence and auto-assignment is
// attempted immediately.
func (h *ChatHandler) ConfirmEscalation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.ConfirmEscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OriginalQuestion == "" {
		writeError(w, http.StatusBadRequest, "original question is required")
		return
	}

	conv := h.conversations.GetConversation(ctx, req.ConversationID)
	if conv == nil || conv.OwnerID != userID {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	esc, assigned := h.escalations.Escalate(ctx, req.ConversationID, userID, req.OriginalQuestion, req.ModuleCode, req.Confidence)
	if esc == nil {
		writeError(w, http.StatusInternalServerError, "failed to create escalation")
		return
	}

	text := "I've connected you with a tutor. They'll reach out in your messages shortly."
	if !assigned {
		text = "I've logged your request for a tutor. You'll be notified as soon as one becomes available."
	}
	h.conversations.AddMessage(ctx, req.ConversationID, &model.Message{
		Content:          text,
		IsFromAssistant:  true,
		EscalatedToTutor: true,
		TutorModule:      req.ModuleCode,
		ConfidenceScore:  req.Confidence,
	})

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"escalation": esc,
		"assigned":   assigned,
		"message":    text,
	})
}

// resolveConversation finds the target conversation: an explicit id owned by
// the caller, then the caller's active conversation, then a fresh one.
func (h *ChatHandler) resolveConversation(r *http.Request, userID, conversationID string) *model.Conversation {
	ctx := r.Context()

	if conversationID != "" {
		if middleware.ValidateConversationID(conversationID) != nil {
			return nil
		}
		conv := h.conversations.GetConversation(ctx, conversationID)
		if conv == nil || conv.OwnerID != userID {
			return nil
		}
		return conv
	}

	if conv := h.conversations.GetActiveConversation(ctx, userID); conv != nil {
		return conv
	}
	return h.conversations.CreateConversation(ctx, userID, "")
}

// profile assembles the assistant prompt profile, preferring the directory
// record and falling back to token claims when the lookup fails.
func (h *ChatHandler) profile(r *http.Request) *model.UserProfile {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	profile := &model.UserProfile{
		ID:      userID,
		Role:    middleware.GetRole(ctx),
		Modules: middleware.GetModules(ctx),
	}

	user, err := h.directory.GetUser(ctx, userID)
	if err != nil {
		h.logger.Warn("directory lookup failed, using token claims",
			zap.String("user_id", userID), zap.Error(err))
		return profile
	}

	profile.FirstName = user.FirstName
	profile.LastName = user.LastName
	profile.Email = user.Email
	return profile
}
