package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campuslearn/escalation-platform/internal/middleware"
	"github.com/campuslearn/escalation-platform/internal/model"
	"github.com/campuslearn/escalation-platform/internal/service"
	"github.com/campuslearn/escalation-platform/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv := h.service.CreateConversation(ctx, userID, req.Title)
	if conv == nil {
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// Active handles GET /api/v1/conversations/active
func (h *ConversationHandler) Active(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	conv := h.service.GetActiveConversation(ctx, userID)
	if conv == nil {
		writeError(w, http.StatusNotFound, "no active conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	convs := h.service.GetConversationHistory(ctx, userID)
	if convs == nil {
		convs = []model.Conversation{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": convs,
		"count":         len(convs),
	})
}

// Get handles GET /api/v1/conversations/:id
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv := h.ownedConversation(w, r)
	if conv == nil {
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Messages handles GET /api/v1/conversations/:id/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conv := h.ownedConversation(w, r)
	if conv == nil {
		return
	}

	msgs := h.service.GetMessages(r.Context(), conv.ID)
	if msgs == nil {
		msgs = []model.Message{}
	}

	writeJSON(w, http.StatusOK, model.ListMessagesResponse{
		Messages: msgs,
		Count:    len(msgs),
	})
}

// Clear handles DELETE /api/v1/conversations/:id/messages
//
// Deletes every message and resets the counters; the conversation row stays.
func (h *ConversationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	conv := h.ownedConversation(w, r)
	if conv == nil {
		return
	}

	if !h.service.ClearConversation(r.Context(), conv.ID) {
		writeError(w, http.StatusInternalServerError, "failed to clear conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Deactivate handles DELETE /api/v1/conversations/:id
func (h *ConversationHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	conv := h.ownedConversation(w, r)
	if conv == nil {
		return
	}

	if !h.service.DeactivateConversation(r.Context(), conv.ID) {
		writeError(w, http.StatusInternalServerError, "failed to deactivate conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ownedConversation loads the path conversation and enforces ownership,
// writing the error response itself when the lookup fails.
func (h *ConversationHandler) ownedConversation(w http.ResponseWriter, r *http.Request) *model.Conversation {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil
	}

	conv := h.service.GetConversation(r.Context(), conversationID)
	if conv == nil || conv.OwnerID != middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return nil
	}
	return conv
}
