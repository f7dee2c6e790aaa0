package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campuslearn/escalation-platform/internal/middleware"
	"github.com/campuslearn/escalation-platform/internal/model"
	"github.com/campuslearn/escalation-platform/internal/service"
	"github.com/campuslearn/escalation-platform/pkg/logger"
)

// EscalationHandler handles escalation ticket endpoints.
type EscalationHandler struct {
	service *service.EscalationService
	logger  *logger.Logger
}

// NewEscalationHandler creates a new escalation handler.
func NewEscalationHandler(svc *service.EscalationService, log *logger.Logger) *EscalationHandler {
	return &EscalationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/escalations
func (h *EscalationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CreateEscalationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OriginalQuestion == "" {
		writeError(w, http.StatusBadRequest, "original question is required")
		return
	}
	if req.Priority != "" {
		if err := model.ValidPriority(req.Priority); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	// Students always open tickets for themselves.
	req.StudentID = middleware.GetUserID(ctx)

	esc := h.service.CreateEscalation(ctx, &req)
	if esc == nil {
		writeError(w, http.StatusInternalServerError, "failed to create escalation")
		return
	}

	writeJSON(w, http.StatusCreated, esc)
}

// Get handles GET /api/v1/escalations/:id
func (h *EscalationHandler) Get(w http.ResponseWriter, r *http.Request) {
	escalationID := chi.URLParam(r, "id")
	if err := middleware.ValidateEscalationID(escalationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	esc := h.service.GetEscalation(r.Context(), escalationID)
	if esc == nil {
		writeError(w, http.StatusNotFound, "escalation not found")
		return
	}

	writeJSON(w, http.StatusOK, esc)
}

// Pending handles GET /api/v1/escalations/pending
//
// Returns the queue ordered by priority descending, oldest first within a
// priority.
func (h *EscalationHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pending := h.service.GetPendingEscalations(r.Context())
	if pending == nil {
		pending = []model.Escalation{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"escalations": pending,
		"count":       len(pending),
	})
}

// Stats handles GET /api/v1/escalations/stats
func (h *EscalationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.GetEscalationStats(r.Context()))
}

// Mine handles GET /api/v1/escalations/mine
//
// Returns the calling tutor's assigned and resolved tickets, newest first.
func (h *EscalationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tutorID := middleware.GetUserID(ctx)

	escs := h.service.GetEscalationsForTutor(ctx, tutorID)
	if escs == nil {
		escs = []model.Escalation{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"escalations": escs,
		"count":       len(escs),
	})
}

// Notifications handles GET /api/v1/escalations/:id/notifications
//
// Returns the notification audit trail for a ticket.
func (h *EscalationHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	escalationID := chi.URLParam(r, "id")
	if err := middleware.ValidateEscalationID(escalationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ns := h.service.GetNotificationsForEscalation(r.Context(), escalationID)
	if ns == nil {
		ns = []model.TutorNotification{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": ns,
		"count":         len(ns),
	})
}

// Availability handles GET /api/v1/tutors/availability?module=CODE
func (h *EscalationHandler) Availability(w http.ResponseWriter, r *http.Request) {
	moduleCode := r.URL.Query().Get("module")

	tutors := h.service.FindAvailableTutors(r.Context(), moduleCode)
	if tutors == nil {
		tutors = []model.TutorAvailability{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tutors": tutors,
		"count":  len(tutors),
	})
}

// Assign handles POST /api/v1/escalations/:id/assign
//
// Assigns a specific tutor to a pending ticket. Assignment is atomic: it
// fails if the ticket is no longer pending or the tutor is at capacity.
func (h *EscalationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	escalationID := chi.URLParam(r, "id")
	if err := middleware.ValidateEscalationID(escalationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.AssignTutorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TutorID == "" {
		writeError(w, http.StatusBadRequest, "tutor ID is required")
		return
	}

	if !h.service.AssignTutorToEscalation(r.Context(), escalationID, req.TutorID) {
		writeError(w, http.StatusConflict, "escalation could not be assigned")
		return
	}

	esc := h.service.GetEscalation(r.Context(), escalationID)
	writeJSON(w, http.StatusOK, esc)
}

// AutoAssign handles POST /api/v1/escalations/:id/auto-assign
//
// Picks the least-loaded available tutor for the ticket's module.
func (h *EscalationHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	escalationID := chi.URLParam(r, "id")
	if err := middleware.ValidateEscalationID(escalationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.service.AutoAssignEscalation(r.Context(), escalationID) {
		writeError(w, http.StatusConflict, "no available tutor for escalation")
		return
	}

	esc := h.service.GetEscalation(r.Context(), escalationID)
	writeJSON(w, http.StatusOK, esc)
}

// Resolve handles POST /api/v1/escalations/:id/resolve
func (h *EscalationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ResolveEscalation)
}

// Cancel handles POST /api/v1/escalations/:id/cancel
func (h *EscalationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CancelEscalation)
}

// Process handles POST /api/v1/escalations/process
//
// Triggers an immediate retry sweep over pending tickets, the same pass the
// background sweeper runs on its interval.
func (h *EscalationHandler) Process(w http.ResponseWriter, r *http.Request) {
	h.service.ProcessPendingEscalations(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (h *EscalationHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) bool) {
	escalationID := chi.URLParam(r, "id")
	if err := middleware.ValidateEscalationID(escalationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !fn(r.Context(), escalationID) {
		writeError(w, http.StatusConflict, "invalid escalation state transition")
		return
	}

	esc := h.service.GetEscalation(r.Context(), escalationID)
	writeJSON(w, http.StatusOK, esc)
}
