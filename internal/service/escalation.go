package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuslearn/escalation-platform/internal/bridge"
	"github.com/campuslearn/escalation-platform/internal/directory"
	"github.com/campuslearn/escalation-platform/internal/model"
	"github.com/campuslearn/escalation-platform/internal/store"
	"github.com/campuslearn/escalation-platform/pkg/logger"
	"github.com/campuslearn/escalation-platform/pkg/metrics"
)

const escalationThreadTemplate = `Hi! I'm your assigned tutor for the CampusLearn AI escalation.

**Student Question:** %s

**Module:** %s

**Escalation Reason:** %s

I'm here to help you with this question. Please feel free to ask any follow-up questions or provide more details about what you need help with.`

const defaultEscalationReason = "Complex question requiring human assistance"

// EscalationService owns the escalation ticket lifecycle: creation, tutor
// discovery, load-balanced assignment, resolution and cancellation, and the
// retry sweep over stuck tickets.
type EscalationService struct {
	store     store.EscalationStore
	directory directory.Directory
	messaging bridge.Messaging
	notifier  bridge.Notifier
	logger    *logger.Logger
}

// NewEscalationService creates a new escalation coordinator.
func NewEscalationService(
	st store.EscalationStore,
	dir directory.Directory,
	messaging bridge.Messaging,
	notifier bridge.Notifier,
	log *logger.Logger,
) *EscalationService {
	return &EscalationService{
		store:     st,
		directory: dir,
		messaging: messaging,
		notifier:  notifier,
		logger:    log,
	}
}

// CreateEscalation inserts a new pending ticket.
func (s *EscalationService) CreateEscalation(ctx context.Context, req *model.CreateEscalationRequest) *model.Escalation {
	reason := req.EscalationReason
	if reason == "" {
		reason = defaultEscalationReason
	}
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	now := time.Now()
	esc := &model.Escalation{
		ID:               uuid.Must(uuid.NewV7()).String(),
		ConversationID:   req.ConversationID,
		StudentID:        req.StudentID,
		ModuleCode:       req.ModuleCode,
		OriginalQuestion: req.OriginalQuestion,
		EscalationReason: reason,
		Status:           model.EscalationPending,
		Priority:         priority,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.CreateEscalation(ctx, esc); err != nil {
		s.logger.Error("failed to create escalation",
			zap.String("conversation_id", req.ConversationID), zap.Error(err))
		return nil
	}

	metrics.EscalationsTotal.WithLabelValues(string(esc.Priority)).Inc()
	s.logger.Info("escalation created",
		zap.String("escalation_id", esc.ID),
		zap.String("student_id", esc.StudentID),
		zap.String("module", esc.Module()),
		zap.String("priority", string(esc.Priority)))
	return esc
}

// Escalate creates a ticket from a confirmed assistant hand-off and attempts
// auto-assignment. Priority and reason are derived from the assistant's
// confidence and fixed for the ticket's lifetime. Returns the ticket and
// whether a tutor was assigned immediately; an unassigned ticket stays
// pending for the retry sweep.
func (s *EscalationService) Escalate(
	ctx context.Context,
	conversationID, studentID, originalQuestion string,
	moduleCode *string,
	confidence *float64,
) (*model.Escalation, bool) {
	priority, reason := model.PriorityFromConfidence(confidence)

	esc := s.CreateEscalation(ctx, &model.CreateEscalationRequest{
		ConversationID:   conversationID,
		StudentID:        studentID,
		OriginalQuestion: originalQuestion,
		ModuleCode:       moduleCode,
		EscalationReason: reason,
		Priority:         priority,
	})
	if esc == nil {
		return nil, false
	}

	assigned := s.AutoAssignEscalation(ctx, esc.ID)
	if !assigned {
		s.logger.Info("escalation awaiting tutor availability",
			zap.String("escalation_id", esc.ID), zap.String("module", esc.Module()))
	}
	return esc, assigned
}

// FindAvailableTutors lists active tutors with their derived load. Module
// filtering is skipped for an empty code or the general sentinel. A tutor is
// available while their assigned count is below capacity.
func (s *EscalationService) FindAvailableTutors(ctx context.Context, moduleCode string) []model.TutorAvailability {
	tutors, err := s.directory.ActiveTutors(ctx, moduleCode)
	if err != nil {
		s.logger.Error("failed to fetch tutors from directory",
			zap.String("module", moduleCode), zap.Error(err))
		return nil
	}

	counts, err := s.store.AssignedCountsByTutor(ctx)
	if err != nil {
		s.logger.Error("failed to count assigned escalations", zap.Error(err))
		return nil
	}

	availability := make([]model.TutorAvailability, len(tutors))
	for i, t := range tutors {
		current := counts[t.ID]
		availability[i] = model.TutorAvailability{
			TutorID:            t.ID,
			FirstName:          t.FirstName,
			LastName:           t.LastName,
			Email:              t.Email,
			Modules:            t.Modules,
			CurrentEscalations: current,
			IsAvailable:        current < model.TutorCapacity,
		}
	}
	return availability
}

// AssignTutorToEscalation assigns a tutor to a pending ticket. The primary
// update is atomic: the ticket must still be pending and the tutor below
// capacity. Once committed, side effects follow: the message thread is
// seeded, the thread id stored, a notification record written, and both
// parties notified. Side-effect failures are logged and never roll back the
// assignment.
func (s *EscalationService) AssignTutorToEscalation(ctx context.Context, escalationID, tutorID string) bool {
	err := s.store.AssignEscalation(ctx, escalationID, tutorID, model.TutorCapacity, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.logger.Warn("escalation not found for assignment",
				zap.String("escalation_id", escalationID))
		case errors.Is(err, store.ErrInvalidTransition):
			s.logger.Warn("escalation no longer pending",
				zap.String("escalation_id", escalationID))
		case errors.Is(err, store.ErrTutorAtCapacity):
			s.logger.Warn("tutor at capacity",
				zap.String("escalation_id", escalationID), zap.String("tutor_id", tutorID))
		default:
			s.logger.Error("failed to assign tutor",
				zap.String("escalation_id", escalationID), zap.Error(err))
		}
		metrics.EscalationAssignments.WithLabelValues("rejected").Inc()
		return false
	}

	metrics.EscalationAssignments.WithLabelValues("assigned").Inc()
	s.logger.Info("escalation assigned",
		zap.String("escalation_id", escalationID), zap.String("tutor_id", tutorID))

	esc, err := s.store.GetEscalation(ctx, escalationID)
	if err != nil {
		s.logger.Error("failed to reload escalation after assignment",
			zap.String("escalation_id", escalationID), zap.Error(err))
		return true
	}

	s.openMessageThread(ctx, esc, tutorID)
	s.recordTutorNotification(ctx, tutorID, escalationID)
	s.notifyParties(ctx, esc, tutorID)

	return true
}

// openMessageThread seeds the tutor/student thread with the templated
// hand-off message and stores the resulting thread id on the ticket.
func (s *EscalationService) openMessageThread(ctx context.Context, esc *model.Escalation, tutorID string) {
	reason := esc.EscalationReason
	if reason == "" {
		reason = defaultEscalationReason
	}
	content := fmt.Sprintf(escalationThreadTemplate, esc.OriginalQuestion, esc.Module(), reason)

	threadID, err := s.messaging.SendMessage(ctx, bridge.ThreadMessage{
		SenderID:   tutorID,
		ReceiverID: esc.StudentID,
		Content:    content,
	})
	if err != nil {
		s.logger.Error("failed to open escalation message thread",
			zap.String("escalation_id", esc.ID), zap.Error(err))
		return
	}

	if err := s.store.SetMessageThread(ctx, esc.ID, threadID); err != nil {
		s.logger.Error("failed to store message thread id",
			zap.String("escalation_id", esc.ID), zap.Error(err))
		return
	}
	esc.MessageThreadID = &threadID
}

func (s *EscalationService) recordTutorNotification(ctx context.Context, tutorID, escalationID string) {
	n := &model.TutorNotification{
		ID:               uuid.Must(uuid.NewV7()).String(),
		TutorID:          tutorID,
		EscalationID:     escalationID,
		NotificationType: model.NotifyInApp,
		Status:           model.NotificationPending,
		CreatedAt:        time.Now(),
	}
	if err := s.store.CreateTutorNotification(ctx, n); err != nil {
		s.logger.Error("failed to record tutor notification",
			zap.String("escalation_id", escalationID), zap.Error(err))
	}
}

// notifyParties alerts the tutor about the assignment and tells the student
// a tutor was engaged.
func (s *EscalationService) notifyParties(ctx context.Context, esc *model.Escalation, tutorID string) {
	studentName := esc.StudentID
	if student, err := s.directory.GetUser(ctx, esc.StudentID); err == nil {
		studentName = student.FullName()
	} else {
		s.logger.Warn("failed to look up student for notification",
			zap.String("student_id", esc.StudentID), zap.Error(err))
	}

	err := s.notifier.Notify(ctx, bridge.Notification{
		UserID:          tutorID,
		Type:            "new_escalation",
		Title:           "New Escalation Assignment",
		Message:         fmt.Sprintf("You've been assigned a new escalation from %s for %s", studentName, esc.Module()),
		Link:            "/tutor/escalations",
		RelatedEntityID: esc.ID,
	})
	if err != nil {
		s.logger.Error("failed to notify tutor",
			zap.String("escalation_id", esc.ID), zap.String("tutor_id", tutorID), zap.Error(err))
	}

	link := "/messages"
	if esc.MessageThreadID != nil {
		link = "/messages?conversation=" + *esc.MessageThreadID
	}
	err = s.notifier.Notify(ctx, bridge.Notification{
		UserID:          esc.StudentID,
		Type:            "escalation_assigned",
		Title:           "Tutor Assigned",
		Message:         "A tutor has been connected to your question. Check your messages to continue the conversation.",
		Link:            link,
		RelatedEntityID: esc.ID,
	})
	if err != nil {
		s.logger.Error("failed to notify student",
			zap.String("escalation_id", esc.ID), zap.String("student_id", esc.StudentID), zap.Error(err))
	}
}

// AutoAssignEscalation selects the least-loaded available tutor for a
// ticket's module and assigns them. Ties keep directory order. Candidates
// are tried in order so a tutor filled up by a concurrent assignment just
// moves selection to the next one. Returns false with no state change when
// no candidate can take the ticket.
func (s *EscalationService) AutoAssignEscalation(ctx context.Context, escalationID string) bool {
	esc, err := s.store.GetEscalation(ctx, escalationID)
	if err != nil {
		s.logger.Error("failed to fetch escalation for auto-assignment",
			zap.String("escalation_id", escalationID), zap.Error(err))
		return false
	}

	candidates := s.availableCandidates(ctx, esc.Module())
	if len(candidates) == 0 {
		s.logger.Info("no available tutors for escalation",
			zap.String("escalation_id", escalationID), zap.String("module", esc.Module()))
		return false
	}

	for _, tutor := range candidates {
		if s.AssignTutorToEscalation(ctx, escalationID, tutor.TutorID) {
			return true
		}
		// A concurrent assignment may have invalidated this ticket.
		if current, err := s.store.GetEscalation(ctx, escalationID); err != nil || current.Status != model.EscalationPending {
			return false
		}
	}
	return false
}

// availableCandidates returns available tutors sorted ascending by load,
// ties broken by directory return order.
func (s *EscalationService) availableCandidates(ctx context.Context, moduleCode string) []model.TutorAvailability {
	tutors := s.FindAvailableTutors(ctx, moduleCode)

	candidates := tutors[:0]
	for _, t := range tutors {
		if t.IsAvailable {
			candidates = append(candidates, t)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CurrentEscalations < candidates[j].CurrentEscalations
	})
	return candidates
}

// ProcessPendingEscalations retries assignment for every pending ticket, in
// the same priority-desc, oldest-first order the pending queue is displayed
// in. Intended to run periodically and whenever tutor availability changes;
// tickets that still cannot match stay pending for the next sweep.
func (s *EscalationService) ProcessPendingEscalations(ctx context.Context) {
	pending, err := s.store.PendingEscalations(ctx)
	if err != nil {
		s.logger.Error("failed to list pending escalations", zap.Error(err))
		return
	}
	metrics.EscalationsPending.Set(float64(len(pending)))
	if len(pending) == 0 {
		return
	}

	s.logger.Info("processing pending escalations", zap.Int("count", len(pending)))

	for _, esc := range pending {
		if s.AutoAssignEscalation(ctx, esc.ID) {
			s.logger.Info("pending escalation assigned",
				zap.String("escalation_id", esc.ID))
		}
	}
}

// ResolveEscalation moves an assigned ticket to resolved.
func (s *EscalationService) ResolveEscalation(ctx context.Context, escalationID string) bool {
	return s.transition(ctx, escalationID, model.EscalationAssigned, model.EscalationResolved)
}

// CancelEscalation cancels a ticket that has not yet been assigned.
func (s *EscalationService) CancelEscalation(ctx context.Context, escalationID string) bool {
	return s.transition(ctx, escalationID, model.EscalationPending, model.EscalationCancelled)
}

func (s *EscalationService) transition(ctx context.Context, escalationID string, from, to model.EscalationStatus) bool {
	if err := s.store.TransitionEscalation(ctx, escalationID, from, to, time.Now()); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("escalation transition rejected",
				zap.String("escalation_id", escalationID),
				zap.String("target_status", string(to)),
				zap.Error(err))
		} else {
			s.logger.Error("failed to transition escalation",
				zap.String("escalation_id", escalationID), zap.Error(err))
		}
		return false
	}

	metrics.EscalationTransitions.WithLabelValues(string(to)).Inc()
	return true
}

// GetEscalation returns a ticket by id, or nil.
func (s *EscalationService) GetEscalation(ctx context.Context, escalationID string) *model.Escalation {
	esc, err := s.store.GetEscalation(ctx, escalationID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("failed to fetch escalation",
				zap.String("escalation_id", escalationID), zap.Error(err))
		}
		return nil
	}
	return esc
}

// GetPendingEscalations returns the pending queue ordered by priority
// descending, then creation time ascending.
func (s *EscalationService) GetPendingEscalations(ctx context.Context) []model.Escalation {
	pending, err := s.store.PendingEscalations(ctx)
	if err != nil {
		s.logger.Error("failed to list pending escalations", zap.Error(err))
		return nil
	}
	return pending
}

// GetEscalationsForTutor returns a tutor's assigned and resolved tickets,
// newest first.
func (s *EscalationService) GetEscalationsForTutor(ctx context.Context, tutorID string) []model.Escalation {
	escs, err := s.store.EscalationsForTutor(ctx, tutorID)
	if err != nil {
		s.logger.Error("failed to list tutor escalations",
			zap.String("tutor_id", tutorID), zap.Error(err))
		return nil
	}
	return escs
}

// GetNotificationsForEscalation returns the notification audit trail for a
// ticket.
func (s *EscalationService) GetNotificationsForEscalation(ctx context.Context, escalationID string) []model.TutorNotification {
	ns, err := s.store.NotificationsForEscalation(ctx, escalationID)
	if err != nil {
		s.logger.Error("failed to list escalation notifications",
			zap.String("escalation_id", escalationID), zap.Error(err))
		return nil
	}
	return ns
}

// GetEscalationStats returns ticket counts by status.
func (s *EscalationService) GetEscalationStats(ctx context.Context) *model.EscalationStats {
	stats, err := s.store.EscalationStats(ctx)
	if err != nil {
		s.logger.Error("failed to aggregate escalation stats", zap.Error(err))
		return &model.EscalationStats{}
	}
	return stats
}
