package model

import (
	"fmt"
	"time"
)

// TutorCapacity is the maximum number of concurrently assigned escalations
// a single tutor can carry.
const TutorCapacity = 5

// GeneralModule is the sentinel module code that disables module filtering.
const GeneralModule = "General"

// EscalationStatus is the lifecycle state of an escalation ticket.
type EscalationStatus string

const (
	EscalationPending   EscalationStatus = "pending"
	EscalationAssigned  EscalationStatus = "assigned"
	EscalationResolved  EscalationStatus = "resolved"
	EscalationCancelled EscalationStatus = "cancelled"
)

// EscalationPriority classifies a ticket for queue display. It is fixed at
// creation from the assistant's confidence and never changes.
type EscalationPriority string

const (
	PriorityLow    EscalationPriority = "low"
	PriorityMedium EscalationPriority = "medium"
	PriorityHigh   EscalationPriority = "high"
)

// transitions is the full set of legal status transitions. Anything not
// listed here is rejected; in particular there is no path out of assigned
// other than resolved.
var transitions = map[EscalationStatus][]EscalationStatus{
	EscalationPending:  {EscalationAssigned, EscalationCancelled},
	EscalationAssigned: {EscalationResolved},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to EscalationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Escalation is a ticket requesting human-tutor involvement.
type Escalation struct {
	ID               string             `json:"id"`
	ConversationID   string             `json:"conversation_id"`
	StudentID        string             `json:"student_id"`
	TutorID          *string            `json:"tutor_id,omitempty"`
	ModuleCode       *string            `json:"module_code,omitempty"`
	OriginalQuestion string             `json:"original_question"`
	EscalationReason string             `json:"escalation_reason,omitempty"`
	Status           EscalationStatus   `json:"status"`
	Priority         EscalationPriority `json:"priority"`
	MessageThreadID  *string            `json:"message_thread_id,omitempty"`
	AssignedAt       *time.Time         `json:"assigned_at,omitempty"`
	ResolvedAt       *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Module returns the ticket's module code or the general sentinel.
func (e *Escalation) Module() string {
	if e.ModuleCode != nil && *e.ModuleCode != "" {
		return *e.ModuleCode
	}
	return GeneralModule
}

// NotificationType is the delivery channel for a tutor notification.
type NotificationType string

const (
	NotifyEmail NotificationType = "email"
	NotifySMS   NotificationType = "sms"
	NotifyInApp NotificationType = "in_app"
)

// NotificationStatus tracks the delivery state of a tutor notification.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationRead    NotificationStatus = "read"
)

// TutorNotification is a delivery record tied to an escalation. It is an
// audit trail, not authoritative state.
type TutorNotification struct {
	ID               string             `json:"id"`
	TutorID          string             `json:"tutor_id"`
	EscalationID     string             `json:"escalation_id"`
	NotificationType NotificationType   `json:"notification_type"`
	Status           NotificationStatus `json:"status"`
	SentAt           *time.Time         `json:"sent_at,omitempty"`
	ReadAt           *time.Time         `json:"read_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// TutorAvailability is the derived load view of a single tutor. It is
// computed on demand and never persisted.
type TutorAvailability struct {
	TutorID            string   `json:"tutor_id"`
	FirstName          string   `json:"first_name"`
	LastName           string   `json:"last_name"`
	Email              string   `json:"email"`
	Modules            []string `json:"modules"`
	CurrentEscalations int      `json:"current_escalations"`
	IsAvailable        bool     `json:"is_available"`
}

// EscalationStats is the aggregate count of escalations by status.
type EscalationStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Assigned  int `json:"assigned"`
	Resolved  int `json:"resolved"`
	Cancelled int `json:"cancelled"`
}

// CreateEscalationRequest is the request to open a ticket directly.
type CreateEscalationRequest struct {
	ConversationID   string             `json:"conversation_id"`
	StudentID        string             `json:"student_id"`
	OriginalQuestion string             `json:"original_question"`
	ModuleCode       *string            `json:"module_code,omitempty"`
	EscalationReason string             `json:"escalation_reason,omitempty"`
	Priority         EscalationPriority `json:"priority"`
}

// AssignTutorRequest is the request to assign a specific tutor.
type AssignTutorRequest struct {
	TutorID string `json:"tutor_id"`
}

// PriorityFromConfidence derives the fixed priority and reason for a new
// escalation from the assistant's confidence score. A missing score means
// the student asked for a human outright.
func PriorityFromConfidence(confidence *float64) (EscalationPriority, string) {
	switch {
	case confidence != nil && *confidence < 0.5:
		return PriorityHigh, "Low confidence response - requires human expertise"
	case confidence != nil && *confidence < 0.7:
		return PriorityMedium, "Moderate confidence - human verification recommended"
	default:
		return PriorityLow, "Student requested human assistance"
	}
}

// PriorityRank orders priorities for queue display, highest first.
func PriorityRank(p EscalationPriority) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p EscalationPriority) error {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return nil
	}
	return fmt.Errorf("unknown priority %q", p)
}
