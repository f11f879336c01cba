package broadcast

import (
	"time"

	"github.com/clavis-health/clavis/internal/domain"
	"github.com/google/uuid"
)

type EventType string

const (
	EventCreated      EventType = "created"
	EventTransitioned EventType = "transitioned"
	EventEscalated    EventType = "escalated"
	EventSafetyAlert  EventType = "safety_alert"
)

// Event is the payload fanned out to patient, department, and global
// subscribers on every state change or escalation.
type Event struct {
	Type       EventType       `json:"event_type"`
	ActionID   uuid.UUID       `json:"action_id"`
	PatientID  uuid.UUID       `json:"patient_id"`
	Department string          `json:"department,omitempty"`
	FromState  string          `json:"from_state,omitempty"`
	ToState    string          `json:"to_state"`
	Priority   domain.Priority `json:"priority,omitempty"`
	IsOverdue  bool            `json:"is_overdue"`
	Message    string          `json:"message,omitempty"` // safety alerts only
	Timestamp  time.Time       `json:"timestamp"`
}
