package customtype

import (
	"time"

	"github.com/clavis-health/clavis/internal/domain"
	"github.com/google/uuid"
)

// CustomActionType is a user-authored sequential workflow: an ordered list of
// unique states where each state may only advance to the next and the last is
// terminal. Definitions are immutable once any action references them.
type CustomActionType struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	Name       string `gorm:"column:name;type:varchar(100);uniqueIndex;not null"`
	Department string `gorm:"column:department;type:varchar(100);not null"`

	States        []string `gorm:"column:states;serializer:json;not null"`
	TerminalState string   `gorm:"column:terminal_state;type:varchar(100);not null"`

	SLARoutineMinutes  int `gorm:"column:sla_routine_minutes;not null;default:120"`
	SLAUrgentMinutes   int `gorm:"column:sla_urgent_minutes;not null;default:30"`
	SLACriticalMinutes int `gorm:"column:sla_critical_minutes;not null;default:10"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (CustomActionType) TableName() string {
	return "clinical.custom_action_types"
}

// Validate enforces the definition invariants before first persistence.
func (c *CustomActionType) Validate() error {
	if len(c.States) < 2 {
		return ErrTooFewStates
	}
	seen := make(map[string]struct{}, len(c.States))
	for _, s := range c.States {
		if s == "" {
			return ErrEmptyStateName
		}
		if _, dup := seen[s]; dup {
			return ErrDuplicateState
		}
		seen[s] = struct{}{}
	}
	if c.TerminalState != c.States[len(c.States)-1] {
		return ErrTerminalNotLast
	}
	return nil
}

// InitialState is the first entry of the ordered state list.
func (c *CustomActionType) InitialState() string {
	if len(c.States) == 0 {
		return ""
	}
	return c.States[0]
}

// IsTerminal reports whether state is the definition's terminal state.
// Comparison is case-sensitive.
func (c *CustomActionType) IsTerminal(state string) bool {
	return state == c.TerminalState
}

// SLAMinutes returns the definition's own per-priority SLA table entry.
func (c *CustomActionType) SLAMinutes(p domain.Priority) (int, error) {
	switch p {
	case domain.PriorityRoutine:
		return c.SLARoutineMinutes, nil
	case domain.PriorityUrgent:
		return c.SLAUrgentMinutes, nil
	case domain.PriorityCritical:
		return c.SLACriticalMinutes, nil
	}
	return 0, domain.ErrUnknownPriority
}

type CreateCustomActionTypeCommand struct {
	Name               string
	Department         string
	States             []string
	TerminalState      string
	SLARoutineMinutes  int
	SLAUrgentMinutes   int
	SLACriticalMinutes int
	CreatedBy          uuid.UUID
}
