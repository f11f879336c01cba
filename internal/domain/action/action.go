package action

import (
	"time"

	"github.com/clavis-health/clavis/internal/domain"
	"github.com/google/uuid"
)

type ActionType string

const (
	TypeDiagnostic      ActionType = "DIAGNOSTIC"
	TypeMedication      ActionType = "MEDICATION"
	TypeReferral        ActionType = "REFERRAL"
	TypeCareInstruction ActionType = "CARE_INSTRUCTION"
	TypeVitalsRequest   ActionType = "VITALS_REQUEST"
)

func (t ActionType) IsValid() bool {
	switch t {
	case TypeDiagnostic, TypeMedication, TypeReferral, TypeCareInstruction, TypeVitalsRequest:
		return true
	}
	return false
}

// WorkflowRef is the discriminated kind of an action: exactly one of a fixed
// action type or a custom workflow definition. The zero value is invalid.
type WorkflowRef struct {
	kind     ActionType
	customID *uuid.UUID
}

func FixedRef(t ActionType) WorkflowRef {
	return WorkflowRef{kind: t}
}

func CustomRef(id uuid.UUID) WorkflowRef {
	return WorkflowRef{customID: &id}
}

func (r WorkflowRef) IsCustom() bool {
	return r.customID != nil
}

func (r WorkflowRef) Kind() ActionType {
	return r.kind
}

func (r WorkflowRef) CustomTypeID() *uuid.UUID {
	return r.customID
}

func (r WorkflowRef) Validate() error {
	if r.customID != nil {
		if r.kind != "" {
			return ErrAmbiguousWorkflowRef
		}
		return nil
	}
	if !r.kind.IsValid() {
		return ErrUnknownActionType
	}
	return nil
}

type Action struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`

	// Exactly one of Type / CustomTypeID is set; NewAction enforces it.
	Type         *ActionType `gorm:"column:action_type;type:varchar(30);index"`
	CustomTypeID *uuid.UUID  `gorm:"column:custom_type_id;type:uuid;index"`

	CurrentState string          `gorm:"column:current_state;type:varchar(100);not null;index"`
	Priority     domain.Priority `gorm:"column:priority;type:varchar(20);not null;index"`
	Department   string          `gorm:"column:department;type:varchar(100);not null;index"`

	Title string `gorm:"column:title;type:varchar(255)"`
	Notes string `gorm:"column:notes;type:text"`

	// Set once at creation from priority and kind, never recomputed.
	SLADeadline time.Time `gorm:"column:sla_deadline;not null;index"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Action) TableName() string {
	return "clinical.actions"
}

// NewAction builds an action in its initial state. The SLA deadline is left
// zero; the caller computes it from the workflow's SLA table before saving.
func NewAction(ref WorkflowRef, patientID uuid.UUID, priority domain.Priority, initialState, department string, createdBy uuid.UUID) (*Action, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if !priority.IsValid() {
		return nil, ErrInvalidPriority
	}

	a := &Action{
		PatientID:    patientID,
		CurrentState: initialState,
		Priority:     priority,
		Department:   department,
		CreatedBy:    createdBy,
	}
	if ref.IsCustom() {
		id := *ref.CustomTypeID()
		a.CustomTypeID = &id
	} else {
		t := ref.Kind()
		a.Type = &t
	}
	return a, nil
}

func (a *Action) Workflow() WorkflowRef {
	if a.CustomTypeID != nil {
		return CustomRef(*a.CustomTypeID)
	}
	if a.Type != nil {
		return FixedRef(*a.Type)
	}
	return WorkflowRef{}
}

func (a *Action) IsCustom() bool {
	return a.CustomTypeID != nil
}

// TransitionEvent is the append-only audit trail of state changes. One row is
// written at creation (FromState empty) and one per successful transition.
// Rows are never updated or deleted.
type TransitionEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Timestamp time.Time `gorm:"autoCreateTime;index"`

	ActionID  uuid.UUID   `gorm:"column:action_id;type:uuid;not null;index"`
	FromState string      `gorm:"column:from_state;type:varchar(100)"`
	ToState   string      `gorm:"column:to_state;type:varchar(100);not null"`
	ActorRole domain.Role `gorm:"column:actor_role;type:varchar(30);not null"`
}

func (TransitionEvent) TableName() string {
	return "clinical.action_events"
}

type CreateActionCommand struct {
	PatientID    uuid.UUID
	Type         *ActionType
	CustomTypeID *uuid.UUID
	Priority     domain.Priority
	Department   string
	Title        string
	Notes        string
	CreatedBy    uuid.UUID
}

func (c *CreateActionCommand) WorkflowRef() (WorkflowRef, error) {
	switch {
	case c.Type != nil && c.CustomTypeID != nil:
		return WorkflowRef{}, ErrAmbiguousWorkflowRef
	case c.CustomTypeID != nil:
		return CustomRef(*c.CustomTypeID), nil
	case c.Type != nil:
		ref := FixedRef(*c.Type)
		return ref, ref.Validate()
	default:
		return WorkflowRef{}, ErrMissingWorkflowRef
	}
}

type ListActionsQuery struct {
	PatientID  *uuid.UUID
	Type       *ActionType
	Priority   *domain.Priority
	Department *string
	State      *string
	Page       int
	PageSize   int
}

type PagedActions struct {
	Actions    []*Action
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}
