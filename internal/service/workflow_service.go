package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clavis-health/clavis/internal/access"
	"github.com/clavis-health/clavis/internal/broadcast"
	"github.com/clavis-health/clavis/internal/domain"
	"github.com/clavis-health/clavis/internal/domain/action"
	"github.com/clavis-health/clavis/internal/domain/customtype"
	"github.com/clavis-health/clavis/internal/domain/patient"
	"github.com/clavis-health/clavis/internal/safety"
	"github.com/clavis-health/clavis/internal/sla"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// transitionRetries bounds the reload-revalidate loop after a lost
// compare-and-set race (another replica writing the same action).
const transitionRetries = 2

// WorkflowService is the façade over the workflow core: it sequences
// authorization, transition validation, SLA computation, the event-log
// append, and the broadcast fan-out as one logical unit per request.
type WorkflowService struct {
	actions  action.Repository
	types    customtype.Repository
	patients patient.Repository
	compiler *customtype.Compiler
	hub      *broadcast.Hub
	auditSvc *AuditService
	log      *zap.Logger

	locks keyedMutex

	// Metrics hooks keyed by kind label; either may be nil.
	onCreated      func(kind string)
	onTransitioned func(kind string)
}

func NewWorkflowService(
	actions action.Repository,
	types customtype.Repository,
	patients patient.Repository,
	compiler *customtype.Compiler,
	hub *broadcast.Hub,
	auditSvc *AuditService,
	log *zap.Logger,
) *WorkflowService {
	return &WorkflowService{
		actions:  actions,
		types:    types,
		patients: patients,
		compiler: compiler,
		hub:      hub,
		auditSvc: auditSvc,
		log:      log,
	}
}

func (s *WorkflowService) OnCreated(fn func(kind string))      { s.onCreated = fn }
func (s *WorkflowService) OnTransitioned(fn func(kind string)) { s.onTransitioned = fn }

// ActionView decorates an action with its derived, never-persisted fields.
type ActionView struct {
	*action.Action
	IsOverdue      bool             `json:"is_overdue"`
	CustomTypeName string           `json:"custom_type_name,omitempty"`
	Warnings       []safety.Warning `json:"warnings,omitempty"`
}

// CreateAction resolves the initial state of the requested workflow, computes
// the SLA deadline once, persists the action plus its creation event, and
// publishes to the patient, department, and global keys.
func (s *WorkflowService) CreateAction(ctx context.Context, cmd *action.CreateActionCommand, callerID uuid.UUID, callerRole domain.Role, ip string) (*ActionView, error) {
	if err := authorizeCreate(callerRole); err != nil {
		return nil, err
	}

	ref, err := cmd.WorkflowRef()
	if err != nil {
		return nil, err
	}

	p, err := s.patients.GetByID(ctx, cmd.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}
	if !p.IsActive {
		return nil, fmt.Errorf("patient is not active")
	}

	now := time.Now().UTC()

	var (
		initialState string
		department   string
		deadline     time.Time
		ct           *customtype.CustomActionType
		kindLabel    string
	)
	if ref.IsCustom() {
		ct, err = s.types.GetByID(ctx, *ref.CustomTypeID())
		if err != nil {
			return nil, err
		}
		initialState = ct.InitialState()
		department = ct.Department
		deadline, err = sla.CustomDeadlineFor(ct, cmd.Priority, now)
		if err != nil {
			return nil, err
		}
		kindLabel = ct.Name
	} else {
		initialState, err = action.InitialState(ref.Kind())
		if err != nil {
			return nil, err
		}
		department = cmd.Department
		if department == "" {
			department = action.DefaultDepartment(ref.Kind(), cmd.Title)
		}
		deadline, err = sla.DeadlineFor(cmd.Priority, now)
		if err != nil {
			return nil, err
		}
		kindLabel = string(ref.Kind())
	}

	var warnings []safety.Warning
	if !ref.IsCustom() && ref.Kind() == action.TypeMedication {
		warnings = s.medicationWarnings(ctx, cmd.PatientID, cmd.Title)
	}

	a, err := action.NewAction(ref, cmd.PatientID, cmd.Priority, initialState, department, callerID)
	if err != nil {
		return nil, err
	}
	a.Title = cmd.Title
	a.Notes = cmd.Notes
	a.CreatedAt = now
	a.SLADeadline = deadline

	if err := s.actions.Create(ctx, a, &action.TransitionEvent{
		FromState: "",
		ToState:   initialState,
		ActorRole: callerRole,
	}); err != nil {
		s.log.Error("failed to create action", zap.Error(err))
		return nil, fmt.Errorf("creating action: %w", err)
	}

	s.publish(a, ct, broadcast.EventCreated, "", initialState)
	for _, w := range warnings {
		s.publishSafetyAlert(a, w)
	}

	if s.onCreated != nil {
		s.onCreated(kindLabel)
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID: callerID, UserRole: string(callerRole),
		Action: "create", ResourceType: "action", ResourceID: a.ID.String(), IPAddress: ip,
	})
	s.log.Info("action created",
		zap.String("action_id", a.ID.String()),
		zap.String("kind", kindLabel),
		zap.String("department", a.Department),
	)
	if len(warnings) > 0 {
		s.log.Warn("medication interaction warnings",
			zap.String("action_id", a.ID.String()),
			zap.Int("count", len(warnings)),
		)
	}

	v := s.view(a, ct)
	v.Warnings = warnings
	return v, nil
}

// RequestTransition authorizes, validates, and applies one state change.
// Both checks happen before any mutation: on any failure no event is written
// and nothing is broadcast. Mutation for one action id is serialized
// in-process and guarded by a compare-and-set against other writers.
func (s *WorkflowService) RequestTransition(ctx context.Context, actionID uuid.UUID, targetState string, callerID uuid.UUID, callerRole domain.Role, ip string) (*ActionView, error) {
	unlock := s.locks.lock(actionID)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt <= transitionRetries; attempt++ {
		a, err := s.actions.GetByID(ctx, actionID)
		if err != nil {
			return nil, err
		}

		if err := access.Authorize(a, targetState, callerRole); err != nil {
			return nil, err
		}

		var ct *customtype.CustomActionType
		if a.IsCustom() {
			ct, err = s.types.GetByID(ctx, *a.CustomTypeID)
			if err != nil {
				return nil, err
			}
			if err := s.compiler.ValidateTransition(ct, a.CurrentState, targetState); err != nil {
				return nil, err
			}
		} else {
			if err := action.ValidateTransition(*a.Type, a.CurrentState, targetState); err != nil {
				return nil, err
			}
		}

		fromState := a.CurrentState
		if err := s.actions.TransitionState(ctx, a.ID, fromState, targetState, &action.TransitionEvent{
			FromState: fromState,
			ToState:   targetState,
			ActorRole: callerRole,
		}); err != nil {
			if errors.Is(err, action.ErrStateConflict) {
				// Another writer moved the action; reload and re-validate.
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("updating action state: %w", err)
		}
		a.CurrentState = targetState

		s.publish(a, ct, broadcast.EventTransitioned, fromState, targetState)

		if s.onTransitioned != nil {
			s.onTransitioned(s.kindLabel(a, ct))
		}
		s.auditSvc.LogAsync(ctx, AuditEntry{
			UserID: callerID, UserRole: string(callerRole),
			Action: "transition", ResourceType: "action", ResourceID: a.ID.String(), IPAddress: ip,
			Changes: fmt.Sprintf(`{"from":%q,"to":%q}`, fromState, targetState),
		})
		s.log.Info("action transitioned",
			zap.String("action_id", a.ID.String()),
			zap.String("from", fromState),
			zap.String("to", targetState),
			zap.String("actor_role", string(callerRole)),
		)

		return s.view(a, ct), nil
	}

	return nil, fmt.Errorf("transition retries exhausted: %w", lastErr)
}

// GetAction returns one action with derived fields.
func (s *WorkflowService) GetAction(ctx context.Context, id uuid.UUID) (*ActionView, error) {
	a, err := s.actions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ct, err := s.typeFor(ctx, a)
	if err != nil {
		return nil, err
	}
	return s.view(a, ct), nil
}

// ListActions returns a filtered page of actions with derived fields.
func (s *WorkflowService) ListActions(ctx context.Context, q *action.ListActionsQuery) ([]*ActionView, int64, error) {
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	page, err := s.actions.List(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	views := make([]*ActionView, 0, len(page.Actions))
	for _, a := range page.Actions {
		ct, err := s.typeFor(ctx, a)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, s.view(a, ct))
	}
	return views, page.TotalCount, nil
}

// DepartmentQueue lists the open actions on one department queue, gated by
// the queue access table.
func (s *WorkflowService) DepartmentQueue(ctx context.Context, department string, callerRole domain.Role) ([]*ActionView, error) {
	if err := access.AuthorizeQueue(callerRole, department); err != nil {
		return nil, err
	}

	open, err := s.actions.ListNonTerminal(ctx)
	if err != nil {
		return nil, err
	}

	key := access.NormalizeDepartment(department)
	var views []*ActionView
	for _, a := range open {
		onQueue := false
		for _, d := range a.QueueDepartments() {
			if access.NormalizeDepartment(d) == key {
				onQueue = true
				break
			}
		}
		if !onQueue {
			continue
		}
		ct, err := s.typeFor(ctx, a)
		if err != nil {
			return nil, err
		}
		views = append(views, s.view(a, ct))
	}
	return views, nil
}

// Escalations lists every currently-overdue open action, recomputed on demand.
func (s *WorkflowService) Escalations(ctx context.Context) ([]*ActionView, error) {
	open, err := s.actions.ListNonTerminal(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var views []*ActionView
	for _, a := range open {
		ct, err := s.typeFor(ctx, a)
		if err != nil {
			continue
		}
		if sla.IsOverdue(a, ct, now) {
			views = append(views, s.view(a, ct))
		}
	}
	return views, nil
}

// PatientTimeline returns the ordered transition event feed for one patient.
func (s *WorkflowService) PatientTimeline(ctx context.Context, patientID uuid.UUID) ([]*action.TransitionEvent, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.actions.ListEventsByPatient(ctx, patientID)
}

// Only clinicians place orders; other staff work the resulting queues.
func authorizeCreate(role domain.Role) error {
	switch role {
	case domain.RoleAdmin, domain.RoleDoctor:
		return nil
	}
	return fmt.Errorf("%w: %s may not create actions", access.ErrForbidden, role)
}

func (s *WorkflowService) typeFor(ctx context.Context, a *action.Action) (*customtype.CustomActionType, error) {
	if !a.IsCustom() {
		return nil, nil
	}
	return s.types.GetByID(ctx, *a.CustomTypeID)
}

func (s *WorkflowService) view(a *action.Action, ct *customtype.CustomActionType) *ActionView {
	v := &ActionView{
		Action:    a,
		IsOverdue: sla.IsOverdue(a, ct, time.Now()),
	}
	if ct != nil {
		v.CustomTypeName = ct.Name
	}
	return v
}

func (s *WorkflowService) kindLabel(a *action.Action, ct *customtype.CustomActionType) string {
	if ct != nil {
		return ct.Name
	}
	if a.Type != nil {
		return string(*a.Type)
	}
	return "unknown"
}

// medicationWarnings checks a new medication title against the patient's open
// medication orders. The check is advisory: a lookup failure skips it rather
// than failing the create.
func (s *WorkflowService) medicationWarnings(ctx context.Context, patientID uuid.UUID, title string) []safety.Warning {
	open, err := s.actions.ListNonTerminal(ctx)
	if err != nil {
		s.log.Warn("skipping interaction check", zap.Error(err))
		return nil
	}
	var titles []string
	for _, a := range open {
		if a.PatientID != patientID || a.IsCustom() || *a.Type != action.TypeMedication {
			continue
		}
		titles = append(titles, a.Title)
	}
	return safety.CheckInteractions(title, titles)
}

func (s *WorkflowService) publishSafetyAlert(a *action.Action, w safety.Warning) {
	ev := broadcast.Event{
		Type:      broadcast.EventSafetyAlert,
		ActionID:  a.ID,
		PatientID: a.PatientID,
		ToState:   a.CurrentState,
		Priority:  a.Priority,
		Message:   w.Message,
		Timestamp: time.Now().UTC(),
	}
	s.hub.Publish(broadcast.KeyPatient, a.PatientID.String(), ev)
	s.hub.Publish(broadcast.KeyGlobal, "", ev)
}

func (s *WorkflowService) publish(a *action.Action, ct *customtype.CustomActionType, t broadcast.EventType, from, to string) {
	ev := broadcast.Event{
		Type:       t,
		ActionID:   a.ID,
		PatientID:  a.PatientID,
		Department: a.Department,
		FromState:  from,
		ToState:    to,
		Priority:   a.Priority,
		IsOverdue:  sla.IsOverdue(a, ct, time.Now()),
		Timestamp:  time.Now().UTC(),
	}
	s.hub.Publish(broadcast.KeyPatient, a.PatientID.String(), ev)
	s.hub.Publish(broadcast.KeyDepartment, a.Department, ev)
	s.hub.Publish(broadcast.KeyGlobal, "", ev)
}
