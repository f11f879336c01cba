package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clavis-health/clavis/internal/access"
	"github.com/clavis-health/clavis/internal/broadcast"
	"github.com/clavis-health/clavis/internal/domain"
	"github.com/clavis-health/clavis/internal/domain/action"
	"github.com/clavis-health/clavis/internal/domain/customtype"
	"github.com/clavis-health/clavis/internal/domain/patient"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memActionRepo is a mutex-guarded in-memory action store with the same
// compare-and-set semantics as the SQL implementation.
type memActionRepo struct {
	mu      sync.Mutex
	actions map[uuid.UUID]*action.Action
	events  []*action.TransitionEvent
}

func newMemActionRepo() *memActionRepo {
	return &memActionRepo{actions: make(map[uuid.UUID]*action.Action)}
}

func (r *memActionRepo) Create(_ context.Context, a *action.Action, created *action.TransitionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	r.actions[a.ID] = &cp
	ev := *created
	ev.ActionID = a.ID
	ev.Timestamp = time.Now().UTC()
	r.events = append(r.events, &ev)
	return nil
}

func (r *memActionRepo) GetByID(_ context.Context, id uuid.UUID) (*action.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actions[id]
	if !ok {
		return nil, action.ErrActionNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memActionRepo) TransitionState(_ context.Context, id uuid.UUID, fromState, toState string, e *action.TransitionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actions[id]
	if !ok {
		return action.ErrActionNotFound
	}
	if a.CurrentState != fromState {
		return action.ErrStateConflict
	}
	a.CurrentState = toState
	ev := *e
	ev.ActionID = id
	ev.Timestamp = time.Now().UTC()
	r.events = append(r.events, &ev)
	return nil
}

func (r *memActionRepo) ListEventsByPatient(_ context.Context, patientID uuid.UUID) ([]*action.TransitionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byAction := make(map[uuid.UUID]bool)
	for id, a := range r.actions {
		if a.PatientID == patientID {
			byAction[id] = true
		}
	}
	var out []*action.TransitionEvent
	for _, e := range r.events {
		if byAction[e.ActionID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memActionRepo) List(_ context.Context, q *action.ListActionsQuery) (*action.PagedActions, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*action.Action
	for _, a := range r.actions {
		cp := *a
		out = append(out, &cp)
	}
	return &action.PagedActions{Actions: out, TotalCount: int64(len(out))}, nil
}

func (r *memActionRepo) ListNonTerminal(_ context.Context) ([]*action.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*action.Action
	for _, a := range r.actions {
		if !a.IsCustom() && action.IsTerminal(*a.Type, a.CurrentState) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memActionRepo) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type memTypeRepo struct {
	mu    sync.Mutex
	types map[uuid.UUID]*customtype.CustomActionType
}

func newMemTypeRepo() *memTypeRepo {
	return &memTypeRepo{types: make(map[uuid.UUID]*customtype.CustomActionType)}
}

func (r *memTypeRepo) Create(_ context.Context, ct *customtype.CustomActionType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ct.ID == uuid.Nil {
		ct.ID = uuid.New()
	}
	r.types[ct.ID] = ct
	return nil
}

func (r *memTypeRepo) Update(_ context.Context, ct *customtype.CustomActionType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[ct.ID] = ct
	return nil
}

func (r *memTypeRepo) GetByID(_ context.Context, id uuid.UUID) (*customtype.CustomActionType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ct, ok := r.types[id]
	if !ok {
		return nil, customtype.ErrTypeNotFound
	}
	return ct, nil
}

func (r *memTypeRepo) GetByName(_ context.Context, name string) (*customtype.CustomActionType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ct := range r.types {
		if ct.Name == name {
			return ct, nil
		}
	}
	return nil, customtype.ErrTypeNotFound
}

func (r *memTypeRepo) List(_ context.Context) ([]*customtype.CustomActionType, error) {
	return nil, nil
}

func (r *memTypeRepo) CountActionsReferencing(context.Context, uuid.UUID) (int64, error) {
	return 0, nil
}

type memPatientRepo struct {
	patients map[uuid.UUID]*patient.Patient
	notes    []*patient.Note
}

func (r *memPatientRepo) Create(_ context.Context, p *patient.Patient) error {
	r.patients[p.ID] = p
	return nil
}

func (r *memPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return p, nil
}

func (r *memPatientRepo) GetByMRN(_ context.Context, mrn string) (*patient.Patient, error) {
	for _, p := range r.patients {
		if p.MRN == mrn {
			return p, nil
		}
	}
	return nil, patient.ErrPatientNotFound
}

func (r *memPatientRepo) List(context.Context, int, int) ([]*patient.Patient, int64, error) {
	return nil, 0, nil
}

func (r *memPatientRepo) CreateNote(_ context.Context, n *patient.Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now().UTC()
	r.notes = append(r.notes, n)
	return nil
}

func (r *memPatientRepo) ListNotes(_ context.Context, patientID uuid.UUID) ([]*patient.Note, error) {
	var out []*patient.Note
	for _, n := range r.notes {
		if n.PatientID == patientID {
			out = append(out, n)
		}
	}
	return out, nil
}

type noopAuditRepo struct{}

func (noopAuditRepo) Create(context.Context, *domain.AuditLog) error { return nil }

type workflowFixture struct {
	svc       *WorkflowService
	actions   *memActionRepo
	types     *memTypeRepo
	patients  *memPatientRepo
	hub       *broadcast.Hub
	patientID uuid.UUID
	doctorID  uuid.UUID
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	actions := newMemActionRepo()
	types := newMemTypeRepo()
	patients := &memPatientRepo{patients: make(map[uuid.UUID]*patient.Patient)}
	hub := broadcast.NewHub(zap.NewNop())
	auditSvc := NewAuditService(noopAuditRepo{}, zap.NewNop())
	t.Cleanup(auditSvc.Shutdown)

	p := &patient.Patient{ID: uuid.New(), MRN: "MRN-0001", IsActive: true}
	patients.patients[p.ID] = p

	return &workflowFixture{
		svc:       NewWorkflowService(actions, types, patients, customtype.NewCompiler(), hub, auditSvc, zap.NewNop()),
		actions:   actions,
		types:     types,
		patients:  patients,
		hub:       hub,
		patientID: p.ID,
		doctorID:  uuid.New(),
	}
}

func (f *workflowFixture) createFixed(t *testing.T, kind action.ActionType, priority domain.Priority) *ActionView {
	t.Helper()
	kindCopy := kind
	view, err := f.svc.CreateAction(context.Background(), &action.CreateActionCommand{
		PatientID: f.patientID,
		Type:      &kindCopy,
		Priority:  priority,
		Title:     "test order",
	}, f.doctorID, domain.RoleDoctor, "10.0.0.1")
	require.NoError(t, err)
	return view
}

func TestCreateActionFixedKind(t *testing.T) {
	f := newWorkflowFixture(t)

	view := f.createFixed(t, action.TypeMedication, domain.PriorityUrgent)

	require.Equal(t, "PRESCRIBED", view.CurrentState)
	require.Equal(t, "pharmacy", access.NormalizeDepartment(view.Department))
	require.False(t, view.IsOverdue)
	require.WithinDuration(t, view.CreatedAt.Add(30*time.Minute), view.SLADeadline, time.Second)
	require.Equal(t, 1, f.actions.eventCount(), "creation must append one event")
}

func TestCreateActionRejectsNonClinicians(t *testing.T) {
	f := newWorkflowFixture(t)
	kind := action.TypeDiagnostic

	for _, role := range []domain.Role{domain.RoleNurse, domain.RolePharmacist, domain.RoleLabTech} {
		_, err := f.svc.CreateAction(context.Background(), &action.CreateActionCommand{
			PatientID: f.patientID,
			Type:      &kind,
			Priority:  domain.PriorityRoutine,
		}, uuid.New(), role, "")
		require.ErrorIs(t, err, access.ErrForbidden, "role %s", role)
	}
}

func TestCreateActionRejectsAmbiguousRef(t *testing.T) {
	f := newWorkflowFixture(t)
	kind := action.TypeReferral
	ctID := uuid.New()

	_, err := f.svc.CreateAction(context.Background(), &action.CreateActionCommand{
		PatientID:    f.patientID,
		Type:         &kind,
		CustomTypeID: &ctID,
		Priority:     domain.PriorityRoutine,
	}, f.doctorID, domain.RoleDoctor, "")
	require.ErrorIs(t, err, action.ErrAmbiguousWorkflowRef)

	_, err = f.svc.CreateAction(context.Background(), &action.CreateActionCommand{
		PatientID: f.patientID,
		Priority:  domain.PriorityRoutine,
	}, f.doctorID, domain.RoleDoctor, "")
	require.ErrorIs(t, err, action.ErrMissingWorkflowRef)
}

func TestCreateActionInactivePatient(t *testing.T) {
	f := newWorkflowFixture(t)
	inactive := &patient.Patient{ID: uuid.New(), MRN: "MRN-0002", IsActive: false}
	f.patients.patients[inactive.ID] = inactive

	kind := action.TypeVitalsRequest
	_, err := f.svc.CreateAction(context.Background(), &action.CreateActionCommand{
		PatientID: inactive.ID,
		Type:      &kind,
		Priority:  domain.PriorityRoutine,
	}, f.doctorID, domain.RoleDoctor, "")
	require.Error(t, err)
}

func TestMedicationLifecycle(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	view := f.createFixed(t, action.TypeMedication, domain.PriorityUrgent)

	// Doctor cannot dispense.
	_, err := f.svc.RequestTransition(ctx, view.ID, "DISPENSED", uuid.New(), domain.RoleDoctor, "")
	require.ErrorIs(t, err, access.ErrForbidden)

	dispensed, err := f.svc.RequestTransition(ctx, view.ID, "DISPENSED", uuid.New(), domain.RolePharmacist, "")
	require.NoError(t, err)
	require.Equal(t, "DISPENSED", dispensed.CurrentState)

	// Skipping back is rejected without touching the record.
	_, err = f.svc.RequestTransition(ctx, view.ID, "PRESCRIBED", uuid.New(), domain.RoleAdmin, "")
	require.ErrorIs(t, err, action.ErrInvalidTransition)

	administered, err := f.svc.RequestTransition(ctx, view.ID, "ADMINISTERED", uuid.New(), domain.RoleNurse, "")
	require.NoError(t, err)
	require.Equal(t, "ADMINISTERED", administered.CurrentState)

	// Terminal actions reject everything with the dedicated error.
	_, err = f.svc.RequestTransition(ctx, view.ID, "DISPENSED", uuid.New(), domain.RoleAdmin, "")
	require.ErrorIs(t, err, action.ErrAlreadyTerminal)

	// create + 2 transitions.
	require.Equal(t, 3, f.actions.eventCount())
}

func TestDeniedTransitionLeavesNoTrace(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	view := f.createFixed(t, action.TypeReferral, domain.PriorityRoutine)
	before := f.actions.eventCount()

	global := make(chan broadcast.Event, 8)
	sub := f.hub.Subscribe(broadcast.KeyGlobal, "", chanSink(global))
	defer sub.Close()

	_, err := f.svc.RequestTransition(ctx, view.ID, "ACKNOWLEDGED", uuid.New(), domain.RoleNurse, "")
	require.ErrorIs(t, err, access.ErrForbidden)

	reloaded, err := f.svc.GetAction(ctx, view.ID)
	require.NoError(t, err)
	require.Equal(t, "INITIATED", reloaded.CurrentState, "denied request must not mutate state")
	require.Equal(t, before, f.actions.eventCount(), "denied request must not append events")

	select {
	case ev := <-global:
		t.Fatalf("denied request must not broadcast, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConcurrentTransitionSingleWinner(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	view := f.createFixed(t, action.TypeDiagnostic, domain.PriorityRoutine)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.RequestTransition(ctx, view.ID, "SAMPLE_COLLECTED", uuid.New(), domain.RoleLabTech, "")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, action.ErrInvalidTransition)
		}
	}
	require.Equal(t, 1, winners, "exactly one racer may win the transition")

	reloaded, err := f.svc.GetAction(ctx, view.ID)
	require.NoError(t, err)
	require.Equal(t, "SAMPLE_COLLECTED", reloaded.CurrentState)
	// One creation event plus exactly one transition event.
	require.Equal(t, 2, f.actions.eventCount())
}

func TestCustomWorkflowLifecycle(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	ct := &customtype.CustomActionType{
		ID:                 uuid.New(),
		Name:               "wound-care",
		Department:         "nursing",
		States:             []string{"OPENED", "DRESSED", "HEALED"},
		TerminalState:      "HEALED",
		SLARoutineMinutes:  240,
		SLAUrgentMinutes:   60,
		SLACriticalMinutes: 15,
	}
	require.NoError(t, f.types.Create(ctx, ct))

	view, err := f.svc.CreateAction(ctx, &action.CreateActionCommand{
		PatientID:    f.patientID,
		CustomTypeID: &ct.ID,
		Priority:     domain.PriorityUrgent,
		Title:        "dress forearm wound",
	}, f.doctorID, domain.RoleDoctor, "")
	require.NoError(t, err)
	require.Equal(t, "OPENED", view.CurrentState)
	require.Equal(t, "nursing", view.Department)
	require.Equal(t, "wound-care", view.CustomTypeName)
	require.WithinDuration(t, view.CreatedAt.Add(60*time.Minute), view.SLADeadline, time.Second)

	// Department role advances; skipping is rejected.
	_, err = f.svc.RequestTransition(ctx, view.ID, "HEALED", uuid.New(), domain.RoleNurse, "")
	require.ErrorIs(t, err, action.ErrInvalidTransition)

	dressed, err := f.svc.RequestTransition(ctx, view.ID, "DRESSED", uuid.New(), domain.RoleNurse, "")
	require.NoError(t, err)
	require.Equal(t, "DRESSED", dressed.CurrentState)

	healed, err := f.svc.RequestTransition(ctx, view.ID, "HEALED", uuid.New(), domain.RoleNurse, "")
	require.NoError(t, err)
	require.Equal(t, "HEALED", healed.CurrentState)

	_, err = f.svc.RequestTransition(ctx, view.ID, "OPENED", uuid.New(), domain.RoleAdmin, "")
	require.ErrorIs(t, err, action.ErrAlreadyTerminal)
}

func TestEscalationsListsOnlyOverdueOpenActions(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	overdue := f.createFixed(t, action.TypeDiagnostic, domain.PriorityCritical)
	fresh := f.createFixed(t, action.TypeReferral, domain.PriorityRoutine)
	_ = fresh

	// Backdate the deadline directly in the store.
	f.actions.mu.Lock()
	f.actions.actions[overdue.ID].SLADeadline = time.Now().Add(-time.Minute)
	f.actions.mu.Unlock()

	views, err := f.svc.Escalations(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, overdue.ID, views[0].ID)
	require.True(t, views[0].IsOverdue)
}

func TestDepartmentQueueGatedAndFiltered(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	med := f.createFixed(t, action.TypeMedication, domain.PriorityRoutine)
	_ = f.createFixed(t, action.TypeReferral, domain.PriorityRoutine)

	_, err := f.svc.DepartmentQueue(ctx, "pharmacy", domain.RoleLabTech)
	require.ErrorIs(t, err, access.ErrForbidden)

	queue, err := f.svc.DepartmentQueue(ctx, "Pharmacy", domain.RolePharmacist)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	require.Equal(t, med.ID, queue[0].ID)
}

func TestPatientTimelineOrderedEvents(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	view := f.createFixed(t, action.TypeVitalsRequest, domain.PriorityRoutine)
	_, err := f.svc.RequestTransition(ctx, view.ID, "RECORDED", uuid.New(), domain.RoleNurse, "")
	require.NoError(t, err)

	events, err := f.svc.PatientTimeline(ctx, f.patientID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "", events[0].FromState)
	require.Equal(t, "ORDERED", events[0].ToState)
	require.Equal(t, "RECORDED", events[1].ToState)

	_, err = f.svc.PatientTimeline(ctx, uuid.New())
	require.ErrorIs(t, err, patient.ErrPatientNotFound)
}

func TestTransitionRetriesExhaustedSurfacesConflict(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	view := f.createFixed(t, action.TypeCareInstruction, domain.PriorityRoutine)

	// A repo that always loses the compare-and-set simulates a hot remote
	// writer on another replica.
	conflicted := &conflictingRepo{memActionRepo: f.actions}
	svc := NewWorkflowService(conflicted, f.types, f.patients, customtype.NewCompiler(), f.hub, NewAuditService(noopAuditRepo{}, zap.NewNop()), zap.NewNop())

	_, err := svc.RequestTransition(ctx, view.ID, "ACKNOWLEDGED", uuid.New(), domain.RoleNurse, "")
	require.Error(t, err)
	require.ErrorIs(t, err, action.ErrStateConflict)
	require.Equal(t, 1, f.actions.eventCount(), "a lost compare-and-set must not append an event")
}

type conflictingRepo struct {
	*memActionRepo
}

func (r *conflictingRepo) TransitionState(context.Context, uuid.UUID, string, string, *action.TransitionEvent) error {
	return action.ErrStateConflict
}

func TestCreatedHookFiresWithKindLabel(t *testing.T) {
	f := newWorkflowFixture(t)

	var labels []string
	f.svc.OnCreated(func(kind string) { labels = append(labels, kind) })

	f.createFixed(t, action.TypeMedication, domain.PriorityRoutine)
	require.Equal(t, []string{string(action.TypeMedication)}, labels)
}

func TestBroadcastFanOutOnTransition(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	view := f.createFixed(t, action.TypeMedication, domain.PriorityUrgent)

	patientEvents := make(chan broadcast.Event, 8)
	globalEvents := make(chan broadcast.Event, 8)
	subP := f.hub.Subscribe(broadcast.KeyPatient, f.patientID.String(), chanSink(patientEvents))
	defer subP.Close()
	subG := f.hub.Subscribe(broadcast.KeyGlobal, "", chanSink(globalEvents))
	defer subG.Close()

	_, err := f.svc.RequestTransition(ctx, view.ID, "DISPENSED", uuid.New(), domain.RolePharmacist, "")
	require.NoError(t, err)

	for name, ch := range map[string]chan broadcast.Event{"patient": patientEvents, "global": globalEvents} {
		select {
		case ev := <-ch:
			require.Equal(t, broadcast.EventTransitioned, ev.Type, name)
			require.Equal(t, "PRESCRIBED", ev.FromState, name)
			require.Equal(t, "DISPENSED", ev.ToState, name)
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s event delivered", name)
		}
	}
}

func (f *workflowFixture) createMedication(t *testing.T, title string) *ActionView {
	t.Helper()
	kind := action.TypeMedication
	view, err := f.svc.CreateAction(context.Background(), &action.CreateActionCommand{
		PatientID: f.patientID,
		Type:      &kind,
		Priority:  domain.PriorityRoutine,
		Title:     title,
	}, f.doctorID, domain.RoleDoctor, "")
	require.NoError(t, err)
	return view
}

func TestMedicationInteractionWarningsOnCreate(t *testing.T) {
	f := newWorkflowFixture(t)

	first := f.createMedication(t, "Warfarin 2mg")
	require.Empty(t, first.Warnings)

	global := make(chan broadcast.Event, 8)
	sub := f.hub.Subscribe(broadcast.KeyGlobal, "", chanSink(global))
	defer sub.Close()

	second := f.createMedication(t, "Amoxicillin 500mg")
	require.Len(t, second.Warnings, 1)
	require.Equal(t, "amoxicillin", second.Warnings[0].NewDrug)
	require.Equal(t, "warfarin", second.Warnings[0].ExistingDrug)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-global:
			if ev.Type != broadcast.EventSafetyAlert {
				continue
			}
			require.Equal(t, second.ID, ev.ActionID)
			require.Contains(t, ev.Message, "amoxicillin")
			return
		case <-deadline:
			t.Fatal("no safety alert broadcast")
		}
	}
}

func TestMedicationWarningsIgnoreCompletedAndOtherPatients(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	// A fully administered course no longer counts as an open medication.
	done := f.createMedication(t, "Warfarin 2mg")
	_, err := f.svc.RequestTransition(ctx, done.ID, "DISPENSED", uuid.New(), domain.RolePharmacist, "")
	require.NoError(t, err)
	_, err = f.svc.RequestTransition(ctx, done.ID, "ADMINISTERED", uuid.New(), domain.RoleNurse, "")
	require.NoError(t, err)

	// Another patient's open warfarin must not leak into this chart.
	other := &patient.Patient{ID: uuid.New(), MRN: "MRN-0002", IsActive: true}
	f.patients.patients[other.ID] = other
	kind := action.TypeMedication
	_, err = f.svc.CreateAction(ctx, &action.CreateActionCommand{
		PatientID: other.ID,
		Type:      &kind,
		Priority:  domain.PriorityRoutine,
		Title:     "Warfarin 5mg",
	}, f.doctorID, domain.RoleDoctor, "")
	require.NoError(t, err)

	view := f.createMedication(t, "Amoxicillin 500mg")
	require.Empty(t, view.Warnings)
}

type failingCreateRepo struct {
	*memActionRepo
}

func (r *failingCreateRepo) Create(context.Context, *action.Action, *action.TransitionEvent) error {
	return errors.New("insert failed")
}

func TestCreateActionFailureWritesNoEvent(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := NewWorkflowService(&failingCreateRepo{f.actions}, f.types, f.patients, customtype.NewCompiler(), f.hub, NewAuditService(noopAuditRepo{}, zap.NewNop()), zap.NewNop())

	kind := action.TypeCareInstruction
	_, err := svc.CreateAction(context.Background(), &action.CreateActionCommand{
		PatientID: f.patientID,
		Type:      &kind,
		Priority:  domain.PriorityRoutine,
	}, f.doctorID, domain.RoleDoctor, "")
	require.Error(t, err)
	require.Equal(t, 0, f.actions.eventCount(), "failed create must leave no event behind")
}

type chanSink chan broadcast.Event

func (c chanSink) Send(ev broadcast.Event) error {
	select {
	case c <- ev:
		return nil
	default:
		return errors.New("sink full")
	}
}
