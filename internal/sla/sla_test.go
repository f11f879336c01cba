package sla

import (
	"errors"
	"testing"
	"time"

	"github.com/clavis-health/clavis/internal/domain"
	"github.com/clavis-health/clavis/internal/domain/action"
	"github.com/clavis-health/clavis/internal/domain/customtype"
	"github.com/google/uuid"
)

func fixedAction(t *testing.T, kind action.ActionType, priority domain.Priority, state string, deadline time.Time) *action.Action {
	t.Helper()
	a, err := action.NewAction(action.FixedRef(kind), uuid.New(), priority, state, "general_medicine", uuid.New())
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}
	a.SLADeadline = deadline
	return a
}

func TestDeadlineFor(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	cases := map[domain.Priority]time.Duration{
		domain.PriorityRoutine:  120 * time.Minute,
		domain.PriorityUrgent:   30 * time.Minute,
		domain.PriorityCritical: 10 * time.Minute,
	}
	for p, offset := range cases {
		got, err := DeadlineFor(p, createdAt)
		if err != nil {
			t.Fatalf("DeadlineFor(%s): %v", p, err)
		}
		if want := createdAt.Add(offset); !got.Equal(want) {
			t.Errorf("DeadlineFor(%s) = %v, want %v", p, got, want)
		}
	}

	if _, err := DeadlineFor(domain.Priority("STAT"), createdAt); !errors.Is(err, domain.ErrUnknownPriority) {
		t.Errorf("unknown priority should fail, got %v", err)
	}
}

func TestCustomDeadlineForUsesDefinitionTable(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ct := &customtype.CustomActionType{
		States:             []string{"A", "B"},
		TerminalState:      "B",
		SLARoutineMinutes:  240,
		SLAUrgentMinutes:   45,
		SLACriticalMinutes: 5,
	}

	got, err := CustomDeadlineFor(ct, domain.PriorityCritical, createdAt)
	if err != nil {
		t.Fatalf("CustomDeadlineFor: %v", err)
	}
	if want := createdAt.Add(5 * time.Minute); !got.Equal(want) {
		t.Errorf("CustomDeadlineFor = %v, want %v", got, want)
	}
}

func TestIsOverdueStrictlyAfterDeadline(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := fixedAction(t, action.TypeDiagnostic, domain.PriorityUrgent, "PROCESSING", deadline)

	if IsOverdue(a, nil, deadline.Add(-time.Second)) {
		t.Error("before the deadline must not be overdue")
	}
	if IsOverdue(a, nil, deadline) {
		t.Error("exactly at the deadline must not be overdue")
	}
	if !IsOverdue(a, nil, deadline.Add(time.Second)) {
		t.Error("past the deadline must be overdue")
	}
}

func TestIsOverdueTerminalNeverOverdue(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := fixedAction(t, action.TypeMedication, domain.PriorityCritical, "ADMINISTERED", deadline)

	if IsOverdue(a, nil, deadline.Add(24*time.Hour)) {
		t.Error("terminal actions are never overdue, however far past the deadline")
	}
}

func TestIsOverdueZeroDeadline(t *testing.T) {
	a := fixedAction(t, action.TypeReferral, domain.PriorityRoutine, "INITIATED", time.Time{})
	if IsOverdue(a, nil, time.Now()) {
		t.Error("actions without a deadline must not report overdue")
	}
}

func TestIsOverdueCustomTerminal(t *testing.T) {
	ct := &customtype.CustomActionType{
		ID:            uuid.New(),
		States:        []string{"OPENED", "RESOLVED"},
		TerminalState: "RESOLVED",
	}
	deadline := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	a, err := action.NewAction(action.CustomRef(ct.ID), uuid.New(), domain.PriorityUrgent, "RESOLVED", "nursing", uuid.New())
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}
	a.SLADeadline = deadline

	if IsOverdue(a, ct, deadline.Add(time.Hour)) {
		t.Error("custom terminal state must not report overdue")
	}

	a.CurrentState = "OPENED"
	if !IsOverdue(a, ct, deadline.Add(time.Hour)) {
		t.Error("open custom action past its deadline must report overdue")
	}
}
