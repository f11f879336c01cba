// Package sla derives action deadlines from priority and decides overdue
// status. Deadlines are computed once at creation; overdue status is never
// stored, only re-derived from the action's fields.
package sla

import (
	"time"

	"github.com/clavis-health/clavis/internal/domain"
	"github.com/clavis-health/clavis/internal/domain/action"
	"github.com/clavis-health/clavis/internal/domain/customtype"
)

// Fixed kinds share one duration table, applied uniformly.
var fixedDurations = map[domain.Priority]time.Duration{
	domain.PriorityRoutine:  120 * time.Minute,
	domain.PriorityUrgent:   30 * time.Minute,
	domain.PriorityCritical: 10 * time.Minute,
}

// DeadlineFor computes the SLA deadline for a fixed-kind action.
func DeadlineFor(p domain.Priority, createdAt time.Time) (time.Time, error) {
	d, ok := fixedDurations[p]
	if !ok {
		return time.Time{}, domain.ErrUnknownPriority
	}
	return createdAt.Add(d), nil
}

// CustomDeadlineFor computes the deadline from a definition's own per-priority
// minute table.
func CustomDeadlineFor(ct *customtype.CustomActionType, p domain.Priority, createdAt time.Time) (time.Time, error) {
	minutes, err := ct.SLAMinutes(p)
	if err != nil {
		return time.Time{}, err
	}
	return createdAt.Add(time.Duration(minutes) * time.Minute), nil
}

// IsTerminalState resolves terminality for either variant of the action's
// workflow. ct must be the action's definition when the action is custom and
// may be nil otherwise.
func IsTerminalState(a *action.Action, ct *customtype.CustomActionType) bool {
	if a.IsCustom() {
		return ct != nil && ct.IsTerminal(a.CurrentState)
	}
	if a.Type == nil {
		return false
	}
	return action.IsTerminal(*a.Type, a.CurrentState)
}

// IsOverdue reports whether the action has blown its SLA at instant now.
// Terminal actions are never overdue. Deadline equality is not overdue;
// only strictly past the deadline counts.
func IsOverdue(a *action.Action, ct *customtype.CustomActionType, now time.Time) bool {
	if IsTerminalState(a, ct) {
		return false
	}
	if a.SLADeadline.IsZero() {
		return false
	}
	return now.After(a.SLADeadline)
}
