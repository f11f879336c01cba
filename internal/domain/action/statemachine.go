package action

import (
	"fmt"
	"sort"
)

// validTransitions is the fixed-kind transition table. A state mapped to an
// empty successor list is terminal for that kind. State names are
// case-sensitive.
var validTransitions = map[ActionType]map[string][]string{
	TypeDiagnostic: {
		"REQUESTED":        {"SAMPLE_COLLECTED"},
		"SAMPLE_COLLECTED": {"PROCESSING"},
		"PROCESSING":       {"COMPLETED"},
		"COMPLETED":        {},
	},
	TypeMedication: {
		"PRESCRIBED":   {"DISPENSED"},
		"DISPENSED":    {"ADMINISTERED"},
		"ADMINISTERED": {},
	},
	TypeReferral: {
		"INITIATED":    {"ACKNOWLEDGED"},
		"ACKNOWLEDGED": {"REVIEWED"},
		"REVIEWED":     {"CLOSED"},
		"CLOSED":       {},
	},
	TypeCareInstruction: {
		"ISSUED":       {"ACKNOWLEDGED"},
		"ACKNOWLEDGED": {"IN_PROGRESS"},
		"IN_PROGRESS":  {"COMPLETED"},
		"COMPLETED":    {},
	},
	TypeVitalsRequest: {
		"ORDERED":   {"RECORDED"},
		"RECORDED":  {"COMPLETED"},
		"COMPLETED": {},
	},
}

var initialStates = map[ActionType]string{
	TypeDiagnostic:      "REQUESTED",
	TypeMedication:      "PRESCRIBED",
	TypeReferral:        "INITIATED",
	TypeCareInstruction: "ISSUED",
	TypeVitalsRequest:   "ORDERED",
}

// TerminalStateNames returns the closed set of terminal state names across
// all fixed kinds. Case-sensitive; storage queries filter open actions on it.
func TerminalStateNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, transitions := range validTransitions {
		for state, next := range transitions {
			if len(next) != 0 {
				continue
			}
			if _, dup := seen[state]; dup {
				continue
			}
			seen[state] = struct{}{}
			names = append(names, state)
		}
	}
	sort.Strings(names)
	return names
}

// InitialState returns the first state of a fixed kind's workflow.
func InitialState(t ActionType) (string, error) {
	s, ok := initialStates[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownActionType, t)
	}
	return s, nil
}

// LegalNextStates returns the legal successors of current for a fixed kind.
// Terminal states and unknown states both yield an empty set; use IsTerminal
// to tell them apart.
func LegalNextStates(t ActionType, current string) []string {
	transitions, ok := validTransitions[t]
	if !ok {
		return nil
	}
	next := transitions[current]
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether state has no legal successors for a fixed kind.
func IsTerminal(t ActionType, state string) bool {
	transitions, ok := validTransitions[t]
	if !ok {
		return false
	}
	next, known := transitions[state]
	return known && len(next) == 0
}

// ValidateTransition checks that requested is a legal successor of current.
// Skipping, reordering, and re-entering prior states are all rejected.
func ValidateTransition(t ActionType, current, requested string) error {
	transitions, ok := validTransitions[t]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownActionType, t)
	}
	next, known := transitions[current]
	if !known {
		return fmt.Errorf("%w: no transitions from state %q for %s", ErrInvalidTransition, current, t)
	}
	if len(next) == 0 {
		return ErrAlreadyTerminal
	}
	for _, s := range next {
		if s == requested {
			return nil
		}
	}
	return fmt.Errorf("%w: %s cannot go from %q to %q", ErrInvalidTransition, t, current, requested)
}
