package action

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists the action together with its creation event in one
	// transaction, so no action exists without its first event.
	Create(ctx context.Context, a *Action, created *TransitionEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Action, error)

	// TransitionState updates current_state with a compare-and-set on the
	// expected source state and appends the transition event in the same
	// transaction, returning ErrStateConflict when another writer got there
	// first. The event is not written unless the compare-and-set lands.
	TransitionState(ctx context.Context, id uuid.UUID, fromState, toState string, e *TransitionEvent) error

	ListEventsByPatient(ctx context.Context, patientID uuid.UUID) ([]*TransitionEvent, error)

	List(ctx context.Context, q *ListActionsQuery) (*PagedActions, error)
	// ListNonTerminal returns every action not yet in a terminal state; the
	// escalation sweep walks this set each cycle.
	ListNonTerminal(ctx context.Context) ([]*Action, error)
}
