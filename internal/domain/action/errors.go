package action

import (
	"errors"
	"fmt"
)

var (
	ErrActionNotFound       = errors.New("action not found")
	ErrUnknownActionType    = errors.New("unknown action type")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrAmbiguousWorkflowRef = errors.New("set action type or custom type id, not both")
	ErrMissingWorkflowRef   = errors.New("action type or custom type id is required")

	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAlreadyTerminal wraps ErrInvalidTransition so callers matching the
	// broader failure still catch it, while handlers can surface the more
	// specific message.
	ErrAlreadyTerminal = fmt.Errorf("action is already in a terminal state: %w", ErrInvalidTransition)

	// ErrStateConflict reports a lost compare-and-set race on current_state.
	ErrStateConflict = errors.New("action state changed concurrently")
)
