package customtype

import (
	"errors"
	"fmt"
)

// ErrInvalidDefinition is the umbrella failure for malformed custom workflow
// definitions; the specific causes below all wrap it.
var ErrInvalidDefinition = errors.New("invalid custom workflow definition")

var (
	ErrTooFewStates    = fmt.Errorf("%w: at least 2 states required", ErrInvalidDefinition)
	ErrDuplicateState  = fmt.Errorf("%w: duplicate state name", ErrInvalidDefinition)
	ErrEmptyStateName  = fmt.Errorf("%w: empty state name", ErrInvalidDefinition)
	ErrTerminalNotLast = fmt.Errorf("%w: terminal state must be the last state", ErrInvalidDefinition)

	ErrTypeNotFound      = errors.New("custom action type not found")
	ErrTypeAlreadyExists = errors.New("custom action type already exists")
	ErrTypeInUse         = errors.New("custom action type is referenced by actions and cannot be changed")
)
