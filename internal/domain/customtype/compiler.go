package customtype

import (
	"fmt"
	"sync"

	"github.com/clavis-health/clavis/internal/domain/action"
	"github.com/google/uuid"
)

// TransitionMap is the compiled form of a definition: each state maps to its
// legal successors. Sequential-forward-only, so every entry has at most one.
type TransitionMap map[string][]string

// Compile turns an ordered state list into a transition map. The last state
// gets an empty successor set and is terminal.
func Compile(states []string) (TransitionMap, error) {
	if len(states) < 2 {
		return nil, ErrTooFewStates
	}
	seen := make(map[string]struct{}, len(states))
	tm := make(TransitionMap, len(states))
	for i, s := range states {
		if s == "" {
			return nil, ErrEmptyStateName
		}
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateState, s)
		}
		seen[s] = struct{}{}
		if i < len(states)-1 {
			tm[s] = []string{states[i+1]}
		} else {
			tm[s] = []string{}
		}
	}
	return tm, nil
}

// Compiler caches compiled transition maps per definition id. Definitions are
// immutable once referenced, so compile-once-reuse is safe.
type Compiler struct {
	mu    sync.RWMutex
	cache map[uuid.UUID]TransitionMap
}

func NewCompiler() *Compiler {
	return &Compiler{cache: make(map[uuid.UUID]TransitionMap)}
}

func (c *Compiler) TransitionMap(ct *CustomActionType) (TransitionMap, error) {
	c.mu.RLock()
	tm, ok := c.cache[ct.ID]
	c.mu.RUnlock()
	if ok {
		return tm, nil
	}

	tm, err := Compile(ct.States)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if cached, ok := c.cache[ct.ID]; ok {
		tm = cached
	} else {
		c.cache[ct.ID] = tm
	}
	c.mu.Unlock()
	return tm, nil
}

// LegalNextStates returns the legal successors of current under a definition.
func (c *Compiler) LegalNextStates(ct *CustomActionType, current string) ([]string, error) {
	tm, err := c.TransitionMap(ct)
	if err != nil {
		return nil, err
	}
	next := tm[current]
	out := make([]string, len(next))
	copy(out, next)
	return out, nil
}

// ValidateTransition checks requested against the compiled map, reusing the
// fixed-kind error taxonomy so callers handle both uniformly.
func (c *Compiler) ValidateTransition(ct *CustomActionType, current, requested string) error {
	tm, err := c.TransitionMap(ct)
	if err != nil {
		return err
	}
	next, known := tm[current]
	if !known {
		return fmt.Errorf("%w: no transitions from state %q for custom type %q", action.ErrInvalidTransition, current, ct.Name)
	}
	if len(next) == 0 {
		return action.ErrAlreadyTerminal
	}
	for _, s := range next {
		if s == requested {
			return nil
		}
	}
	return fmt.Errorf("%w: custom type %q cannot go from %q to %q", action.ErrInvalidTransition, ct.Name, current, requested)
}
