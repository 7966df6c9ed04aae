package validator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/fluxstate/fluxfsm/statemachine"
)

var (
	// ErrTransitionNotFound is returned when a fix refers to a transition the definition no longer has.
	ErrTransitionNotFound = errors.New("transition not found")
	// ErrHandlerNotFound is returned when a fix refers to a handler the definition no longer has.
	ErrHandlerNotFound = errors.New("handler not found")
)

// Fix is an automatic correction of the definition a machine was built from.
// Transition positions in a snapshot match the definition's only when the
// machine was built by statemachine.Build from that definition.
type Fix struct {
	Description string
	Apply       func(def *statemachine.Definition) error
}

// RemoveTransition creates a fix that deletes the transition at position i.
func RemoveTransition(i int) *Fix {
	return &Fix{
		Description: fmt.Sprintf("remove transition %d", i),
		Apply: func(def *statemachine.Definition) error {
			if i < 0 || i >= len(def.Transitions) {
				return fmt.Errorf("%w: %d", ErrTransitionNotFound, i)
			}

			def.Transitions = slices.Delete(def.Transitions, i, i+1)

			return nil
		},
	}
}

// RemoveHandler creates a fix that deletes every handler bound to state.
func RemoveHandler(state string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("remove the exit handler of state %s", state),
		Apply: func(def *statemachine.Definition) error {
			before := len(def.Handlers)

			def.Handlers = slices.DeleteFunc(def.Handlers, func(h statemachine.HandlerDefinition) bool {
				return h.State == state
			})

			if len(def.Handlers) == before {
				return fmt.Errorf("%w: %s", ErrHandlerNotFound, state)
			}

			return nil
		},
	}
}

// ApplyFixes applies every fix attached to the result, last finding first so
// that transition positions stay valid. It returns the number of fixes applied.
func ApplyFixes(def *statemachine.Definition, result Result) (int, error) {
	var fixes []*Fix

	for _, e := range result.Errors {
		if e.Fix != nil {
			fixes = append(fixes, e.Fix)
		}
	}

	for _, w := range result.Warnings {
		if w.Fix != nil {
			fixes = append(fixes, w.Fix)
		}
	}

	applied := 0

	for _, fix := range slices.Backward(fixes) {
		err := fix.Apply(def)
		if err != nil {
			return applied, fmt.Errorf("%s: %w", fix.Description, err)
		}

		applied++
	}

	return applied, nil
}
