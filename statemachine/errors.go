package statemachine

import (
	"errors"
	"fmt"
)

// Predefined error types.
var (
	// ErrNoTransition indicates that no transition matches the current state and event.
	ErrNoTransition = errors.New("no matching transition")
	// ErrGuardRejected indicates that a guard vetoed the transition. The machine is unchanged.
	ErrGuardRejected = errors.New("guard rejected transition")
	// ErrInvalidArgument indicates an absent machine, capability or an unusable argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAllocation indicates that the transition table or handler registry cannot grow.
	ErrAllocation = errors.New("storage growth refused")

	// ErrStateOutOfRange indicates a state outside the declared state count.
	ErrStateOutOfRange = fmt.Errorf("%w: state out of range", ErrInvalidArgument)
	// ErrMachineDestroyed indicates use of a machine after Destroy.
	ErrMachineDestroyed = fmt.Errorf("%w: machine destroyed", ErrInvalidArgument)
	// ErrStaleIndex indicates an Index obtained before the table or registry last changed.
	ErrStaleIndex = fmt.Errorf("%w: stale transition index", ErrInvalidArgument)

	// ErrDefinitionNameRequired indicates that a definition has no name.
	ErrDefinitionNameRequired = errors.New("definition name is required")
	// ErrInitialStateRequired indicates that a definition has no initial state.
	ErrInitialStateRequired = errors.New("initial state is required")
	// ErrStateRequired indicates that a definition declares no states.
	ErrStateRequired = errors.New("at least one state is required")
	// ErrDuplicateStateName indicates that a state name is declared twice.
	ErrDuplicateStateName = errors.New("duplicate state name")
	// ErrDuplicateEventName indicates that an event name is declared twice.
	ErrDuplicateEventName = errors.New("duplicate event name")
	// ErrUnknownState indicates a reference to an undeclared state.
	ErrUnknownState = errors.New("unknown state")
	// ErrUnknownEvent indicates a reference to an undeclared event.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrUnknownGuard indicates a guard name the registry cannot resolve.
	ErrUnknownGuard = errors.New("unknown guard")
	// ErrUnknownAction indicates an action name the registry cannot resolve.
	ErrUnknownAction = errors.New("unknown action")
	// ErrUnknownHandler indicates a handler name the registry cannot resolve.
	ErrUnknownHandler = errors.New("unknown handler")

	// ErrInvalidExpression indicates that an expression is malformed.
	ErrInvalidExpression = errors.New("invalid expression")
	// ErrUnsupportedExpression indicates an expression form the evaluator does not know.
	ErrUnsupportedExpression = errors.New("unsupported expression")
)

// TransitionError wraps a dispatch failure with the state and event involved.
type TransitionError struct {
	From  State
	Event Event
	To    State
	Err   error
}

func (e *TransitionError) Error() string {
	if errors.Is(e.Err, ErrNoTransition) {
		return fmt.Sprintf("state %d, event %d: %v", e.From, e.Event, e.Err)
	}

	return fmt.Sprintf("transition %d -[%d]-> %d: %v", e.From, e.Event, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapTransitionError wraps an error with transition context.
func WrapTransitionError(from State, event Event, to State, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{
		From:  from,
		Event: event,
		To:    to,
		Err:   err,
	}
}
