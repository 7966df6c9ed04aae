package testing

import (
	"errors"
	"fmt"

	"github.com/fluxstate/fluxfsm/statemachine"
)

// Matcher errors.
var (
	ErrStateNotVisited    = errors.New("state was not visited")
	ErrTransitionNotTaken = errors.New("transition was not taken")
	ErrWrongState         = errors.New("machine is in another state")
	ErrNoMatchersPassed   = errors.New("no matchers passed")
)

// Matcher checks a recorded trace and the machine's current state.
type Matcher interface {
	Match(trace []TraceEntry, current statemachine.State) (bool, error)
	Description() string
}

// matcherFunc adapts a function to a Matcher.
type matcherFunc struct {
	desc  string
	match func(trace []TraceEntry, current statemachine.State) (bool, error)
}

func (m matcherFunc) Match(trace []TraceEntry, current statemachine.State) (bool, error) {
	return m.match(trace, current)
}

func (m matcherFunc) Description() string { return m.desc }

// InState matches when the machine currently rests in state.
func InState(state statemachine.State) Matcher {
	return matcherFunc{
		desc: fmt.Sprintf("machine should be in state %d", state),
		match: func(_ []TraceEntry, current statemachine.State) (bool, error) {
			if current != state {
				return false, fmt.Errorf("%w: %d", ErrWrongState, current)
			}

			return true, nil
		},
	}
}

// Visited matches when a successful dispatch entered state.
func Visited(state statemachine.State) Matcher {
	return matcherFunc{
		desc: fmt.Sprintf("state %d should be visited", state),
		match: func(trace []TraceEntry, _ statemachine.State) (bool, error) {
			for _, e := range trace {
				if e.Taken() && e.To == state {
					return true, nil
				}
			}

			return false, fmt.Errorf("%w: %d", ErrStateNotVisited, state)
		},
	}
}

// TransitionTaken matches when a successful dispatch went from one state to the other.
func TransitionTaken(from, to statemachine.State) Matcher {
	return matcherFunc{
		desc: fmt.Sprintf("transition %d -> %d should be taken", from, to),
		match: func(trace []TraceEntry, _ statemachine.State) (bool, error) {
			for _, e := range trace {
				if e.Taken() && e.From == from && e.To == to {
					return true, nil
				}
			}

			return false, fmt.Errorf("%w: %d -> %d", ErrTransitionNotTaken, from, to)
		},
	}
}

// All matches when every matcher matches.
func All(matchers ...Matcher) Matcher {
	return matcherFunc{
		desc: "all matchers should pass",
		match: func(trace []TraceEntry, current statemachine.State) (bool, error) {
			for _, m := range matchers {
				ok, err := m.Match(trace, current)
				if !ok {
					return false, fmt.Errorf("%s: %w", m.Description(), err)
				}
			}

			return true, nil
		},
	}
}

// Any matches when at least one matcher matches.
func Any(matchers ...Matcher) Matcher {
	return matcherFunc{
		desc: "at least one matcher should pass",
		match: func(trace []TraceEntry, current statemachine.State) (bool, error) {
			for _, m := range matchers {
				if ok, _ := m.Match(trace, current); ok {
					return true, nil
				}
			}

			return false, ErrNoMatchersPassed
		},
	}
}
