package statemachine

import "reflect"

// State identifies a machine configuration. Callers choose the values; the
// engine only compares them. Valid states are non-negative.
type State int

// Event identifies a stimulus submitted to a machine.
type Event int

const (
	// AnyState matches every current state when used as a transition's From.
	AnyState State = -1

	// InvalidState is returned by State() on a nil or destroyed machine.
	InvalidState State = -2
)

// Guard decides whether a transition may run. It is evaluated exactly once per
// dispatch attempt and should not mutate the context.
type Guard[C any] interface {
	Allow(smCtx C) bool
}

// Action mutates the context when a transition runs. It never sees the event.
type Action[C any] interface {
	Apply(smCtx C)
}

// Handler observes a successful transition out of the state it is registered for.
type Handler[C any] interface {
	Observe(smCtx C, event Event)
}

// Named is implemented by capabilities that want a label in logs, graphs and
// validation output.
type Named interface {
	Name() string
}

// GuardFunc adapts a plain function to Guard.
type GuardFunc[C any] func(smCtx C) bool

func (f GuardFunc[C]) Allow(smCtx C) bool {
	return f(smCtx)
}

// ActionFunc adapts a plain function to Action.
type ActionFunc[C any] func(smCtx C)

func (f ActionFunc[C]) Apply(smCtx C) {
	f(smCtx)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc[C any] func(smCtx C, event Event)

func (f HandlerFunc[C]) Observe(smCtx C, event Event) {
	f(smCtx, event)
}

// Transition is one row of the transition table. Guard and Action are optional.
type Transition[C any] struct {
	From   State
	Event  Event
	To     State
	Guard  Guard[C]
	Action Action[C]
}

// Index points at a transition found by FindTransition. It is only valid until
// the next AddTransition or AddHandler call on the same machine.
type Index struct {
	pos int
	gen uint64
}

// Position returns the transition's position in registration order.
func (i Index) Position() int {
	return i.pos
}

// Phase is the lifecycle stage of a machine.
type Phase int

const (
	PhaseCreated Phase = iota
	PhasePopulated
	PhaseRunning
	PhaseDestroyed
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhasePopulated:
		return "populated"
	case PhaseRunning:
		return "running"
	case PhaseDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// capabilityName returns the label of a capability, or fallback when it has none.
func capabilityName(capability any, fallback string) string {
	if capability == nil {
		return ""
	}

	if named, ok := capability.(Named); ok && named.Name() != "" {
		return named.Name()
	}

	return fallback
}

// isNil reports whether a capability is absent, including typed nils such as
// GuardFunc[C](nil).
func isNil(capability any) bool {
	if capability == nil {
		return true
	}

	v := reflect.ValueOf(capability)

	switch v.Kind() { //nolint:exhaustive
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Chan, reflect.Interface, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
