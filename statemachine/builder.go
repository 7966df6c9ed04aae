package statemachine

import "fmt"

// Builder provides a fluent API for populating a machine in code. Errors are
// collected and the first one is reported by Build.
type Builder[C any] struct {
	initial State
	smCtx   C
	opts    []Option
	steps   []func(*Machine[C]) error
}

// NewBuilder starts a machine that will rest in initial over smCtx.
func NewBuilder[C any](initial State, smCtx C, opts ...Option) *Builder[C] {
	return &Builder[C]{
		initial: initial,
		smCtx:   smCtx,
		opts:    opts,
	}
}

// On adds an unguarded transition without an action.
func (b *Builder[C]) On(from State, event Event, to State) *Builder[C] {
	return b.Add(Transition[C]{From: from, Event: event, To: to})
}

// OnAny adds a transition from every state.
func (b *Builder[C]) OnAny(event Event, to State) *Builder[C] {
	return b.Add(Transition[C]{From: AnyState, Event: event, To: to})
}

// Add adds a fully specified transition.
func (b *Builder[C]) Add(t Transition[C]) *Builder[C] {
	n := len(b.steps)
	b.steps = append(b.steps, func(m *Machine[C]) error {
		err := m.AddTransition(t)
		if err != nil {
			return fmt.Errorf("builder step %d: %w", n, err)
		}

		return nil
	})

	return b
}

// OnExit registers h as the exit handler of state.
func (b *Builder[C]) OnExit(state State, h Handler[C]) *Builder[C] {
	n := len(b.steps)
	b.steps = append(b.steps, func(m *Machine[C]) error {
		err := m.AddHandler(state, h)
		if err != nil {
			return fmt.Errorf("builder step %d: %w", n, err)
		}

		return nil
	})

	return b
}

// Build creates the machine and applies the registrations in order. On error
// the partially built machine is destroyed.
func (b *Builder[C]) Build() (*Machine[C], error) {
	m, err := New(b.initial, b.smCtx, b.opts...)
	if err != nil {
		return nil, err
	}

	for _, step := range b.steps {
		err := step(m)
		if err != nil {
			m.Destroy()

			return nil, err
		}
	}

	return m, nil
}
