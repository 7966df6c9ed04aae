package statemachine

import (
	"fmt"
	"maps"

	"github.com/google/uuid"
)

// Option configures a Machine at construction time.
type Option func(*options)

type options struct {
	name           string
	stateCount     int
	maxTransitions int
	maxHandlers    int
	stateNames     map[State]string
	eventNames     map[Event]string
}

// WithName labels the machine in logs, metrics and exported graphs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithStateCount declares the number of states. Every state referenced by the
// machine must then lie in [0, n). Values below 1 leave the count undeclared.
func WithStateCount(n int) Option {
	return func(o *options) {
		o.stateCount = n
	}
}

// WithMaxTransitions caps the transition table. 0 means unbounded.
func WithMaxTransitions(n int) Option {
	return func(o *options) {
		o.maxTransitions = n
	}
}

// WithMaxHandlers caps the number of states that can carry a handler. 0 means unbounded.
func WithMaxHandlers(n int) Option {
	return func(o *options) {
		o.maxHandlers = n
	}
}

// WithStateNames attaches display names to states.
func WithStateNames(names map[State]string) Option {
	return func(o *options) {
		o.stateNames = maps.Clone(names)
	}
}

// WithEventNames attaches display names to events.
func WithEventNames(names map[Event]string) Option {
	return func(o *options) {
		o.eventNames = maps.Clone(names)
	}
}

// Machine is a finite state machine over a caller-owned context of type C.
// The context is borrowed: the machine hands it to capabilities but never
// releases it.
//
// A Machine is not safe for concurrent use. Callers that share one between
// goroutines must serialize every call (see the fleet package).
type Machine[C any] struct {
	id         uuid.UUID
	name       string
	initial    State
	current    State
	smCtx      C
	table      transitionTable[C]
	handlers   handlerRegistry[C]
	stateCount int
	declared   bool
	stateNames map[State]string
	eventNames map[Event]string
	gen        uint64
	phase      Phase
}

// New creates a machine resting in initial with an empty transition table and
// handler registry.
func New[C any](initial State, smCtx C, opts ...Option) (*Machine[C], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	m := &Machine[C]{
		id:         uuid.New(),
		name:       o.name,
		initial:    initial,
		current:    initial,
		smCtx:      smCtx,
		table:      transitionTable[C]{limit: o.maxTransitions},
		handlers:   handlerRegistry[C]{limit: o.maxHandlers},
		stateNames: o.stateNames,
		eventNames: o.eventNames,
		phase:      PhaseCreated,
	}

	if o.stateCount > 0 {
		m.stateCount = o.stateCount
		m.declared = true
	}

	err := m.checkState(initial, false)
	if err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}

	m.track(initial)

	return m, nil
}

// Destroy releases the transition table and handler registry. The context is
// left alone. Calling Destroy on a nil or already destroyed machine does nothing.
func (m *Machine[C]) Destroy() {
	if m == nil || m.phase == PhaseDestroyed {
		return
	}

	m.table.release()
	m.handlers.release()
	m.phase = PhaseDestroyed
	m.gen++
}

// State returns the current state, or InvalidState for a nil or destroyed machine.
func (m *Machine[C]) State() State {
	if m == nil || m.phase == PhaseDestroyed {
		return InvalidState
	}

	return m.current
}

// Initial returns the state the machine was created in.
func (m *Machine[C]) Initial() State {
	return m.initial
}

// ID returns the instance identity used in logs and traces.
func (m *Machine[C]) ID() uuid.UUID {
	return m.id
}

// Name returns the label set with WithName.
func (m *Machine[C]) Name() string {
	if m == nil {
		return ""
	}

	return m.name
}

// Context returns the borrowed context.
func (m *Machine[C]) Context() C {
	return m.smCtx
}

// Phase returns the lifecycle stage of the machine.
func (m *Machine[C]) Phase() Phase {
	if m == nil {
		return PhaseDestroyed
	}

	return m.phase
}

// StateCount returns the declared state count, or one past the largest state
// referenced so far when no count was declared.
func (m *Machine[C]) StateCount() int {
	return m.stateCount
}

// TransitionCount returns the number of registered transitions.
func (m *Machine[C]) TransitionCount() int {
	return m.table.len()
}

// StateName returns the display name of a state, falling back to its number.
func (m *Machine[C]) StateName(s State) string {
	if name, ok := m.stateNames[s]; ok {
		return name
	}

	if s == AnyState {
		return "*"
	}

	return fmt.Sprint(int(s))
}

// EventName returns the display name of an event, falling back to its number.
func (m *Machine[C]) EventName(e Event) string {
	if name, ok := m.eventNames[e]; ok {
		return name
	}

	return fmt.Sprint(int(e))
}

// Reset puts the machine back in its initial state. Transitions and handlers are kept.
func (m *Machine[C]) Reset() error {
	err := m.usable()
	if err != nil {
		return err
	}

	m.current = m.initial

	return nil
}

// AddTransition appends a copy of t to the transition table. On error the table
// is exactly as it was before the call. A nil guard or action, typed or not,
// is stored as absent.
func (m *Machine[C]) AddTransition(t Transition[C]) error {
	err := m.usable()
	if err != nil {
		return err
	}

	if isNil(t.Guard) {
		t.Guard = nil
	}

	if isNil(t.Action) {
		t.Action = nil
	}

	err = m.checkState(t.From, true)
	if err != nil {
		return fmt.Errorf("transition from: %w", err)
	}

	err = m.checkState(t.To, false)
	if err != nil {
		return fmt.Errorf("transition to: %w", err)
	}

	err = m.table.appendRow(t)
	if err != nil {
		return err
	}

	m.track(t.From)
	m.track(t.To)
	m.populated()

	return nil
}

// AddHandler registers h as the exit handler of state, replacing any earlier one.
func (m *Machine[C]) AddHandler(state State, h Handler[C]) error {
	err := m.usable()
	if err != nil {
		return err
	}

	if isNil(h) {
		return fmt.Errorf("%w: nil handler", ErrInvalidArgument)
	}

	err = m.checkState(state, false)
	if err != nil {
		return fmt.Errorf("handler state: %w", err)
	}

	err = m.handlers.put(state, h)
	if err != nil {
		return err
	}

	m.track(state)
	m.populated()

	return nil
}

// HasHandler reports whether state has an exit handler.
func (m *Machine[C]) HasHandler(state State) bool {
	_, ok := m.handlers.get(state)

	return ok
}

// FindTransition returns the earliest registered transition that matches the
// current state and event.
func (m *Machine[C]) FindTransition(event Event) (Index, bool) {
	if m.usable() != nil {
		return Index{}, false
	}

	pos, ok := m.table.find(m.current, event)
	if !ok {
		return Index{}, false
	}

	return Index{pos: pos, gen: m.gen}, true
}

// ProcessEvent looks up the transition for event and executes it. When nothing
// matches it returns ErrNoTransition and has no side effects.
func (m *Machine[C]) ProcessEvent(event Event) error {
	err := m.usable()
	if err != nil {
		return err
	}

	m.phase = PhaseRunning

	idx, ok := m.FindTransition(event)
	if !ok {
		return WrapTransitionError(m.current, event, InvalidState, ErrNoTransition)
	}

	return m.ExecTransition(idx)
}

// ExecTransition runs the transition at idx: guard, action, exit handler of the
// state being left, then the state update. A rejected guard leaves the machine
// and context untouched.
func (m *Machine[C]) ExecTransition(idx Index) error {
	err := m.usable()
	if err != nil {
		return err
	}

	m.phase = PhaseRunning

	if idx.gen != m.gen {
		return ErrStaleIndex
	}

	t, ok := m.table.at(idx.pos)
	if !ok {
		return fmt.Errorf("%w: transition index %d", ErrInvalidArgument, idx.pos)
	}

	from := m.current

	if t.Guard != nil && !t.Guard.Allow(m.smCtx) {
		return WrapTransitionError(from, t.Event, t.To, ErrGuardRejected)
	}

	if t.Action != nil {
		t.Action.Apply(m.smCtx)
	}

	if h, ok := m.handlers.get(from); ok {
		h.Observe(m.smCtx, t.Event)
	}

	m.current = t.To

	return nil
}

// usable rejects nil and destroyed machines.
func (m *Machine[C]) usable() error {
	if m == nil {
		return fmt.Errorf("%w: nil machine", ErrInvalidArgument)
	}

	if m.phase == PhaseDestroyed {
		return ErrMachineDestroyed
	}

	return nil
}

func (m *Machine[C]) checkState(s State, allowWildcard bool) error {
	if s == AnyState && allowWildcard {
		return nil
	}

	if s < 0 {
		return fmt.Errorf("%w: negative state %d", ErrInvalidArgument, s)
	}

	if m.declared && int(s) >= m.stateCount {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrStateOutOfRange, s, m.stateCount)
	}

	return nil
}

// track grows the derived state count when none was declared.
func (m *Machine[C]) track(s State) {
	if m.declared || s < 0 {
		return
	}

	if int(s) >= m.stateCount {
		m.stateCount = int(s) + 1
	}
}

// populated records a successful registration.
func (m *Machine[C]) populated() {
	m.gen++

	if m.phase == PhaseCreated {
		m.phase = PhasePopulated
	}
}
