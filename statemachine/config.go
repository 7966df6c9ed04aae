package statemachine

import (
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// WildcardState is the definition spelling of AnyState.
const WildcardState = "*"

// Definition describes a machine in YAML. States and events are referred to by
// name; their ids are their positions in the States and Events lists.
type Definition struct {
	Name         string                 `json:"name"         yaml:"name"`
	InitialState string                 `json:"initialState" yaml:"initialState"`
	States       []string               `json:"states"       yaml:"states"`
	Events       []string               `json:"events"       yaml:"events"`
	Transitions  []TransitionDefinition `json:"transitions"  yaml:"transitions"`
	Handlers     []HandlerDefinition    `json:"handlers,omitempty"     yaml:"handlers,omitempty"`
}

// TransitionDefinition describes one transition. Guard and Action name
// capabilities resolved through a Registry.
type TransitionDefinition struct {
	From   string `json:"from"   yaml:"from"` // state name or "*"
	Event  string `json:"event"  yaml:"event"`
	To     string `json:"to"     yaml:"to"`
	Guard  string `json:"guard,omitempty"  yaml:"guard,omitempty"`
	Action string `json:"action,omitempty" yaml:"action,omitempty"`
}

// HandlerDefinition attaches a named exit handler to a state.
type HandlerDefinition struct {
	State   string `json:"state"   yaml:"state"`
	Handler string `json:"handler" yaml:"handler"`
}

// LoadDefinition reads and validates a YAML definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %q: %w", path, err)
	}

	return LoadDefinitionFromBytes(data)
}

// LoadDefinitionFromBytes parses and validates a YAML definition.
func LoadDefinitionFromBytes(data []byte) (*Definition, error) {
	var def Definition

	err := yaml.Unmarshal(data, &def)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	err = def.Validate()
	if err != nil {
		return nil, err
	}

	return &def, nil
}

// LoadDefinitionFromFS loads a definition from an embedded filesystem.
func LoadDefinitionFromFS(fsys fs.FS, path string) (*Definition, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition from FS: %w", err)
	}

	return LoadDefinitionFromBytes(data)
}

// Validate checks names and references. Capability names are checked later,
// when the definition is built against a Registry.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return ErrDefinitionNameRequired
	}

	if d.InitialState == "" {
		return ErrInitialStateRequired
	}

	if len(d.States) == 0 {
		return ErrStateRequired
	}

	seen := make(map[string]bool, len(d.States))
	for _, name := range d.States {
		if name == "" || name == WildcardState {
			return fmt.Errorf("%w: %q is not a valid state name", ErrInvalidArgument, name)
		}

		if seen[name] {
			return fmt.Errorf("%w: %s", ErrDuplicateStateName, name)
		}

		seen[name] = true
	}

	seen = make(map[string]bool, len(d.Events))
	for _, name := range d.Events {
		if seen[name] {
			return fmt.Errorf("%w: %s", ErrDuplicateEventName, name)
		}

		seen[name] = true
	}

	if _, err := d.StateID(d.InitialState); err != nil {
		return fmt.Errorf("initial state: %w", err)
	}

	for i, t := range d.Transitions {
		if t.From != WildcardState {
			if _, err := d.StateID(t.From); err != nil {
				return fmt.Errorf("transition %d: from: %w", i, err)
			}
		}

		if t.To == WildcardState {
			return fmt.Errorf("transition %d: to: %w: %q", i, ErrUnknownState, t.To)
		}

		if _, err := d.StateID(t.To); err != nil {
			return fmt.Errorf("transition %d: to: %w", i, err)
		}

		if _, err := d.EventID(t.Event); err != nil {
			return fmt.Errorf("transition %d: %w", i, err)
		}
	}

	for i, h := range d.Handlers {
		if h.State == WildcardState {
			return fmt.Errorf("handler %d: %w: %q", i, ErrUnknownState, h.State)
		}

		if _, err := d.StateID(h.State); err != nil {
			return fmt.Errorf("handler %d: %w", i, err)
		}

		if h.Handler == "" {
			return fmt.Errorf("handler %d: %w: handler name is required", i, ErrInvalidArgument)
		}
	}

	return nil
}

// StateID returns the id of a state name. "*" maps to AnyState.
func (d *Definition) StateID(name string) (State, error) {
	if name == WildcardState {
		return AnyState, nil
	}

	for i, s := range d.States {
		if s == name {
			return State(i), nil
		}
	}

	return InvalidState, fmt.Errorf("%w: %q", ErrUnknownState, name)
}

// EventID returns the id of an event name.
func (d *Definition) EventID(name string) (Event, error) {
	for i, e := range d.Events {
		if e == name {
			return Event(i), nil
		}
	}

	return -1, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

// StateNames returns the id to name mapping of the definition's states.
func (d *Definition) StateNames() map[State]string {
	names := make(map[State]string, len(d.States))
	for i, s := range d.States {
		names[State(i)] = s
	}

	return names
}

// EventNames returns the id to name mapping of the definition's events.
func (d *Definition) EventNames() map[Event]string {
	names := make(map[Event]string, len(d.Events))
	for i, e := range d.Events {
		names[Event(i)] = e
	}

	return names
}

// Build creates a machine from a definition. The declared state count is the
// number of states in the definition; names are attached for display. Extra
// options are applied after the ones derived from the definition. When a
// registration fails the partial machine is destroyed.
func Build[C any](def *Definition, reg *Registry[C], smCtx C, opts ...Option) (*Machine[C], error) {
	if def == nil || reg == nil {
		return nil, fmt.Errorf("%w: definition and registry are required", ErrInvalidArgument)
	}

	err := def.Validate()
	if err != nil {
		return nil, err
	}

	initial, _ := def.StateID(def.InitialState)

	base := []Option{
		WithName(def.Name),
		WithStateCount(len(def.States)),
		WithStateNames(def.StateNames()),
		WithEventNames(def.EventNames()),
	}

	m, err := New(initial, smCtx, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	err = populate(m, def, reg)
	if err != nil {
		m.Destroy()

		return nil, err
	}

	return m, nil
}

// populate registers the definition's transitions and handlers on m.
func populate[C any](m *Machine[C], def *Definition, reg *Registry[C]) error {
	for i, td := range def.Transitions {
		t, err := buildTransition(def, reg, td)
		if err != nil {
			return fmt.Errorf("transition %d: %w", i, err)
		}

		err = m.AddTransition(t)
		if err != nil {
			return fmt.Errorf("transition %d: %w", i, err)
		}
	}

	for i, hd := range def.Handlers {
		state, _ := def.StateID(hd.State)

		h, err := reg.Handler(hd.Handler)
		if err != nil {
			return fmt.Errorf("handler %d: %w", i, err)
		}

		err = m.AddHandler(state, h)
		if err != nil {
			return fmt.Errorf("handler %d: %w", i, err)
		}
	}

	return nil
}

func buildTransition[C any](def *Definition, reg *Registry[C], td TransitionDefinition) (Transition[C], error) {
	from, _ := def.StateID(td.From)
	to, _ := def.StateID(td.To)
	event, _ := def.EventID(td.Event)

	guard, err := reg.Guard(td.Guard)
	if err != nil {
		return Transition[C]{}, err
	}

	action, err := reg.Action(td.Action)
	if err != nil {
		return Transition[C]{}, err
	}

	return Transition[C]{
		From:   from,
		Event:  event,
		To:     to,
		Guard:  guard,
		Action: action,
	}, nil
}
