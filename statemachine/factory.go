package statemachine

import (
	"fmt"
	"maps"
	"slices"
)

// Registry resolves the capability names used in a Definition.
// Applications register their guards, actions and handlers by name; a registry
// may also fall back to parsing the name as an expression. A Registry is not
// safe for concurrent registration; populate it before building machines.
type Registry[C any] struct {
	guards   map[string]Guard[C]
	actions  map[string]Action[C]
	handlers map[string]Handler[C]

	parseGuard   func(string) (Guard[C], error)
	parseAction  func(string) (Action[C], error)
	parseHandler func(string) (Handler[C], error)
}

// NewRegistry creates an empty registry.
func NewRegistry[C any]() *Registry[C] {
	return &Registry[C]{
		guards:   make(map[string]Guard[C]),
		actions:  make(map[string]Action[C]),
		handlers: make(map[string]Handler[C]),
	}
}

// NewVarsRegistry creates a registry for Vars machines that compiles unknown
// names as expressions.
func NewVarsRegistry() *Registry[Vars] {
	reg := NewRegistry[Vars]()
	reg.parseGuard = ParseGuard
	reg.parseAction = ParseAction
	reg.parseHandler = ParseHandler

	return reg
}

// RegisterGuard registers a guard under name, replacing any previous one.
// Resolving a name registered with a nil guard fails with ErrInvalidArgument.
func (r *Registry[C]) RegisterGuard(name string, g Guard[C]) *Registry[C] {
	r.guards[name] = g

	return r
}

// RegisterAction registers an action under name, replacing any previous one.
func (r *Registry[C]) RegisterAction(name string, a Action[C]) *Registry[C] {
	r.actions[name] = a

	return r
}

// RegisterHandler registers a handler under name, replacing any previous one.
func (r *Registry[C]) RegisterHandler(name string, h Handler[C]) *Registry[C] {
	r.handlers[name] = h

	return r
}

// Guard resolves a guard name. The empty name resolves to no guard.
func (r *Registry[C]) Guard(name string) (Guard[C], error) {
	if name == "" {
		return nil, nil //nolint:nilnil // no guard is a valid answer
	}

	if g, ok := r.guards[name]; ok {
		if isNil(g) {
			return nil, fmt.Errorf("%w: guard %q is nil", ErrInvalidArgument, name)
		}

		if hasName(g) {
			return g, nil
		}

		return namedGuard[C]{Guard: g, name: name}, nil
	}

	if r.parseGuard != nil {
		g, err := r.parseGuard(name)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrUnknownGuard, name, err)
		}

		return g, nil
	}

	return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownGuard, name, sortedKeys(r.guards))
}

// Action resolves an action name. The empty name resolves to no action.
func (r *Registry[C]) Action(name string) (Action[C], error) {
	if name == "" {
		return nil, nil //nolint:nilnil // no action is a valid answer
	}

	if a, ok := r.actions[name]; ok {
		if isNil(a) {
			return nil, fmt.Errorf("%w: action %q is nil", ErrInvalidArgument, name)
		}

		if hasName(a) {
			return a, nil
		}

		return namedAction[C]{Action: a, name: name}, nil
	}

	if r.parseAction != nil {
		a, err := r.parseAction(name)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrUnknownAction, name, err)
		}

		return a, nil
	}

	return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownAction, name, sortedKeys(r.actions))
}

// Handler resolves a handler name.
func (r *Registry[C]) Handler(name string) (Handler[C], error) {
	if h, ok := r.handlers[name]; ok {
		if isNil(h) {
			return nil, fmt.Errorf("%w: handler %q is nil", ErrInvalidArgument, name)
		}

		if hasName(h) {
			return h, nil
		}

		return namedHandler[C]{Handler: h, name: name}, nil
	}

	if r.parseHandler != nil && name != "" {
		h, err := r.parseHandler(name)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrUnknownHandler, name, err)
		}

		return h, nil
	}

	return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownHandler, name, sortedKeys(r.handlers))
}

type namedGuard[C any] struct {
	Guard[C]

	name string
}

func (g namedGuard[C]) Name() string { return g.name }

type namedAction[C any] struct {
	Action[C]

	name string
}

func (a namedAction[C]) Name() string { return a.name }

type namedHandler[C any] struct {
	Handler[C]

	name string
}

func (h namedHandler[C]) Name() string { return h.name }

// hasName reports whether a capability already labels itself.
func hasName(capability any) bool {
	n, ok := capability.(Named)

	return ok && n.Name() != ""
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
