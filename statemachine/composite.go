package statemachine

import "strings"

// Sequence runs actions in order as one action.
func Sequence[C any](actions ...Action[C]) Action[C] {
	return &sequenceAction[C]{actions: actions}
}

type sequenceAction[C any] struct {
	actions []Action[C]
}

func (a *sequenceAction[C]) Apply(smCtx C) {
	for _, action := range a.actions {
		action.Apply(smCtx)
	}
}

func (a *sequenceAction[C]) Name() string {
	return joinNames("seq", a.actions, "action")
}

// When runs then if guard allows it and otherwise (which may be nil) if not.
func When[C any](guard Guard[C], then, otherwise Action[C]) Action[C] {
	return &conditionalAction[C]{guard: guard, then: then, otherwise: otherwise}
}

type conditionalAction[C any] struct {
	guard     Guard[C]
	then      Action[C]
	otherwise Action[C]
}

func (a *conditionalAction[C]) Apply(smCtx C) {
	switch {
	case a.guard.Allow(smCtx):
		if a.then != nil {
			a.then.Apply(smCtx)
		}
	case a.otherwise != nil:
		a.otherwise.Apply(smCtx)
	}
}

func (a *conditionalAction[C]) Name() string {
	return "when(" + capabilityName(a.guard, "guard") + ")"
}

// AllOf allows a transition only if every guard does. Evaluation stops at the
// first rejection.
func AllOf[C any](guards ...Guard[C]) Guard[C] {
	return &allGuard[C]{guards: guards}
}

type allGuard[C any] struct {
	guards []Guard[C]
}

func (g *allGuard[C]) Allow(smCtx C) bool {
	for _, guard := range g.guards {
		if !guard.Allow(smCtx) {
			return false
		}
	}

	return true
}

func (g *allGuard[C]) Name() string {
	return joinNames("all", g.guards, "guard")
}

// AnyOf allows a transition if at least one guard does. Evaluation stops at
// the first acceptance.
func AnyOf[C any](guards ...Guard[C]) Guard[C] {
	return &anyGuard[C]{guards: guards}
}

type anyGuard[C any] struct {
	guards []Guard[C]
}

func (g *anyGuard[C]) Allow(smCtx C) bool {
	for _, guard := range g.guards {
		if guard.Allow(smCtx) {
			return true
		}
	}

	return false
}

func (g *anyGuard[C]) Name() string {
	return joinNames("any", g.guards, "guard")
}

// Not inverts a guard.
func Not[C any](guard Guard[C]) Guard[C] {
	return &notGuard[C]{guard: guard}
}

type notGuard[C any] struct {
	guard Guard[C]
}

func (g *notGuard[C]) Allow(smCtx C) bool {
	return !g.guard.Allow(smCtx)
}

func (g *notGuard[C]) Name() string {
	return "!" + capabilityName(g.guard, "guard")
}

func joinNames[T any](op string, capabilities []T, fallback string) string {
	names := make([]string, len(capabilities))
	for i, c := range capabilities {
		names[i] = capabilityName(c, fallback)
	}

	return op + "(" + strings.Join(names, ", ") + ")"
}
