package testing

import (
	"fmt"
	"sync"

	"github.com/fluxstate/fluxfsm/statemachine"
	"go.uber.org/atomic"
)

// CallLog records capability invocations in order, e.g.
// ["guard:armed", "action:fire", "handler:0"]. It is safe for concurrent use.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *CallLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = append(l.calls, call)
}

// Calls returns a copy of the recorded calls.
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.calls...)
}

// Reset forgets every recorded call.
func (l *CallLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = nil
}

// Guard returns a named guard that logs "guard:<name>" and answers allow.
func (l *CallLog) Guard(name string, allow bool) *CountingGuard {
	g := &CountingGuard{name: name, log: l}
	g.allow.Store(allow)

	return g
}

// Action returns a named action that logs "action:<name>".
func (l *CallLog) Action(name string) *CountingAction {
	return &CountingAction{name: name, log: l}
}

// Handler returns a handler that logs "handler:<state>:<event>".
func (l *CallLog) Handler(state statemachine.State) *CountingHandler {
	return &CountingHandler{state: state, log: l}
}

// CountingGuard is a Guard[any] with a switchable answer.
type CountingGuard struct {
	name  string
	allow atomic.Bool
	calls atomic.Int64
	log   *CallLog
}

func (g *CountingGuard) Allow(any) bool {
	g.calls.Inc()

	if g.log != nil {
		g.log.add("guard:" + g.name)
	}

	return g.allow.Load()
}

// Name implements statemachine.Named.
func (g *CountingGuard) Name() string { return g.name }

// Set changes the guard's answer.
func (g *CountingGuard) Set(allow bool) { g.allow.Store(allow) }

// Calls returns how often the guard was evaluated.
func (g *CountingGuard) Calls() int64 { return g.calls.Load() }

// CountingAction is an Action[any] that counts its invocations.
type CountingAction struct {
	name  string
	calls atomic.Int64
	log   *CallLog
}

func (a *CountingAction) Apply(any) {
	a.calls.Inc()

	if a.log != nil {
		a.log.add("action:" + a.name)
	}
}

// Name implements statemachine.Named.
func (a *CountingAction) Name() string { return a.name }

// Calls returns how often the action ran.
func (a *CountingAction) Calls() int64 { return a.calls.Load() }

// CountingHandler is a Handler[any] that remembers the events it observed.
type CountingHandler struct {
	state  statemachine.State
	mu     sync.Mutex
	events []statemachine.Event
	log    *CallLog
}

func (h *CountingHandler) Observe(_ any, event statemachine.Event) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()

	if h.log != nil {
		h.log.add(fmt.Sprintf("handler:%d:%d", h.state, event))
	}
}

// Events returns the observed events in order.
func (h *CountingHandler) Events() []statemachine.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]statemachine.Event(nil), h.events...)
}

// Player states and events, shared by tests across packages.
const (
	PlayerStopped statemachine.State = iota
	PlayerPlaying
	PlayerPaused
)

const (
	PlayerPlay statemachine.Event = iota
	PlayerPause
	PlayerStop
)

// PlayerDefinition is a media player: play, pause and stop, where stop works
// from any state and playing requires power.
const PlayerDefinition = `
name: player
initialState: stopped
states: [stopped, playing, paused]
events: [play, pause, stop]
transitions:
  - {from: stopped, event: play, to: playing, guard: "power > 0", action: "plays++"}
  - {from: playing, event: pause, to: paused}
  - {from: paused, event: play, to: playing, action: "plays++"}
  - {from: "*", event: stop, to: stopped}
handlers:
  - {state: playing, handler: "exits++"}
`

// NewPlayer builds the player definition over vars.
func NewPlayer(vars statemachine.Vars, opts ...statemachine.Option) (*statemachine.Machine[statemachine.Vars], error) {
	def, err := statemachine.LoadDefinitionFromBytes([]byte(PlayerDefinition))
	if err != nil {
		return nil, err
	}

	return statemachine.Build(def, statemachine.NewVarsRegistry(), vars, opts...)
}
