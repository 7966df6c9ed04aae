package statemachine

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"

	"github.com/zeebo/xxh3"
)

// TransitionInfo is the read-only view of a registered transition.
type TransitionInfo struct {
	From   State
	Event  Event
	To     State
	Guard  string // capability label, empty when the transition has no guard
	Action string // capability label, empty when the transition has no action
}

// Snapshot is a copy of a machine's table and state, safe to hand to exporters
// and validators.
type Snapshot struct {
	Name          string
	Initial       State
	Current       State
	StateCount    int
	Transitions   []TransitionInfo
	HandlerStates []State
	StateNames    map[State]string
	EventNames    map[Event]string
}

// Snapshot returns a copy of the transition table and handler registry.
func (m *Machine[C]) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{Initial: InvalidState, Current: InvalidState}
	}

	snap := Snapshot{
		Name:        m.name,
		Initial:     m.initial,
		Current:     m.State(),
		StateCount:  m.stateCount,
		Transitions: make([]TransitionInfo, 0, m.table.len()),
		StateNames:  maps.Clone(m.stateNames),
		EventNames:  maps.Clone(m.eventNames),
	}

	for _, row := range m.table.rows {
		snap.Transitions = append(snap.Transitions, TransitionInfo{
			From:   row.From,
			Event:  row.Event,
			To:     row.To,
			Guard:  capabilityName(row.Guard, "guard"),
			Action: capabilityName(row.Action, "action"),
		})
	}

	snap.HandlerStates = slices.Sorted(maps.Keys(m.handlers.entries))

	return snap
}

// StateLabel returns the display name of s.
func (s Snapshot) StateLabel(state State) string {
	if name, ok := s.StateNames[state]; ok {
		return name
	}

	if state == AnyState {
		return "*"
	}

	return fmt.Sprint(int(state))
}

// EventLabel returns the display name of e.
func (s Snapshot) EventLabel(event Event) string {
	if name, ok := s.EventNames[event]; ok {
		return name
	}

	return fmt.Sprint(int(event))
}

// HasHandler reports whether state carries an exit handler.
func (s Snapshot) HasHandler(state State) bool {
	_, found := slices.BinarySearch(s.HandlerStates, state)

	return found
}

// Fingerprint hashes the (from, event, to) sequence of the table. Two machines
// with the same fingerprint dispatch identically, capabilities aside.
func (s Snapshot) Fingerprint() uint64 {
	hasher := xxh3.New()

	var buf [24]byte

	for _, t := range s.Transitions {
		binary.LittleEndian.PutUint64(buf[0:8], uint64(int64(t.From)))   //nolint:gosec // bit pattern only
		binary.LittleEndian.PutUint64(buf[8:16], uint64(int64(t.Event))) //nolint:gosec // bit pattern only
		binary.LittleEndian.PutUint64(buf[16:24], uint64(int64(t.To)))   //nolint:gosec // bit pattern only
		_, _ = hasher.Write(buf[:])
	}

	return hasher.Sum64()
}
