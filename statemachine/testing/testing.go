// Package testing provides testing utilities for state machines.
package testing

import (
	"errors"
	"testing"

	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMachine wraps a Machine and records every dispatch made through Fire.
type TestMachine[C any] struct {
	*statemachine.Machine[C]

	t     *testing.T
	trace []TraceEntry
}

// TraceEntry records a single dispatch.
type TraceEntry struct {
	Event statemachine.Event
	From  statemachine.State
	To    statemachine.State
	Err   error
}

// Taken reports whether the dispatch executed a transition.
func (e TraceEntry) Taken() bool {
	return e.Err == nil
}

// NewTestMachine wraps m and destroys it when the test ends.
func NewTestMachine[C any](t *testing.T, m *statemachine.Machine[C]) *TestMachine[C] {
	t.Helper()

	require.NotNil(t, m, "machine is required")
	t.Cleanup(m.Destroy)

	return &TestMachine[C]{Machine: m, t: t}
}

// Fire dispatches events in order, recording each outcome. Failed dispatches
// are recorded, not reported; use the assertions to check them.
func (tm *TestMachine[C]) Fire(events ...statemachine.Event) *TestMachine[C] {
	for _, event := range events {
		from := tm.State()
		err := tm.ProcessEvent(event)
		tm.trace = append(tm.trace, TraceEntry{Event: event, From: from, To: tm.State(), Err: err})
	}

	return tm
}

// MustFire dispatches events and fails the test on the first error.
func (tm *TestMachine[C]) MustFire(events ...statemachine.Event) *TestMachine[C] {
	tm.t.Helper()

	for _, event := range events {
		tm.Fire(event)

		last := tm.trace[len(tm.trace)-1]
		require.NoError(tm.t, last.Err, "event %s from state %s",
			tm.EventName(event), tm.StateName(last.From))
	}

	return tm
}

// Trace returns the recorded dispatches.
func (tm *TestMachine[C]) Trace() []TraceEntry {
	return tm.trace
}

// LastErr returns the error of the most recent dispatch.
func (tm *TestMachine[C]) LastErr() error {
	if len(tm.trace) == 0 {
		return nil
	}

	return tm.trace[len(tm.trace)-1].Err
}

// AssertState checks the current state.
func (tm *TestMachine[C]) AssertState(expected statemachine.State) {
	tm.t.Helper()

	assert.Equal(tm.t, tm.StateName(expected), tm.StateName(tm.State()), "current state")
}

// AssertLastErr checks that the most recent dispatch failed with target.
func (tm *TestMachine[C]) AssertLastErr(target error) {
	tm.t.Helper()

	err := tm.LastErr()
	if !errors.Is(err, target) {
		tm.t.Errorf("last dispatch error = %v, want %v", err, target)
	}
}

// AssertMatches checks every matcher against the recorded trace.
func (tm *TestMachine[C]) AssertMatches(matchers ...Matcher) {
	tm.t.Helper()

	for _, m := range matchers {
		ok, err := m.Match(tm.trace, tm.State())
		if !ok {
			tm.t.Errorf("%s: %v", m.Description(), err)
		}
	}
}
