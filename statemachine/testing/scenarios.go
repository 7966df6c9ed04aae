package testing

import (
	"testing"

	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/stretchr/testify/require"
)

// Scenario is a sequence of events fired at a fresh machine.
type Scenario struct {
	Name string
	// Events are fired in order; a failing dispatch does not stop the run.
	Events []statemachine.Event
	// WantState is the state the machine must end in.
	WantState statemachine.State
	// WantErrs lists, per event, the error the dispatch must fail with.
	// Missing entries and nil entries mean success.
	WantErrs map[int]error
	Matchers []Matcher
}

// RunScenarios runs each scenario as a parallel subtest on a machine built
// by newMachine.
func RunScenarios[C any](
	t *testing.T, newMachine func(t *testing.T) *statemachine.Machine[C], scenarios ...Scenario,
) {
	t.Helper()

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			t.Parallel()

			tm := NewTestMachine(t, newMachine(t))
			tm.Fire(sc.Events...)

			for i, entry := range tm.Trace() {
				want := sc.WantErrs[i]
				if want == nil {
					require.NoError(t, entry.Err, "event #%d", i)
				} else {
					require.ErrorIs(t, entry.Err, want, "event #%d", i)
				}
			}

			tm.AssertState(sc.WantState)
			tm.AssertMatches(sc.Matchers...)
		})
	}
}
