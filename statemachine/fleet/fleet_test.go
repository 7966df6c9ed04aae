package fleet

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/fluxstate/fluxfsm/statemachine/perf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	off statemachine.State = iota
	on
)

const (
	toggle statemachine.Event = iota
	reset
)

type counter struct {
	mu    sync.Mutex
	flips int
}

func newSwitch(t *testing.T) *statemachine.Machine[*counter] {
	t.Helper()

	flip := statemachine.ActionFunc[*counter](func(c *counter) {
		c.mu.Lock()
		c.flips++
		c.mu.Unlock()
	})

	m, err := statemachine.New(off, &counter{}, statemachine.WithStateCount(2))
	require.NoError(t, err)
	require.NoError(t, m.AddTransition(statemachine.Transition[*counter]{From: off, Event: toggle, To: on, Action: flip}))
	require.NoError(t, m.AddTransition(statemachine.Transition[*counter]{From: on, Event: toggle, To: off, Action: flip}))

	return m
}

func quiet() Option {
	return WithInstrumentation(statemachine.WithoutMetrics(), statemachine.WithoutTracing())
}

func TestDispatchAppliesEventsInOrder(t *testing.T) {
	t.Parallel()

	f := New[*counter](quiet())
	t.Cleanup(func() { _ = f.Close() })

	m := newSwitch(t)
	require.NoError(t, f.Add("switch", m))

	require.NoError(t, f.Dispatch(t.Context(), "switch", toggle, toggle, toggle).Wait())

	state, err := f.State("switch")
	require.NoError(t, err)
	assert.Equal(t, on, state)
	assert.Equal(t, 3, m.Context().flips)
}

func TestDispatchStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	f := New[*counter](quiet())
	t.Cleanup(func() { _ = f.Close() })

	m := newSwitch(t)
	require.NoError(t, f.Add("switch", m))

	err := f.Dispatch(t.Context(), "switch", toggle, reset, toggle).Wait()
	require.ErrorIs(t, err, statemachine.ErrNoTransition)
	assert.Contains(t, err.Error(), "event 2 of 3")
	assert.Equal(t, on, m.State())
	assert.Equal(t, 1, m.Context().flips)
}

func TestDispatchUnknownMachine(t *testing.T) {
	t.Parallel()

	f := New[*counter](quiet())
	t.Cleanup(func() { _ = f.Close() })

	task := f.Dispatch(t.Context(), "ghost", toggle)
	<-task.Done()
	require.ErrorIs(t, task.Wait(), ErrUnknownMachine)

	_, err := f.State("ghost")
	require.ErrorIs(t, err, ErrUnknownMachine)
}

func TestConcurrentDispatchSerializesPerMachine(t *testing.T) {
	t.Parallel()

	collector := perf.New(nil)
	f := New[*counter](WithWorkers(8), quiet(), WithInstrumentation(statemachine.WithPerf(collector)))
	t.Cleanup(func() { _ = f.Close() })

	machines := map[string]*statemachine.Machine[*counter]{}

	for i := range 5 {
		id := fmt.Sprintf("m%d", i)
		machines[id] = newSwitch(t)
		require.NoError(t, f.Add(id, machines[id]))
	}

	var wg sync.WaitGroup

	for id := range machines {
		for range 100 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				assert.NoError(t, f.Dispatch(context.Background(), id, toggle).Wait())
			}()
		}
	}

	wg.Wait()

	for id, m := range machines {
		state, err := f.State(id)
		require.NoError(t, err)
		assert.Equal(t, off, state, id)
		assert.Equal(t, 100, m.Context().flips, id)
	}

	assert.Equal(t, uint64(500), collector.Stats().Transitions)
}

func TestBroadcast(t *testing.T) {
	t.Parallel()

	f := New[*counter](quiet())
	t.Cleanup(func() { _ = f.Close() })

	require.NoError(t, f.Add("a", newSwitch(t)))
	require.NoError(t, f.Add("b", newSwitch(t)))

	require.NoError(t, f.Broadcast(t.Context(), toggle))
	require.NoError(t, f.Broadcast(t.Context(), reset), "unmatched events are skipped")

	for _, id := range f.IDs() {
		state, err := f.State(id)
		require.NoError(t, err)
		assert.Equal(t, on, state)
	}
}

func TestBroadcastFuncChoosesEventPerMachine(t *testing.T) {
	t.Parallel()

	f := New[*counter](quiet())
	t.Cleanup(func() { _ = f.Close() })

	require.NoError(t, f.Add("a", newSwitch(t)))
	require.NoError(t, f.Add("b", newSwitch(t)))
	require.NoError(t, f.Add("c", newSwitch(t)))

	var seen []string

	err := f.BroadcastFunc(t.Context(), func(id string, snap statemachine.Snapshot) (statemachine.Event, bool) {
		seen = append(seen, id)
		assert.Equal(t, off, snap.Current)

		return toggle, id != "b"
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen)

	want := map[string]statemachine.State{"a": on, "b": off, "c": on}
	for id, state := range want {
		got, err := f.State(id)
		require.NoError(t, err)
		assert.Equal(t, state, got, id)
	}
}

func TestBroadcastReportsFailures(t *testing.T) {
	t.Parallel()

	f := New[*counter](quiet())
	t.Cleanup(func() { _ = f.Close() })

	broken := newSwitch(t)
	broken.Destroy()

	require.NoError(t, f.Add("ok", newSwitch(t)))
	require.NoError(t, f.Add("broken", broken))

	err := f.Broadcast(t.Context(), toggle)
	require.ErrorIs(t, err, statemachine.ErrMachineDestroyed)
}

func TestAddRemove(t *testing.T) {
	t.Parallel()

	f := New[*counter](quiet())
	t.Cleanup(func() { _ = f.Close() })

	m := newSwitch(t)
	require.NoError(t, f.Add("m10", m))
	require.NoError(t, f.Add("m2", newSwitch(t)))
	require.NoError(t, f.Add("m1", newSwitch(t)))

	require.ErrorIs(t, f.Add("m10", newSwitch(t)), ErrDuplicateMachine)
	require.ErrorIs(t, f.Add("nil", nil), statemachine.ErrInvalidArgument)

	assert.Equal(t, []string{"m1", "m2", "m10"}, f.IDs())

	got, ok := f.Remove("m10")
	require.True(t, ok)
	assert.Same(t, m, got)
	assert.Equal(t, 2, f.Len())

	_, ok = f.Remove("m10")
	assert.False(t, ok)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	f := New[*counter](quiet())
	t.Cleanup(func() { _ = f.Close() })

	require.NoError(t, f.Add("switch", newSwitch(t)))
	require.NoError(t, f.Dispatch(t.Context(), "switch", toggle).Wait())

	snap, err := f.Snapshot("switch")
	require.NoError(t, err)
	assert.Equal(t, on, snap.Current)
	assert.Len(t, snap.Transitions, 2)

	_, err = f.Snapshot("missing")
	require.ErrorIs(t, err, ErrUnknownMachine)
}

func TestClose(t *testing.T) {
	t.Parallel()

	f := New[*counter](quiet())
	require.NoError(t, f.Add("switch", newSwitch(t)))

	require.NoError(t, f.Close())
	require.ErrorIs(t, f.Close(), ErrClosed)
	require.ErrorIs(t, f.Add("other", newSwitch(t)), ErrClosed)
	require.ErrorIs(t, f.Dispatch(t.Context(), "switch", toggle).Wait(), ErrClosed)
}
