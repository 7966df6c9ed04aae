// Package fleet runs many machines concurrently. Each machine is guarded by
// its own mutex, so different machines progress in parallel on a shared
// worker pool while no single machine is ever entered twice.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"facette.io/natsort"
	"github.com/alitto/pond/v2"
	"github.com/fluxstate/fluxfsm/logger"
	"github.com/fluxstate/fluxfsm/statemachine"
	"go.uber.org/atomic"
)

const defaultWorkerCount = 10

var (
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("fleet is closed")
	// ErrUnknownMachine is returned for an id that is not in the fleet.
	ErrUnknownMachine = errors.New("unknown machine")
	// ErrDuplicateMachine is returned by Add for an id already in use.
	ErrDuplicateMachine = errors.New("machine id already in use")
)

// Option configures a Fleet.
type Option func(*options)

type options struct {
	workers    int
	instrument []statemachine.InstrumentOption
}

// WithWorkers sets the number of pool workers. Defaults to 10.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithInstrumentation applies opts to every machine added to the fleet.
func WithInstrumentation(opts ...statemachine.InstrumentOption) Option {
	return func(o *options) {
		o.instrument = append(o.instrument, opts...)
	}
}

type member[C any] struct {
	mu      sync.Mutex
	machine *statemachine.Instrumented[C]
}

// Fleet is a set of machines keyed by id. It is safe for concurrent use.
type Fleet[C any] struct {
	pool    pond.Pool
	opts    options
	mu      sync.RWMutex
	members map[string]*member[C]
	closed  *atomic.Bool
}

// New creates an empty fleet with its own worker pool.
func New[C any](opts ...Option) *Fleet[C] {
	o := options{workers: defaultWorkerCount}
	for _, opt := range opts {
		opt(&o)
	}

	if o.workers < 1 {
		o.workers = defaultWorkerCount
	}

	return &Fleet[C]{
		pool:    pond.NewPool(o.workers),
		opts:    o,
		members: make(map[string]*member[C]),
		closed:  atomic.NewBool(false),
	}
}

// Add puts m in the fleet under id. The fleet borrows m; after Add, m must
// only be driven through the fleet until it is removed.
func (f *Fleet[C]) Add(id string, m *statemachine.Machine[C]) error {
	if m == nil {
		return fmt.Errorf("%w: nil machine", statemachine.ErrInvalidArgument)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed.Load() {
		return ErrClosed
	}

	if _, ok := f.members[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMachine, id)
	}

	f.members[id] = &member[C]{machine: statemachine.Instrument(m, f.opts.instrument...)}

	return nil
}

// Remove takes the machine out of the fleet, waiting for a dispatch in
// progress to finish, and hands it back to the caller. Tasks already queued
// for it fail with ErrUnknownMachine.
func (f *Fleet[C]) Remove(id string) (*statemachine.Machine[C], bool) {
	f.mu.Lock()
	mem, ok := f.members[id]
	delete(f.members, id)
	f.mu.Unlock()

	if !ok {
		return nil, false
	}

	mem.mu.Lock()
	defer mem.mu.Unlock()

	m := mem.machine.Machine()
	mem.machine = nil

	return m, true
}

func (f *Fleet[C]) lookup(id string) (*member[C], error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed.Load() {
		return nil, ErrClosed
	}

	mem, ok := f.members[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMachine, id)
	}

	return mem, nil
}

// Dispatch queues events for machine id and returns the task that applies
// them. The events are applied in order; the first failure stops the rest
// and is what Task.Wait returns.
func (f *Fleet[C]) Dispatch(ctx context.Context, id string, events ...statemachine.Event) pond.Task { //nolint:ireturn
	mem, err := f.lookup(id)
	if err != nil {
		return failedTask(err)
	}

	return f.pool.SubmitErr(func() error {
		return f.apply(ctx, id, mem, events)
	})
}

// failedTask is a pond.Task that has already completed with an error.
func failedTask(err error) pond.Task { //nolint:ireturn
	done := make(chan struct{})
	close(done)

	return &completedTask{done: done, err: err}
}

type completedTask struct {
	done chan struct{}
	err  error
}

func (t *completedTask) Done() <-chan struct{} { return t.done }
func (t *completedTask) Wait() error           { return t.err }

func (f *Fleet[C]) apply(ctx context.Context, id string, mem *member[C], events []statemachine.Event) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()

	if mem.machine == nil {
		return fmt.Errorf("%w: %s", ErrUnknownMachine, id)
	}

	ctx = logger.With(ctx, "machine_id", id)

	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := mem.machine.ProcessEvent(ctx, event)
		if err != nil {
			return fmt.Errorf("machine %s, event %d of %d: %w", id, i+1, len(events), err)
		}
	}

	return nil
}

// Broadcast sends event to every machine and waits for all of them.
// Machines without a transition for event are skipped silently; other
// failures are joined into the returned error.
func (f *Fleet[C]) Broadcast(ctx context.Context, event statemachine.Event) error {
	return f.BroadcastFunc(ctx, func(string, statemachine.Snapshot) (statemachine.Event, bool) {
		return event, true
	})
}

// BroadcastFunc is Broadcast with the event chosen per machine. resolve is
// called on the calling goroutine with each machine's snapshot; machines for
// which it returns false are left alone. Machines built from different
// definitions may number the same event differently, so callers resolving by
// name should do it here.
func (f *Fleet[C]) BroadcastFunc(
	ctx context.Context,
	resolve func(id string, snap statemachine.Snapshot) (statemachine.Event, bool),
) error {
	ids := f.IDs()
	tasks := make([]pond.Task, 0, len(ids))

	for _, id := range ids {
		snap, err := f.Snapshot(id)
		if err != nil {
			continue
		}

		event, ok := resolve(id, snap)
		if !ok {
			continue
		}

		tasks = append(tasks, f.Dispatch(ctx, id, event))
	}

	var errs []error

	for _, task := range tasks {
		err := task.Wait()
		if err != nil && !errors.Is(err, statemachine.ErrNoTransition) && !errors.Is(err, ErrUnknownMachine) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// State returns the current state of machine id. It waits for a dispatch in
// progress on that machine.
func (f *Fleet[C]) State(id string) (statemachine.State, error) {
	state := statemachine.InvalidState

	err := f.inspect(id, func(m *statemachine.Instrumented[C]) {
		state = m.State()
	})

	return state, err
}

// Snapshot returns a copy of machine id's table and current state.
func (f *Fleet[C]) Snapshot(id string) (statemachine.Snapshot, error) {
	var snap statemachine.Snapshot

	err := f.inspect(id, func(m *statemachine.Instrumented[C]) {
		snap = m.Machine().Snapshot()
	})

	return snap, err
}

func (f *Fleet[C]) inspect(id string, fn func(*statemachine.Instrumented[C])) error {
	mem, err := f.lookup(id)
	if err != nil {
		return err
	}

	mem.mu.Lock()
	defer mem.mu.Unlock()

	if mem.machine == nil {
		return fmt.Errorf("%w: %s", ErrUnknownMachine, id)
	}

	fn(mem.machine)

	return nil
}

// IDs returns the machine ids in natural order ("m2" before "m10").
func (f *Fleet[C]) IDs() []string {
	f.mu.RLock()
	ids := make([]string, 0, len(f.members))

	for id := range f.members {
		ids = append(ids, id)
	}
	f.mu.RUnlock()

	natsort.Sort(ids)

	return ids
}

// Len returns the number of machines in the fleet.
func (f *Fleet[C]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.members)
}

// Close waits for queued dispatches and stops the pool. Machines are not
// destroyed; they still belong to whoever added them.
func (f *Fleet[C]) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	logger.Get().Debug("Stopping fleet worker pool", "machines", f.Len())
	f.pool.StopAndWait()

	return nil
}
