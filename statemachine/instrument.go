package statemachine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PerfRecorder accumulates dispatch statistics. perf.Collector implements it.
type PerfRecorder interface {
	Update(transitionTime time.Duration)
	RecordEvent()
	RecordGuardFailure()
	RecordInvalidEvent()
	RecordInvalidState()
}

// InstrumentOption configures an Instrumented machine.
type InstrumentOption func(*instrumentOptions)

type instrumentOptions struct {
	logger  Logger
	perf    PerfRecorder
	metrics bool
	tracing bool
}

// WithLogger reports dispatch outcomes to l.
func WithLogger(l Logger) InstrumentOption {
	return func(o *instrumentOptions) {
		o.logger = l
	}
}

// WithPerf feeds dispatch timings and outcomes to p.
func WithPerf(p PerfRecorder) InstrumentOption {
	return func(o *instrumentOptions) {
		o.perf = p
	}
}

// WithoutMetrics disables the Prometheus metrics.
func WithoutMetrics() InstrumentOption {
	return func(o *instrumentOptions) {
		o.metrics = false
	}
}

// WithoutTracing disables the OpenTelemetry spans.
func WithoutTracing() InstrumentOption {
	return func(o *instrumentOptions) {
		o.tracing = false
	}
}

// Instrumented wraps a machine with timing, metrics, tracing and logging.
// Dispatch semantics are those of the wrapped machine; the wrapper only
// observes. Like Machine, it is not safe for concurrent use.
type Instrumented[C any] struct {
	machine *Machine[C]
	opts    instrumentOptions
}

// Instrument wraps m. Metrics and tracing are on by default; logging and perf
// recording are enabled by their options.
func Instrument[C any](m *Machine[C], opts ...InstrumentOption) *Instrumented[C] {
	o := instrumentOptions{
		metrics: true,
		tracing: true,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return &Instrumented[C]{
		machine: m,
		opts:    o,
	}
}

// Machine returns the wrapped machine.
func (i *Instrumented[C]) Machine() *Machine[C] {
	return i.machine
}

// State returns the wrapped machine's current state.
func (i *Instrumented[C]) State() State {
	return i.machine.State()
}

// ProcessEvent dispatches event on the wrapped machine.
func (i *Instrumented[C]) ProcessEvent(ctx context.Context, event Event) error {
	return i.observe(ctx, event, func() error {
		return i.machine.ProcessEvent(event)
	})
}

// ExecTransition executes the transition at idx on the wrapped machine.
func (i *Instrumented[C]) ExecTransition(ctx context.Context, idx Index) error {
	event := Event(-1)

	if i.machine != nil {
		if row, ok := i.machine.table.at(idx.pos); ok {
			event = row.Event
		}
	}

	return i.observe(ctx, event, func() error {
		return i.machine.ExecTransition(idx)
	})
}

func (i *Instrumented[C]) observe(ctx context.Context, event Event, dispatch func() error) error {
	from := i.machine.State()
	labels := dispatchLabels{
		machine: sanitizeMachine(i.machine.Name()),
		state:   i.stateName(from),
		event:   i.eventName(event),
	}

	if i.machine != nil {
		labels.machineID = i.machine.ID().String()
	}

	if i.opts.tracing {
		var span trace.Span

		ctx, span = startDispatchSpan(ctx, labels)
		defer span.End()
	}

	start := time.Now()
	err := dispatch()
	elapsed := time.Since(start)

	outcome := classify(err)
	to := i.machine.State()

	i.recordSpan(ctx, outcome, i.stateName(to), err)
	i.recordPerf(outcome, elapsed)
	i.recordMetrics(labels, outcome, i.stateName(to), elapsed)
	i.recordLog(ctx, labels, outcome, i.stateName(to), elapsed, err)

	return err
}

func (i *Instrumented[C]) recordSpan(ctx context.Context, outcome, to string, err error) {
	if !i.opts.tracing {
		return
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.String("to_state", to),
	)

	if outcome == OutcomeInvalid {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, outcome)
	}
}

func (i *Instrumented[C]) recordPerf(outcome string, elapsed time.Duration) {
	if i.opts.perf == nil {
		return
	}

	i.opts.perf.RecordEvent()

	switch outcome {
	case OutcomeSuccess:
		i.opts.perf.Update(elapsed)
	case OutcomeGuardRejected:
		i.opts.perf.RecordGuardFailure()
	case OutcomeNoTransition:
		i.opts.perf.RecordInvalidEvent()
	default:
		i.opts.perf.RecordInvalidState()
	}
}

func (i *Instrumented[C]) recordMetrics(labels dispatchLabels, outcome, to string, elapsed time.Duration) {
	if !i.opts.metrics {
		return
	}

	eventsTotal.WithLabelValues(labels.machine, outcome).Inc()
	dispatchDuration.WithLabelValues(labels.machine, outcome).Observe(elapsed.Seconds())

	if outcome == OutcomeSuccess {
		transitionsTotal.WithLabelValues(labels.machine, labels.state, to).Inc()
	}
}

func (i *Instrumented[C]) recordLog(
	ctx context.Context, labels dispatchLabels, outcome, to string, elapsed time.Duration, err error,
) {
	if i.opts.logger == nil {
		return
	}

	switch outcome {
	case OutcomeSuccess:
		i.opts.logger.TransitionExecuted(ctx, labels.machine, labels.state, labels.event, to, elapsed)
	case OutcomeGuardRejected:
		i.opts.logger.GuardRejected(ctx, labels.machine, labels.state, labels.event)
	case OutcomeNoTransition:
		i.opts.logger.EventUnmatched(ctx, labels.machine, labels.state, labels.event)
	default:
		i.opts.logger.DispatchFailed(ctx, labels.machine, labels.state, labels.event, err)
	}
}

func (i *Instrumented[C]) stateName(s State) string {
	if i.machine == nil || s == InvalidState {
		return "invalid"
	}

	return i.machine.StateName(s)
}

func (i *Instrumented[C]) eventName(e Event) string {
	if i.machine == nil || e < 0 {
		return "unknown"
	}

	return i.machine.EventName(e)
}

// classify maps a dispatch error to its outcome label.
func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrGuardRejected):
		return OutcomeGuardRejected
	case errors.Is(err, ErrNoTransition):
		return OutcomeNoTransition
	default:
		return OutcomeInvalid
	}
}
