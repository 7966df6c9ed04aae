// Package perf accumulates dispatch statistics for one or more machines.
package perf

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// Collector counts dispatch outcomes and transition timings. All methods are
// safe for concurrent use, so one collector can be shared by a fleet.
//
// A Collector is also a prometheus.Collector; register it to expose the
// counters under the fluxfsm_perf_ prefix.
type Collector struct {
	transitions   atomic.Uint64
	events        atomic.Uint64
	guardFailures atomic.Uint64
	invalidEvents atomic.Uint64
	invalidStates atomic.Uint64
	totalTime     atomic.Duration
	maxTime       atomic.Duration

	descs collectorDescs
}

type collectorDescs struct {
	transitions   *prometheus.Desc
	events        *prometheus.Desc
	guardFailures *prometheus.Desc
	invalidEvents *prometheus.Desc
	invalidStates *prometheus.Desc
	totalTime     *prometheus.Desc
	maxTime       *prometheus.Desc
}

// New returns an empty collector. constLabels are attached to every
// Prometheus sample, e.g. {"machine": "door"}.
func New(constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("fluxfsm_perf_"+name, help, nil, constLabels)
	}

	return &Collector{
		descs: collectorDescs{
			transitions:   desc("transitions_total", "Completed transitions"),
			events:        desc("events_total", "Dispatched events"),
			guardFailures: desc("guard_failures_total", "Transitions rejected by their guard"),
			invalidEvents: desc("invalid_events_total", "Events with no matching transition"),
			invalidStates: desc("invalid_states_total", "Dispatches rejected as invalid"),
			totalTime:     desc("transition_seconds_total", "Cumulative transition time"),
			maxTime:       desc("transition_max_seconds", "Longest transition"),
		},
	}
}

// Update records one completed transition that took d.
func (c *Collector) Update(d time.Duration) {
	c.transitions.Inc()
	c.totalTime.Add(d)

	for {
		current := c.maxTime.Load()
		if d <= current || c.maxTime.CompareAndSwap(current, d) {
			return
		}
	}
}

// RecordEvent counts one dispatched event, whatever its outcome.
func (c *Collector) RecordEvent() {
	c.events.Inc()
}

// RecordGuardFailure counts one transition rejected by its guard.
func (c *Collector) RecordGuardFailure() {
	c.guardFailures.Inc()
}

// RecordInvalidEvent counts one event that matched no transition.
func (c *Collector) RecordInvalidEvent() {
	c.invalidEvents.Inc()
}

// RecordInvalidState counts one dispatch rejected as invalid.
func (c *Collector) RecordInvalidState() {
	c.invalidStates.Inc()
}

// Reset zeroes every counter.
func (c *Collector) Reset() {
	c.transitions.Store(0)
	c.events.Store(0)
	c.guardFailures.Store(0)
	c.invalidEvents.Store(0)
	c.invalidStates.Store(0)
	c.totalTime.Store(0)
	c.maxTime.Store(0)
}

// Stats is a point-in-time copy of a Collector. Times are in milliseconds.
type Stats struct {
	Transitions       uint64       `json:"transitions"`
	Events            uint64       `json:"events"`
	GuardFailures     uint64       `json:"guard_failures"`
	InvalidEvents     uint64       `json:"invalid_events"`
	InvalidStates     uint64       `json:"invalid_states"`
	TotalTime         Milliseconds `json:"total_time"`
	AvgTransitionTime Milliseconds `json:"avg_transition_time"`
	MaxTransitionTime Milliseconds `json:"max_transition_time"`
}

// Milliseconds renders with exactly three decimals in JSON.
type Milliseconds float64

func (m Milliseconds) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(m), 'f', 3, 64)), nil
}

func toMillis(d time.Duration) Milliseconds {
	return Milliseconds(float64(d) / float64(time.Millisecond))
}

// Stats returns a snapshot of the counters. The average is zero until the
// first transition completes. Counters are read one at a time, so a snapshot
// taken during concurrent updates may be off by the updates in flight.
func (c *Collector) Stats() Stats {
	transitions := c.transitions.Load()
	total := c.totalTime.Load()

	s := Stats{
		Transitions:       transitions,
		Events:            c.events.Load(),
		GuardFailures:     c.guardFailures.Load(),
		InvalidEvents:     c.invalidEvents.Load(),
		InvalidStates:     c.invalidStates.Load(),
		TotalTime:         toMillis(total),
		MaxTransitionTime: toMillis(c.maxTime.Load()),
	}

	if transitions > 0 {
		s.AvgTransitionTime = toMillis(total / time.Duration(transitions)) //nolint:gosec
	}

	return s
}

// JSON renders the stats as an indented JSON object.
func (c *Collector) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(c.Stats(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal perf stats: %w", err)
	}

	return data, nil
}

// Output writes the JSON stats followed by a newline to w, but only once at
// least one transition has completed.
func (c *Collector) Output(w io.Writer) error {
	if c.transitions.Load() == 0 {
		return nil
	}

	data, err := c.JSON()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n", data)

	return err
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.descs.transitions
	ch <- c.descs.events
	ch <- c.descs.guardFailures
	ch <- c.descs.invalidEvents
	ch <- c.descs.invalidStates
	ch <- c.descs.totalTime
	ch <- c.descs.maxTime
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counter := func(desc *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v))
	}

	counter(c.descs.transitions, c.transitions.Load())
	counter(c.descs.events, c.events.Load())
	counter(c.descs.guardFailures, c.guardFailures.Load())
	counter(c.descs.invalidEvents, c.invalidEvents.Load())
	counter(c.descs.invalidStates, c.invalidStates.Load())

	ch <- prometheus.MustNewConstMetric(c.descs.totalTime, prometheus.CounterValue, c.totalTime.Load().Seconds())
	ch <- prometheus.MustNewConstMetric(c.descs.maxTime, prometheus.GaugeValue, c.maxTime.Load().Seconds())
}

var _ prometheus.Collector = (*Collector)(nil)
