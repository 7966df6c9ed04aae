package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes, used as metric labels, span attributes and log fields.
const (
	OutcomeSuccess       = "success"
	OutcomeGuardRejected = "guard_rejected"
	OutcomeNoTransition  = "no_transition"
	OutcomeInvalid       = "invalid"
)

// Metric definitions with appropriate labels.
var (
	// eventsTotal counts dispatch attempts by machine and outcome.
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxfsm_events_total",
		Help: "Total number of events dispatched by machine and outcome",
	}, []string{"machine", "outcome"})

	// transitionsTotal counts completed transitions.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxfsm_transitions_total",
		Help: "Total number of completed transitions by machine, from_state and to_state",
	}, []string{"machine", "from_state", "to_state"})

	// dispatchDuration tracks the time spent in guard, action, handler and state update.
	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fluxfsm_dispatch_duration_seconds",
		Help:    "Duration of event dispatch by machine and outcome",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"machine", "outcome"})
)

func sanitizeMachine(name string) string {
	if name == "" {
		return "unnamed"
	}

	return name
}
