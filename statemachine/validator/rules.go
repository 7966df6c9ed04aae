package validator

import (
	"fmt"

	"github.com/fluxstate/fluxfsm/statemachine"
)

// Severity defines the severity level of a validation issue.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// RuleResult contains both errors and warnings from a rule check.
type RuleResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Rule checks a snapshot for one kind of issue.
type Rule interface {
	Name() string
	Severity() Severity
	Check(snap statemachine.Snapshot) RuleResult
}

// DefaultRules returns the standard set of validation rules. The state range
// checks run first so that the first error is the one with the lowest code.
func DefaultRules() []Rule {
	return []Rule{
		&currentStateRule{},
		&transitionStatesRule{},
		&unreachableStateRule{},
		&shadowedTransitionRule{},
		&deadHandlerRule{},
	}
}

func inRange(snap statemachine.Snapshot, s statemachine.State) bool {
	return s >= 0 && int(s) < snap.StateCount
}

// currentStateRule checks that the machine rests in a valid state.
type currentStateRule struct{}

func (r *currentStateRule) Name() string       { return "CurrentState" }
func (r *currentStateRule) Severity() Severity { return SeverityError }

func (r *currentStateRule) Check(snap statemachine.Snapshot) RuleResult {
	if inRange(snap, snap.Current) {
		return RuleResult{}
	}

	return RuleResult{Errors: []ValidationError{{
		Code:     CodeInvalidCurrentState,
		Number:   1,
		Message:  fmt.Sprintf("current state %d is outside [0, %d)", snap.Current, snap.StateCount),
		Location: Location{Transition: -1},
	}}}
}

// transitionStatesRule checks every transition's endpoints. AnyState is a
// legal source.
type transitionStatesRule struct{}

func (r *transitionStatesRule) Name() string       { return "TransitionStates" }
func (r *transitionStatesRule) Severity() Severity { return SeverityError }

func (r *transitionStatesRule) Check(snap statemachine.Snapshot) RuleResult {
	var errs []ValidationError

	for i, t := range snap.Transitions {
		if t.From != statemachine.AnyState && !inRange(snap, t.From) {
			errs = append(errs, ValidationError{
				Code:     CodeInvalidFromState,
				Number:   2, //nolint:mnd
				Message:  fmt.Sprintf("source state %d is outside [0, %d)", t.From, snap.StateCount),
				Location: Location{Transition: i},
			})
		}

		if !inRange(snap, t.To) {
			errs = append(errs, ValidationError{
				Code:     CodeInvalidToState,
				Number:   3, //nolint:mnd
				Message:  fmt.Sprintf("target state %d is outside [0, %d)", t.To, snap.StateCount),
				Location: Location{Transition: i},
			})
		}
	}

	return RuleResult{Errors: errs}
}

// unreachableStateRule flags states that no sequence of events can reach
// from the initial state. Guards are assumed to pass.
type unreachableStateRule struct{}

func (r *unreachableStateRule) Name() string       { return "UnreachableState" }
func (r *unreachableStateRule) Severity() Severity { return SeverityWarning }

func (r *unreachableStateRule) Check(snap statemachine.Snapshot) RuleResult {
	if !inRange(snap, snap.Initial) {
		return RuleResult{}
	}

	reachable := make([]bool, snap.StateCount)
	reachable[snap.Initial] = true
	queue := []statemachine.State{snap.Initial}

	visit := func(to statemachine.State) {
		if inRange(snap, to) && !reachable[to] {
			reachable[to] = true
			queue = append(queue, to)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, t := range snap.Transitions {
			if t.From == current || t.From == statemachine.AnyState {
				visit(t.To)
			}
		}
	}

	var warnings []ValidationWarning

	for s := range snap.StateCount {
		if reachable[s] {
			continue
		}

		label := snap.StateLabel(statemachine.State(s))
		warnings = append(warnings, ValidationWarning{
			Code: CodeUnreachableState,
			Message: fmt.Sprintf("state %s cannot be reached from initial state %s",
				label, snap.StateLabel(snap.Initial)),
			Location: Location{Transition: -1, State: label},
		})
	}

	return RuleResult{Warnings: warnings}
}

// shadowedTransitionRule flags transitions that can never win lookup because
// an earlier unguarded transition matches every (state, event) they match.
type shadowedTransitionRule struct{}

func (r *shadowedTransitionRule) Name() string       { return "ShadowedTransition" }
func (r *shadowedTransitionRule) Severity() Severity { return SeverityWarning }

func (r *shadowedTransitionRule) Check(snap statemachine.Snapshot) RuleResult {
	var warnings []ValidationWarning

	for i, later := range snap.Transitions {
		for j := range i {
			earlier := snap.Transitions[j]
			if earlier.Guard != "" || earlier.Event != later.Event {
				continue
			}

			if earlier.From != statemachine.AnyState && earlier.From != later.From {
				continue
			}

			warnings = append(warnings, ValidationWarning{
				Code: CodeShadowedTransition,
				Message: fmt.Sprintf("transition %d (%s --%s--> %s) is shadowed by unguarded transition %d",
					i, snap.StateLabel(later.From), snap.EventLabel(later.Event), snap.StateLabel(later.To), j),
				Location: Location{Transition: i, State: snap.StateLabel(later.From)},
				Fix:      RemoveTransition(i),
			})

			break
		}
	}

	return RuleResult{Warnings: warnings}
}

// deadHandlerRule flags exit handlers on states that no transition leaves.
type deadHandlerRule struct{}

func (r *deadHandlerRule) Name() string       { return "DeadHandler" }
func (r *deadHandlerRule) Severity() Severity { return SeverityWarning }

func (r *deadHandlerRule) Check(snap statemachine.Snapshot) RuleResult {
	leaves := make(map[statemachine.State]bool)
	wildcard := false

	for _, t := range snap.Transitions {
		if t.From == statemachine.AnyState {
			wildcard = true
		}

		leaves[t.From] = true
	}

	if wildcard {
		return RuleResult{}
	}

	var warnings []ValidationWarning

	for _, s := range snap.HandlerStates {
		if leaves[s] {
			continue
		}

		label := snap.StateLabel(s)
		warnings = append(warnings, ValidationWarning{
			Code:     CodeDeadHandler,
			Message:  fmt.Sprintf("state %s has an exit handler but no outgoing transition", label),
			Location: Location{Transition: -1, State: label},
			Fix:      RemoveHandler(label),
		})
	}

	return RuleResult{Warnings: warnings}
}
