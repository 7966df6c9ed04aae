// Package validator checks a machine's transition table for invalid states
// and for patterns that are legal but almost certainly mistakes.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fluxstate/fluxfsm/statemachine"
)

// Error codes. The numbers are stable and used as process exit codes by the CLI.
const (
	CodeInvalidCurrentState = "INVALID_CURRENT_STATE"
	CodeInvalidFromState    = "INVALID_FROM_STATE"
	CodeInvalidToState      = "INVALID_TO_STATE"

	CodeUnreachableState   = "UNREACHABLE_STATE"
	CodeShadowedTransition = "SHADOWED_TRANSITION"
	CodeDeadHandler        = "DEAD_HANDLER"
)

// ErrInvalidMachine is wrapped by Result.Err.
var ErrInvalidMachine = errors.New("invalid state machine")

// Result contains the findings of a validation run.
type Result struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// ValidationError is a finding that makes the machine unusable.
type ValidationError struct {
	Code     string   // e.g. "INVALID_TO_STATE"
	Number   int      // stable numeric code, 0 for promoted warnings
	Message  string   // human-readable message
	Location Location // where the error occurred
	Fix      *Fix     // optional definition fix
}

// ValidationWarning represents a non-critical issue.
type ValidationWarning struct {
	Code     string
	Message  string
	Location Location
	Fix      *Fix
}

// Location identifies where an issue occurred.
type Location struct {
	File       string // definition file, when validating a file
	Transition int    // position in the transition table, -1 if not applicable
	State      string // state label, if applicable
}

// Validate runs the default rules against snap.
func Validate(snap statemachine.Snapshot) Result {
	return ValidateWithRules(snap, DefaultRules())
}

// ValidateStrict runs the default rules and treats warnings as errors.
func ValidateStrict(snap statemachine.Snapshot) Result {
	return ValidateWithRulesStrict(snap, DefaultRules())
}

// ValidateWithRules validates using custom rules.
func ValidateWithRules(snap statemachine.Snapshot, rules []Rule) Result {
	result := Result{Valid: true}

	for _, rule := range rules {
		ruleResult := rule.Check(snap)
		result.Errors = append(result.Errors, ruleResult.Errors...)
		result.Warnings = append(result.Warnings, ruleResult.Warnings...)
	}

	if len(result.Errors) > 0 {
		result.Valid = false
	}

	return result
}

// ValidateWithRulesStrict validates with strict mode (treats warnings as errors).
func ValidateWithRulesStrict(snap statemachine.Snapshot, rules []Rule) Result {
	result := ValidateWithRules(snap, rules)

	for _, warning := range result.Warnings {
		result.Errors = append(result.Errors, ValidationError{
			Code:     warning.Code,
			Message:  warning.Message,
			Location: warning.Location,
			Fix:      warning.Fix,
		})
	}

	result.Warnings = nil
	result.Valid = len(result.Errors) == 0

	return result
}

// ValidateFile loads a definition, builds it against the expression registry
// and validates the result. Capabilities must therefore be written as
// expressions (see statemachine.ParseGuard). A definition that cannot be
// loaded or built is reported through the error return.
func ValidateFile(path string, strict bool) (Result, *statemachine.Definition, error) {
	def, err := statemachine.LoadDefinition(path)
	if err != nil {
		return Result{}, nil, err
	}

	m, err := statemachine.Build(def, statemachine.NewVarsRegistry(), statemachine.Vars{})
	if err != nil {
		return Result{}, def, fmt.Errorf("failed to build %q: %w", path, err)
	}
	defer m.Destroy()

	var result Result
	if strict {
		result = ValidateStrict(m.Snapshot())
	} else {
		result = Validate(m.Snapshot())
	}

	for i := range result.Errors {
		result.Errors[i].Location.File = path
	}

	for i := range result.Warnings {
		result.Warnings[i].Location.File = path
	}

	return result, def, nil
}

// HasErrors returns true if the result has any errors.
func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if the result has any warnings.
func (r Result) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Code returns the numeric code of the first error, or 0 when the result is
// valid. Promoted warnings have no number of their own and report 4.
func (r Result) Code() int {
	if len(r.Errors) == 0 {
		return 0
	}

	if n := r.Errors[0].Number; n > 0 {
		return n
	}

	return promotedWarningNumber
}

const promotedWarningNumber = 4

// Err folds the errors into a single error wrapping ErrInvalidMachine, or
// returns nil when there are none.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Code, e.Message))
	}

	return fmt.Errorf("%w: %s", ErrInvalidMachine, strings.Join(msgs, "; "))
}

// String returns a human-readable summary of validation results.
func (r Result) String() string {
	var sb strings.Builder

	if r.Valid {
		sb.WriteString("machine is valid\n")
	} else {
		fmt.Fprintf(&sb, "machine has %d error(s)\n", len(r.Errors))

		for _, err := range r.Errors {
			fmt.Fprintf(&sb, "  [%s] %s", err.Code, err.Message)
			writeLocation(&sb, err.Location)
			sb.WriteString("\n")

			if err.Fix != nil {
				fmt.Fprintf(&sb, "    fix: %s\n", err.Fix.Description)
			}
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(&sb, "%d warning(s)\n", len(r.Warnings))

		for _, warn := range r.Warnings {
			fmt.Fprintf(&sb, "  [%s] %s", warn.Code, warn.Message)
			writeLocation(&sb, warn.Location)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func writeLocation(sb *strings.Builder, loc Location) {
	switch {
	case loc.Transition >= 0 && loc.State != "":
		fmt.Fprintf(sb, " (transition %d, state %s)", loc.Transition, loc.State)
	case loc.Transition >= 0:
		fmt.Fprintf(sb, " (transition %d)", loc.Transition)
	case loc.State != "":
		fmt.Fprintf(sb, " (state %s)", loc.State)
	}
}
