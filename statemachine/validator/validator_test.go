//nolint:varnamelen // Test file
package validator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const (
	idle statemachine.State = iota
	running
	paused
	stopped
)

const (
	start statemachine.Event = iota
	pause
	resume
	stop
)

func codes(result Result) []string {
	var out []string

	for _, e := range result.Errors {
		out = append(out, e.Code)
	}

	for _, w := range result.Warnings {
		out = append(out, w.Code)
	}

	return out
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		snap      statemachine.Snapshot
		wantValid bool
		wantCodes []string
		wantCode  int
	}{
		{
			name: "valid player",
			snap: statemachine.Snapshot{
				Initial: idle, Current: idle, StateCount: 4,
				Transitions: []statemachine.TransitionInfo{
					{From: idle, Event: start, To: running},
					{From: running, Event: pause, To: paused},
					{From: paused, Event: resume, To: running},
					{From: statemachine.AnyState, Event: stop, To: stopped},
				},
			},
			wantValid: true,
		},
		{
			name: "current state out of range",
			snap: statemachine.Snapshot{
				Initial: idle, Current: statemachine.InvalidState, StateCount: 1,
			},
			wantCodes: []string{CodeInvalidCurrentState},
			wantCode:  1,
		},
		{
			name: "bad source and target",
			snap: statemachine.Snapshot{
				Initial: idle, Current: idle, StateCount: 2,
				Transitions: []statemachine.TransitionInfo{
					{From: 7, Event: start, To: 1},
					{From: 0, Event: start, To: 9},
				},
			},
			wantCodes: []string{CodeInvalidFromState, CodeInvalidToState, CodeUnreachableState},
			wantCode:  2,
		},
		{
			name: "unreachable state is a warning",
			snap: statemachine.Snapshot{
				Initial: idle, Current: idle, StateCount: 3,
				Transitions: []statemachine.TransitionInfo{
					{From: idle, Event: start, To: running},
				},
			},
			wantValid: true,
			wantCodes: []string{CodeUnreachableState},
		},
		{
			name: "guarded earlier transition does not shadow",
			snap: statemachine.Snapshot{
				Initial: idle, Current: idle, StateCount: 3,
				Transitions: []statemachine.TransitionInfo{
					{From: idle, Event: start, To: running, Guard: "ready"},
					{From: idle, Event: start, To: paused},
				},
			},
			wantValid: true,
		},
		{
			name: "unguarded earlier transition shadows",
			snap: statemachine.Snapshot{
				Initial: idle, Current: idle, StateCount: 3,
				Transitions: []statemachine.TransitionInfo{
					{From: statemachine.AnyState, Event: start, To: running},
					{From: running, Event: start, To: paused},
				},
			},
			wantValid: true,
			wantCodes: []string{CodeShadowedTransition},
		},
		{
			name: "handler on a state nothing leaves",
			snap: statemachine.Snapshot{
				Initial: idle, Current: idle, StateCount: 2,
				Transitions: []statemachine.TransitionInfo{
					{From: idle, Event: start, To: running},
				},
				HandlerStates: []statemachine.State{running},
			},
			wantValid: true,
			wantCodes: []string{CodeDeadHandler},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := Validate(tt.snap)
			assert.Equal(t, tt.wantValid, result.Valid)
			assert.Equal(t, tt.wantCodes, codes(result))
			assert.Equal(t, tt.wantCode, result.Code())

			if tt.wantValid {
				require.NoError(t, result.Err())
			} else {
				require.ErrorIs(t, result.Err(), ErrInvalidMachine)
			}
		})
	}
}

func TestValidateStrict(t *testing.T) {
	t.Parallel()

	snap := statemachine.Snapshot{
		Initial: idle, Current: idle, StateCount: 3,
		Transitions: []statemachine.TransitionInfo{
			{From: idle, Event: start, To: running},
		},
	}

	result := ValidateStrict(snap)
	assert.False(t, result.Valid)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeUnreachableState, result.Errors[0].Code)
	assert.Equal(t, promotedWarningNumber, result.Code())
	assert.Contains(t, result.String(), "state 2 cannot be reached")
}

func TestValidateMachineSnapshot(t *testing.T) {
	t.Parallel()

	m, err := statemachine.New[*int](idle, nil, statemachine.WithStateNames(map[statemachine.State]string{
		idle: "idle", running: "running",
	}))
	require.NoError(t, err)
	require.NoError(t, m.AddTransition(statemachine.Transition[*int]{From: idle, Event: start, To: running}))
	require.NoError(t, m.AddTransition(statemachine.Transition[*int]{From: running, Event: stop, To: idle}))

	result := Validate(m.Snapshot())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)

	m.Destroy()

	result = Validate(m.Snapshot())
	assert.False(t, result.Valid)
	assert.Equal(t, CodeInvalidCurrentState, result.Errors[0].Code)
}

const shadowedDefinition = `
name: player
initialState: idle
states: [idle, running, stopped]
events: [start, stop]
transitions:
  - {from: idle, event: start, to: running}
  - {from: "*", event: stop, to: stopped}
  - {from: running, event: stop, to: idle}
  - {from: stopped, event: start, to: running, action: "starts++"}
handlers:
  - {state: stopped, handler: "exits++"}
`

func TestValidateFileAndFix(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "player.yaml")
	require.NoError(t, os.WriteFile(path, []byte(shadowedDefinition), 0o600))

	result, def, err := ValidateFile(path, false)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.Equal(t, []string{CodeShadowedTransition}, codes(result))
	assert.Equal(t, path, result.Warnings[0].Location.File)
	assert.Equal(t, 2, result.Warnings[0].Location.Transition)

	applied, err := ApplyFixes(def, result)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	require.Len(t, def.Transitions, 3)
	assert.Equal(t, "stopped", def.Transitions[2].From)

	require.ErrorIs(t, RemoveTransition(len(def.Transitions)).Apply(def), ErrTransitionNotFound)
}

func TestValidateFileErrors(t *testing.T) {
	t.Parallel()

	_, _, err := ValidateFile(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "named.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: named
initialState: a
states: [a, b]
events: [go]
transitions:
  - {from: a, event: go, to: b, guard: "isReady("}
`), 0o600))

	_, def, err := ValidateFile(path, false)
	require.ErrorIs(t, err, statemachine.ErrUnknownGuard)
	require.ErrorIs(t, err, statemachine.ErrUnsupportedExpression)
	assert.NotNil(t, def)
}

func TestRemoveHandlerFix(t *testing.T) {
	t.Parallel()

	def := &statemachine.Definition{
		Handlers: []statemachine.HandlerDefinition{{State: "a", Handler: "x++"}, {State: "b", Handler: "y++"}},
	}

	require.NoError(t, RemoveHandler("a").Apply(def))
	assert.Equal(t, []statemachine.HandlerDefinition{{State: "b", Handler: "y++"}}, def.Handlers)
	require.ErrorIs(t, RemoveHandler("a").Apply(def), ErrHandlerNotFound)
}

//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestValidateContextSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	old := otel.GetTracerProvider()
	otel.SetTracerProvider(trace.NewTracerProvider(trace.WithSyncer(exporter)))
	t.Cleanup(func() { otel.SetTracerProvider(old) })

	snap := statemachine.Snapshot{Name: "player", Initial: idle, Current: idle, StateCount: 2}
	result := ValidateContext(context.Background(), snap, true)
	assert.False(t, result.Valid)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "statemachine.validate", spans[0].Name)

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}

	assert.Equal(t, "player", attrs["machine"])
	assert.Equal(t, int64(1), attrs["errors"])
	assert.Equal(t, true, attrs["strict"])
}
