package statemachine_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/fluxstate/fluxfsm/statemachine"
	smtest "github.com/fluxstate/fluxfsm/statemachine/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deviceDefinition = `
name: device
initialState: off
states: [off, on, error]
events: [power_on, power_off, error, reset]
transitions:
  - {from: off, event: power_on, to: on, guard: "power >= 90", action: "power += 10"}
  - {from: on, event: power_off, to: off}
  - {from: on, event: error, to: error}
  - {from: error, event: reset, to: off}
handlers:
  - {state: error, handler: "errors++"}
`

func TestLoadDefinition(t *testing.T) {
	t.Parallel()

	def, err := statemachine.LoadDefinitionFromBytes([]byte(deviceDefinition))
	require.NoError(t, err)

	assert.Equal(t, "device", def.Name)
	assert.Equal(t, []string{"off", "on", "error"}, def.States)
	assert.Len(t, def.Transitions, 4)
	assert.Equal(t, "power >= 90", def.Transitions[0].Guard)

	id, err := def.StateID("error")
	require.NoError(t, err)
	assert.Equal(t, statemachine.State(2), id)

	id, err = def.StateID(statemachine.WildcardState)
	require.NoError(t, err)
	assert.Equal(t, statemachine.AnyState, id)

	ev, err := def.EventID("reset")
	require.NoError(t, err)
	assert.Equal(t, statemachine.Event(3), ev)

	assert.Equal(t, map[statemachine.State]string{0: "off", 1: "on", 2: "error"}, def.StateNames())
	assert.Equal(t, "power_off", def.EventNames()[1])
}

func TestLoadDefinitionFromFileAndFS(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "device.yaml")
	require.NoError(t, os.WriteFile(path, []byte(deviceDefinition), 0o600))

	fromFile, err := statemachine.LoadDefinition(path)
	require.NoError(t, err)

	fsys := fstest.MapFS{"defs/device.yaml": {Data: []byte(deviceDefinition)}}
	fromFS, err := statemachine.LoadDefinitionFromFS(fsys, "defs/device.yaml")
	require.NoError(t, err)

	assert.Equal(t, fromFile, fromFS)

	_, err = statemachine.LoadDefinition(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = statemachine.LoadDefinitionFromFS(fsys, "nope.yaml")
	require.Error(t, err)
}

func TestDefinitionValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "missing name",
			yaml:    "initialState: a\nstates: [a]",
			wantErr: statemachine.ErrDefinitionNameRequired,
		},
		{
			name:    "missing initial state",
			yaml:    "name: x\nstates: [a]",
			wantErr: statemachine.ErrInitialStateRequired,
		},
		{
			name:    "no states",
			yaml:    "name: x\ninitialState: a",
			wantErr: statemachine.ErrStateRequired,
		},
		{
			name:    "duplicate state",
			yaml:    "name: x\ninitialState: a\nstates: [a, a]",
			wantErr: statemachine.ErrDuplicateStateName,
		},
		{
			name:    "wildcard as state name",
			yaml:    "name: x\ninitialState: a\nstates: [a, '*']",
			wantErr: statemachine.ErrInvalidArgument,
		},
		{
			name:    "duplicate event",
			yaml:    "name: x\ninitialState: a\nstates: [a]\nevents: [go, go]",
			wantErr: statemachine.ErrDuplicateEventName,
		},
		{
			name:    "unknown initial state",
			yaml:    "name: x\ninitialState: b\nstates: [a]",
			wantErr: statemachine.ErrUnknownState,
		},
		{
			name:    "unknown target",
			yaml:    "name: x\ninitialState: a\nstates: [a]\nevents: [go]\ntransitions: [{from: a, event: go, to: b}]",
			wantErr: statemachine.ErrUnknownState,
		},
		{
			name:    "wildcard target",
			yaml:    "name: x\ninitialState: a\nstates: [a]\nevents: [go]\ntransitions: [{from: a, event: go, to: '*'}]",
			wantErr: statemachine.ErrUnknownState,
		},
		{
			name:    "unknown event",
			yaml:    "name: x\ninitialState: a\nstates: [a]\nevents: [go]\ntransitions: [{from: a, event: stop, to: a}]",
			wantErr: statemachine.ErrUnknownEvent,
		},
		{
			name:    "handler without name",
			yaml:    "name: x\ninitialState: a\nstates: [a]\nhandlers: [{state: a}]",
			wantErr: statemachine.ErrInvalidArgument,
		},
		{
			name:    "handler on unknown state",
			yaml:    "name: x\ninitialState: a\nstates: [a]\nhandlers: [{state: b, handler: h}]",
			wantErr: statemachine.ErrUnknownState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := statemachine.LoadDefinitionFromBytes([]byte(tt.yaml))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := statemachine.LoadDefinitionFromBytes([]byte("name: [unclosed"))
	require.Error(t, err)
}

func TestBuildFromDefinition(t *testing.T) {
	t.Parallel()

	def, err := statemachine.LoadDefinitionFromBytes([]byte(deviceDefinition))
	require.NoError(t, err)

	vars := statemachine.Vars{"power": 85}

	m, err := statemachine.Build(def, statemachine.NewVarsRegistry(), vars)
	require.NoError(t, err)

	tm := smtest.NewTestMachine(t, m)
	tm.Fire(0)
	tm.AssertLastErr(statemachine.ErrGuardRejected)

	vars["power"] = 95
	tm.MustFire(0, 2, 3)
	tm.AssertState(0)

	assert.Equal(t, statemachine.Vars{"power": 105, "errors": 1}, vars)
	assert.Equal(t, "device", m.Name())
	assert.Equal(t, 3, m.StateCount())
	assert.Equal(t, "error", m.StateName(2))
	assert.Equal(t, "power_on", m.EventName(0))
}

type bench struct {
	armed bool
	shots int
}

func TestBuildWithRegistry(t *testing.T) {
	t.Parallel()

	const def = `
name: turret
initialState: idle
states: [idle, firing]
events: [trigger, release]
transitions:
  - {from: idle, event: trigger, to: firing, guard: armed, action: shoot}
  - {from: "*", event: release, to: idle}
handlers:
  - {state: firing, handler: cooldown}
`

	cooldowns := 0
	reg := statemachine.NewRegistry[*bench]().
		RegisterGuard("armed", statemachine.GuardFunc[*bench](func(b *bench) bool { return b.armed })).
		RegisterAction("shoot", statemachine.ActionFunc[*bench](func(b *bench) { b.shots++ })).
		RegisterHandler("cooldown", statemachine.HandlerFunc[*bench](func(*bench, statemachine.Event) { cooldowns++ }))

	parsed, err := statemachine.LoadDefinitionFromBytes([]byte(def))
	require.NoError(t, err)

	b := &bench{armed: true}
	m, err := statemachine.Build(parsed, reg, b)
	require.NoError(t, err)

	require.NoError(t, m.ProcessEvent(0))
	require.NoError(t, m.ProcessEvent(1))
	require.NoError(t, m.ProcessEvent(1), "wildcard release from idle")

	assert.Equal(t, 1, b.shots)
	assert.Equal(t, 1, cooldowns)

	snap := m.Snapshot()
	assert.Equal(t, "armed", snap.Transitions[0].Guard, "registry names label plain funcs")
	assert.Equal(t, "shoot", snap.Transitions[0].Action)
	assert.Equal(t, statemachine.AnyState, snap.Transitions[1].From)
}

func TestBuildRejectsNilRegistrations(t *testing.T) {
	t.Parallel()

	base := "name: x\ninitialState: a\nstates: [a]\nevents: [go]\n"

	tests := []struct {
		name string
		yaml string
		reg  *statemachine.Registry[any]
	}{
		{
			"guard",
			base + "transitions: [{from: a, event: go, to: a, guard: broken}]",
			statemachine.NewRegistry[any]().RegisterGuard("broken", statemachine.GuardFunc[any](nil)),
		},
		{
			"action",
			base + "transitions: [{from: a, event: go, to: a, action: broken}]",
			statemachine.NewRegistry[any]().RegisterAction("broken", statemachine.ActionFunc[any](nil)),
		},
		{
			"handler",
			base + "transitions: [{from: a, event: go, to: a}]\nhandlers: [{state: a, handler: broken}]",
			statemachine.NewRegistry[any]().RegisterHandler("broken", statemachine.HandlerFunc[any](nil)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def, err := statemachine.LoadDefinitionFromBytes([]byte(tt.yaml))
			require.NoError(t, err)

			m, err := statemachine.Build[any](def, tt.reg, nil)
			require.ErrorIs(t, err, statemachine.ErrInvalidArgument)
			assert.Contains(t, err.Error(), "broken")
			assert.Nil(t, m)
		})
	}
}

func TestBuildUnknownCapabilities(t *testing.T) {
	t.Parallel()

	base := "name: x\ninitialState: a\nstates: [a]\nevents: [go]\n"

	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"guard", base + "transitions: [{from: a, event: go, to: a, guard: nope}]", statemachine.ErrUnknownGuard},
		{"action", base + "transitions: [{from: a, event: go, to: a, action: nope}]", statemachine.ErrUnknownAction},
		{"handler", base + "handlers: [{state: a, handler: nope}]", statemachine.ErrUnknownHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def, err := statemachine.LoadDefinitionFromBytes([]byte(tt.yaml))
			require.NoError(t, err)

			_, err = statemachine.Build[any](def, statemachine.NewRegistry[any](), nil)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), "nope")
		})
	}

	_, err := statemachine.Build[any](nil, statemachine.NewRegistry[any](), nil)
	require.ErrorIs(t, err, statemachine.ErrInvalidArgument)
}

func TestBuildAppliesExtraOptions(t *testing.T) {
	t.Parallel()

	def, err := statemachine.LoadDefinitionFromBytes([]byte(deviceDefinition))
	require.NoError(t, err)

	_, err = statemachine.Build(def, statemachine.NewVarsRegistry(), statemachine.Vars{}, statemachine.WithMaxTransitions(2))
	require.ErrorIs(t, err, statemachine.ErrAllocation)
	assert.Contains(t, err.Error(), "transition 2")

	m, err := statemachine.Build(def, statemachine.NewVarsRegistry(), statemachine.Vars{}, statemachine.WithName("renamed"))
	require.NoError(t, err)
	assert.Equal(t, "renamed", m.Name())
}

func TestPlayerFingerprint(t *testing.T) {
	t.Parallel()

	a, err := smtest.NewPlayer(statemachine.Vars{})
	require.NoError(t, err)

	b, err := smtest.NewPlayer(statemachine.Vars{"power": 1})
	require.NoError(t, err)

	assert.Equal(t, a.Snapshot().Fingerprint(), b.Snapshot().Fingerprint())

	require.NoError(t, b.AddTransition(statemachine.Transition[statemachine.Vars]{
		From: smtest.PlayerPaused, Event: smtest.PlayerPause, To: smtest.PlayerPlaying,
	}))
	assert.NotEqual(t, a.Snapshot().Fingerprint(), b.Snapshot().Fingerprint())
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	m, err := smtest.NewPlayer(statemachine.Vars{"power": 1})
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, "player", snap.Name)
	assert.Equal(t, smtest.PlayerStopped, snap.Initial)
	assert.Equal(t, 3, snap.StateCount)
	assert.Equal(t, []statemachine.State{smtest.PlayerPlaying}, snap.HandlerStates)
	assert.True(t, snap.HasHandler(smtest.PlayerPlaying))
	assert.False(t, snap.HasHandler(smtest.PlayerPaused))
	assert.Equal(t, "paused", snap.StateLabel(smtest.PlayerPaused))
	assert.Equal(t, "*", snap.StateLabel(statemachine.AnyState))
	assert.Equal(t, "7", snap.StateLabel(7))
	assert.Equal(t, "stop", snap.EventLabel(smtest.PlayerStop))
	assert.Equal(t, "9", snap.EventLabel(9))
	assert.Equal(t, statemachine.TransitionInfo{
		From: smtest.PlayerStopped, Event: smtest.PlayerPlay, To: smtest.PlayerPlaying,
		Guard: "power > 0", Action: "plays++",
	}, snap.Transitions[0])

	require.NoError(t, m.ProcessEvent(smtest.PlayerPlay))
	assert.Equal(t, smtest.PlayerStopped, snap.Current, "snapshots are copies")
	assert.Equal(t, smtest.PlayerPlaying, m.Snapshot().Current)

	snap.StateNames[0] = "mutated"
	assert.Equal(t, "stopped", m.StateName(0))
}
