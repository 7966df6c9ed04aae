package statemachine_test

import (
	"testing"

	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGuard(t *testing.T) {
	t.Parallel()

	vars := statemachine.Vars{"power": 90, "armed": 1, "zero": 0}

	tests := []struct {
		expr string
		want bool
	}{
		{"power >= 90", true},
		{"power > 90", false},
		{"power<=90", true},
		{"power < 90", false},
		{"power == 90", true},
		{"power != 90", false},
		{"missing == 0", true},
		{"armed", true},
		{"zero", false},
		{"!armed", false},
		{"!missing", true},
		{"  power >= -5  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			g, err := statemachine.ParseGuard(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Allow(vars))

			named, ok := g.(statemachine.Named)
			require.True(t, ok)
			assert.NotEmpty(t, named.Name())
		})
	}
}

func TestParseGuardErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr    string
		wantErr error
	}{
		{"", statemachine.ErrInvalidExpression},
		{"power >= lots", statemachine.ErrInvalidExpression},
		{"2power > 1", statemachine.ErrInvalidExpression},
		{"!", statemachine.ErrInvalidExpression},
		{"isReady(", statemachine.ErrUnsupportedExpression},
		{"a && b", statemachine.ErrUnsupportedExpression},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			_, err := statemachine.ParseGuard(tt.expr)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseAction(t *testing.T) {
	t.Parallel()

	a, err := statemachine.ParseAction("power = 10; power += 5; power -= 2; hits++; misses--;")
	require.NoError(t, err)

	vars := statemachine.Vars{"hits": 4}
	a.Apply(vars)

	assert.Equal(t, statemachine.Vars{"power": 13, "hits": 5, "misses": -1}, vars)

	for _, bad := range []string{"", ";", "x = y", "9x++", "x *= 2"} {
		_, err := statemachine.ParseAction(bad)
		require.Error(t, err, bad)
	}
}

func TestParseHandler(t *testing.T) {
	t.Parallel()

	h, err := statemachine.ParseHandler("exits++")
	require.NoError(t, err)

	vars := statemachine.Vars{}
	h.Observe(vars, 3)
	h.Observe(vars, 4)
	assert.Equal(t, 2, vars["exits"])

	_, err = statemachine.ParseHandler("exits **")
	require.ErrorIs(t, err, statemachine.ErrUnsupportedExpression)
}

func TestIsVariableName(t *testing.T) {
	t.Parallel()

	assert.True(t, statemachine.IsVariableName("power"))
	assert.True(t, statemachine.IsVariableName("_errors2"))
	assert.False(t, statemachine.IsVariableName("2fast"))
	assert.False(t, statemachine.IsVariableName("a b"))
	assert.False(t, statemachine.IsVariableName(""))
}
