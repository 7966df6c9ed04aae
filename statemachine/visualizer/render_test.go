package visualizer

import (
	"bytes"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRun(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	var out bytes.Buffer

	code, err := newCommand(t.Context(), "cat").stdin(strings.NewReader("digraph FSM {}")).stdout(&out).run()
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.Equal(t, "digraph FSM {}", out.String())
}

func TestCommandExitCode(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	var stderr bytes.Buffer

	code, err := newCommand(t.Context(), "sh", "-c", "echo oops >&2; exit 3").stderr(&stderr).run()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, "oops\n", stderr.String())
}

func TestCommandMissingBinary(t *testing.T) {
	t.Parallel()

	code, err := newCommand(t.Context(), "fluxfsm-no-such-binary").run()
	require.Error(t, err)
	assert.Equal(t, -1, code)
}

func TestRender(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath(GraphvizBinary); err != nil {
		t.Skip("graphviz not installed")
	}

	var out bytes.Buffer

	require.NoError(t, Render(t.Context(), doorSnapshot(), DefaultOptions().WithFormat(FormatMermaid), "svg", &out))
	assert.Contains(t, out.String(), "<svg")

	err := Render(t.Context(), doorSnapshot(), DefaultOptions(), "no-such-format", &bytes.Buffer{})
	require.ErrorIs(t, err, ErrRenderFailed)
}
