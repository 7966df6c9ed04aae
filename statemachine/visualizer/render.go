package visualizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/fluxstate/fluxfsm/logger"
	"github.com/fluxstate/fluxfsm/statemachine"
)

// ErrRenderFailed is returned when the Graphviz process exits unsuccessfully.
var ErrRenderFailed = errors.New("graphviz render failed")

// GraphvizBinary is the program Render runs.
const GraphvizBinary = "dot"

// Render lays out snap with Graphviz and writes the image in the given output
// format (svg, png, pdf and so on) to w. opts.Format is ignored: the graph is
// always sent to Graphviz as DOT.
func Render(ctx context.Context, snap statemachine.Snapshot, opts Options, imageFormat string, w io.Writer) error {
	opts.Format = FormatDOT

	src, err := Generate(snap, opts)
	if err != nil {
		return err
	}

	var stderr bytes.Buffer

	code, err := newCommand(ctx, GraphvizBinary, "-T"+imageFormat).
		stdin(strings.NewReader(src)).
		stdout(w).
		stderr(&stderr).
		run()
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", GraphvizBinary, err)
	}

	if code != 0 {
		return fmt.Errorf("%w: exit status %d: %s", ErrRenderFailed, code, strings.TrimSpace(stderr.String()))
	}

	return nil
}

// command is a small builder around exec.Cmd.
type command struct {
	cmd *exec.Cmd
}

func newCommand(ctx context.Context, name string, args ...string) *command {
	return &command{cmd: exec.CommandContext(ctx, name, args...)}
}

func (c *command) stdin(r io.Reader) *command {
	c.cmd.Stdin = r

	return c
}

func (c *command) stdout(w io.Writer) *command {
	c.cmd.Stdout = w

	return c
}

func (c *command) stderr(w io.Writer) *command {
	c.cmd.Stderr = w

	return c
}

// run starts the process and waits for it. A non-zero exit is reported
// through the code, not the error.
func (c *command) run() (int, error) {
	logger.Get().Debug("run cmd", "cmd", strings.Join(c.cmd.Args, " "))

	err := c.cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, err
}
