// Command fluxfsm validates, draws, runs and serves state machines described
// in YAML definitions.
//
//	fluxfsm [-env file] validate [-strict] [-fix] [-yes] machine.yaml...
//	fluxfsm [-env file] viz [-format f] [-o path] [-render svg] machine.yaml
//	fluxfsm [-env file] run [-events a,b] [-i] [-set k=v] [-perf] machine.yaml
//	fluxfsm [-env file] serve [-n 3] [-addr :8080] [-set k=v] machine.yaml
//	fluxfsm version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fluxstate/fluxfsm/build"
	"github.com/fluxstate/fluxfsm/logger"
)

// Exit codes shared by the subcommands. Validation failures exit with the
// validator's own code (1 to 4).
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 64
)

var errUsage = errors.New("usage")

//nolint:gochecknoglobals
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app, args []string) (int, error)
}

func commands() []command {
	return []command{
		{"validate", "check definitions and optionally fix them", runValidate},
		{"viz", "export or render the transition graph", runViz},
		{"run", "drive a machine from a script or interactively", runMachine},
		{"serve", "serve a fleet of machines over HTTP", runServe},
		{"version", "print the build version", runVersion},
	}
}

func runVersion(_ context.Context, _ *app, args []string) (int, error) {
	if err := parseArgs(newFlagSet("version"), args, 0, 0); err != nil {
		return exitUsage, err
	}

	fmt.Fprintf(stdout, "fluxfsm %s\n", build.Current())

	return exitOK, nil
}

func main() {
	os.Exit(realMain(context.Background(), os.Args[1:]))
}

func realMain(ctx context.Context, args []string) int {
	global := flag.NewFlagSet("fluxfsm", flag.ContinueOnError)
	global.SetOutput(stderr)

	var envFiles stringList

	global.Var(&envFiles, "env", "load variables from this .env `file` (repeatable)")
	global.Usage = func() { usage(global) }

	if err := global.Parse(args); err != nil {
		return exitUsage
	}

	if global.NArg() == 0 {
		usage(global)

		return exitUsage
	}

	name := global.Arg(0)

	for _, cmd := range commands() {
		if cmd.name != name {
			continue
		}

		a, err := setup(ctx, envFiles)
		if err != nil {
			fmt.Fprintf(stderr, "fluxfsm: %v\n", err)

			return exitFailure
		}

		ctx = logger.WithSubsystem(ctx, "fluxfsm-"+name)

		code, err := cmd.run(ctx, a, global.Args()[1:])

		if shutdownErr := a.shutdown.Shutdown(ctx); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}

		switch {
		case errors.Is(err, flag.ErrHelp):
			return exitOK
		case errors.Is(err, errUsage):
			fmt.Fprintf(stderr, "fluxfsm %s: %v\n", name, err)

			return exitUsage
		case err != nil:
			fmt.Fprintf(stderr, "fluxfsm %s: %v\n", name, err)

			if code == exitOK {
				code = exitFailure
			}
		}

		return code
	}

	fmt.Fprintf(stderr, "fluxfsm: unknown command %q\n", name)
	usage(global)

	return exitUsage
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintln(stderr, "usage: fluxfsm [flags] <command> [args]")
	fmt.Fprintln(stderr, "\ncommands:")

	for _, cmd := range commands() {
		fmt.Fprintf(stderr, "  %-9s %s\n", cmd.name, cmd.usage)
	}

	fmt.Fprintln(stderr, "\nflags:")
	fs.PrintDefaults()
}

// newFlagSet returns a flag set for a subcommand that reports errors instead
// of exiting.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("fluxfsm "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	return fs
}

// parseArgs parses args into fs and checks the number of positional
// arguments.
func parseArgs(fs *flag.FlagSet, args []string, minArgs, maxArgs int) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}

		return fmt.Errorf("%w: %w", errUsage, err)
	}

	n := fs.NArg()

	switch {
	case maxArgs == 0 && n > 0:
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	case n < minArgs || (maxArgs >= 0 && n > maxArgs):
		return fmt.Errorf("%w: expected a definition file", errUsage)
	}

	return nil
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)

	return nil
}
