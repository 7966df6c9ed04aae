package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fluxstate/fluxfsm/cli"
	"github.com/fluxstate/fluxfsm/server"
	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/fluxstate/fluxfsm/statemachine/perf"
	"github.com/go-chi/chi/v5"
	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func runMachine(ctx context.Context, a *app, args []string) (int, error) {
	initial := vars{}

	fs := newFlagSet("run")
	events := fs.String("events", "", "comma separated `events` to submit in order")
	interactive := fs.Bool("i", false, "pick events interactively")
	printPerf := fs.Bool("perf", false, "print dispatch statistics as JSON at the end")
	fs.Var(initial, "set", "initial variable `name=value` (repeatable)")

	if err := parseArgs(fs, args, 1, 1); err != nil {
		return exitUsage, err
	}

	if *interactive == (*events != "") {
		return exitUsage, fmt.Errorf("%w: give exactly one of -events and -i", errUsage)
	}

	def, m, err := buildMachine(fs.Arg(0), initial.context())
	if err != nil {
		return exitFailure, err
	}
	defer m.Destroy()

	collector := perf.New(prometheus.Labels{"machine": def.Name})
	ctx = a.shutdown.SetupHandler(ctx)

	if a.cfg.Metrics.Addr != "" {
		serveMetrics(ctx, a, collector)
	}

	im := statemachine.Instrument(m,
		statemachine.WithPerf(collector),
		statemachine.WithLogger(statemachine.NewDefaultLogger()),
	)

	if *interactive {
		err = interact(ctx, def, im)
	} else {
		err = script(ctx, def, im, strings.Split(*events, ","))
	}

	if err != nil {
		return exitFailure, err
	}

	fmt.Fprintf(stdout, "final state: %s\nvariables: %s\n", m.StateName(m.State()), vars(m.Context()))

	if *printPerf {
		err = collector.Output(stdout)
	}

	return exitOK, err
}

// serveMetrics exposes the Prometheus registry while the machine runs.
func serveMetrics(ctx context.Context, a *app, collector *perf.Collector) {
	err := prometheus.Register(collector)
	if err != nil {
		a.log.WarnContext(ctx, "Perf collector not registered", "error", err)
	}

	r := chi.NewRouter()
	r.Method(http.MethodGet, a.cfg.Metrics.Path, promhttp.Handler())

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		err := server.Run(ctx, a.cfg.Metrics.Addr, r, a.cfg.Server.ShutdownTimeout)
		if err != nil {
			a.log.ErrorContext(ctx, "Metrics server failed", "error", err)
		}
	}()

	a.shutdown.BeforeShutdown("metrics", func(context.Context) error {
		cancel()
		<-done

		return nil
	})
}

// script submits events in order. Guard rejections and unmatched events are
// reported and skipped; anything else stops the run.
func script(ctx context.Context, def *statemachine.Definition, im *statemachine.Instrumented[statemachine.Vars], names []string) error {
	m := im.Machine()

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		event, err := def.EventID(name)
		if err != nil {
			return err
		}

		from := m.StateName(m.State())

		err = im.ProcessEvent(ctx, event)

		switch {
		case err == nil:
			fmt.Fprintf(stdout, "%-12s %s -> %s\n", name, from, m.StateName(m.State()))
		case errors.Is(err, statemachine.ErrGuardRejected), errors.Is(err, statemachine.ErrNoTransition):
			fmt.Fprintf(stdout, "%-12s %s: %v\n", name, from, err)
		default:
			return err
		}
	}

	return nil
}

// interact lets the user pick events until they quit.
func interact(ctx context.Context, def *statemachine.Definition, im *statemachine.Instrumented[statemachine.Vars]) error {
	m := im.Machine()
	width := cli.TerminalWidth()

	for ctx.Err() == nil {
		fmt.Fprint(stdout, cli.MachineBanner(m.Snapshot(), width))
		fmt.Fprintf(stdout, "variables: %s\n", vars(m.Context()))

		sel, err := cli.SelectEvent("Event", def.Events, true)
		if errors.Is(err, cli.ErrQuit) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}

		if err != nil {
			return err
		}

		if sel.SetVariable() {
			err = setVariable(m.Context())
			if err != nil {
				return err
			}

			continue
		}

		from := m.StateName(m.State())

		err = im.ProcessEvent(ctx, statemachine.Event(sel.Event))
		if err != nil && !errors.Is(err, statemachine.ErrGuardRejected) && !errors.Is(err, statemachine.ErrNoTransition) {
			return err
		}

		if err != nil {
			fmt.Fprintf(stdout, "%s: %v\n", sel.Name, err)
		} else {
			fmt.Fprintf(stdout, "%s: %s -> %s\n", sel.Name, from, m.StateName(m.State()))
		}
	}

	return ctx.Err()
}

func setVariable(v statemachine.Vars) error {
	name, val, err := cli.PromptVariable()
	if err != nil {
		return err
	}

	v[name] = val

	return nil
}
