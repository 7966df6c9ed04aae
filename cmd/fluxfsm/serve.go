package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fluxstate/fluxfsm/server"
	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/fluxstate/fluxfsm/statemachine/fleet"
	"github.com/fluxstate/fluxfsm/statemachine/perf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func runServe(ctx context.Context, a *app, args []string) (int, error) {
	initial := vars{}

	fs := newFlagSet("serve")
	count := fs.Int("n", 1, "number of machines to build from the definition")
	prefix := fs.String("prefix", "m", "machine id `prefix`; ids are prefix1, prefix2, ...")
	addr := fs.String("addr", a.cfg.Server.Addr, "listen `address`")
	fs.Var(initial, "set", "initial variable `name=value` for every machine (repeatable)")

	if err := parseArgs(fs, args, 1, 1); err != nil {
		return exitUsage, err
	}

	if *count < 1 {
		return exitUsage, fmt.Errorf("%w: -n must be at least 1", errUsage)
	}

	vizOpts, err := a.cfg.Viz.Options()
	if err != nil {
		return exitUsage, fmt.Errorf("%w: FLUXFSM_VIZ_FORMAT: %w", errUsage, err)
	}

	def, err := statemachine.LoadDefinition(fs.Arg(0))
	if err != nil {
		return exitFailure, err
	}

	collector := perf.New(prometheus.Labels{"machine": def.Name})
	if err := prometheus.Register(collector); err != nil {
		a.log.WarnContext(ctx, "Perf collector not registered", "error", err)
	}

	f := fleet.New[statemachine.Vars](
		fleet.WithWorkers(a.cfg.Server.Workers),
		fleet.WithInstrumentation(
			statemachine.WithPerf(collector),
			statemachine.WithLogger(statemachine.NewDefaultLogger()),
		),
	)

	for i := 1; i <= *count; i++ {
		id := *prefix + strconv.Itoa(i)

		m, err := statemachine.Build(def, statemachine.NewVarsRegistry(), initial.context())
		if err != nil {
			_ = f.Close()

			return exitFailure, fmt.Errorf("failed to build %s: %w", id, err)
		}

		a.shutdown.BeforeShutdown("machine "+id, func(context.Context) error {
			if removed, ok := f.Remove(id); ok {
				removed.Destroy()
			}

			return nil
		})

		if err := f.Add(id, m); err != nil {
			m.Destroy()
			_ = f.Close()

			return exitFailure, err
		}
	}

	// Hooks run newest first: the pool drains before the machines go.
	a.shutdown.BeforeShutdown("fleet", func(context.Context) error {
		return f.Close()
	})

	srv := server.New(f,
		server.WithVizOptions(vizOpts),
		server.WithMetrics(a.cfg.Metrics.Path, promhttp.Handler()),
	)

	a.log.InfoContext(ctx, "Serving fleet", "definition", def.Name, "machines", f.Len(), "addr", *addr)

	err = server.Run(a.shutdown.SetupHandler(ctx), *addr, srv.Routes(), a.cfg.Server.ShutdownTimeout)
	if err != nil {
		return exitFailure, err
	}

	return exitOK, nil
}
