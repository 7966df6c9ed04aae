package main

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/fluxstate/fluxfsm/build"
	"github.com/fluxstate/fluxfsm/config"
	"github.com/fluxstate/fluxfsm/logger"
	"github.com/fluxstate/fluxfsm/shutdown"
	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/fluxstate/fluxfsm/telemetry"
)

// app carries what every subcommand needs: configuration, the configured
// logger and the shutdown hooks (telemetry flush first registered, last run).
type app struct {
	cfg      config.Config
	log      *slog.Logger
	shutdown *shutdown.Coordinator
}

func setup(ctx context.Context, envFiles []string) (*app, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}

	logOpts, err := cfg.Log.Options()
	if err != nil {
		return nil, fmt.Errorf("FLUXFSM_LOG_LEVEL: %w", err)
	}

	logOpts.Output = stderr
	logger.ConfigureLoggingWithOptions(logOpts)

	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = build.Current().Version
	}

	tel, err := telemetry.Initialize(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	if h := tel.LogHandler(); h != nil {
		logOpts.Handlers = append(logOpts.Handlers, h)
		logger.ConfigureLoggingWithOptions(logOpts)
	}

	co := shutdown.New(cfg.Server.ShutdownTimeout)
	co.BeforeShutdown("telemetry", tel.Shutdown)

	return &app{
		cfg:      cfg,
		log:      logger.Get(ctx),
		shutdown: co,
	}, nil
}

// vars collects repeated -set name=value flags.
type vars statemachine.Vars

func (v vars) String() string {
	pairs := make([]string, 0, len(v))
	for _, name := range slices.Sorted(maps.Keys(v)) {
		pairs = append(pairs, name+"="+strconv.Itoa(v[name]))
	}

	return strings.Join(pairs, ",")
}

func (v vars) Set(s string) error {
	name, val, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("%w: want name=value, got %q", errUsage, s)
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%w: %s is not an integer", errUsage, name)
	}

	v[name] = n

	return nil
}

func (v vars) context() statemachine.Vars {
	return maps.Clone(statemachine.Vars(v))
}

// buildMachine loads a definition and builds it against the expression
// registry with the given variables.
func buildMachine(path string, initial statemachine.Vars) (*statemachine.Definition, *statemachine.Machine[statemachine.Vars], error) {
	def, err := statemachine.LoadDefinition(path)
	if err != nil {
		return nil, nil, err
	}

	if initial == nil {
		initial = statemachine.Vars{}
	}

	m, err := statemachine.Build(def, statemachine.NewVarsRegistry(), initial)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build %q: %w", path, err)
	}

	return def, m, nil
}
