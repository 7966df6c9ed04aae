package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fluxstate/fluxfsm/statemachine/visualizer"
)

func runViz(ctx context.Context, a *app, args []string) (int, error) {
	opts, err := a.cfg.Viz.Options()
	if err != nil {
		return exitUsage, fmt.Errorf("%w: FLUXFSM_VIZ_FORMAT: %w", errUsage, err)
	}

	fs := newFlagSet("viz")
	format := fs.String("format", "", "output format: dot, mermaid, json or yaml (default from -o or FLUXFSM_VIZ_FORMAT)")
	out := fs.String("o", "", "write to this `file` instead of stdout; .gz and .zst are compressed")
	render := fs.String("render", "", "lay the graph out with Graphviz into this image `format` (svg, png, pdf)")
	fs.StringVar(&opts.Title, "title", opts.Title, "graph title")
	fs.StringVar(&opts.Direction, "direction", opts.Direction, "TB or LR")
	fs.BoolVar(&opts.ShowGuards, "show-guards", opts.ShowGuards, "label edges with their guard")
	fs.BoolVar(&opts.ShowActions, "show-actions", opts.ShowActions, "label edges with their action")
	fs.BoolVar(&opts.HighlightCurrent, "highlight", opts.HighlightCurrent, "mark the initial state")

	if err := parseArgs(fs, args, 1, 1); err != nil {
		return exitUsage, err
	}

	_, m, err := buildMachine(fs.Arg(0), nil)
	if err != nil {
		return exitFailure, err
	}
	defer m.Destroy()

	snap := m.Snapshot()

	if *format != "" {
		opts.Format, err = visualizer.ParseFormat(*format)
		if err != nil {
			return exitUsage, fmt.Errorf("%w: %w", errUsage, err)
		}
	} else if *out != "" && *render == "" {
		if f, err := visualizer.FormatFromPath(*out); err == nil {
			opts.Format = f
		}
	}

	if *render != "" {
		return exitOK, renderTo(*out, func(w io.Writer) error {
			return visualizer.Render(ctx, snap, opts, *render, w)
		})
	}

	if *out != "" {
		err = visualizer.Export(snap, opts, *out)
		if err != nil {
			return exitFailure, err
		}

		a.log.InfoContext(ctx, "Exported graph", "file", *out, "format", string(opts.Format))

		return exitOK, nil
	}

	graph, err := visualizer.Generate(snap, opts)
	if err != nil {
		return exitFailure, err
	}

	_, err = io.WriteString(stdout, graph)

	return exitOK, err
}

func renderTo(path string, write func(io.Writer) error) (err error) {
	if path == "" {
		return write(stdout)
	}

	f, err := os.Create(path) //nolint:gosec // Caller chooses the output path
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", path, err)
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return write(f)
}
