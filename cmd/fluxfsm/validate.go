package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fluxstate/fluxfsm/cli"
	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/fluxstate/fluxfsm/statemachine/validator"
	"gopkg.in/yaml.v3"
)

func runValidate(ctx context.Context, a *app, args []string) (int, error) {
	fs := newFlagSet("validate")
	strict := fs.Bool("strict", false, "treat warnings as errors")
	fix := fs.Bool("fix", false, "apply automatic fixes and rewrite the file")
	yes := fs.Bool("yes", false, "do not ask before rewriting a file")

	if err := parseArgs(fs, args, 1, -1); err != nil {
		return exitUsage, err
	}

	worst := exitOK

	for _, path := range fs.Args() {
		result, def, err := validator.ValidateFile(path, *strict)
		if err != nil {
			return exitFailure, err
		}

		fmt.Fprintf(stdout, "%s: %s", path, result.String())
		a.log.DebugContext(ctx, "Validated definition",
			"file", path, "errors", len(result.Errors), "warnings", len(result.Warnings))

		if *fix {
			err = fixFile(path, def, result, *yes)
			if err != nil {
				return exitFailure, err
			}

			// Report what is left after the rewrite.
			result, _, err = validator.ValidateFile(path, *strict)
			if err != nil {
				return exitFailure, err
			}
		}

		worst = max(worst, result.Code())
	}

	return worst, nil
}

func fixFile(path string, def *statemachine.Definition, result validator.Result, yes bool) error {
	fixed := *def
	fixed.Transitions = append([]statemachine.TransitionDefinition(nil), def.Transitions...)
	fixed.Handlers = append([]statemachine.HandlerDefinition(nil), def.Handlers...)

	n, err := validator.ApplyFixes(&fixed, result)
	if err != nil {
		return err
	}

	if n == 0 {
		return nil
	}

	if !yes {
		ok, err := cli.ConfirmFixes(path, n)
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}
	}

	data, err := yaml.Marshal(&fixed)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", path, err)
	}

	err = os.WriteFile(path, data, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}

	fmt.Fprintf(stdout, "%s: applied %d fix(es)\n", path, n)

	return nil
}
