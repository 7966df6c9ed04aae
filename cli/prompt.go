package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/fluxstate/fluxfsm/statemachine"
	"github.com/manifoldco/promptui"
)

var (
	errVariableName = errors.New("variable names are letters, digits and underscores, not starting with a digit")
	errValue        = errors.New("variable values are integers")
)

// ConfirmFixes asks whether n fixes may be written to path. Declining is not
// an error.
func ConfirmFixes(path string, n int) (bool, error) {
	_, err := run(promptui.Prompt{
		Label:     fmt.Sprintf("Write %d fix(es) to %s", n, path),
		IsConfirm: true,
	})
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}

	return err == nil, err
}

// PromptVariable asks for a context variable and the value to store in it.
func PromptVariable() (string, int, error) {
	name, err := run(promptui.Prompt{
		Label:    "Variable",
		Validate: validateVariableName,
	})
	if err != nil {
		return "", 0, err
	}

	txt, err := run(promptui.Prompt{
		Label:    name + " =",
		Validate: validateValue,
	})
	if err != nil {
		return "", 0, err
	}

	val, err := parseValue(txt)

	return name, val, err
}

func run(prompt promptui.Prompt) (string, error) {
	prompt.Stdin = os.Stdin
	prompt.Stdout = os.Stdout

	return prompt.Run()
}

func validateVariableName(s string) error {
	if !statemachine.IsVariableName(s) {
		return errVariableName
	}

	return nil
}

func validateValue(s string) error {
	_, err := parseValue(s)

	return err
}

func parseValue(s string) (int, error) {
	val, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errValue, s)
	}

	return int(val), nil
}
