package cli

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrQuit is returned by SelectEvent when the user picks the quit entry.
var ErrQuit = errors.New("quit")

// Entries added in front of the event list by SelectEvent.
const (
	quitEntry = "[Quit]"
	setEntry  = "[Set variable]"
)

// Selection is the outcome of SelectEvent.
type Selection struct {
	// Event is the index into the events passed to SelectEvent, or -1 when
	// the user asked to set a variable.
	Event int
	Name  string
}

// SetVariable reports whether the user asked to set a variable.
func (s Selection) SetVariable() bool {
	return s.Event < 0
}

// SelectEvent lets the user pick the next event to fire. Typing filters the
// list by prefix. When allowSet is true a "[Set variable]" entry is offered.
func SelectEvent(label string, events []string, allowSet bool) (Selection, error) {
	items := []string{quitEntry}
	if allowSet {
		items = append(items, setEntry)
	}

	offset := len(items)
	items = append(items, events...)

	sel := &promptui.Select{
		Label: label,
		Items: items,
		Size:  min(len(items), 12), //nolint:mnd
		Searcher: func(input string, index int) bool {
			if index < offset || input == "" {
				return false
			}

			return strings.HasPrefix(items[index], input)
		},
	}

	idx, value, err := sel.Run()
	if err != nil {
		return Selection{}, err
	}

	switch {
	case idx == 0:
		return Selection{}, ErrQuit
	case idx < offset:
		return Selection{Event: -1, Name: value}, nil
	default:
		return Selection{Event: idx - offset, Name: value}, nil
	}
}
