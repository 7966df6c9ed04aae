package visualizer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format selects the output language.
type Format string

const (
	FormatDOT     Format = "dot"
	FormatMermaid Format = "mermaid"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
)

// ErrUnsupportedFormat is returned for an unknown format name.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseFormat converts a format name (case insensitive) to a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatDOT, FormatMermaid, FormatJSON, FormatYAML:
		return f, nil
	case "gv":
		return FormatDOT, nil
	case "mmd":
		return FormatMermaid, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// FormatFromPath guesses the format from a file name, ignoring a trailing
// compression extension: "door.mmd.gz" is Mermaid.
func FormatFromPath(path string) (Format, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(path, ".gz"), ".zst")

	return ParseFormat(strings.TrimPrefix(filepath.Ext(base), "."))
}

// Options configures the visualization output. There is no package-level
// default; every call gets its options explicitly.
type Options struct {
	Format Format

	// Graph attributes. Empty strings and a zero FontSize are omitted.
	Title     string
	FontName  string
	FontSize  int
	NodeShape string
	EdgeStyle string
	BgColor   string

	// Direction controls diagram flow: "TB" (top to bottom) or "LR" (left to right).
	Direction string

	// ShowEvents labels edges with their event.
	ShowEvents bool

	// ShowGuards adds "[guard]" to edge labels.
	ShowGuards bool

	// ShowActions adds "/ action" to edge labels.
	ShowActions bool

	// HighlightCurrent marks the machine's current state.
	HighlightCurrent bool
}

// DefaultOptions returns DOT output with a 12pt font, ellipse nodes and
// solid edges, labelled with events.
func DefaultOptions() Options {
	return Options{
		Format:     FormatDOT,
		FontSize:   12, //nolint:mnd
		NodeShape:  "ellipse",
		EdgeStyle:  "solid",
		ShowEvents: true,
	}
}

// WithFormat sets the output format.
func (o Options) WithFormat(format Format) Options {
	o.Format = format

	return o
}

// WithTitle sets the graph title.
func (o Options) WithTitle(title string) Options {
	o.Title = title

	return o
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithShowGuards enables/disables guard labels.
func (o Options) WithShowGuards(show bool) Options {
	o.ShowGuards = show

	return o
}

// WithShowActions enables/disables action labels.
func (o Options) WithShowActions(show bool) Options {
	o.ShowActions = show

	return o
}

// WithHighlightCurrent enables/disables highlighting of the current state.
func (o Options) WithHighlightCurrent(highlight bool) Options {
	o.HighlightCurrent = highlight

	return o
}
