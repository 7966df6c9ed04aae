// Package visualizer renders a machine's transition graph as Graphviz DOT,
// Mermaid, JSON or YAML.
package visualizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fluxstate/fluxfsm/statemachine"
	"gopkg.in/yaml.v3"
)

// ErrNoStates is returned for a snapshot with no states to draw.
var ErrNoStates = errors.New("machine has no states")

// Graph is the format-neutral form of a snapshot: one node per state and one
// edge per (transition, source state) pair, wildcards expanded.
type Graph struct {
	Name    string `json:"name,omitempty"    yaml:"name,omitempty"`
	Initial int    `json:"initial"           yaml:"initial"`
	Current int    `json:"current"           yaml:"current"`
	Nodes   []Node `json:"nodes"             yaml:"nodes"`
	Edges   []Edge `json:"edges"             yaml:"edges"`
}

// Node is one state.
type Node struct {
	ID      int    `json:"id"                yaml:"id"`
	Label   string `json:"label"             yaml:"label"`
	Handler bool   `json:"handler,omitempty" yaml:"handler,omitempty"`
}

// Edge is one transition out of one state.
type Edge struct {
	From     int    `json:"from"               yaml:"from"`
	To       int    `json:"to"                 yaml:"to"`
	Event    string `json:"event"              yaml:"event"`
	Guard    string `json:"guard,omitempty"    yaml:"guard,omitempty"`
	Action   string `json:"action,omitempty"   yaml:"action,omitempty"`
	Wildcard bool   `json:"wildcard,omitempty" yaml:"wildcard,omitempty"`
}

// BuildGraph converts snap to a Graph. Transitions whose endpoints fall
// outside [0, StateCount) are skipped; run the validator to find them.
func BuildGraph(snap statemachine.Snapshot) Graph {
	g := Graph{
		Name:    snap.Name,
		Initial: int(snap.Initial),
		Current: int(snap.Current),
		Nodes:   make([]Node, 0, snap.StateCount),
	}

	for s := range snap.StateCount {
		state := statemachine.State(s)
		g.Nodes = append(g.Nodes, Node{ID: s, Label: snap.StateLabel(state), Handler: snap.HasHandler(state)})
	}

	valid := func(s statemachine.State) bool { return s >= 0 && int(s) < snap.StateCount }

	for _, t := range snap.Transitions {
		if !valid(t.To) {
			continue
		}

		edge := Edge{
			To:     int(t.To),
			Event:  snap.EventLabel(t.Event),
			Guard:  t.Guard,
			Action: t.Action,
		}

		if t.From != statemachine.AnyState {
			if valid(t.From) {
				edge.From = int(t.From)
				g.Edges = append(g.Edges, edge)
			}

			continue
		}

		edge.Wildcard = true

		for s := range snap.StateCount {
			edge.From = s
			g.Edges = append(g.Edges, edge)
		}
	}

	return g
}

// Generate renders snap in the format selected by opts.
func Generate(snap statemachine.Snapshot, opts Options) (string, error) {
	if snap.StateCount <= 0 {
		return "", ErrNoStates
	}

	g := BuildGraph(snap)

	switch opts.Format {
	case FormatDOT, "":
		return generateDOT(g, opts), nil
	case FormatMermaid:
		return generateMermaid(g, opts), nil
	case FormatJSON:
		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal graph: %w", err)
		}

		return string(data) + "\n", nil
	case FormatYAML:
		data, err := yaml.Marshal(g)
		if err != nil {
			return "", fmt.Errorf("failed to marshal graph: %w", err)
		}

		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}
}

// edgeLabel composes "event [guard] / action" from the enabled parts.
func edgeLabel(e Edge, opts Options) string {
	var parts []string

	if opts.ShowEvents {
		parts = append(parts, e.Event)
	}

	if opts.ShowGuards && e.Guard != "" {
		parts = append(parts, "["+e.Guard+"]")
	}

	if opts.ShowActions && e.Action != "" {
		parts = append(parts, "/ "+e.Action)
	}

	return strings.Join(parts, " ")
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func quote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

func generateDOT(g Graph, opts Options) string {
	var sb strings.Builder

	sb.WriteString("digraph FSM {\n")

	if opts.Title != "" {
		fmt.Fprintf(&sb, "    label=%s;\n", quote(opts.Title))
		sb.WriteString("    labelloc=top;\n")
	}

	if opts.FontName != "" {
		fmt.Fprintf(&sb, "    fontname=%s;\n", quote(opts.FontName))
	}

	if opts.FontSize > 0 {
		fmt.Fprintf(&sb, "    fontsize=%d;\n", opts.FontSize)
	}

	if opts.BgColor != "" {
		fmt.Fprintf(&sb, "    bgcolor=%s;\n", quote(opts.BgColor))
	}

	if opts.Direction != "" {
		fmt.Fprintf(&sb, "    rankdir=%s;\n", opts.Direction)
	}

	if opts.NodeShape != "" {
		fmt.Fprintf(&sb, "    node [shape=%s];\n", opts.NodeShape)
	}

	if opts.EdgeStyle != "" {
		fmt.Fprintf(&sb, "    edge [style=%s];\n", opts.EdgeStyle)
	}

	for _, n := range g.Nodes {
		attrs := []string{"label=" + quote(n.Label)}

		if n.Handler {
			attrs = append(attrs, "peripheries=2")
		}

		if opts.HighlightCurrent && n.ID == g.Current {
			attrs = append(attrs, "style=filled", `fillcolor="#fff9c4"`)
		}

		fmt.Fprintf(&sb, "    %d [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	for _, e := range g.Edges {
		label := edgeLabel(e, opts)
		if label == "" {
			fmt.Fprintf(&sb, "    %d -> %d;\n", e.From, e.To)

			continue
		}

		fmt.Fprintf(&sb, "    %d -> %d [label=%s];\n", e.From, e.To, quote(label))
	}

	sb.WriteString("}\n")

	return sb.String()
}

func generateMermaid(g Graph, opts Options) string {
	var sb strings.Builder

	if opts.Title != "" {
		fmt.Fprintf(&sb, "---\ntitle: %s\n---\n", opts.Title)
	}

	sb.WriteString("stateDiagram-v2\n")

	if opts.Direction != "" {
		fmt.Fprintf(&sb, "    direction %s\n", opts.Direction)
	}

	for _, n := range g.Nodes {
		fmt.Fprintf(&sb, "    s%d : %s\n", n.ID, strings.ReplaceAll(n.Label, ":", "#colon;"))
	}

	fmt.Fprintf(&sb, "    [*] --> s%d\n", g.Initial)

	for _, e := range g.Edges {
		label := edgeLabel(e, opts)
		if label == "" {
			fmt.Fprintf(&sb, "    s%d --> s%d\n", e.From, e.To)

			continue
		}

		fmt.Fprintf(&sb, "    s%d --> s%d : %s\n", e.From, e.To, strings.ReplaceAll(label, ":", "#colon;"))
	}

	if opts.HighlightCurrent && g.Current >= 0 && g.Current < len(g.Nodes) {
		sb.WriteString("\n")
		sb.WriteString("    classDef current fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n")
		fmt.Fprintf(&sb, "    class s%d current\n", g.Current)
	}

	return sb.String()
}
