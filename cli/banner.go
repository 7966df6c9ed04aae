package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"unicode"

	"github.com/fluxstate/fluxfsm/statemachine"
)

const (
	boxTopLeft     = "╒"
	boxBottomLeft  = "└"
	boxTopRight    = "╕"
	boxBottomRight = "┘"
	boxSide        = "│"
	boxTop         = "═"
	boxBottom      = "─"
	dividerLeft    = "┠"
	dividerMiddle  = "─"
	dividerRight   = "┨"
	ellipsis       = "…"
)

// Alignment of banner lines.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

const (
	bannerPadding   = 2
	truncateReserve = 1
	halfDivisor     = 2

	// DefaultTerminalWidth is used when the terminal size is unknown.
	DefaultTerminalWidth = 80
)

// TerminalWidth returns the terminal width, or DefaultTerminalWidth.
func TerminalWidth() int {
	_, cols, err := TerminalDimensions()
	if err != nil || cols == 0 {
		return DefaultTerminalWidth
	}

	return int(cols) //nolint:gosec // Terminal width is bounded by screen size, no overflow risk
}

// Divider returns a horizontal rule of the given width.
func Divider(width int) string {
	if width < bannerPadding {
		return ""
	}

	return dividerLeft + strings.Repeat(dividerMiddle, width-bannerPadding) + dividerRight + "\n"
}

// Banner draws s in a box of the given width. Lines that do not fit are
// truncated with an ellipsis.
func Banner(s string, width int, alignment Alignment) string {
	lines := getLines(s)
	if len(lines) == 0 || width <= bannerPadding {
		return ""
	}

	inner := width - bannerPadding
	parts := []string{boxTopLeft + strings.Repeat(boxTop, inner) + boxTopRight}

	for _, l := range lines {
		var line string

		switch alignment {
		case AlignCenter:
			line = pad(l, inner, halfDivisor)
		case AlignLeft:
			line = pad(l, inner, 0)
		case AlignRight:
			line = pad(l, inner, 1)
		default:
			return ""
		}

		parts = append(parts, boxSide+line+boxSide)
	}

	parts = append(parts, boxBottomLeft+strings.Repeat(boxBottom, inner)+boxBottomRight)

	return strings.Join(parts, "\n") + "\n"
}

// MachineBanner summarises a machine for the interactive runner.
func MachineBanner(snap statemachine.Snapshot, width int) string {
	name := snap.Name
	if name == "" {
		name = "unnamed machine"
	}

	text := fmt.Sprintf("%s\nstate: %s\n%d states, %d transitions, %d handlers",
		name,
		snap.StateLabel(snap.Current),
		snap.StateCount,
		len(snap.Transitions),
		len(snap.HandlerStates),
	)

	return Banner(text, width, AlignCenter)
}

func getLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")

	return strings.Split(s, "\n")
}

func countGraphic(s string) int {
	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			count++
		}
	}

	return count
}

func truncateGraphic(s string, n int) (string, int) {
	var out strings.Builder

	count := 0

	for _, r := range s {
		if unicode.IsGraphic(r) {
			count++
		}

		if count > n {
			count--

			break
		}

		out.WriteRune(r)
	}

	return out.String(), count
}

// pad fits text into width. leftShare selects where the spare space goes:
// 0 pads on the right, 1 on the left, 2 splits it.
func pad(text string, width int, leftShare int) string {
	length := countGraphic(text)
	if length == width {
		return text
	}

	str := text
	if length > width {
		str, length = truncateGraphic(str, width-truncateReserve)
		str += ellipsis
		length++
	}

	diff := width - length

	var left int

	switch leftShare {
	case 0:
		left = 0
	case 1:
		left = diff
	default:
		left = diff / halfDivisor
	}

	return strings.Repeat(" ", left) + str + strings.Repeat(" ", diff-left)
}

func size() (string, error) {
	f, err := os.Open("/dev/tty")
	if err != nil {
		return "", err
	}

	defer func() { _ = f.Close() }()

	// Outputs: "rows columns"
	cmd := exec.Command("stty", "size")
	cmd.Stdin = f
	out, err := cmd.Output()

	return string(out), err
}

func parse(input string) (uint, uint, error) {
	rowsText, colsText, found := strings.Cut(strings.TrimSpace(input), " ")
	if !found {
		return 0, 0, fmt.Errorf("unexpected terminal size %q", input) //nolint:err113
	}

	rows, err := strconv.Atoi(rowsText)
	if err != nil {
		return 0, 0, err
	}

	cols, err := strconv.Atoi(colsText)
	if err != nil {
		return 0, 0, err
	}

	return uint(rows), uint(cols), nil //nolint:gosec // Terminal dimensions are small positive integers, no overflow risk
}

// TerminalDimensions returns (rows, cols, err).
func TerminalDimensions() (uint, uint, error) {
	output, err := size()
	if err != nil {
		return 0, 0, err
	}

	return parse(output)
}
