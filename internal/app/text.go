package app

import (
	"strings"
	"time"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

func padLines(lines []string, width int) string {
	if width <= 0 {
		return strings.Join(lines, "\n")
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		lineWidth := xansi.StringWidth(line)
		if lineWidth < width {
			line = line + strings.Repeat(" ", width-lineWidth)
		}
		out[i] = line
	}
	return strings.Join(out, "\n")
}

// truncateToWidth cuts styled text to width cells, marking the cut with an
// ellipsis.
func truncateToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}
	if xansi.StringWidth(text) <= width {
		return text
	}
	if width == 1 {
		return "…"
	}
	return xansi.Cut(text, 0, width-1) + "…"
}

// fitColumn pads or truncates plain text to exactly width cells. Korean
// glyphs take two cells each.
func fitColumn(text string, width int) string {
	if width <= 0 {
		return ""
	}
	text = runewidth.Truncate(text, width, "…")
	return runewidth.FillRight(text, width)
}

func flattenText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func formatTurnTime(at time.Time, layout string) string {
	if at.IsZero() {
		return ""
	}
	if strings.TrimSpace(layout) == "" {
		layout = "15:04"
	}
	return at.Local().Format(layout)
}
