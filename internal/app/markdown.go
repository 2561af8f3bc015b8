package app

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	glamouransi "github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	xansi "github.com/charmbracelet/x/ansi"
)

const (
	defaultMarkdownWidth = 80
	// Resizing creates one renderer per width; older ones are dropped past
	// this many.
	maxMarkdownRenderers = 8
)

type markdownRenderers struct {
	mu      sync.Mutex
	byWidth map[int]*glamour.TermRenderer
	order   []int
}

var markdownCache = &markdownRenderers{byWidth: map[int]*glamour.TermRenderer{}}

func (c *markdownRenderers) get(width int) (*glamour.TermRenderer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.byWidth[width]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(buildStyleConfig()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	if len(c.order) >= maxMarkdownRenderers {
		delete(c.byWidth, c.order[0])
		c.order = c.order[1:]
	}
	c.byWidth[width] = r
	c.order = append(c.order, width)
	return r, nil
}

// renderMarkdown renders input wrapped to width. Renderer failures fall back
// to the hard-wrapped input.
func renderMarkdown(input string, width int) string {
	input = strings.TrimRight(input, "\n")
	if input == "" {
		return ""
	}
	if width <= 0 {
		width = defaultMarkdownWidth
	}
	out := input
	if r, err := markdownCache.get(width); err == nil {
		if rendered, err := r.Render(input); err == nil {
			out = strings.TrimRight(rendered, "\n")
		}
	}
	return strings.TrimRight(xansi.Hardwrap(out, width, true), "\n")
}

// buildStyleConfig is the dark style without document margins; bubbles get
// their spacing from lipgloss padding.
func buildStyleConfig() glamouransi.StyleConfig {
	cfg := styles.DarkStyleConfig
	noMargin := uint(0)
	cfg.Document.Margin = &noMargin
	cfg.Document.StylePrimitive.BlockPrefix = ""
	cfg.Document.StylePrimitive.BlockSuffix = ""

	quoteColor, faint := "245", true
	cfg.BlockQuote.StylePrimitive.Color = &quoteColor
	cfg.BlockQuote.StylePrimitive.Faint = &faint
	return cfg
}

// markdownLinePrefixes start a block element when they open a line.
var markdownLinePrefixes = []string{"#", ">", "- ", "* ", "+ "}

// escapeMarkdown keeps text literal through the markdown pipeline. Prompts
// are shown as written, not as formatted documents.
func escapeMarkdown(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text) + 16)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		line = strings.ReplaceAll(line, "`", "\\`")
		body := strings.TrimLeft(line, " \t")
		b.WriteString(line[:len(line)-len(body)])
		if opensBlock(body) {
			b.WriteByte('\\')
		}
		b.WriteString(body)
	}
	return b.String()
}

func opensBlock(line string) bool {
	for _, prefix := range markdownLinePrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return isNumberedList(line)
}

// isNumberedList matches "12. item".
func isNumberedList(line string) bool {
	digits := len(line) - len(strings.TrimLeft(line, "0123456789"))
	return digits > 0 && strings.HasPrefix(line[digits:], ". ")
}
