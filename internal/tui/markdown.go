package tui

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	mdRendererMu sync.Mutex
	// Renderers are cached by style and wrap width. WithAutoStyle can block on
	// terminal background queries, so a fixed style is picked up front.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

// renderMarkdown renders md for the detail pane without a document margin.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}

	style := markdownStyle()
	key := style + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	r := mdRenderers[key]
	mdRendererMu.Unlock()

	if r == nil {
		cfg := markdownStyleConfig(style)
		zero := uint(0)
		cfg.Document.Margin = &zero
		rr, err := glamour.NewTermRenderer(
			glamour.WithStyles(cfg),
			glamour.WithWordWrap(width),
			glamour.WithEmoji(),
		)
		if err != nil {
			return md
		}
		mdRendererMu.Lock()
		if existing := mdRenderers[key]; existing != nil {
			r = existing
		} else {
			mdRenderers[key] = rr
			r = rr
		}
		mdRendererMu.Unlock()
	}

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func markdownStyle() string {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DISPATCH_TUI_THEME"))) {
	case "light":
		return "light"
	case "dark":
		return "dark"
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

func markdownStyleConfig(style string) ansi.StyleConfig {
	cfg := styles.DarkStyleConfig
	if style == "light" {
		cfg = styles.LightStyleConfig
	}

	// Headings follow the body text color; tables and links use the accent.
	heading := mdColor(colorSurfaceFg, style)
	cfg.Heading.Color = heading
	cfg.H1.Color = heading
	cfg.H2.Color = heading
	cfg.H1.BackgroundColor = nil
	cfg.Text.Color = mdColor(colorSurfaceFg, style)
	cfg.Link.Color = mdColor(colorAccent, style)
	cfg.Strong.Color = nil
	cfg.Emph.Color = nil
	return cfg
}

func mdColor(c lipgloss.AdaptiveColor, style string) *string {
	if style == "light" {
		return &c.Light
	}
	return &c.Dark
}
