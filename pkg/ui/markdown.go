package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"
)

// DefaultMarkdownStyle is the glamour style used for bot replies.
const DefaultMarkdownStyle = "dark"

// markdownRenderer caches a glamour renderer per wrap width.
type markdownRenderer struct {
	style string
	width int
	r     *glamour.TermRenderer
}

func newMarkdownRenderer(style string) *markdownRenderer {
	if style == "" {
		style = DefaultMarkdownStyle
	}
	return &markdownRenderer{style: style}
}

// Render formats text as markdown wrapped at width. Plain text is returned
// when glamour fails.
func (m *markdownRenderer) Render(text string, width int) string {
	if width < 20 {
		width = 20
	}
	if m.r == nil || m.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			log.Debug().Err(err).Str("style", m.style).Msg("could not create markdown renderer")
			return text
		}
		m.r = r
		m.width = width
	}
	out, err := m.r.Render(text)
	if err != nil {
		log.Debug().Err(err).Msg("could not render markdown")
		return text
	}
	return strings.Trim(out, "\n")
}
