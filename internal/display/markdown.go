package display

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// MarkdownOptions controls markdown rendering.
type MarkdownOptions struct {
	NoColor bool
	// Width wraps output; 0 keeps glamour's default.
	Width int
	// Style is a glamour standard style name. Empty means auto-detect, which
	// queries the terminal and must not be used while a TUI owns stdin.
	Style string
}

var (
	rendererMu sync.Mutex
	renderers  = map[MarkdownOptions]*glamour.TermRenderer{}
)

// Markdown renders md for the terminal. On any renderer error the input is
// returned unchanged.
func Markdown(md string, opts MarkdownOptions) string {
	r, err := renderer(opts)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}

func renderer(opts MarkdownOptions) (*glamour.TermRenderer, error) {
	rendererMu.Lock()
	defer rendererMu.Unlock()
	if r, ok := renderers[opts]; ok {
		return r, nil
	}

	var options []glamour.TermRendererOption
	switch {
	case opts.NoColor:
		options = append(options,
			glamour.WithStandardStyle("notty"),
			glamour.WithColorProfile(termenv.Ascii),
		)
	case opts.Style != "":
		options = append(options,
			glamour.WithStandardStyle(opts.Style),
			glamour.WithColorProfile(termenv.ANSI256),
		)
	default:
		options = append(options,
			glamour.WithAutoStyle(),
			glamour.WithColorProfile(termenv.TrueColor),
		)
	}
	if opts.Width > 0 {
		options = append(options, glamour.WithWordWrap(opts.Width))
	}

	r, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return nil, err
	}
	renderers[opts] = r
	return r, nil
}
