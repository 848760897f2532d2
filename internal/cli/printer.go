// Package cli renders workspace state for the patchcat command line.
package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/unkn0wn-root/patchcat/internal/theme"
)

const defaultWidth = 100

type Printer struct {
	w     io.Writer
	th    theme.Theme
	color bool
	width int
}

type Option func(*Printer)

// WithColor forces colour on or off instead of detecting it from the writer.
func WithColor(on bool) Option {
	return func(p *Printer) { p.color = on }
}

func WithWidth(width int) Option {
	return func(p *Printer) {
		if width > 0 {
			p.width = width
		}
	}
}

// NewPrinter writes to w. Colour follows the terminal profile of w and honours
// NO_COLOR unless WithColor overrides it.
func NewPrinter(w io.Writer, th theme.Theme, opts ...Option) *Printer {
	p := &Printer{
		w:     w,
		th:    th,
		color: termenv.NewOutput(w).EnvColorProfile() != termenv.Ascii,
		width: defaultWidth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Printer) Theme() theme.Theme { return p.th }

func (p *Printer) paint(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}

func (p *Printer) method(m string) string {
	label := fmt.Sprintf("%-7s", m)
	if !p.color {
		return label
	}
	return lipgloss.NewStyle().Foreground(p.th.MethodColors.For(m)).Bold(true).Render(label)
}

func (p *Printer) println(parts ...any) {
	_, _ = fmt.Fprintln(p.w, parts...)
}

func (p *Printer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

// Error prints err in the error style.
func (p *Printer) Error(err error) {
	if err == nil {
		return
	}
	p.println(p.paint(p.th.Error, "error: "+err.Error()))
}

func (p *Printer) Success(msg string) {
	p.println(p.paint(p.th.Success, msg))
}

func (p *Printer) Warning(msg string) {
	p.println(p.paint(p.th.Warning, "warning: "+msg))
}

// truncate shortens s to at most width cells.
func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func pad(s string, width int) string {
	return runewidth.FillRight(truncate(s, width), width)
}
