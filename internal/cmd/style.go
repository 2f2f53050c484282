package cmd

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	successColor = lipgloss.Color("#10B981")
	mutedColor   = lipgloss.Color("#6B7280")
	accentColor  = lipgloss.Color("#7C3AED")
)

// printer writes result lines, styled only when the writer is a terminal.
type printer struct {
	w      io.Writer
	styled bool

	success lipgloss.Style
	muted   lipgloss.Style
	heading lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:       w,
		styled:  isTerminal(w),
		success: lipgloss.NewStyle().Foreground(successColor).Bold(true),
		muted:   lipgloss.NewStyle().Foreground(mutedColor),
		heading: lipgloss.NewStyle().Foreground(accentColor).Bold(true),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) Success(s string) string { return p.render(p.success, s) }
func (p *printer) Muted(s string) string   { return p.render(p.muted, s) }
func (p *printer) Heading(s string) string { return p.render(p.heading, s) }

func (p *printer) Println(parts ...string) {
	for i, s := range parts {
		if i > 0 {
			_, _ = io.WriteString(p.w, " ")
		}
		_, _ = io.WriteString(p.w, s)
	}
	_, _ = io.WriteString(p.w, "\n")
}
