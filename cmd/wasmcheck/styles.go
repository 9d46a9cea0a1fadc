package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

type styles struct {
	pass    lipgloss.Style
	fail    lipgloss.Style
	title   lipgloss.Style
	name    lipgloss.Style
	dim     lipgloss.Style
	warning lipgloss.Style
}

// newStyles returns colored styles when out is a terminal and color is
// not disabled, plain ones otherwise.
func newStyles(out io.Writer, noColor bool) styles {
	if noColor || !isTerminal(out) {
		plain := lipgloss.NewStyle()
		return styles{pass: plain, fail: plain, title: plain, name: plain, dim: plain, warning: plain}
	}
	return styles{
		pass: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#90EE90")),
		fail: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")),
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		name: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")),
		dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
