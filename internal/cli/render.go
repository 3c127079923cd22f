package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/docoutline/internal/doctree"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	h1Style = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("255"))

	h2Style = lipgloss.NewStyle().
		Foreground(lipgloss.Color("81"))

	h3Style = lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("160")).
			Padding(0, 1)
)

// RenderTree writes a boxed, indented view of one outline.
func RenderTree(w io.Writer, path string, export doctree.Export, cached bool) {
	title := export.Title
	if title == "" {
		title = "(untitled)"
	}
	header := fmt.Sprintf("%s\n%s %s", titleStyle.Render(title), dimStyle.Render("File:"), path)
	if cached {
		header += " " + dimStyle.Render("(cached)")
	}

	var body strings.Builder
	if len(export.Outline) == 0 {
		body.WriteString(dimStyle.Render("no headings"))
	}
	for i, e := range export.Outline {
		if i > 0 {
			body.WriteByte('\n')
		}
		depth, style := levelStyle(e.Level)
		fmt.Fprintf(&body, "%s%s %s",
			strings.Repeat("  ", depth),
			style.Render(e.Text),
			dimStyle.Render(fmt.Sprintf("p.%d", e.Page)),
		)
	}

	fmt.Fprintln(w, boxStyle.Render(header))
	fmt.Fprintln(w, body.String())
}

func levelStyle(level string) (int, lipgloss.Style) {
	switch level {
	case "H1":
		return 0, h1Style
	case "H2":
		return 1, h2Style
	default:
		return 2, h3Style
	}
}
