package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Theme colors
var (
	ColorBorder    = lipgloss.Color("#575653")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorRed       = lipgloss.Color("#D14D41")
	ColorOrange    = lipgloss.Color("#DA702C")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(ColorTextMuted)
	goodStyle  = lipgloss.NewStyle().Foreground(ColorGreen)
	badStyle   = lipgloss.NewStyle().Foreground(ColorRed)
	warnStyle  = lipgloss.NewStyle().Foreground(ColorOrange)
)

// Table is a bordered text table. The first column is left-aligned, the
// rest hold amounts and are right-aligned.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTitle renders a title in a rounded box.
func RenderTitle(title string) string {
	return titleStyle.Render(title)
}

// RenderTable renders t with lipgloss' table component.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := cellStyle
			if row == table.HeaderRow {
				style = headerStyle
			}
			if col > 0 {
				return style.Align(lipgloss.Right)
			}
			return style
		})

	var b strings.Builder
	if t.Title != "" {
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}
	b.WriteString(tbl.Render())
	b.WriteString("\n")
	return b.String()
}

// RenderKeyValues renders aligned "label  value" lines.
func RenderKeyValues(pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p[0]))
	}

	var b strings.Builder
	for _, p := range pairs {
		b.WriteString("  ")
		b.WriteString(mutedStyle.Render(p[0] + strings.Repeat(" ", width-len(p[0]))))
		b.WriteString("  ")
		b.WriteString(p[1])
		b.WriteString("\n")
	}
	return b.String()
}

// Good, Bad and Warn color a status word.
func Good(s string) string { return goodStyle.Render(s) }
func Bad(s string) string  { return badStyle.Render(s) }
func Warn(s string) string { return warnStyle.Render(s) }
