// Package banner renders the static startup banner each daemon binary
// prints before entering its run loop. The palette and style helpers
// follow getployz-ployz/cmd/ployz/ui's lipgloss usage, trimmed to the
// handful of accents a one-shot banner needs.
package banner

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accentColor = lipgloss.Color("99")
	mutedColor  = lipgloss.Color("243")
	okColor     = lipgloss.Color("76")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	fieldStyle = lipgloss.NewStyle().Foreground(mutedColor)
	valueStyle = lipgloss.NewStyle().Foreground(okColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 2)
)

// Field is one label/value row printed under the title.
type Field struct {
	Label string
	Value string
}

// Render renders a bordered startup banner: a bold title followed by an
// aligned list of fields.
func Render(title string, fields ...Field) string {
	var body strings.Builder
	body.WriteString(titleStyle.Render(title))
	body.WriteString("\n")
	for _, f := range fields {
		body.WriteString(fmt.Sprintf("%s %s\n", fieldStyle.Render(f.Label+":"), valueStyle.Render(f.Value)))
	}
	return boxStyle.Render(strings.TrimRight(body.String(), "\n"))
}
