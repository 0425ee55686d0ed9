// Package header renders the fixed title shown above the terminal UI.
package header

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	Title   = "commitV"
	Tagline = "MONITOR YOUR LATEST COMMIT OR YOUR COLLABORATORS' ON GITHUB"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("36")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("75")).
			Padding(0, 3)
	taglineStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("117"))
)

// Render returns the header centered in width columns. A width of zero or
// less leaves it unpadded.
func Render(width int) string {
	block := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render(Title),
		"",
		taglineStyle.Render(Tagline),
	)
	if width <= 0 {
		return block
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, block)
}

// Plain returns the header without styling, for non-terminal output.
func Plain() string {
	return strings.Join([]string{Title, Tagline}, "\n")
}
