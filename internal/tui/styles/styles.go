// Package styles holds the lipgloss colours and styles of the terminal view.
package styles

import (
	"github.com/Iron-Ham/standsim/internal/phase"
	"github.com/Iron-Ham/standsim/internal/stand"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	PrimaryColor = lipgloss.Color("#A78BFA") // Purple
	MutedColor   = lipgloss.Color("#9CA3AF") // Gray
	SurfaceColor = lipgloss.Color("#1F2937") // Dark surface
	TextColor    = lipgloss.Color("#F9FAFB") // Light text
	BorderColor  = lipgloss.Color("#6B7280") // Gray

	// Signal and stand colours
	RedColor    = lipgloss.Color("#FF0000")
	GreenColor  = lipgloss.Color("#00FF00")
	OrangeColor = lipgloss.Color("#FF8000")

	// Convenience styles for colors
	Primary = lipgloss.NewStyle().Foreground(PrimaryColor)
	Muted   = lipgloss.NewStyle().Foreground(MutedColor)
	Text    = lipgloss.NewStyle().Foreground(TextColor)

	// Header
	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(BorderColor).
		MarginBottom(1)

	// Track area
	TrackBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	TrackRail = lipgloss.NewStyle().
			Foreground(BorderColor)

	// Footer / status bar
	StatusBar = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(SurfaceColor).
			Padding(0, 1)

	// Help bar
	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	// Badge is the base of the phase indicator.
	Badge = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#000000")).
		Padding(0, 1)
)

// PhaseColor returns the indicator colour of a signal phase.
func PhaseColor(p phase.Phase) lipgloss.Color {
	switch p {
	case phase.Red:
		return RedColor
	case phase.Green:
		return GreenColor
	default:
		return OrangeColor
	}
}

// StandColor returns the colour of a stand.
func StandColor(id stand.ID) lipgloss.Color {
	switch id {
	case stand.A:
		return RedColor
	case stand.C:
		return GreenColor
	case stand.B:
		return OrangeColor
	default:
		return MutedColor
	}
}

// PhaseBadge renders the phase as a coloured badge.
func PhaseBadge(p phase.Phase) string {
	return Badge.Background(PhaseColor(p)).Render(p.String())
}

// Fg returns a style with the given foreground colour.
func Fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}
