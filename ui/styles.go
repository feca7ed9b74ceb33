package ui

import "github.com/charmbracelet/lipgloss"

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	green     = lipgloss.Color("#04B575")
	faintRed  = lipgloss.AdaptiveColor{Light: "#FF6F91", Dark: "#C74665"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	midGray   = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(lipgloss.Color("#5A56E0")).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(gray).
			Italic(true)

	idleStyle = lipgloss.NewStyle().
			Foreground(green).
			Bold(true)

	subtleStyle = lipgloss.NewStyle().
			Foreground(midGray)

	helpStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg)

	messageStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Background(darkGreen).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(faintRed).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(midGray).
			Padding(0, 1)
)

func logoView() string {
	return logoStyle.Render(" VoiceGPT ")
}
