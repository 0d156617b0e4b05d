package tui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	// Colors
	ColorNeonPurple = lipgloss.Color("#bd93f9")
	ColorNeonPink   = lipgloss.Color("#ff79c6")
	ColorNeonCyan   = lipgloss.Color("#8be9fd")
	ColorLightGray  = lipgloss.Color("#a9b1d6")
	ColorGray       = lipgloss.Color("#44475a")
	ColorText       = lipgloss.Color("#f8f8f2")

	ColorStateDownloading = lipgloss.Color("#50fa7b")
	ColorStatePaused      = lipgloss.Color("#ffb86c")
	ColorStateDone        = lipgloss.Color("#8be9fd")
	ColorStateError       = lipgloss.Color("#ff5555")
	ColorStateQueued      = lipgloss.Color("#6272a4")

	// Styles
	AppStyle = lipgloss.NewStyle().
			Padding(DefaultPaddingY, DefaultPaddingX).
			Foreground(ColorText)

	LogoStyle = lipgloss.NewStyle().
			Foreground(ColorNeonPurple).
			Bold(true)

	StatsStyle = lipgloss.NewStyle().
			Foreground(ColorLightGray).
			Padding(DefaultPaddingY, DefaultPaddingX)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(DefaultPaddingY, DefaultPaddingX)

	// Selected Card Style (highlighted border)
	SelectedCardStyle = CardStyle.
				BorderForeground(ColorNeonPink)

	CardTitleStyle = lipgloss.NewStyle().
			Foreground(ColorNeonPurple).
			Bold(true)

	CardStatsStyle = lipgloss.NewStyle().
			Foreground(ColorLightGray).
			Italic(true)

	StatsLabelStyle = lipgloss.NewStyle().
			Foreground(ColorNeonCyan).
			Width(10)

	StatsValueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	NotificationStyle = lipgloss.NewStyle().
				Foreground(ColorNeonPink).
				Bold(true)
)

// ConfigureColors picks the lipgloss colour profile for out from the
// environment. NO_COLOR and non-terminal outputs get plain ASCII.
func ConfigureColors(out io.Writer) {
	profile := termenv.NewOutput(out).EnvColorProfile()
	lipgloss.SetColorProfile(profile)
	lipgloss.SetHasDarkBackground(termenv.HasDarkBackground())
}

func statusColor(status string) lipgloss.Color {
	switch status {
	case "downloading":
		return ColorStateDownloading
	case "paused":
		return ColorStatePaused
	case "completed":
		return ColorStateDone
	case "error", "cancelled":
		return ColorStateError
	default:
		return ColorStateQueued
	}
}
