package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tomefetch/tomefetch/internal/utils"
)

func (m RootModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.state == InputState {
		return m.viewInput()
	}

	availableWidth := m.width - 4

	active, queued, done := m.CalculateStats()
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		LogoStyle.Render("tomefetch"),
		StatsStyle.Render(fmt.Sprintf("%d active · %d queued · %d done", active, queued, done)),
	)

	graph := m.viewGraph(availableWidth)

	var cards []string
	if len(m.downloads) == 0 {
		cards = append(cards, lipgloss.Place(availableWidth, 3, lipgloss.Center, lipgloss.Center,
			lipgloss.NewStyle().Foreground(ColorNeonCyan).Render("No downloads")))
	}
	for i, d := range m.visibleDownloads() {
		cards = append(cards, m.renderCard(d, i+m.scrollOffset() == m.cursor, availableWidth))
	}

	var footer string
	if m.notification != "" {
		footer = NotificationStyle.Render(m.notification)
	} else {
		footer = m.help.View(Keys)
	}

	return AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		graph,
		strings.Join(cards, "\n"),
		footer,
	))
}

// cardHeight is the number of lines one rendered card occupies.
const cardHeight = 5

func (m RootModel) maxCards() int {
	n := (m.height - GraphHeight - 4) / cardHeight
	if n < 1 {
		n = 1
	}
	return n
}

func (m RootModel) scrollOffset() int {
	n := m.maxCards()
	if m.cursor < n {
		return 0
	}
	return m.cursor - n + 1
}

func (m RootModel) visibleDownloads() []*DownloadModel {
	start := m.scrollOffset()
	end := start + m.maxCards()
	if end > len(m.downloads) {
		end = len(m.downloads)
	}
	if start > end {
		start = end
	}
	return m.downloads[start:end]
}

func (m RootModel) renderCard(d *DownloadModel, selected bool, width int) string {
	style := CardStyle
	if selected {
		style = SelectedCardStyle
	}
	inner := width - 4

	name := d.Filename
	if name == "" {
		name = d.URL
	}
	status := lipgloss.NewStyle().Foreground(statusColor(d.Status)).Render(getDownloadStatus(d))
	title := lipgloss.JoinHorizontal(lipgloss.Left,
		CardTitleStyle.Render(truncateString(name, inner-16)),
		"  ",
		status,
	)

	var bar string
	if d.Indeterminate && !d.done() {
		bar = fmt.Sprintf("%s %s", m.spinner.View(), utils.ConvertBytesToHumanReadable(d.Downloaded))
	} else {
		d.progress.Width = max(inner-ProgressBarWidthOffset, MinProgressBarWidth)
		bar = d.progress.ViewAs(d.Percent / 100)
	}

	stats := fmt.Sprintf("%s / %s  %.2f MB/s  %s",
		utils.ConvertBytesToHumanReadable(d.Downloaded),
		sizeOrUnknown(d.Total),
		d.Speed/Megabyte,
		utils.FormatDuration(d.Elapsed.Round(time.Second)),
	)
	if d.err != nil {
		stats = truncateString(d.err.Error(), inner)
	}

	return style.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		bar,
		CardStatsStyle.Render(stats),
	))
}

func (m RootModel) viewGraph(width int) string {
	axisWidth := 6
	graphWidth := max(width-axisWidth-1, 10)
	graphHeight := GraphHeight - 2

	maxSpeed := 1.0 // Prevent divide by zero
	for _, v := range m.SpeedHistory {
		if v > maxSpeed {
			maxSpeed = v
		}
	}
	maxSpeed *= 1.1

	axisStyle := lipgloss.NewStyle().Width(axisWidth).Foreground(ColorLightGray).Align(lipgloss.Right)
	axis := lipgloss.JoinVertical(lipgloss.Right,
		axisStyle.Render(fmt.Sprintf("%.1f", maxSpeed)),
		strings.Repeat("\n", max(graphHeight-3, 0)),
		axisStyle.Render("0"),
	)

	current := 0.0
	if len(m.SpeedHistory) > 0 {
		current = m.SpeedHistory[len(m.SpeedHistory)-1]
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Foreground(ColorNeonPink).Bold(true).Render(fmt.Sprintf("Current: %.2f MB/s", current)),
		lipgloss.JoinHorizontal(lipgloss.Top,
			axis,
			lipgloss.NewStyle().MarginLeft(1).Render(
				renderMultiLineGraph(m.SpeedHistory, graphWidth, graphHeight, maxSpeed, ColorNeonPink)),
		),
	)
}

func (m RootModel) viewInput() string {
	labelStyle := lipgloss.NewStyle().Width(10).Foreground(ColorLightGray)

	content := lipgloss.JoinVertical(lipgloss.Left,
		CardTitleStyle.Render("Add Download"),
		"",
		lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render("URL:"), m.inputs[0].View()),
		"",
		lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render("Path:"), m.inputs[1].View()),
		"",
		lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render("Filename:"), m.inputs[2].View()),
		"",
		m.help.View(InputKeys),
	)

	box := SelectedCardStyle.Padding(1, 2).Render(content)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func getDownloadStatus(d *DownloadModel) string {
	switch d.Status {
	case "error":
		return "✖ Error"
	case "cancelled":
		return "✖ Cancelled"
	case "completed":
		return "✔ Completed"
	case "paused":
		return "⏸ Paused"
	case "downloading":
		return "⬇ Downloading"
	default:
		return "o Queued"
	}
}

func sizeOrUnknown(n int64) string {
	if n <= 0 {
		return "?"
	}
	return utils.ConvertBytesToHumanReadable(n)
}

func truncateString(s string, i int) string {
	if i < 1 {
		i = 1
	}
	runes := []rune(s)
	if len(runes) > i {
		return string(runes[:i]) + "..."
	}
	return s
}
