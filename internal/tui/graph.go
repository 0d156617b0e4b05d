package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var graphBlocks = []string{" ", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// renderMultiLineGraph draws data as right-aligned vertical bars on a dashed
// grid of width x height cells, scaled so maxVal fills the full height.
func renderMultiLineGraph(data []float64, width, height int, maxVal float64, color lipgloss.Color) string {
	if width < 1 || height < 1 {
		return ""
	}
	if maxVal <= 0 {
		maxVal = 1
	}

	gridStyle := lipgloss.NewStyle().Foreground(ColorGray)
	barStyle := lipgloss.NewStyle().Foreground(color)

	rows := make([][]string, height)
	for i := range rows {
		rows[i] = make([]string, width)
		for j := range rows[i] {
			if i%2 == 0 {
				rows[i][j] = gridStyle.Render("╌")
			} else {
				rows[i][j] = " "
			}
		}
	}

	if len(data) > width {
		data = data[len(data)-width:]
	}
	offset := width - len(data)

	for x, val := range data {
		pct := max(val, 0) / maxVal
		if pct > 1 {
			pct = 1
		}
		eighths := pct * float64(height) * 8

		for y := 0; y < height; y++ {
			level := eighths - float64(y*8)
			if level <= 0 {
				break
			}
			char := "█"
			if level < 8 {
				char = graphBlocks[int(level)]
			}
			rows[height-1-y][offset+x] = barStyle.Render(char)
		}
	}

	lines := make([]string, height)
	for i, row := range rows {
		lines[i] = strings.Join(row, "")
	}
	return strings.Join(lines, "\n")
}
