package tui

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
)

var (
	borderColor = lipgloss.Color("#505050")
	ruleStyle   = lipgloss.NewStyle().Foreground(borderColor)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E0AF68"))
	phaseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7AA2F7"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7768E"))
	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#E0AF68")).
			Padding(0, 1)

	wordPalette = []lipgloss.Color{"#7AA2F7", "#9ECE6A", "#BB9AF7", "#E0AF68", "#7DCFFF", "#F7768E"}
)

// wordStyle picks a stable color per word and emphasizes heavier entries.
func wordStyle(value string, weight int) lipgloss.Style {
	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	s := lipgloss.NewStyle().Foreground(wordPalette[h.Sum32()%uint32(len(wordPalette))])
	if weight > 1 {
		s = s.Bold(true)
	}
	if weight > 2 {
		s = s.Underline(true)
	}
	return s
}
