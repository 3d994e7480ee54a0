package main

import "github.com/charmbracelet/lipgloss"

var (
	// Color palette
	primaryColor = lipgloss.Color("#7D56F4")
	usedColor    = lipgloss.Color("#FF4B4B")
	freeColor    = lipgloss.Color("#04B575")
	mutedColor   = lipgloss.Color("#666666")
	borderColor  = lipgloss.Color("#383838")
)

// mapStyles renders the pool map. The zero value renders plain text.
type mapStyles struct {
	title lipgloss.Style
	used  lipgloss.Style
	free  lipgloss.Style
	label lipgloss.Style
	box   lipgloss.Style
}

func newMapStyles(color bool) mapStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return mapStyles{title: plain, used: plain, free: plain, label: plain, box: plain}
	}
	return mapStyles{
		title: lipgloss.NewStyle().Bold(true).Foreground(primaryColor),
		used:  lipgloss.NewStyle().Foreground(usedColor),
		free:  lipgloss.NewStyle().Foreground(freeColor),
		label: lipgloss.NewStyle().Foreground(mutedColor),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1),
	}
}
