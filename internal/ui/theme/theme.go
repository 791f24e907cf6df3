// Package theme holds the terminal styles of the watchdog CLI.
package theme

import (
	"charm.land/lipgloss/v2"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// Color palette
var (
	Primary = lipgloss.Color("#8B5CF6") // Vivid Purple
	High    = lipgloss.Color("#F43F5E") // Rose
	Medium  = lipgloss.Color("#F59E0B") // Amber
	Low     = lipgloss.Color("#22C55E") // Green
	Text    = lipgloss.Color("#F8FAFC") // White
	TextDim = lipgloss.Color("#94A3B8") // Slate
	Border  = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Label = lipgloss.NewStyle().
		Foreground(TextDim).
		Width(12)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Rule = lipgloss.NewStyle().
		Foreground(Border)
)

// States
var (
	Sent = lipgloss.NewStyle().
		Foreground(Low)

	Suppressed = lipgloss.NewStyle().
			Foreground(TextDim).
			Strikethrough(true)
)

var priorityStyles = map[store.Priority]lipgloss.Style{
	store.PriorityHigh:   lipgloss.NewStyle().Foreground(High).Bold(true),
	store.PriorityMedium: lipgloss.NewStyle().Foreground(Medium).Bold(true),
	store.PriorityLow:    lipgloss.NewStyle().Foreground(Low),
}

// Priority renders a priority tier in its color, padded to width.
// Unclassified changes render as a dim dash.
func Priority(p store.Priority, width int) string {
	s, ok := priorityStyles[p]
	if !ok {
		return Hint.Width(width).Render("-")
	}
	return s.Width(width).Render(string(p))
}
