package terminal

import "github.com/charmbracelet/lipgloss"

// Theme holds the styles used to render a conversation.
type Theme struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	Error     lipgloss.Style
	Title     lipgloss.Style
	Tool      lipgloss.Style
	Muted     lipgloss.Style
	Online    lipgloss.Style
	Offline   lipgloss.Style
}

// NewTheme returns the default colored theme.
func NewTheme() Theme {
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	pink := lipgloss.Color("#ff71ce")
	red := lipgloss.Color("#ff5f5f")
	muted := lipgloss.Color("#9ca3d8")

	return Theme{
		User:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		Assistant: lipgloss.NewStyle().Foreground(mint).Bold(true),
		Error:     lipgloss.NewStyle().Foreground(red).Bold(true),
		Title:     lipgloss.NewStyle().Foreground(pink).Bold(true).Underline(true),
		Tool:      lipgloss.NewStyle().Foreground(muted).Italic(true),
		Muted:     lipgloss.NewStyle().Foreground(muted),
		Online:    lipgloss.NewStyle().Foreground(mint),
		Offline:   lipgloss.NewStyle().Foreground(red),
	}
}

// PlainTheme renders without any styling.
func PlainTheme() Theme {
	s := lipgloss.NewStyle()
	return Theme{User: s, Assistant: s, Error: s, Title: s, Tool: s, Muted: s, Online: s, Offline: s}
}
