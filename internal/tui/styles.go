package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("#8BC34A")
	colorMuted   = lipgloss.Color("#6b7280")
	colorBorder  = lipgloss.Color("#2a3850")
	colorError   = lipgloss.Color("#e53935")
	colorWarning = lipgloss.Color("#FFC107")
	colorInfo    = lipgloss.Color("#2196F3")
)

// Styles groups the lipgloss styles the editor renders with.
type Styles struct {
	Title    lipgloss.Style
	Pane     lipgloss.Style
	Focused  lipgloss.Style
	Cursor   lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Changed  lipgloss.Style
	Disabled lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Info     lipgloss.Style
	Help     lipgloss.Style
}

// DefaultStyles returns the editor's default styles.
func DefaultStyles() Styles {
	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)

	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).MarginBottom(1),
		Pane:     pane,
		Focused:  pane.BorderForeground(colorPrimary),
		Cursor:   lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		Label:    lipgloss.NewStyle().Width(32),
		Value:    lipgloss.NewStyle(),
		Changed:  lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
		Disabled: lipgloss.NewStyle().Foreground(colorMuted).Faint(true),
		Error:    lipgloss.NewStyle().Foreground(colorError),
		Success:  lipgloss.NewStyle().Foreground(colorPrimary),
		Info:     lipgloss.NewStyle().Foreground(colorInfo),
		Help:     lipgloss.NewStyle().Foreground(colorMuted),
	}
}
