package tui

import (
	"github.com/charmbracelet/lipgloss"

	"bkfetch/src/provider"
	"bkfetch/src/snapshot"
)

// StyleConfig holds all customizable style colors for the snapshot browser.
type StyleConfig struct {
	// Primary colors
	PrimaryBlue    lipgloss.Color
	AccentBlue     lipgloss.Color
	DarkBackground lipgloss.Color
	CardBackground lipgloss.Color
	TextPrimary    lipgloss.Color
	TextSecondary  lipgloss.Color
	BorderColor    lipgloss.Color
	SelectedColor  lipgloss.Color

	// Job and capture status colors
	Passed  lipgloss.Color
	Failed  lipgloss.Color
	Warning lipgloss.Color
}

// DefaultStyles returns the default color palette
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		PrimaryBlue:    lipgloss.Color("#8AB4F8"),
		AccentBlue:     lipgloss.Color("#4285F4"),
		DarkBackground: lipgloss.Color("#1E1E1E"),
		CardBackground: lipgloss.Color("#2D2D2D"),
		TextPrimary:    lipgloss.Color("#E8EAED"),
		TextSecondary:  lipgloss.Color("#9AA0A6"),
		BorderColor:    lipgloss.Color("#5F6368"),
		SelectedColor:  lipgloss.Color("#303134"),
		Passed:         lipgloss.Color("#34A853"),
		Failed:         lipgloss.Color("#EA4335"),
		Warning:        lipgloss.Color("#FBBC04"),
	}
}

// StateColor returns the color for a job or build state.
func (s *StyleConfig) StateColor(state string) lipgloss.Color {
	switch state {
	case provider.StatePassed:
		return s.Passed
	case provider.StateFailed, provider.StateTimedOut, provider.StateBroken:
		return s.Failed
	case provider.StateCanceled, provider.StateSkipped:
		return s.TextSecondary
	default:
		return s.Warning
	}
}

// FetchBadge renders the capture status of a step.
func (s *StyleConfig) FetchBadge(status snapshot.FetchStatus) string {
	if status == snapshot.FetchSuccess {
		return lipgloss.NewStyle().Foreground(s.Passed).Render("✓")
	}
	return lipgloss.NewStyle().Foreground(s.Failed).Bold(true).Render("✗")
}

// HelpStyle returns a help text lipgloss style using this config
func (s *StyleConfig) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Padding(0, 2)
}

// PanelStyle returns a bordered panel style, highlighted when focused.
func (s *StyleConfig) PanelStyle(focused bool) lipgloss.Style {
	border := s.BorderColor
	if focused {
		border = s.AccentBlue
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border)
}
