package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// renderListPanel renders the left panel with the step list
func (m MainModel) renderListPanel(width, height int) string {
	// List size is set in resizeComponents(), not here during render
	listPanel := m.styles.PanelStyle(!m.detailFocused).
		Width(width - 2).
		Height(height).
		Render(m.listView.Render())

	stateHeader := TruncateAndPad("State", stateWidth, false)
	exitHeader := fmt.Sprintf("%*s", exitWidth, "Ex")

	// Truncate to width-4 to account for padding (2 chars)
	headerText := fmt.Sprintf("  %s │ %s │ Step", stateHeader, exitHeader)
	headerRow := lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Width(width-2).
		Padding(0, 1).
		Render(Truncate(headerText, width-4, true))

	return lipgloss.JoinVertical(lipgloss.Left, headerRow, listPanel)
}
