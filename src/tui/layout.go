package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// panelDimensions holds calculated layout dimensions
type panelDimensions struct {
	availableHeight int
	leftPanelWidth  int
	rightPanelWidth int
}

// calculateDimensions computes panel sizes from the terminal size. Render
// and resize both use it so they agree.
func (m MainModel) calculateDimensions() panelDimensions {
	headerHeight := lipgloss.Height(m.header.Render(m.width))
	// header + help line (1) + panel column header row (1) + panel borders (2)
	availableHeight := max(m.height-headerHeight-1-1-2, 1)

	// Step list (40%) | Log (60%)
	leftPanelWidth := int(float64(m.width) * 0.4)
	rightPanelWidth := m.width - leftPanelWidth

	return panelDimensions{
		availableHeight: availableHeight,
		leftPanelWidth:  leftPanelWidth,
		rightPanelWidth: rightPanelWidth,
	}
}

// View renders the complete TUI layout
func (m MainModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := m.header.Render(m.width)

	if m.status == StatusError {
		msg := lipgloss.NewStyle().
			Foreground(m.styles.Failed).
			Bold(true).
			Width(m.width).
			Padding(1, 2).
			Render(fmt.Sprintf("✗ %v", m.loadErr))
		return ClampWidth(lipgloss.JoinVertical(lipgloss.Left, header, msg, m.renderHelpText()), m.width)
	}

	if m.status == StatusLoading && len(m.items) == 0 {
		centeredProgress := lipgloss.NewStyle().
			Width(m.width).
			Align(lipgloss.Center).
			PaddingTop(2).
			Render(m.progress.View())
		return ClampWidth(lipgloss.JoinVertical(lipgloss.Left, header, centeredProgress), m.width)
	}

	dims := m.calculateDimensions()

	leftPanel := m.renderListPanel(dims.leftPanelWidth, dims.availableHeight)
	rightPanel := m.renderDetailPanel(dims.rightPanelWidth, dims.availableHeight)
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)

	view := lipgloss.JoinVertical(lipgloss.Left, header, mainContent, m.renderHelpText())
	return ClampWidth(view, m.width)
}

// renderHelpText renders context-aware help text at the bottom
func (m MainModel) renderHelpText() string {
	keyStyle := lipgloss.NewStyle().Foreground(m.styles.PrimaryBlue).Bold(true)
	sepStyle := lipgloss.NewStyle().Foreground(m.styles.TextSecondary)

	var helpText string
	switch {
	case m.status == StatusError:
		helpText = fmt.Sprintf("%s: Retry %s %s: Quit",
			keyStyle.Render("r"), sepStyle.Render("•"),
			keyStyle.Render("q"))
	case m.status == StatusLoading:
		helpText = "Capturing snapshot..."
	case m.searchMode:
		helpText = fmt.Sprintf("%s: Apply %s %s: Clear",
			keyStyle.Render("Enter"), sepStyle.Render("•"),
			keyStyle.Render("Esc"))
	case m.detailFocused:
		helpText = fmt.Sprintf("%s: Scroll %s %s: Back %s %s: Quit",
			keyStyle.Render("j/k"), sepStyle.Render("•"),
			keyStyle.Render("Esc"), sepStyle.Render("•"),
			keyStyle.Render("q"))
	default:
		helpText = fmt.Sprintf("%s: Nav %s %s: View log %s %s: All/Failed %s %s Search %s %s: Quit",
			keyStyle.Render("j/k"), sepStyle.Render("•"),
			keyStyle.Render("Enter"), sepStyle.Render("•"),
			keyStyle.Render("Tab"), sepStyle.Render("•"),
			keyStyle.Render("/"), sepStyle.Render("•"),
			keyStyle.Render("q"))
		if m.load != nil {
			helpText += fmt.Sprintf(" %s %s: Refresh", sepStyle.Render("•"), keyStyle.Render("r"))
		}
	}

	return m.styles.HelpStyle().Render(helpText)
}

// resizeComponents handles window resize events
func (m *MainModel) resizeComponents() {
	dims := m.calculateDimensions()

	// Panel borders take one column on each side
	m.listView.SetSize(dims.leftPanelWidth-2, dims.availableHeight)

	m.detailViewport.Width = max(dims.rightPanelWidth-2, 1)
	m.detailViewport.Height = dims.availableHeight

	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		m.updateDetailContent(selectedItem)
	}
}
