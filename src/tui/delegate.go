package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// listRenderingOverhead accounts for padding added by bubbles/list and panel borders.
	listRenderingOverhead = 10

	stateWidth = 9
	exitWidth  = 3
)

// Delegate renders steps as table rows.
type Delegate struct {
	styles *StyleConfig
}

// NewDelegate creates a new step table delegate with default styles
func NewDelegate() Delegate {
	return Delegate{styles: DefaultStyles()}
}

// NewDelegateWithStyles creates a new delegate with custom styles
func NewDelegateWithStyles(styles *StyleConfig) Delegate {
	return Delegate{styles: styles}
}

// Height returns the height of a list item
func (d Delegate) Height() int {
	return 1
}

// Spacing returns spacing between items
func (d Delegate) Spacing() int {
	return 0
}

// Update handles item updates
func (d Delegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}

// Render renders a list item
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(Item)
	if !ok {
		return
	}

	isSelected := index == m.Index()

	stateCol := lipgloss.NewStyle().
		Foreground(d.styles.StateColor(entry.Step.State)).
		Render(TruncateAndPad(entry.Step.State, stateWidth, false))
	exitCol := fmt.Sprintf("%*s", exitWidth, entry.ExitText())

	// Fixed columns: badge (1) + state + exit + separators (9)
	fixedWidth := 1 + stateWidth + exitWidth + 9
	availableWidth := m.Width() - fixedWidth - listRenderingOverhead

	var label string
	if availableWidth > 0 {
		text := entry.Step.Label
		if text == "" {
			text = entry.Step.ID
		}
		label = TruncateAndPad(CleanLogText(text), availableWidth, true)
	}

	labelStyle := lipgloss.NewStyle().Foreground(d.styles.TextSecondary)
	if isSelected {
		labelStyle = labelStyle.Bold(true).Foreground(d.styles.PrimaryBlue).Background(d.styles.SelectedColor)
	}

	fmt.Fprintf(w, "%s │ %s │ %s │ %s",
		d.styles.FetchBadge(entry.Step.FetchStatus), stateCol, exitCol, labelStyle.Render(label))
}
