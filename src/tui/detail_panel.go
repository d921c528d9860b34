package tui

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"bkfetch/src/snapshot"
)

// readLog returns the cleaned log of a step, reading it from the snapshot
// directory at most once.
func (m *MainModel) readLog(stepID string) (string, error) {
	if content, ok := m.logCache[stepID]; ok {
		return content, nil
	}

	data, err := os.ReadFile(snapshot.StepLogPath(m.dir, stepID))
	if err != nil {
		return "", err
	}
	content := CleanLogText(string(data))
	m.logCache[stepID] = content
	return content, nil
}

// renderDetail renders the detail content for a step
func (m *MainModel) renderDetail(item Item, maxWidth int) string {
	content := strings.Builder{}

	header := lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Render(Truncate(fmt.Sprintf("Job: %s | State: %s | Exit: %s",
			item.Step.JobID, item.Step.State, item.ExitText()), maxWidth, true))
	fmt.Fprintf(&content, "%s\n\n", header)

	errorStyle := lipgloss.NewStyle().Foreground(m.styles.Failed).Bold(true)

	if !item.Captured() {
		fmt.Fprintln(&content, errorStyle.Render("LOG NOT CAPTURED"))
		fmt.Fprintln(&content, Wrap(fmt.Sprintf("%s: %s", item.Step.Error, item.Step.Message), maxWidth))
		if item.Step.Retryable != nil && *item.Step.Retryable {
			fmt.Fprintln(&content, lipgloss.NewStyle().Foreground(m.styles.Warning).Render("Retryable: run the snapshot again"))
		}
		return content.String()
	}

	log, err := m.readLog(item.Step.ID)
	if err != nil {
		fmt.Fprintln(&content, errorStyle.Render("LOG UNAVAILABLE"))
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintln(&content, Wrap(fmt.Sprintf("%s is missing from the snapshot", filepath.Join(snapshot.StepsDir, item.Step.ID, snapshot.LogFile)), maxWidth))
		} else {
			fmt.Fprintln(&content, Wrap(err.Error(), maxWidth))
		}
		return content.String()
	}

	if log == "" {
		fmt.Fprintln(&content, lipgloss.NewStyle().Foreground(m.styles.TextSecondary).Faint(true).Render("(empty log)"))
		return content.String()
	}

	for _, line := range SplitLines(log) {
		if strings.TrimSpace(line) == "" {
			fmt.Fprintln(&content)
			continue
		}
		fmt.Fprintln(&content, Wrap(line, maxWidth))
	}

	return content.String()
}

// updateDetailContent updates the viewport with content from the selected item
func (m *MainModel) updateDetailContent(item Item) {
	// 1 char padding on each side
	maxWidth := m.detailViewport.Width - 2
	m.detailViewport.SetContent(m.renderDetail(item, maxWidth))
	m.detailViewport.GotoTop()
	m.selectedID = item.Step.ID
}

// renderDetailPanel renders the right panel with detail viewport
func (m MainModel) renderDetailPanel(width, height int) string {
	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		headerRow := lipgloss.NewStyle().
			Foreground(m.styles.PrimaryBlue).
			Bold(true).
			Padding(0, 1).
			Render(Truncate("Step: "+selectedItem.Step.ID, width-2, true))

		box := m.styles.PanelStyle(m.detailFocused).
			Width(width - 2).
			Height(height).
			Render(m.detailViewport.View())

		return lipgloss.JoinVertical(lipgloss.Left, headerRow, box)
	}

	placeholderRow := lipgloss.NewStyle().
		Foreground(m.styles.TextSecondary).
		Padding(0, 1).
		Render(" ")

	empty := m.styles.PanelStyle(false).
		Width(width-2).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(m.styles.TextSecondary).
		Faint(true).
		Render("No steps match")

	return lipgloss.JoinVertical(lipgloss.Left, placeholderRow, empty)
}
