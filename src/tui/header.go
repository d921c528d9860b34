package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"bkfetch/src/snapshot"
)

// Step filters, as shown in the header.
const (
	FilterAll    = "ALL"
	FilterFailed = "FAILED"
)

// Header is the status bar above the panels: build identity, capture
// completeness, the step filter and the search prompt.
type Header struct {
	manifest  *snapshot.Manifest
	filter    string
	query     string
	searching bool
	styles    *StyleConfig
}

func NewHeader(styles *StyleConfig) Header {
	return Header{filter: FilterAll, styles: styles}
}

func (h *Header) SetManifest(m *snapshot.Manifest) {
	h.manifest = m
}

func (h Header) Filter() string {
	return h.filter
}

// CycleFilter flips between all steps and failed steps only.
func (h *Header) CycleFilter() {
	switch h.filter {
	case FilterAll:
		h.filter = FilterFailed
	default:
		h.filter = FilterAll
	}
}

func (h *Header) SetSearch(query string, active bool) {
	h.query = query
	h.searching = active
}

// Render lays the header segments out on one line, clipped to width.
func (h Header) Render(width int) string {
	accent := lipgloss.NewStyle().Foreground(h.styles.PrimaryBlue).Bold(true).Padding(0, 2)

	segments := []string{
		accent.Render("📦 " + h.title()),
		lipgloss.NewStyle().Foreground(h.styles.TextSecondary).Padding(0, 1).Render(h.buildLine()),
		lipgloss.NewStyle().Padding(0, 1).Render(h.completeness()),
		accent.Render("⚙️ Steps: " + h.filter),
		h.searchSegment(),
	}
	line := ansi.Truncate(lipgloss.JoinHorizontal(lipgloss.Left, segments...), width, "")

	return lipgloss.NewStyle().
		Background(h.styles.DarkBackground).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(h.styles.BorderColor).
		Width(width).
		Render(line)
}

func (h Header) title() string {
	if h.manifest == nil {
		return "bkfetch"
	}
	return h.manifest.BuildRef
}

// buildLine is "<state>  <branch>@<commit>".
func (h Header) buildLine() string {
	if h.manifest == nil {
		return ""
	}
	b := h.manifest.Build
	state := lipgloss.NewStyle().Foreground(h.styles.StateColor(b.State)).Render(b.State)
	return fmt.Sprintf("%s  %s@%s", state, b.Branch, shortCommit(b.Commit))
}

func (h Header) completeness() string {
	switch {
	case h.manifest == nil:
		return ""
	case h.manifest.FetchComplete:
		return lipgloss.NewStyle().Foreground(h.styles.Passed).Render("complete")
	default:
		missing := fmt.Sprintf("incomplete (%d missing)", len(h.manifest.FetchErrors))
		return lipgloss.NewStyle().Foreground(h.styles.Failed).Render(missing)
	}
}

func (h Header) searchSegment() string {
	style := lipgloss.NewStyle().Foreground(h.styles.TextSecondary).Padding(0, 2)
	switch {
	case h.searching:
		return style.Foreground(h.styles.PrimaryBlue).Render("🔍 Search: " + h.query + "█")
	case h.query != "":
		return style.Render("🔍 Search: " + h.query)
	default:
		return style.Render("🔍 [/] to search")
	}
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
