package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var bkfetchLogo = []string{
	"██       ██              ████████          ██            ██",
	"██       ██  ▄█▀         ██        ▄█████▄ ██████ ▄█████ ██████▄",
	"███████▄ ████▀   ██████  ██████    ██▄▄▄██ ██     ██     ██   ██",
	"██    ██ ██▀█▄           ██        ██▀▀▀▀▀ ██     ██     ██   ██",
	"███████▀ ██  ▀█▄         ██        ▀█████▀ ▀████  ▀█████ ██   ██",
}

// One shade per logo row, lightest first.
var logoShades = []lipgloss.Color{"#5DADE2", "#3498DB", "#2E86C1", "#2874A6", "#21618C"}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// StageComplete is the stage that ends the loading screen.
const StageComplete = "complete"

// ProgressMsg reports the capture stage, with an optional count.
type ProgressMsg struct {
	Stage   string
	Current int
	Total   int
}

type SpinnerTickMsg time.Time

// ProgressModel is the loading screen shown while a snapshot is captured.
type ProgressModel struct {
	stage   string
	current int
	total   int
	done    bool
	frame   int
}

func NewProgressModel() ProgressModel {
	return ProgressModel{}
}

// SpinnerTick schedules the next spinner frame.
func SpinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(t time.Time) tea.Msg {
		return SpinnerTickMsg(t)
	})
}

func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.stage, m.current, m.total = msg.Stage, msg.Current, msg.Total
		m.done = msg.Stage == StageComplete
	case SpinnerTickMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		if m.done {
			return m, nil
		}
		return m, SpinnerTick()
	}
	return m, nil
}

func (m ProgressModel) View() string {
	return lipgloss.JoinVertical(lipgloss.Center, renderLogo(), "", m.status())
}

func renderLogo() string {
	rows := make([]string, len(bkfetchLogo))
	for i, row := range bkfetchLogo {
		shade := logoShades[i%len(logoShades)]
		rows[i] = lipgloss.NewStyle().Foreground(shade).Bold(true).Render(row)
	}
	return strings.Join(rows, "\n")
}

func (m ProgressModel) status() string {
	if m.done {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Render("✓ Snapshot ready")
	}

	spinner := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Render(spinnerFrames[m.frame])
	switch {
	case m.total > 0:
		return fmt.Sprintf("%s %s (%d/%d, %d%%)", spinner, m.stage, m.current, m.total, m.current*100/m.total)
	case m.stage != "":
		return fmt.Sprintf("%s %s...", spinner, m.stage)
	default:
		return spinner + " Loading..."
	}
}
