package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"bkfetch/src/snapshot"
)

// Status is the loading state of the browser.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusError
)

// LoadFunc produces a snapshot directory and its manifest, capturing the
// snapshot first if needed.
type LoadFunc func() (string, *snapshot.Manifest, error)

// ManifestLoadedMsg delivers a loaded snapshot.
type ManifestLoadedMsg struct {
	Dir      string
	Manifest *snapshot.Manifest
}

// LoadErrorMsg reports a failed load.
type LoadErrorMsg struct {
	Err error
}

// MainModel browses the steps of one snapshot: a step list on the left and
// the selected step's log on the right.
type MainModel struct {
	styles         *StyleConfig
	header         Header
	listView       View
	detailViewport viewport.Model
	progress       ProgressModel

	dir      string
	manifest *snapshot.Manifest
	items    []Item
	logCache map[string]string
	load     LoadFunc

	width, height int
	ready         bool
	detailFocused bool
	status        Status
	loadErr       error
	selectedID    string

	searchMode  bool
	searchQuery string
}

func newModel() MainModel {
	styles := DefaultStyles()
	return MainModel{
		styles:         styles,
		header:         NewHeader(styles),
		listView:       NewView(styles),
		detailViewport: viewport.New(0, 0),
		progress:       NewProgressModel(),
		logCache:       make(map[string]string),
	}
}

// NewMainModel creates a browser for an existing snapshot.
func NewMainModel(dir string, manifest *snapshot.Manifest) MainModel {
	m := newModel()
	m.setManifest(dir, manifest)
	return m
}

// NewLoadingModel creates a browser that shows a progress screen until
// load returns. Pressing r runs load again.
func NewLoadingModel(load LoadFunc) MainModel {
	m := newModel()
	m.load = load
	m.status = StatusLoading
	m.progress, _ = m.progress.Update(ProgressMsg{Stage: "Capturing snapshot"})
	return m
}

func (m *MainModel) setManifest(dir string, manifest *snapshot.Manifest) {
	m.dir = dir
	m.manifest = manifest
	m.items = itemsFromManifest(manifest)
	m.logCache = make(map[string]string)
	m.header.SetManifest(manifest)
	m.status = StatusReady
	m.loadErr = nil
	m.applyFilter()
}

func (m MainModel) loadCmd() tea.Cmd {
	load := m.load
	return func() tea.Msg {
		dir, manifest, err := load()
		if err != nil {
			return LoadErrorMsg{Err: err}
		}
		return ManifestLoadedMsg{Dir: dir, Manifest: manifest}
	}
}

// Init implements tea.Model.
func (m MainModel) Init() tea.Cmd {
	if m.status == StatusLoading && m.load != nil {
		return tea.Batch(SpinnerTick(), m.loadCmd())
	}
	return nil
}

// Update implements tea.Model.
func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeComponents()
		return m, nil

	case ManifestLoadedMsg:
		m.progress, _ = m.progress.Update(ProgressMsg{Stage: StageComplete})
		m.setManifest(msg.Dir, msg.Manifest)
		if m.ready {
			m.resizeComponents()
		}
		return m, nil

	case LoadErrorMsg:
		m.status = StatusError
		m.loadErr = msg.Err
		return m, nil

	case ProgressMsg, SpinnerTickMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m MainModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.searchMode {
		return m.handleSearchKey(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		if m.load != nil && m.status != StatusLoading {
			m.status = StatusLoading
			m.progress = NewProgressModel()
			m.progress, _ = m.progress.Update(ProgressMsg{Stage: "Capturing snapshot"})
			return m, tea.Batch(SpinnerTick(), m.loadCmd())
		}
		return m, nil
	}

	if m.manifest == nil {
		return m, nil
	}

	switch msg.String() {
	case "/":
		m.searchMode = true
		m.detailFocused = false
		m.header.SetSearch(m.searchQuery, true)
		return m, nil
	case "tab":
		m.header.CycleFilter()
		m.applyFilter()
		return m, nil
	case "enter":
		if _, ok := m.listView.GetSelectedItem(); ok {
			m.detailFocused = true
		}
		return m, nil
	case "esc":
		if m.detailFocused {
			m.detailFocused = false
		} else if m.searchQuery != "" {
			m.searchQuery = ""
			m.header.SetSearch("", false)
			m.applyFilter()
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.detailFocused {
		m.detailViewport, cmd = m.detailViewport.Update(msg)
		return m, cmd
	}

	m.listView, cmd = m.listView.Update(msg)
	if selected, ok := m.listView.GetSelectedItem(); ok && selected.Step.ID != m.selectedID {
		m.updateDetailContent(selected)
	}
	return m, cmd
}

func (m MainModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searchMode = false
		m.searchQuery = ""
	case tea.KeyEnter:
		m.searchMode = false
	case tea.KeyBackspace:
		if r := []rune(m.searchQuery); len(r) > 0 {
			m.searchQuery = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		m.searchQuery += string(msg.Runes)
	default:
		return m, nil
	}

	m.header.SetSearch(m.searchQuery, m.searchMode)
	m.applyFilter()
	return m, nil
}

// Run starts the browser in the alternate screen and blocks until it exits.
func Run(model MainModel) error {
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
