package tui

import (
	"time"

	"github.com/Iron-Ham/standsim/internal/sim"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Source supplies the state drawn each frame.
type Source interface {
	Snapshot() sim.Snapshot
}

// Model holds the TUI application state
type Model struct {
	source Source
	keys   keyMap
	help   help.Model

	frame       time.Duration
	trackWidth  int // 0 = fit terminal
	lateralSpan float64

	width      int
	height     int
	quitting   bool
	showLegend bool

	snap sim.Snapshot
}

type tickMsg time.Time

// NewModel creates a new TUI model
func NewModel(source Source, opts ...Option) Model {
	m := Model{
		source:      source,
		keys:        defaultKeyMap(),
		help:        help.New(),
		frame:       50 * time.Millisecond,
		lateralSpan: defaultLateralSpan,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.snap = source.Snapshot()
	return m
}

// Init starts the frame ticker.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles key presses, resizes and frame ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showLegend = !m.showLegend
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		m.snap = m.source.Snapshot()
		return m, m.tick()
	}
	return m, nil
}

// Quitting reports whether the user asked to leave.
func (m Model) Quitting() bool {
	return m.quitting
}
