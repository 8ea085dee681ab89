package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muurk/wstelemetry/internal/client"
)

// Stepper is the loop the monitor drives, implemented by agent.Agent.
type Stepper interface {
	Step()
	Snapshot() client.Snapshot
	TickInterval() time.Duration
	Disconnect()
	Close()
}

type tickMsg time.Time

type monitorKeyMap struct {
	Disconnect key.Binding
	Quit       key.Binding
}

func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Disconnect, k.Quit}
}

func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// MonitorModel is a Bubble Tea model that steps the agent on every tick
// and renders the client status.
type MonitorModel struct {
	agent    Stepper
	snapshot client.Snapshot
	spinner  spinner.Model
	help     help.Model
	keys     monitorKeyMap
	width    int
	quitting bool
}

// NewMonitorModel creates the live status model for agent.
func NewMonitorModel(agent Stepper) MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return MonitorModel{
		agent:    agent,
		snapshot: agent.Snapshot(),
		spinner:  s,
		help:     help.New(),
		keys: monitorKeyMap{
			Disconnect: key.NewBinding(
				key.WithKeys("d"),
				key.WithHelp("d", "drop connection"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		width: GetTerminalWidth(),
	}
}

func (m MonitorModel) tick() tea.Cmd {
	return tea.Tick(m.agent.TickInterval(), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

// Update implements tea.Model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.quitting {
			return m, nil
		}
		m.agent.Step()
		m.snapshot = m.agent.Snapshot()
		return m, m.tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			m.agent.Close()
			m.snapshot = m.agent.Snapshot()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Disconnect):
			m.agent.Disconnect()
			m.snapshot = m.agent.Snapshot()
		}

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model
func (m MonitorModel) View() string {
	var b strings.Builder
	b.WriteString(RenderStatus(m.snapshot, m.spinner.View(), m.width))
	b.WriteString("\n")
	if !m.quitting {
		b.WriteString(SubtitleStyle.Render(m.help.View(m.keys)))
		b.WriteString("\n")
	}
	return b.String()
}

// RunMonitor runs the live status program until the user quits.
func RunMonitor(agent Stepper) error {
	p := tea.NewProgram(NewMonitorModel(agent), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
