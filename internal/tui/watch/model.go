package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/tokenforge/internal/client"
	"github.com/mattjoyce/tokenforge/internal/events"
)

const (
	maxEventLog  = 200
	helloCommand = "hello_world"
	navCommand   = "navigate_to_create_token"
	navEvent     = "navigate"
)

type keyMap struct {
	Quit     key.Binding
	Hello    key.Binding
	Navigate key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Hello:    key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hello_world")),
		Navigate: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "navigate")),
	}
}

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	client *client.Client
	window string

	width  int
	height int

	// State
	health      HealthState
	route       string
	lastResult  string
	eventLog    []events.Event
	lastEventID int64
	now         time.Time

	// Live indicators
	beat     heartbeat
	activity Activity

	// UI state
	theme    Theme
	keys     keyMap
	viewport viewport.Model

	// Communication
	hubEvents chan events.Event

	// Error display
	lastError string
}

// New creates a watch model for one window of the shell at c.
func New(c *client.Client, window string) *Model {
	return &Model{
		client:    c,
		window:    window,
		eventLog:  make([]events.Event, 0),
		hubEvents: make(chan events.Event, 100),
		theme:     NewDefaultTheme(),
		keys:      defaultKeyMap(),
		now:       time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.client, m.window, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		fetchHealth(m.client),
		tick(),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Hello):
			return m, invoke(m.client, helloCommand, m.window)
		case key.Matches(msg, m.keys.Navigate):
			return m, invoke(m.client, navCommand, m.window)
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.width - 6
		m.viewport.Height = max(m.height-16, 3)
		m.viewport.SetContent(renderEventLines(m.eventLog, m.theme))

	case tickMsg:
		m.now = time.Time(msg)
		m.beat.Beat()
		m.activity.Prune(m.now)
		return m, tick()

	case eventMsg:
		m.applyEvent(events.Event(msg))
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.Version = msg.Version
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.CommandsLoaded = msg.CommandsLoaded
		m.health.WindowsOpen = msg.WindowsOpen
		m.health.Fingerprint = msg.ConfigFingerprint
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		m.lastError = ""

		c := m.client
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg { return fetchHealth(c)() })

	case invokeResultMsg:
		m.lastResult = m.formatResult(msg)
		return m, nil

	case sseDisconnectedMsg:
		if msg.lastID > m.lastEventID {
			m.lastEventID = msg.lastID
		}
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		if msg.err != nil {
			m.lastError = fmt.Sprintf("event stream: %v (reconnecting...)", msg.err)
		}
		// The pending receiveNextEvent keeps waiting on the channel and
		// picks up events from the new subscription.
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribeToEvents(m.client, m.window, m.lastEventID, m.hubEvents)

	case errMsg:
		m.health.Connected = false
		m.lastError = msg.Error()
		c := m.client
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg { return fetchHealth(c)() })
	}

	return m, nil
}

func (m *Model) applyEvent(e events.Event) {
	// Newest first
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > maxEventLog {
		m.eventLog = m.eventLog[:maxEventLog]
	}
	if e.ID > m.lastEventID {
		m.lastEventID = e.ID
	}
	if e.Type == navEvent {
		m.route = describePayload(e.Data)
	}

	m.activity.Record(e.At)
	m.health.Connected = true
	m.lastError = ""
	m.viewport.SetContent(renderEventLines(m.eventLog, m.theme))
}

func (m Model) formatResult(msg invokeResultMsg) string {
	if msg.err != nil {
		return m.theme.Failed.Render(fmt.Sprintf("%s: %v", msg.command, msg.err))
	}
	style := m.theme.ForKind(msg.resp.Kind)
	if err := msg.resp.Err(); err != nil {
		return style.Render(fmt.Sprintf("%s failed: %v", msg.command, err))
	}
	if text, err := msg.resp.Text(); err == nil {
		return style.Render(fmt.Sprintf("%s → %s", msg.command, text))
	}
	return style.Render(msg.command + " ok")
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing watch..."
	}

	header := renderHeader(m.window, m.health, m.beat, m.activity, m.theme, m.width, m.now)
	route := renderRoute(m.route, m.lastResult, m.theme, m.width)
	stream := m.theme.Panel.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("EVENT STREAM"),
			m.viewport.View(),
		),
	)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.Failed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := m.theme.Help.Render(" [q] Quit • [h] hello_world • [n] navigate_to_create_token • [↑/↓] Scroll")

	parts := []string{header, route, stream}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
