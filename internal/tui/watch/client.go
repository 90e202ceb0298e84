package watch

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/tokenforge/internal/client"
	"github.com/mattjoyce/tokenforge/internal/events"
	"github.com/mattjoyce/tokenforge/internal/protocol"
)

// --- Message types ---

type eventMsg events.Event

type healthMsg client.Health

type tickMsg time.Time

type errMsg error

// sseDisconnectedMsg carries the last event seen so the reconnect resumes.
type sseDisconnectedMsg struct {
	lastID int64
	err    error
}

type reconnectMsg struct{}

type invokeResultMsg struct {
	command string
	resp    *protocol.InvokeResponse
	err     error
}

// --- Commands ---

// subscribeToEvents follows the window's SSE stream, feeding events into ch.
// Returns sseDisconnectedMsg when the connection drops.
func subscribeToEvents(c *client.Client, label string, lastID int64, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		last, err := c.Stream(context.Background(), label, lastID, ch)
		return sseDisconnectedMsg{lastID: last, err: err}
	}
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func fetchHealth(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h, err := c.Health(ctx)
		if err != nil {
			return errMsg(err)
		}
		return healthMsg(*h)
	}
}

func invoke(c *client.Client, name, label string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := c.Invoke(ctx, name, protocol.InvokeRequest{Window: label})
		return invokeResultMsg{command: name, resp: resp, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}
