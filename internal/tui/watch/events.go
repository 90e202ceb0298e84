package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/tokenforge/internal/events"
)

const maxPayloadWidth = 60

// renderRoute shows where the window was last navigated and the outcome of
// the last command invoked from the TUI.
func renderRoute(route, outcome string, theme Theme, width int) string {
	current := theme.Dim.Render("(no navigation yet)")
	if route != "" {
		current = theme.Route.Render(route)
	}

	rows := []string{theme.Title.Render("ROUTE"), " " + current}
	if outcome != "" {
		rows = append(rows, " "+outcome)
	}
	return theme.Panel.Width(width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderEventLines(log []events.Event, theme Theme) string {
	if len(log) == 0 {
		return theme.Dim.Render("  Waiting for events...")
	}

	var b strings.Builder
	for i, e := range log {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, " %s %s %s %s",
			theme.Dim.Render(e.At.Format("15:04:05")),
			theme.Dim.Render(fmt.Sprintf("#%-4d", e.ID)),
			theme.ForEvent(e.Type).Render(fmt.Sprintf("%-12s", e.Type)),
			describePayload(e.Data))
	}
	return b.String()
}

// describePayload renders a payload compactly: strings unquoted, anything
// else as JSON cut to maxPayloadWidth.
func describePayload(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	if raw := string(data); len(raw) > maxPayloadWidth {
		return raw[:maxPayloadWidth] + "..."
	}
	return string(data)
}
