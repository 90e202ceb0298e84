package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState tracks shell health from /healthz polling.
type HealthState struct {
	Status         string
	Version        string
	UptimeSeconds  int64
	CommandsLoaded int
	WindowsOpen    int
	Fingerprint    string
	Connected      bool
	LastCheck      time.Time
}

func (h HealthState) badge(theme Theme) string {
	switch {
	case !h.Connected:
		return theme.Failed.Render("CONNECTING")
	case h.Status != "" && h.Status != "ok":
		return theme.Failed.Render(strings.ToUpper(h.Status))
	default:
		return theme.OK.Render("LIVE")
	}
}

func renderHeader(label string, health HealthState, beat heartbeat, activity Activity, theme Theme, width int, now time.Time) string {
	inner := width - 4

	left := fmt.Sprintf(" TOKENFORGE %s  window %s", theme.Label.Render(beat.String()), theme.Label.Render(label))
	right := theme.Dim.Render(now.Format("15:04:05")) + " "
	gap := max(inner-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	title := left + strings.Repeat(" ", gap) + right

	fingerprint := "-"
	if f := health.Fingerprint; f != "" {
		fingerprint = f[:min(len(f), 12)]
	}
	version := health.Version
	if version == "" {
		version = "?"
	}
	stats := fmt.Sprintf(" %s  v%s  up %s  commands %d  windows %d  config %s",
		health.badge(theme), version, uptime(health.UptimeSeconds),
		health.CommandsLoaded, health.WindowsOpen, theme.Dim.Render(fingerprint))

	since := "none yet"
	if last := activity.Last(); !last.IsZero() {
		since = now.Sub(last).Round(time.Second).String() + " ago"
	}
	pulse := fmt.Sprintf(" events %s  last %s", activity.Render(theme), since)

	return theme.Panel.Width(inner).Render(lipgloss.JoinVertical(lipgloss.Left, title, stats, pulse))
}

func uptime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", seconds)
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh%02dm", seconds/3600, (seconds%3600)/60)
	}
}
