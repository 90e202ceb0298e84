// Package watch implements the tokenforge watch TUI: a live view of one
// window's event stream with keys to invoke the shell's commands.
package watch

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/tokenforge/internal/fault"
)

// Theme holds every style the watch TUI renders with.
type Theme struct {
	Panel lipgloss.Style
	Title lipgloss.Style
	Dim   lipgloss.Style
	Label lipgloss.Style
	Route lipgloss.Style
	Help  lipgloss.Style

	OK       lipgloss.Style
	Failed   lipgloss.Style
	Navigate lipgloss.Style
	Event    lipgloss.Style

	MeterOn  lipgloss.Style
	MeterOff lipgloss.Style
}

func NewDefaultTheme() Theme {
	accent := lipgloss.Color("#C678DD")
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }

	return Theme{
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent),
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Padding(0, 1),
		Dim:   fg("#7F848E"),
		Label: fg("#E5C07B"),
		Route: lipgloss.NewStyle().Bold(true).Foreground(accent),
		Help:  fg("241"),

		OK:       fg("#98C379"),
		Failed:   fg("#E06C75"),
		Navigate: fg("#C678DD"),
		Event:    fg("#61AFEF"),

		MeterOn:  fg("#98C379"),
		MeterOff: fg("#3E4451"),
	}
}

// ForEvent picks the style for an event type column.
func (t Theme) ForEvent(eventType string) lipgloss.Style {
	if eventType == navEvent {
		return t.Navigate
	}
	return t.Event
}

// ForKind picks the style for a command outcome; an empty kind is success.
func (t Theme) ForKind(kind fault.Kind) lipgloss.Style {
	switch kind {
	case "":
		return t.OK
	case fault.EmitFailed, fault.UnknownCommand, fault.InvalidArgs:
		return t.Label
	default:
		return t.Failed
	}
}
