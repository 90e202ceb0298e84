package watch

import (
	"strings"
	"time"
)

// activityWindow is how far back Activity counts events.
const activityWindow = 10 * time.Second

// heartbeat alternates every tick so a frozen screen is noticeable.
type heartbeat bool

func (h *heartbeat) Beat() { *h = !*h }

func (h heartbeat) String() string {
	if h {
		return "⟳"
	}
	return "⟲"
}

// Activity is a five-cell meter of how many events arrived recently.
type Activity struct {
	recent []time.Time
	last   time.Time
}

// Record notes an event at t.
func (a *Activity) Record(t time.Time) {
	a.recent = append(a.recent, t)
	if t.After(a.last) {
		a.last = t
	}
}

// Prune forgets events older than activityWindow relative to now.
func (a *Activity) Prune(now time.Time) {
	cutoff := now.Add(-activityWindow)
	keep := a.recent[:0]
	for _, t := range a.recent {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	a.recent = keep
}

// Level maps the recent count onto 0..5 lit cells.
func (a Activity) Level() int {
	switch n := len(a.recent); {
	case n == 0:
		return 0
	case n >= 16:
		return 5
	case n >= 8:
		return 4
	case n >= 4:
		return 3
	case n >= 2:
		return 2
	default:
		return 1
	}
}

func (a Activity) Render(theme Theme) string {
	var b strings.Builder
	level := a.Level()
	for i := range 5 {
		if i < level {
			b.WriteString(theme.MeterOn.Render("▮"))
		} else {
			b.WriteString(theme.MeterOff.Render("▯"))
		}
	}
	return b.String()
}

// Last returns when the newest event arrived, zero if none has.
func (a Activity) Last() time.Time { return a.last }
