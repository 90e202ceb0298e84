// Package window tracks the application's open windows and delivers events
// to their web views.
//
// Each window owns an events.Hub. The web view subscribes to that hub; the
// host emits into it through a Handle.
package window

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mattjoyce/tokenforge/internal/events"
	"github.com/mattjoyce/tokenforge/internal/fault"
	"github.com/mattjoyce/tokenforge/internal/log"
)

var (
	ErrWindowExists   = errors.New("window already open")
	ErrWindowNotFound = errors.New("window not found")
	ErrWindowClosed   = errors.New("window closed")
	ErrInvalidLabel   = errors.New("window label must not be empty")
)

// Info describes an open window.
type Info struct {
	Label    string    `json:"label"`
	Title    string    `json:"title"`
	OpenedAt time.Time `json:"opened_at"`
}

type window struct {
	info Info
	hub  *events.Hub
}

// Manager owns the set of open windows.
type Manager struct {
	mu      sync.RWMutex
	windows map[string]*window
	buffer  int
	logger  *slog.Logger
}

// NewManager creates a manager whose windows buffer up to buffer events for
// late subscribers.
func NewManager(buffer int) *Manager {
	return &Manager{
		windows: make(map[string]*window),
		buffer:  buffer,
		logger:  log.WithComponent("window"),
	}
}

// Open creates a window.
func (m *Manager) Open(label, title string) (Info, error) {
	if label == "" {
		return Info{}, ErrInvalidLabel
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.windows[label]; ok {
		return Info{}, fmt.Errorf("%w: %q", ErrWindowExists, label)
	}
	w := &window{
		info: Info{Label: label, Title: title, OpenedAt: time.Now().UTC()},
		hub:  events.NewHub(m.buffer),
	}
	m.windows[label] = w
	m.logger.Info("window opened", "window", label, "title", title)
	return w.info, nil
}

// Close closes a window and ends its subscriptions. Handles to it fail
// their next Emit.
func (m *Manager) Close(label string) error {
	m.mu.Lock()
	w, ok := m.windows[label]
	if ok {
		delete(m.windows, label)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrWindowNotFound, label)
	}
	w.hub.Close()
	m.logger.Info("window closed", "window", label)
	return nil
}

// CloseAll closes every window, e.g. on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	open := m.windows
	m.windows = make(map[string]*window)
	m.mu.Unlock()

	for _, w := range open {
		w.hub.Close()
	}
}

// Get returns the window with the given label.
func (m *Manager) Get(label string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.windows[label]
	if !ok {
		return Info{}, false
	}
	return w.info, true
}

// List returns open windows sorted by label.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, w.info)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Subscribe attaches to a window's event stream.
func (m *Manager) Subscribe(label string) (<-chan events.Event, func(), error) {
	w, err := m.lookup(label)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := w.hub.Subscribe()
	return ch, cancel, nil
}

// SnapshotSince returns a window's buffered events with ID > lastID.
func (m *Manager) SnapshotSince(label string, lastID int64) ([]events.Event, error) {
	w, err := m.lookup(label)
	if err != nil {
		return nil, err
	}
	return w.hub.SnapshotSince(lastID), nil
}

// Handle returns an emit capability bound to the window currently open
// under label. The handle stays bound to that window: once it closes, Emit
// fails even if a new window is later opened with the same label. A handle
// taken while no such window is open fails every Emit.
func (m *Manager) Handle(label string) *Handle {
	w, _ := m.lookup(label)
	return &Handle{label: label, win: w, manager: m}
}

func (m *Manager) lookup(label string) (*window, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.windows[label]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrWindowNotFound, label)
	}
	return w, nil
}

// Handle addresses one window instance.
type Handle struct {
	label   string
	win     *window
	manager *Manager
}

func (h *Handle) Label() string { return h.label }

// Emit sends a named event with a JSON payload to the window's web view.
// Every failure is classified as fault.EmitFailed.
func (h *Handle) Emit(event string, payload any) error {
	op := "emit " + event
	if event == "" {
		return fault.Newf(fault.EmitFailed, op, "event name must not be empty")
	}
	if h.win == nil || h.win.hub.Closed() {
		return fault.New(fault.EmitFailed, op, fmt.Errorf("%w: %q", ErrWindowClosed, h.label))
	}

	ev, err := h.win.hub.Publish(event, payload)
	if err != nil {
		if errors.Is(err, events.ErrClosed) {
			err = fmt.Errorf("%w: %q", ErrWindowClosed, h.label)
		}
		return fault.New(fault.EmitFailed, op, err)
	}

	h.manager.logger.Debug("event emitted", "window", h.label, "event", event, "event_id", ev.ID)
	return nil
}
