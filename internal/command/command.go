// Package command holds the registry of commands callable from the web view
// and dispatches invocations to them.
//
// A Builder collects commands during startup; Build freezes them into an
// immutable Registry that is safe for concurrent Dispatch without locking.
package command

import (
	"context"
	"encoding/json"
)

//go:generate mockgen -destination=mocks/mock_window.go -package=mocks github.com/mattjoyce/tokenforge/internal/command Window

// ReturnKind describes what a command yields on success.
type ReturnKind string

const (
	ReturnsUnit ReturnKind = "unit"
	ReturnsText ReturnKind = "text"
)

// Window is the capability a handler uses to reach the window that issued
// the invocation. It is passed explicitly in every Invocation.
type Window interface {
	Label() string
	Emit(event string, payload any) error
}

// Invocation is one named call from the web view.
type Invocation struct {
	ID      string
	Command string
	// Args is the raw JSON parameter object; nil when the caller sent none.
	Args   json.RawMessage
	Window Window
}

// WindowLabel returns the label of the invoking window, or "".
func (inv Invocation) WindowLabel() string {
	if inv.Window == nil {
		return ""
	}
	return inv.Window.Label()
}

// HandlerFunc implements a command. Unit commands return a nil result.
type HandlerFunc func(ctx context.Context, inv Invocation) (any, error)

// Command binds a name to its handler.
type Command struct {
	Name        string
	Description string
	Returns     ReturnKind
	Handler     HandlerFunc
}

// Descriptor is the public description of a registered command.
type Descriptor struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Returns     ReturnKind `json:"returns"`
}

// Text declares a command returning a string.
func Text(name, description string, fn func(ctx context.Context, inv Invocation) (string, error)) Command {
	return Command{
		Name:        name,
		Description: description,
		Returns:     ReturnsText,
		Handler: func(ctx context.Context, inv Invocation) (any, error) {
			s, err := fn(ctx, inv)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}
}

// Unit declares a command with no return value.
func Unit(name, description string, fn func(ctx context.Context, inv Invocation) error) Command {
	return Command{
		Name:        name,
		Description: description,
		Returns:     ReturnsUnit,
		Handler: func(ctx context.Context, inv Invocation) (any, error) {
			return nil, fn(ctx, inv)
		},
	}
}
