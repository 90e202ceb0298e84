// Package commands implements the commands the shell exposes to its web view.
package commands

import (
	"context"
	"fmt"

	"github.com/mattjoyce/tokenforge/internal/command"
	"github.com/mattjoyce/tokenforge/internal/fault"
)

//go:generate mockgen -destination=mocks/mock_text_source.go -package=mocks github.com/mattjoyce/tokenforge/internal/commands TextSource

const (
	HelloWorld            = "hello_world"
	NavigateToCreateToken = "navigate_to_create_token"

	// NavigateEvent is the event the front end's router listens for.
	NavigateEvent = "navigate"
	// CreateTokenRoute is the front-end route of the token creation view.
	CreateTokenRoute = "/createToken"
)

// TextSource produces the greeting returned by hello_world.
type TextSource interface {
	FetchText(ctx context.Context) (string, error)
}

// All returns every command backed by text.
func All(text TextSource) []command.Command {
	return []command.Command{
		command.Text(HelloWorld, "Returns the greeting produced by the native library.",
			func(ctx context.Context, _ command.Invocation) (string, error) {
				s, err := text.FetchText(ctx)
				if err != nil {
					if fault.KindOf(err) == fault.Internal {
						return "", fault.New(fault.NativeCallFailed, HelloWorld, err)
					}
					return "", err
				}
				return s, nil
			}),
		command.Unit(NavigateToCreateToken, "Tells the invoking window to show the token creation view.",
			func(_ context.Context, inv command.Invocation) error {
				return EmitNavigation(inv.Window, CreateTokenRoute)
			}),
	}
}

// Register adds every command to b.
func Register(b *command.Builder, text TextSource) error {
	for _, cmd := range All(text) {
		if err := b.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// EmitNavigation emits a navigate event carrying route to w. Failures are
// always classified as fault.EmitFailed.
func EmitNavigation(w command.Window, route string) error {
	op := "emit " + NavigateEvent
	if w == nil {
		return fault.Newf(fault.EmitFailed, op, "no window to navigate")
	}
	if err := w.Emit(NavigateEvent, route); err != nil {
		if fault.Is(err, fault.EmitFailed) {
			return err
		}
		return fault.New(fault.EmitFailed, op, fmt.Errorf("window %q: %w", w.Label(), err))
	}
	return nil
}
