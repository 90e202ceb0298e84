package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"github.com/mattjoyce/tokenforge/internal/fault"
	"github.com/mattjoyce/tokenforge/internal/log"
)

var (
	// ErrDuplicateCommand is a startup configuration defect.
	ErrDuplicateCommand = errors.New("command already registered")
	// ErrInvalidCommand is returned for commands without a name or handler.
	ErrInvalidCommand = errors.New("invalid command")
)

// Builder collects commands before the registry is frozen.
type Builder struct {
	commands map[string]Command
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{commands: make(map[string]Command)}
}

// Register adds cmd. Names must be unique.
func (b *Builder) Register(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCommand)
	}
	if cmd.Handler == nil {
		return fmt.Errorf("%w: %q has no handler", ErrInvalidCommand, cmd.Name)
	}
	if _, exists := b.commands[cmd.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCommand, cmd.Name)
	}
	if cmd.Returns == "" {
		cmd.Returns = ReturnsUnit
	}
	b.commands[cmd.Name] = cmd
	return nil
}

// Build freezes the registered commands. The builder may be discarded.
func (b *Builder) Build() *Registry {
	commands := make(map[string]Command, len(b.commands))
	for name, cmd := range b.commands {
		commands[name] = cmd
	}
	return &Registry{
		commands: commands,
		logger:   log.WithComponent("command"),
	}
}

// Registry maps command names to handlers. It is read-only after Build.
type Registry struct {
	commands map[string]Command
	logger   *slog.Logger
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Len returns the number of registered commands.
func (r *Registry) Len() int { return len(r.commands) }

// Commands returns descriptors sorted by name.
func (r *Registry) Commands() []Descriptor {
	out := make([]Descriptor, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, Descriptor{Name: cmd.Name, Description: cmd.Description, Returns: cmd.Returns})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch routes inv to its handler and returns the handler's result.
//
// An unregistered name fails with fault.UnknownCommand without running any
// handler. A panicking handler is reported as fault.Internal.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) (result any, err error) {
	logger := r.logger.With("command", inv.Command, "invocation_id", inv.ID, "window", inv.WindowLabel())

	cmd, ok := r.Lookup(inv.Command)
	if !ok {
		logger.Warn("unknown command")
		return nil, fault.Newf(fault.UnknownCommand, inv.Command, "no command named %q", inv.Command)
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("command handler panicked", "panic", rec, "stack", string(debug.Stack()))
			result = nil
			err = fault.Newf(fault.Internal, inv.Command, "handler panicked: %v", rec)
		}

		elapsed := time.Since(start)
		if err != nil {
			logger.Warn("command failed", "kind", fault.KindOf(err), "error", err, "duration_ms", elapsed.Milliseconds())
			return
		}
		logger.Debug("command completed", "duration_ms", elapsed.Milliseconds())
	}()

	return cmd.Handler(ctx, inv)
}
