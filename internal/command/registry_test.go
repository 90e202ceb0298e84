package command

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/tokenforge/internal/command/mocks"
	"github.com/mattjoyce/tokenforge/internal/fault"
	"github.com/mattjoyce/tokenforge/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "")
	os.Exit(m.Run())
}

func echo(name string) Command {
	return Text(name, "echoes its name", func(context.Context, Invocation) (string, error) {
		return name, nil
	})
}

// buildRegistry registers cmds in order and freezes the result.
func buildRegistry(cmds ...Command) (*Registry, error) {
	b := NewBuilder()
	for _, cmd := range cmds {
		if err := b.Register(cmd); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func TestBuilderRejectsDuplicates(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(echo("a")))

	err := b.Register(echo("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateCommand)
	assert.Contains(t, err.Error(), `"a"`)
}

func TestBuilderRejectsInvalidCommands(t *testing.T) {
	b := NewBuilder()
	assert.ErrorIs(t, b.Register(echo("")), ErrInvalidCommand)
	assert.ErrorIs(t, b.Register(Command{Name: "nohandler"}), ErrInvalidCommand)
}

func TestRegistryIsFrozen(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Register(echo("a")))
	reg := b.Build()

	require.NoError(t, b.Register(echo("b")))
	_, ok := reg.Lookup("b")
	assert.False(t, ok, "registrations after Build must not leak into the registry")
	assert.Equal(t, 1, reg.Len())
}

func TestCommandsSortedDescriptors(t *testing.T) {
	reg, err := buildRegistry(
		echo("zeta"),
		Unit("alpha", "does nothing", func(context.Context, Invocation) error { return nil }),
	)
	require.NoError(t, err)

	assert.Equal(t, []Descriptor{
		{Name: "alpha", Description: "does nothing", Returns: ReturnsUnit},
		{Name: "zeta", Description: "echoes its name", Returns: ReturnsText},
	}, reg.Commands())
}

func TestDispatchText(t *testing.T) {
	reg, err := buildRegistry(echo("hello"))
	require.NoError(t, err)

	got, err := reg.Dispatch(context.Background(), Invocation{ID: "1", Command: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestDispatchUnitReturnsNil(t *testing.T) {
	reg, err := buildRegistry(Unit("noop", "", func(context.Context, Invocation) error { return nil }))
	require.NoError(t, err)

	got, err := reg.Dispatch(context.Background(), Invocation{Command: "noop"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDispatchUnknownCommandDoesNotRunHandlers(t *testing.T) {
	called := false
	reg, err := buildRegistry(Unit("known", "", func(context.Context, Invocation) error {
		called = true
		return nil
	}))
	require.NoError(t, err)

	for _, name := range []string{"unknown", "", "KNOWN", "known "} {
		_, err := reg.Dispatch(context.Background(), Invocation{Command: name})
		require.Error(t, err, name)
		assert.True(t, fault.Is(err, fault.UnknownCommand), name)
	}
	assert.False(t, called)
}

func TestDispatchPropagatesHandlerFault(t *testing.T) {
	want := fault.New(fault.NativeCallFailed, "read", errors.New("boom"))
	reg, err := buildRegistry(Text("broken", "", func(context.Context, Invocation) (string, error) {
		return "", want
	}))
	require.NoError(t, err)

	got, err := reg.Dispatch(context.Background(), Invocation{Command: "broken"})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, want)
	assert.Equal(t, fault.NativeCallFailed, fault.KindOf(err))
}

func TestDispatchRecoversPanics(t *testing.T) {
	reg, err := buildRegistry(Unit("panics", "", func(context.Context, Invocation) error {
		panic("nope")
	}))
	require.NoError(t, err)

	got, err := reg.Dispatch(context.Background(), Invocation{Command: "panics"})
	assert.Nil(t, got)
	require.Error(t, err)
	assert.Equal(t, fault.Internal, fault.KindOf(err))
	assert.Contains(t, err.Error(), "nope")
}

func TestDispatchPassesWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	win := mocks.NewMockWindow(ctrl)
	win.EXPECT().Label().Return("main").AnyTimes()
	win.EXPECT().Emit("ping", "pong").Return(nil)

	reg, err := buildRegistry(Unit("ping", "", func(_ context.Context, inv Invocation) error {
		return inv.Window.Emit("ping", "pong")
	}))
	require.NoError(t, err)

	_, err = reg.Dispatch(context.Background(), Invocation{Command: "ping", Window: win})
	require.NoError(t, err)
}

func TestWindowLabelWithoutWindow(t *testing.T) {
	assert.Equal(t, "", Invocation{}.WindowLabel())
}

func TestDispatchConcurrent(t *testing.T) {
	reg, err := buildRegistry(echo("a"), echo("b"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "a"
			if i%2 == 1 {
				name = "b"
			}
			got, err := reg.Dispatch(context.Background(), Invocation{Command: name})
			assert.NoError(t, err)
			assert.Equal(t, name, got)
		}(i)
	}
	wg.Wait()
}
