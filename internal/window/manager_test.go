package window

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/tokenforge/internal/fault"
	"github.com/mattjoyce/tokenforge/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "")
	os.Exit(m.Run())
}

func TestOpenAndList(t *testing.T) {
	m := NewManager(8)

	_, err := m.Open("settings", "Settings")
	require.NoError(t, err)
	info, err := m.Open("main", "Token Forge")
	require.NoError(t, err)
	assert.Equal(t, "main", info.Label)
	assert.Equal(t, "Token Forge", info.Title)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "main", list[0].Label)
	assert.Equal(t, "settings", list[1].Label)

	got, ok := m.Get("settings")
	assert.True(t, ok)
	assert.Equal(t, "Settings", got.Title)
}

func TestOpenRejectsDuplicatesAndEmptyLabels(t *testing.T) {
	m := NewManager(8)
	_, err := m.Open("main", "")
	require.NoError(t, err)

	_, err = m.Open("main", "again")
	assert.ErrorIs(t, err, ErrWindowExists)

	_, err = m.Open("", "")
	assert.ErrorIs(t, err, ErrInvalidLabel)
}

func TestCloseUnknownWindow(t *testing.T) {
	m := NewManager(8)
	assert.ErrorIs(t, m.Close("nope"), ErrWindowNotFound)
}

func TestEmitDeliversToSubscriber(t *testing.T) {
	m := NewManager(8)
	_, err := m.Open("main", "")
	require.NoError(t, err)

	ch, cancel, err := m.Subscribe("main")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, m.Handle("main").Emit("navigate", "/createToken"))

	select {
	case ev := <-ch:
		assert.Equal(t, "navigate", ev.Type)
		assert.JSONEq(t, `"/createToken"`, string(ev.Data))
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	snap, err := m.SnapshotSince("main", 0)
	require.NoError(t, err)
	require.Len(t, snap, 1)
}

func TestEmitToClosedWindowFails(t *testing.T) {
	m := NewManager(8)
	_, err := m.Open("main", "")
	require.NoError(t, err)

	h := m.Handle("main")
	require.NoError(t, m.Close("main"))

	err = h.Emit("navigate", "/createToken")
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.EmitFailed))
	assert.ErrorIs(t, err, ErrWindowClosed)
}

func TestEmitToUnopenedWindowFails(t *testing.T) {
	m := NewManager(8)
	err := m.Handle("ghost").Emit("navigate", "/x")
	assert.True(t, fault.Is(err, fault.EmitFailed))
	assert.Equal(t, "ghost", m.Handle("ghost").Label())
}

func TestEmitUnencodablePayloadFails(t *testing.T) {
	m := NewManager(8)
	_, err := m.Open("main", "")
	require.NoError(t, err)

	err = m.Handle("main").Emit("navigate", func() {})
	assert.True(t, fault.Is(err, fault.EmitFailed))

	err = m.Handle("main").Emit("", "x")
	assert.True(t, fault.Is(err, fault.EmitFailed))
}

func TestHandleDoesNotFollowReopenedLabel(t *testing.T) {
	m := NewManager(8)
	_, err := m.Open("main", "")
	require.NoError(t, err)
	h := m.Handle("main")

	require.NoError(t, m.Close("main"))
	_, err = m.Open("main", "")
	require.NoError(t, err)

	err = h.Emit("navigate", "/createToken")
	assert.True(t, fault.Is(err, fault.EmitFailed))
	assert.ErrorIs(t, err, ErrWindowClosed)

	snap, err := m.SnapshotSince("main", 0)
	require.NoError(t, err)
	assert.Empty(t, snap, "the reopened window must not receive the stale emit")

	assert.NoError(t, m.Handle("main").Emit("navigate", "/createToken"))
}

func TestHandleTakenBeforeOpenFails(t *testing.T) {
	m := NewManager(8)
	h := m.Handle("main")
	_, err := m.Open("main", "")
	require.NoError(t, err)

	assert.True(t, fault.Is(h.Emit("navigate", "/x"), fault.EmitFailed))
}

func TestCloseEndsSubscription(t *testing.T) {
	m := NewManager(8)
	_, err := m.Open("main", "")
	require.NoError(t, err)

	ch, cancel, err := m.Subscribe("main")
	require.NoError(t, err)
	defer cancel()

	m.CloseAll()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Empty(t, m.List())

	_, _, err = m.Subscribe("main")
	assert.ErrorIs(t, err, ErrWindowNotFound)
	_, err = m.SnapshotSince("main", 0)
	assert.ErrorIs(t, err, ErrWindowNotFound)
}
