package events

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/tokenforge/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "")
	os.Exit(m.Run())
}

func TestPublishEncodesPayload(t *testing.T) {
	h := NewHub(4)

	ev, err := h.Publish("navigate", "/createToken")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.ID)
	assert.Equal(t, "navigate", ev.Type)
	assert.JSONEq(t, `"/createToken"`, string(ev.Data))
	assert.False(t, ev.At.IsZero())

	ev, err = h.Publish("ping", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ev.ID)
	assert.Equal(t, "null", string(ev.Data))
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	h := NewHub(4)

	_, err := h.Publish("bad", make(chan int))
	require.Error(t, err)
	assert.Empty(t, h.SnapshotSince(0), "failed publishes must not be buffered")
}

func TestSubscribeReceivesInOrder(t *testing.T) {
	h := NewHub(8)
	ch, cancel := h.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		_, err := h.Publish("tick", i)
		require.NoError(t, err)
	}

	for want := int64(1); want <= 5; want++ {
		select {
		case ev := <-ch:
			assert.Equal(t, want, ev.ID)
			var n int
			require.NoError(t, json.Unmarshal(ev.Data, &n))
			assert.Equal(t, int(want-1), n)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", want)
		}
	}
}

func TestSnapshotSinceRingBuffer(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 5; i++ {
		_, err := h.Publish("tick", i)
		require.NoError(t, err)
	}

	all := h.SnapshotSince(0)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{all[0].ID, all[1].ID, all[2].ID})

	since := h.SnapshotSince(4)
	require.Len(t, since, 1)
	assert.Equal(t, int64(5), since[0].ID)
}

func TestCancelClosesChannel(t *testing.T) {
	h := NewHub(2)
	ch, cancel := h.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	h := NewHub(2)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Close()
	h.Close()
	assert.True(t, h.Closed())

	_, ok := <-ch
	assert.False(t, ok)

	_, err := h.Publish("late", 1)
	assert.ErrorIs(t, err, ErrClosed)

	late, lateCancel := h.Subscribe()
	defer lateCancel()
	_, ok = <-late
	assert.False(t, ok)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(4)
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			_, _ = h.Publish("flood", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestDroppedEventIsLogged(t *testing.T) {
	var buf bytes.Buffer
	h := NewHub(4)
	h.logger = slog.New(slog.NewJSONHandler(&buf, nil))

	ch, cancel := h.Subscribe()
	defer cancel()

	for i := 0; i < cap(ch); i++ {
		_, err := h.Publish("flood", i)
		require.NoError(t, err)
	}
	assert.Empty(t, buf.String())

	ev, err := h.Publish("flood", "overflow")
	require.NoError(t, err)
	assert.Len(t, ch, cap(ch))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "subscriber buffer full, event dropped", line["msg"])
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, float64(0), line["subscriber"])
	assert.Equal(t, float64(ev.ID), line["event_id"])
	assert.Equal(t, "flood", line["event"])
}
