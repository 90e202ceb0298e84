package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/tokenforge/internal/api"
	"github.com/mattjoyce/tokenforge/internal/command"
	"github.com/mattjoyce/tokenforge/internal/commands"
	"github.com/mattjoyce/tokenforge/internal/events"
	"github.com/mattjoyce/tokenforge/internal/fault"
	"github.com/mattjoyce/tokenforge/internal/log"
	"github.com/mattjoyce/tokenforge/internal/protocol"
	"github.com/mattjoyce/tokenforge/internal/storage"
	"github.com/mattjoyce/tokenforge/internal/window"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "")
	os.Exit(m.Run())
}

type staticText string

func (s staticText) FetchText(context.Context) (string, error) { return string(s), nil }

func newShell(t *testing.T, token string) (*httptest.Server, *window.Manager) {
	t.Helper()

	b := command.NewBuilder()
	require.NoError(t, commands.Register(b, staticText("Hello World from C")))

	windows := window.NewManager(16)
	_, err := windows.Open("main", "Token Forge")
	require.NoError(t, err)

	s := api.New(api.Config{AuthToken: token}, b.Build(), windows, nil, log.WithComponent("api"))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		windows.CloseAll()
		srv.Close()
	})
	return srv, windows
}

func TestInvokeRoundTrip(t *testing.T) {
	srv, _ := newShell(t, "secret")
	c := New(srv.URL+"/", "secret")

	resp, err := c.Invoke(context.Background(), commands.HelloWorld, protocol.InvokeRequest{ID: "x"})
	require.NoError(t, err)
	text, err := resp.Text()
	require.NoError(t, err)
	assert.Equal(t, "Hello World from C", text)
	assert.Equal(t, "x", resp.ID)

	resp, err = c.Invoke(context.Background(), "nope", protocol.InvokeRequest{})
	require.NoError(t, err)
	assert.True(t, fault.Is(resp.Err(), fault.UnknownCommand))
}

func TestInvokeUnauthorized(t *testing.T) {
	srv, _ := newShell(t, "secret")
	c := New(srv.URL, "wrong")

	_, err := c.Invoke(context.Background(), commands.HelloWorld, protocol.InvokeRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API key")
}

func TestHealthAndCommands(t *testing.T) {
	srv, _ := newShell(t, "")
	c := New(srv.URL, "")

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 2, h.CommandsLoaded)

	cmds, err := c.Commands(context.Background())
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, commands.HelloWorld, cmds[0].Name)
}

func TestStreamDeliversNavigate(t *testing.T) {
	srv, windows := newShell(t, "")
	c := New(srv.URL, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan events.Event, 4)
	done := make(chan int64, 1)
	go func() {
		last, _ := c.Stream(ctx, "main", 0, ch)
		done <- last
	}()

	resp, err := c.Invoke(context.Background(), commands.NavigateToCreateToken, protocol.InvokeRequest{Window: "main"})
	require.NoError(t, err)
	require.NoError(t, resp.Err())

	select {
	case ev := <-ch:
		assert.Equal(t, commands.NavigateEvent, ev.Type)
		assert.Equal(t, `"/createToken"`, string(ev.Data))
		assert.Equal(t, int64(1), ev.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
	}

	require.NoError(t, windows.Close("main"))
	select {
	case last := <-done:
		assert.Equal(t, int64(1), last)
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not end when the window closed")
	}
}

func TestStreamUnknownWindow(t *testing.T) {
	srv, _ := newShell(t, "")
	c := New(srv.URL, "")

	_, err := c.Stream(context.Background(), "ghost", 0, make(chan events.Event))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestReadSSE(t *testing.T) {
	input := strings.Join([]string{
		": keep-alive",
		"",
		"id: 7",
		"event: navigate",
		`data: "/createToken"`,
		"",
		"id: 8",
		"event: ping",
		"data: null",
		"",
		"",
	}, "\n")

	ch := make(chan events.Event, 4)
	last, err := readSSE(context.Background(), strings.NewReader(input), 0, ch)
	require.NoError(t, err)
	assert.Equal(t, int64(8), last)
	require.Len(t, ch, 2)

	first := <-ch
	assert.Equal(t, int64(7), first.ID)
	assert.Equal(t, "navigate", first.Type)
	assert.Equal(t, `"/createToken"`, string(first.Data))
}

func TestReadSSEDropsOpenFrameAtEOF(t *testing.T) {
	input := "id: 9\nevent: navigate\ndata: \"/createToken\"\n"

	ch := make(chan events.Event, 1)
	last, err := readSSE(context.Background(), strings.NewReader(input), 3, ch)
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)
	assert.Empty(t, ch)
}

func TestReadErrorFallsBackToStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.WriteHeader(http.StatusBadGateway)
	assert.Equal(t, "502 Bad Gateway", readError(rr.Result()))
}

func TestInvocations(t *testing.T) {
	srv, _ := newShell(t, "")
	_, err := New(srv.URL, "").Invocations(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal is disabled")

	journal, err := storage.OpenJournal(context.Background(), 10)
	require.NoError(t, err)
	defer journal.Close()

	b := command.NewBuilder()
	require.NoError(t, commands.Register(b, staticText("Hi")))
	windows := window.NewManager(16)
	_, err = windows.Open("main", "Token Forge")
	require.NoError(t, err)
	defer windows.CloseAll()

	js := httptest.NewServer(api.New(api.Config{}, b.Build(), windows, journal, log.WithComponent("api")).Handler())
	defer js.Close()

	c := New(js.URL, "")
	_, err = c.Invoke(context.Background(), commands.HelloWorld, protocol.InvokeRequest{})
	require.NoError(t, err)
	_, err = c.Invoke(context.Background(), "nope", protocol.InvokeRequest{})
	require.NoError(t, err)

	entries, err := c.Invocations(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "nope", entries[0].Command)
	assert.Equal(t, string(fault.UnknownCommand), entries[0].ErrorKind)
	assert.Equal(t, commands.HelloWorld, entries[1].Command)

	entries, err = c.Invocations(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
