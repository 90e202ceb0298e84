// Package client talks to a running shell over its local HTTP transport.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/tokenforge/internal/command"
	"github.com/mattjoyce/tokenforge/internal/events"
	"github.com/mattjoyce/tokenforge/internal/protocol"
	"github.com/mattjoyce/tokenforge/internal/storage"
)

// Health mirrors the /healthz response.
type Health struct {
	Status            string `json:"status"`
	Version           string `json:"version,omitempty"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	CommandsLoaded    int    `json:"commands_loaded"`
	WindowsOpen       int    `json:"windows_open"`
	ConfigFingerprint string `json:"config_fingerprint,omitempty"`
}

// Client is a thin wrapper over the shell's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for baseURL, e.g. http://127.0.0.1:1430.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Invoke calls a command. Failures reported by the command come back as a
// response with Status "error"; err is only set for transport problems.
func (c *Client) Invoke(ctx context.Context, name string, req protocol.InvokeRequest) (*protocol.InvokeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/invoke/"+url.PathEscape(name), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("invoke %s: %s", name, readError(resp))
	}
	return protocol.DecodeResponse(resp.Body)
}

// Health fetches /healthz.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/healthz", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Commands lists the registered commands.
func (c *Client) Commands(ctx context.Context) ([]command.Descriptor, error) {
	var out struct {
		Commands []command.Descriptor `json:"commands"`
	}
	if err := c.getJSON(ctx, "/commands", &out); err != nil {
		return nil, err
	}
	return out.Commands, nil
}

// Invocations fetches up to limit recent journal entries, newest first.
// limit <= 0 uses the server default.
func (c *Client) Invocations(ctx context.Context, limit int) ([]storage.Entry, error) {
	path := "/invocations"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Invocations []storage.Entry `json:"invocations"`
	}
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Invocations, nil
}

// Stream follows a window's SSE stream, sending each event to ch until the
// stream ends or ctx is done. lastID resumes after an earlier event. It
// returns the ID of the last event delivered.
func (c *Client) Stream(ctx context.Context, label string, lastID int64, ch chan<- events.Event) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/windows/"+url.PathEscape(label)+"/events", nil)
	if err != nil {
		return lastID, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastID > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
	}

	// Streams outlive the client's request timeout.
	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return lastID, fmt.Errorf("connect to %s events: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return lastID, fmt.Errorf("connect to %s events: %s", label, readError(resp))
	}

	return readSSE(ctx, resp.Body, lastID, ch)
}

// readSSE parses SSE frames from r.
func readSSE(ctx context.Context, r io.Reader, lastID int64, ch chan<- events.Event) (int64, error) {
	scanner := bufio.NewScanner(r)
	var current struct {
		id   int64
		typ  string
		data string
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if current.data != "" {
				ev := events.Event{
					ID:   current.id,
					Type: current.typ,
					At:   time.Now().UTC(),
					Data: json.RawMessage(current.data),
				}
				select {
				case ch <- ev:
				case <-ctx.Done():
					return lastID, ctx.Err()
				}
				if ev.ID > lastID {
					lastID = ev.ID
				}
			}
			current.id, current.typ, current.data = 0, "", ""
			continue
		}

		switch {
		case strings.HasPrefix(line, "id: "):
			if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				current.id = id
			}
		case strings.HasPrefix(line, "event: "):
			current.typ = line[7:]
		case strings.HasPrefix(line, "data: "):
			current.data = line[6:]
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return lastID, fmt.Errorf("read event stream: %w", err)
	}
	return lastID, ctx.Err()
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, readError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func readError(resp *http.Response) string {
	var e struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return fmt.Sprintf("%s (%s)", e.Error, resp.Status)
	}
	return resp.Status
}
