// Package protocol defines the JSON envelopes exchanged between the web view
// and the host over POST /invoke/{command}.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/mattjoyce/tokenforge/internal/fault"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// InvokeRequest is the body of an invocation. Every field is optional.
type InvokeRequest struct {
	ID     string          `json:"id,omitempty"`
	Window string          `json:"window,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// InvokeResponse is the envelope returned for every invocation.
type InvokeResponse struct {
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Status  string          `json:"status"` // ok | error
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Kind    fault.Kind      `json:"kind,omitempty"`
	Offset  *int            `json:"offset,omitempty"` // only for encoding_error
}

// OK builds a success envelope. A nil result encodes as an absent field.
func OK(id, command string, result any) (*InvokeResponse, error) {
	resp := &InvokeResponse{ID: id, Command: command, Status: StatusOK}
	if result == nil {
		return resp, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s result: %w", command, err)
	}
	resp.Result = b
	return resp, nil
}

// Failure builds an error envelope from err.
func Failure(id, command string, err error) *InvokeResponse {
	resp := &InvokeResponse{
		ID:      id,
		Command: command,
		Status:  StatusError,
		Error:   err.Error(),
		Kind:    fault.KindOf(err),
	}
	if off, ok := fault.OffsetOf(err); ok {
		resp.Offset = &off
	}
	return resp
}

// Text decodes a text result.
func (r *InvokeResponse) Text() (string, error) {
	if r.Status != StatusOK {
		return "", r.Err()
	}
	var s string
	if err := json.Unmarshal(r.Result, &s); err != nil {
		return "", fmt.Errorf("result is not text: %w", err)
	}
	return s, nil
}

// Err reconstructs the classified error carried by an error envelope, or nil.
func (r *InvokeResponse) Err() error {
	if r.Status != StatusError {
		return nil
	}
	kind := r.Kind
	if kind == "" {
		kind = fault.Internal
	}
	offset := fault.NoOffset
	if r.Offset != nil {
		offset = *r.Offset
	}
	return &fault.Error{Kind: kind, Op: r.Command, Offset: offset, Err: remoteError(r.Error)}
}

type remoteError string

func (e remoteError) Error() string { return string(e) }
