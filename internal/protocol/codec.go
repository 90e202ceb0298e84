package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// EncodeResponse validates resp and writes it to w as JSON.
func EncodeResponse(w io.Writer, resp *InvokeResponse) error {
	if err := validate(resp); err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	if err := encoder.Encode(resp); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	return nil
}

// DecodeResponse reads and deserializes an InvokeResponse from r.
// Returns an error if reading or unmarshaling fails, or if the response is invalid.
func DecodeResponse(r io.Reader) (*InvokeResponse, error) {
	var resp InvokeResponse

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields() // Strict parsing

	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if err := validate(&resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// DecodeRequest reads an InvokeRequest from r. An empty body is a request
// with no arguments.
func DecodeRequest(r io.Reader) (*InvokeRequest, error) {
	var req InvokeRequest

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return &req, nil
		}
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}

	if len(req.Args) > 0 && req.Args[0] != '{' && string(req.Args) != "null" {
		return nil, fmt.Errorf("args must be a JSON object")
	}

	return &req, nil
}

func validate(resp *InvokeResponse) error {
	if resp.Status == "" {
		return fmt.Errorf("response missing required field: status")
	}

	if resp.Status != StatusOK && resp.Status != StatusError {
		return fmt.Errorf("invalid status value: %q (must be 'ok' or 'error')", resp.Status)
	}

	// If status is error, error message should be present
	if resp.Status == StatusError && resp.Error == "" {
		return fmt.Errorf("response has status=error but no error message")
	}

	if resp.Status == StatusOK && (resp.Error != "" || resp.Kind != "") {
		return fmt.Errorf("response has status=ok but carries an error")
	}

	return nil
}
