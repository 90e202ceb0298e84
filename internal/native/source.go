package native

import (
	"context"
	"fmt"
	"os"
	"unsafe"

	"github.com/mattjoyce/tokenforge/internal/fault"
)

// Backend names accepted by Open.
const (
	BackendCgo  = "cgo"
	BackendWasm = "wasm"
)

// DefaultExport is the routine name looked up in wasm modules.
const DefaultExport = "get_hello_world"

// Source yields the native text value.
type Source interface {
	FetchText(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// Routine is the raw calling contract: no arguments, a borrowed pointer to a
// NUL-terminated UTF-8 sequence or nil.
type Routine func() unsafe.Pointer

// RoutineSource adapts a Routine to Source.
type RoutineSource struct {
	routine Routine
	limit   int
}

// NewRoutineSource wraps r. limit bounds the terminator scan.
func NewRoutineSource(r Routine, limit int) *RoutineSource {
	return &RoutineSource{routine: r, limit: limit}
}

// NewExternalSource wraps the linked get_hello_world routine.
// It fails when the binary was built without cgo.
func NewExternalSource(limit int) (*RoutineSource, error) {
	if !cgoEnabled {
		return nil, fmt.Errorf("cgo backend unavailable: binary built with CGO_ENABLED=0")
	}
	return NewRoutineSource(externalRoutine, limit), nil
}

// FetchText calls the routine exactly once and copies its result.
func (s *RoutineSource) FetchText(ctx context.Context) (string, error) {
	return ReadCString(s.routine(), s.limit)
}

func (s *RoutineSource) Close(ctx context.Context) error { return nil }

// Options selects and configures a backend.
type Options struct {
	Backend      string
	WasmModule   string
	WasmExport   string
	MaxTextBytes int
}

// Open builds the configured Source.
func Open(ctx context.Context, opts Options) (Source, error) {
	switch opts.Backend {
	case "", BackendCgo:
		return NewExternalSource(opts.MaxTextBytes)
	case BackendWasm:
		bin, err := os.ReadFile(opts.WasmModule)
		if err != nil {
			return nil, fmt.Errorf("read wasm module: %w", err)
		}
		return NewWasmSource(ctx, bin, opts.WasmExport, opts.MaxTextBytes)
	default:
		return nil, fmt.Errorf("unknown native backend %q", opts.Backend)
	}
}

// Unavailable returns a Source whose every call fails with NativeCallFailed.
// The shell uses it when the configured backend cannot be opened, so the
// failure reaches the caller of the command instead of stopping the process.
func Unavailable(cause error) Source {
	return unavailable{cause: cause}
}

type unavailable struct{ cause error }

func (u unavailable) FetchText(ctx context.Context) (string, error) {
	return "", fault.New(fault.NativeCallFailed, "native backend", u.cause)
}

func (u unavailable) Close(ctx context.Context) error { return nil }
