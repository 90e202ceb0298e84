package native

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/mattjoyce/tokenforge/internal/fault"
)

// wasmModuleName is the instance name given to the guest module.
const wasmModuleName = "native"

// WasmSource calls a text routine exported by a WebAssembly module.
//
// The export must have the signature () -> i32. The returned value is a
// pointer into the module's exported memory; 0 means absence of data.
type WasmSource struct {
	// A guest instance is single-threaded; calls are serialized.
	mu sync.Mutex

	runtime wazero.Runtime
	mod     api.Module
	fn      api.Function
	export  string
	limit   int
}

// NewWasmSource compiles and instantiates bin in a fresh runtime.
// Call Close to release it.
func NewWasmSource(ctx context.Context, bin []byte, export string, limit int) (*WasmSource, error) {
	if export == "" {
		export = DefaultExport
	}
	if limit <= 0 {
		limit = DefaultMaxTextBytes
	}

	r := wazero.NewRuntime(ctx)

	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(wasmModuleName))
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate wasm module: %w", err)
	}

	fn := mod.ExportedFunction(export)
	if fn == nil {
		_ = r.Close(ctx)
		return nil, errors.New("missing export: " + export)
	}
	def := fn.Definition()
	if len(def.ParamTypes()) != 0 || len(def.ResultTypes()) != 1 || def.ResultTypes()[0] != api.ValueTypeI32 {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("export %s must have signature () -> i32", export)
	}
	if mod.Memory() == nil {
		_ = r.Close(ctx)
		return nil, errors.New("wasm module exports no memory")
	}

	return &WasmSource{
		runtime: r,
		mod:     mod,
		fn:      fn,
		export:  export,
		limit:   limit,
	}, nil
}

// FetchText calls the export once and copies the string it points to.
func (s *WasmSource) FetchText(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.fn.Call(ctx)
	if err != nil {
		return "", fault.New(fault.NativeCallFailed, s.export, err)
	}

	ptr := uint32(results[0])
	if ptr == 0 {
		return "", fault.New(fault.NativeCallFailed, s.export, ErrNullPointer)
	}
	return readGuestCString(s.mod.Memory(), ptr, s.limit)
}

// Close releases the runtime and the module instance.
func (s *WasmSource) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}

// readGuestCString copies a NUL-terminated string out of guest memory.
// The view returned by mem.Read aliases guest memory and does not escape.
func readGuestCString(mem api.Memory, ptr uint32, limit int) (string, error) {
	size := mem.Size()
	if ptr >= size {
		return "", fault.Newf(fault.NativeCallFailed, opRead, "pointer %#x outside memory of %d bytes", ptr, size)
	}

	avail := size - ptr
	if uint64(avail) > uint64(limit) {
		avail = uint32(limit)
	}
	view, ok := mem.Read(ptr, avail)
	if !ok {
		return "", fault.Newf(fault.NativeCallFailed, opRead, "read %d bytes at %#x", avail, ptr)
	}

	n := bytes.IndexByte(view, 0)
	if n < 0 {
		return "", fault.Newf(fault.NativeCallFailed, opRead, "%w (%d bytes)", ErrUnterminated, avail)
	}
	return decodeText(view[:n])
}
