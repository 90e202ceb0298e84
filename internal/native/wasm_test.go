package native

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/tokenforge/internal/fault"
)

const wasmPageSize = 65536

// guestModule assembles a minimal wasm binary with one page of exported
// memory, a data segment holding data at ptr, and an export returning ptr.
func guestModule(export string, ptr int32, data []byte) []byte {
	var out []byte
	out = append(out, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00)

	// type: () -> i32
	out = appendSection(out, 1, []byte{0x01, 0x60, 0x00, 0x01, 0x7f})
	// function 0 uses type 0
	out = appendSection(out, 3, []byte{0x01, 0x00})
	// memory 0: min 1 page
	out = appendSection(out, 5, []byte{0x01, 0x00, 0x01})

	var exports []byte
	exports = append(exports, 0x02)
	exports = appendName(exports, "memory")
	exports = append(exports, 0x02, 0x00)
	exports = appendName(exports, export)
	exports = append(exports, 0x00, 0x00)
	out = appendSection(out, 7, exports)

	var body []byte
	body = append(body, 0x00) // no locals
	body = append(body, 0x41)
	body = appendSLEB(body, int64(ptr))
	body = append(body, 0x0b)
	code := []byte{0x01}
	code = appendULEB(code, uint64(len(body)))
	code = append(code, body...)
	out = appendSection(out, 10, code)

	if len(data) > 0 {
		seg := []byte{0x01, 0x00, 0x41}
		seg = appendSLEB(seg, int64(ptr))
		seg = append(seg, 0x0b)
		seg = appendULEB(seg, uint64(len(data)))
		seg = append(seg, data...)
		out = appendSection(out, 11, seg)
	}
	return out
}

func appendSection(out []byte, id byte, content []byte) []byte {
	out = append(out, id)
	out = appendULEB(out, uint64(len(content)))
	return append(out, content...)
}

func appendName(out []byte, name string) []byte {
	out = appendULEB(out, uint64(len(name)))
	return append(out, name...)
}

func appendULEB(out []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func appendSLEB(out []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func newGuest(t *testing.T, ptr int32, data []byte, limit int) *WasmSource {
	t.Helper()
	ctx := context.Background()
	src, err := NewWasmSource(ctx, guestModule(DefaultExport, ptr, data), "", limit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close(ctx) })
	return src
}

func TestWasmSourceHi(t *testing.T) {
	src := newGuest(t, 1024, []byte("hi\x00"), 0)

	got, err := src.FetchText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestWasmSourceMultiByte(t *testing.T) {
	src := newGuest(t, 2048, []byte("mint ✓ 🚀\x00"), 0)

	got, err := src.FetchText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mint ✓ 🚀", got)
}

func TestWasmSourceNull(t *testing.T) {
	src := newGuest(t, 0, nil, 0)

	_, err := src.FetchText(context.Background())
	require.Error(t, err)
	assert.Equal(t, fault.NativeCallFailed, fault.KindOf(err))
	assert.ErrorIs(t, err, ErrNullPointer)
}

func TestWasmSourceInvalidUTF8(t *testing.T) {
	src := newGuest(t, 64, []byte{'o', 'k', 0xff, 'x', 0x00}, 0)

	got, err := src.FetchText(context.Background())
	require.Error(t, err)
	assert.Empty(t, got)
	assert.Equal(t, fault.EncodingError, fault.KindOf(err))

	off, ok := fault.OffsetOf(err)
	require.True(t, ok)
	assert.Equal(t, 2, off)
}

func TestWasmSourceOutOfBounds(t *testing.T) {
	src := newGuest(t, wasmPageSize+16, nil, 0)

	_, err := src.FetchText(context.Background())
	require.Error(t, err)
	assert.Equal(t, fault.NativeCallFailed, fault.KindOf(err))
	assert.Contains(t, err.Error(), "outside memory")
}

func TestWasmSourceUnterminatedAtEndOfMemory(t *testing.T) {
	src := newGuest(t, wasmPageSize-4, []byte("abcd"), 0)

	_, err := src.FetchText(context.Background())
	require.Error(t, err)
	assert.Equal(t, fault.NativeCallFailed, fault.KindOf(err))
	assert.ErrorIs(t, err, ErrUnterminated)
}

func TestWasmSourceScanLimit(t *testing.T) {
	src := newGuest(t, 128, []byte("0123456789\x00"), 4)

	_, err := src.FetchText(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnterminated)
}

func TestWasmSourceMissingExport(t *testing.T) {
	ctx := context.Background()
	_, err := NewWasmSource(ctx, guestModule("something_else", 8, []byte("x\x00")), DefaultExport, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing export")
}

func TestWasmSourceRejectsGarbage(t *testing.T) {
	_, err := NewWasmSource(context.Background(), []byte("not wasm"), "", 0)
	require.Error(t, err)
}

func TestWasmSourceConcurrentCalls(t *testing.T) {
	src := newGuest(t, 512, []byte("concurrent\x00"), 0)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := src.FetchText(context.Background())
			if err == nil && got != "concurrent" {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestOpenWasmFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.wasm")
	require.NoError(t, os.WriteFile(path, guestModule("hello", 256, []byte("from file\x00")), 0o644))

	ctx := context.Background()
	src, err := Open(ctx, Options{Backend: BackendWasm, WasmModule: path, WasmExport: "hello"})
	require.NoError(t, err)
	defer src.Close(ctx)

	got, err := src.FetchText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "from file", got)
}
