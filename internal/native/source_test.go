package native

import (
	"context"
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/tokenforge/internal/fault"
)

func TestRoutineSourceHi(t *testing.T) {
	buf := []byte("hi\x00")
	calls := 0
	src := NewRoutineSource(func() unsafe.Pointer {
		calls++
		return unsafe.Pointer(&buf[0])
	}, 0)

	got, err := src.FetchText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
	assert.Equal(t, 1, calls)
}

func TestRoutineSourceNull(t *testing.T) {
	calls := 0
	src := NewRoutineSource(func() unsafe.Pointer {
		calls++
		return nil
	}, 0)

	_, err := src.FetchText(context.Background())
	require.Error(t, err)
	assert.Equal(t, fault.NativeCallFailed, fault.KindOf(err))
	assert.Equal(t, 1, calls, "the routine must not be retried")
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "jni"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown native backend")
}

func TestOpenWasmMissingFile(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: BackendWasm, WasmModule: "/nonexistent/hello.wasm"})
	require.Error(t, err)
}

func TestUnavailable(t *testing.T) {
	src := Unavailable(errors.New("cgo disabled"))
	_, err := src.FetchText(context.Background())
	require.Error(t, err)
	assert.Equal(t, fault.NativeCallFailed, fault.KindOf(err))
	assert.Contains(t, err.Error(), "cgo disabled")
	assert.NoError(t, src.Close(context.Background()))
}
