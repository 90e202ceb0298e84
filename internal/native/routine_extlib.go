//go:build cgo && tokenforge_extlib

package native

/*
#cgo LDFLAGS: -lhello
const char *get_hello_world(void);
*/
import "C"

import "unsafe"

const cgoEnabled = true

func externalRoutine() unsafe.Pointer {
	return unsafe.Pointer(C.get_hello_world())
}
