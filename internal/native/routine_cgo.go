//go:build cgo && !tokenforge_extlib

package native

/*
static const char *get_hello_world(void) {
	return "Hello World from C";
}
*/
import "C"

import "unsafe"

const cgoEnabled = true

func externalRoutine() unsafe.Pointer {
	return unsafe.Pointer(C.get_hello_world())
}
