//go:build !cgo

package native

import "unsafe"

const cgoEnabled = false

func externalRoutine() unsafe.Pointer { return nil }
