// Package native bridges the shell to the externally linked text routine.
//
// The routine hands back a borrowed pointer to a NUL-terminated UTF-8
// sequence, or null. The pointer is only valid for the duration of the call
// that produced it, so every backend copies the bytes into a Go string inside
// a single scoped read and never keeps the pointer.
//
// Two backends implement Source:
//
//   - RoutineSource wraps a C routine reached through cgo. By default an
//     in-tree C definition of get_hello_world is compiled; building with the
//     tokenforge_extlib tag links the external library (-lhello) instead.
//   - WasmSource runs a WebAssembly module under wazero and reads the
//     returned i32 pointer out of the guest's linear memory.
package native
