package trampoline

import "unsafe"

// funcval mirrors the runtime's internal representation of a Go func
// value: a pointer to a structure whose first word is the code address.
// Constructing one by hand and casting it to a func type is the same
// technique purego uses to call an arbitrary machine-code address without
// cgo (see other_examples' ebiten-purego fakecgo-gen.go, which does the
// equivalent for its call5 trampoline).
type funcval struct {
	fn uintptr
}

// Invoke0 calls the zero-argument, int32-returning function at addr — the
// shape of a module's init hook (spec.md §4.7 step 9) — and returns its
// result.
func Invoke0(addr uintptr) int32 {
	fv := &funcval{fn: addr}
	f := *(*func() int32)(unsafe.Pointer(&fv))
	return f()
}
