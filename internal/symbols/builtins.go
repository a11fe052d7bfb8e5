package symbols

import (
	"reflect"
	"time"
	"unsafe"
)

// builtinFuncs backs the built-in table (spec.md §4.4): a fixed shape
// (name → address). It holds string/memory routines (cosmo_strlen,
// cosmo_memcpy, cosmo_memset), math (cosmo_abs), platform-detection
// predicates (cosmo_is_arm, cosmo_is_64) and a clock (cosmo_nanotime). It
// has no I/O or threading routines, and the import/import_sym/import_free
// entry points are not part of it (see entryPointNames).
//
// Each entry's Go function must have a C-callable signature; its address
// is taken the same way purego's generated trampolines do (ABI0 function
// value pointer), not through cgo.
var builtinFuncs = map[string]interface{}{
	"cosmo_strlen":  builtinStrlen,
	"cosmo_memcpy":  builtinMemcpy,
	"cosmo_memset":  builtinMemset,
	"cosmo_abs":     builtinAbs,
	"cosmo_is_arm":  builtinIsARM,
	"cosmo_is_64":   builtinIs64,
	"cosmo_nanotime": builtinNanotime,
}

// entryPointNames are the names of the import/import_sym/import_free entry
// points. They are not in builtinFuncs: a name resolves only after a
// caller has added it with RegisterEntryPoint, and runtime.Runtime does
// not register them.
var entryPointNames = []string{"import", "import_sym", "import_free"}

func defaultBuiltins() map[string]uintptr {
	out := make(map[string]uintptr, len(builtinFuncs))
	for name, fn := range builtinFuncs {
		out[name] = funcAddress(fn)
	}
	return out
}

// RegisterEntryPoint adds name to the built-in table the compiler
// consults. fn is either a Go func value or a raw uintptr address; the
// import coordinator passes addresses to install cross-module exports
// before each compile.
func (p *Provider) RegisterEntryPoint(name string, fn interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.builtins[name] = funcAddress(fn)
}

// EntryPointNames reports the names of the import entry points that
// RegisterEntryPoint can publish.
func EntryPointNames() []string {
	return append([]string(nil), entryPointNames...)
}

func funcAddress(fn interface{}) uintptr {
	if addr, ok := fn.(uintptr); ok {
		return addr
	}
	return reflect.ValueOf(fn).Pointer()
}

func builtinStrlen(s unsafe.Pointer) uintptr {
	if s == nil {
		return 0
	}
	n := uintptr(0)
	for *(*byte)(unsafe.Add(s, n)) != 0 {
		n++
	}
	return n
}

func builtinMemcpy(dst, src unsafe.Pointer, n uintptr) unsafe.Pointer {
	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	copy(d, s)
	return dst
}

func builtinMemset(dst unsafe.Pointer, c int32, n uintptr) unsafe.Pointer {
	d := unsafe.Slice((*byte)(dst), n)
	b := byte(c)
	for i := range d {
		d[i] = b
	}
	return dst
}

func builtinAbs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

func builtinIsARM() int32 {
	if isARMHost {
		return 1
	}
	return 0
}

func builtinIs64() int32 {
	if is64BitHost {
		return 1
	}
	return 0
}

func builtinNanotime() int64 {
	return time.Now().UnixNano()
}
