// Package trampoline implements the trampoline generator (C3): per-callee
// machine-code stubs that bridge calling conventions (the amd64 SysV→Win64
// ABI bridge) or marshal variadic arguments (the arm64 variadic thunk).
//
// No teacher file does this — lazydocker never generates machine code.
// The template-patching approach is grounded on other_examples/
// f3cc01a4_ebiten-purego__internal-fakecgo-gen.go (ABI call trampolines)
// and aa562f7d_Go-zh-go.old__src-cmd-internal-ld-pobj.go (patching
// immediate operands into a fixed code template).
package trampoline

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/boz/go-throttle"
	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"
)

// Kind selects which stub family to emit.
type Kind int

const (
	// ABIBridge is the x86-64 SysV→Win64 call bridge.
	ABIBridge Kind = iota
	// Variadic is the AArch64 variadic-argument thunk.
	Variadic
)

// Entry is a (original_address, thunk_address) pair, plus a name used only
// for diagnostics. Entries live for the process's lifetime (spec.md §3).
type Entry struct {
	Original uintptr
	Thunk    uintptr
	Name     string
}

// maxEntries bounds the process-wide thunk table (spec.md §4.3: "<256
// entries"). Beyond this, GetOrCreate degrades to the raw pointer.
const maxEntries = 256

// Table is a process-wide, bounded, deduplicated trampoline table. Lookups
// are linear — the spec explicitly calls this acceptable for a table this
// small.
type Table struct {
	mu      deadlock.Mutex
	entries []Entry
	log     *logrus.Entry

	warnMu      sync.Mutex
	pendingWarn string
	warnThrottle throttle.ThrottleDriver
}

// New returns an empty Table. log may be nil, in which case warnings are
// dropped.
func New(log *logrus.Entry) *Table {
	t := &Table{log: log}
	// Throttle repeated "falling back to raw pointer" warnings to at most
	// one per second, the same debounce role go-throttle plays in the
	// teacher's log-streaming path.
	t.warnThrottle = throttle.ThrottleFunc(time.Second, false, func() {
		t.warnMu.Lock()
		msg := t.pendingWarn
		t.warnMu.Unlock()
		if msg != "" && t.log != nil {
			t.log.Warn(msg)
		}
	})
	return t
}

// Lookup returns the thunk already generated for original, if any.
func (t *Table) Lookup(original uintptr) (uintptr, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.Original == original {
			return e.Thunk, true
		}
	}
	return 0, false
}

// GetOrCreate returns a thunk for original, generating one of the
// requested kind if none exists yet. On any failure — table full,
// allocation failure, permission-change failure — it logs a warning and
// returns original unchanged, per spec.md §4.3's degrade-don't-fail
// policy.
func (t *Table) GetOrCreate(kind Kind, original uintptr, name string, opts StubOptions) uintptr {
	if thunk, ok := t.Lookup(original); ok {
		return thunk
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-check under the lock: another goroutine may have raced us.
	for _, e := range t.entries {
		if e.Original == original {
			return e.Thunk
		}
	}

	if len(t.entries) >= maxEntries {
		t.logWarn("trampoline table full (%d entries), returning raw pointer for %s", maxEntries, name)
		return original
	}

	code, err := buildStub(kind, original, opts)
	if err != nil {
		t.logWarn("building %v stub for %s failed: %v, returning raw pointer", kind, name, err)
		return original
	}

	thunk, err := publish(code)
	if err != nil {
		t.logWarn("publishing executable stub for %s failed: %v, returning raw pointer", name, err)
		return original
	}

	t.entries = append(t.entries, Entry{Original: original, Thunk: thunk, Name: name})
	return thunk
}

func (t *Table) logWarn(format string, args ...interface{}) {
	if t.log == nil {
		return
	}
	t.warnMu.Lock()
	t.pendingWarn = fmt.Sprintf(format, args...)
	t.warnMu.Unlock()
	t.warnThrottle.Trigger()
}

// StubOptions carries the per-callee parameters a stub template is patched
// with.
type StubOptions struct {
	// Bridge is the platform-provided bridge routine address (ABIBridge
	// stubs only).
	Bridge uintptr
	// FixedArity is the number of non-variadic arguments before the
	// variadic tail (Variadic stubs only); must be in {1,2,3}.
	FixedArity int
	// VariantCallee is the address of the `v`-prefixed variant of the
	// target (e.g. vprintf for printf) that the variadic thunk tail-calls.
	VariantCallee uintptr
}

func buildStub(kind Kind, original uintptr, opts StubOptions) ([]byte, error) {
	switch kind {
	case ABIBridge:
		return buildABIBridgeStub(original, opts.Bridge)
	case Variadic:
		return buildVariadicThunk(opts.VariantCallee, opts.FixedArity)
	default:
		return nil, fmt.Errorf("unknown trampoline kind %d", kind)
	}
}

func (k Kind) String() string {
	switch k {
	case ABIBridge:
		return "abi-bridge"
	case Variadic:
		return "variadic"
	default:
		return "unknown"
	}
}

var publishMu sync.Mutex

// publish copies code into a freshly allocated executable page and
// returns its address. Implemented per-OS in alloc_*.go using a W^X flip:
// allocate RW, write, flip to RX (spec.md §9). No instruction-cache flush
// is performed on any platform.
func publish(code []byte) (uintptr, error) {
	publishMu.Lock()
	defer publishMu.Unlock()
	return allocExecutable(code)
}

// bytesAt returns a pointer to b[off]; the POSIX allocators use it to take
// the address of a freshly mapped region.
func bytesAt(b []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&b[off])
}
