// Package symbols implements the symbol provider (C4): the built-in
// routine table, the cross-module export plane, and host-library symbol
// resolution, in the resolution order of spec.md §4.4.
//
// Grounded on the teacher's pkg/commands/socket_detection_common.go
// (sync.Once-cached detection result) and socket_detection_unix.go
// (ordered, platform-specific candidate list) — generalized from "find a
// Docker socket" to "find a host library defining a symbol".
package symbols

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wanjochan/cosmorun/internal/trampoline"
)

// NativeLoader is the opaque platform loader (dlopen/dlsym or
// LoadLibrary/GetProcAddress) that C4 wraps. Out of scope per spec.md §1;
// only the interface is specified.
type NativeLoader interface {
	// Open loads a shared library by name, returning an opaque handle.
	Open(name string) (uintptr, error)
	// Sym resolves a symbol by name within a loaded library handle.
	Sym(handle uintptr, name string) (uintptr, bool)
}

// Exporter is the cross-module export plane (spec.md §4.6): modules may
// publish symbols other modules can import by name.
type Exporter interface {
	// LookupExport returns the address of name if some loaded module has
	// exported it.
	LookupExport(name string) (uintptr, bool)
}

// Provider resolves a name to an address, walking built-ins, cross-module
// exports, then host libraries, in that order (spec.md §4.4).
type Provider struct {
	log    *logrus.Entry
	loader NativeLoader
	export Exporter
	table  *trampoline.Table

	builtins map[string]uintptr

	mu        sync.Mutex
	libsOnce  sync.Once
	libHandle []uintptr

	// bridgeKind and bridgeOpts let a host chooses which trampoline kind
	// (if any) wraps pointers returned from host libraries; the zero value
	// means "no wrapping needed" (host and compiled ABI already match).
	bridgeKind    trampoline.Kind
	bridgeOpts    trampoline.StubOptions
	needsBridging bool
}

// New returns a Provider seeded with the built-in table. loader may be nil
// if host-library resolution is not needed (e.g. in tests).
func New(log *logrus.Entry, loader NativeLoader, export Exporter, table *trampoline.Table) *Provider {
	return &Provider{
		log:      log,
		loader:   loader,
		export:   export,
		table:    table,
		builtins: defaultBuiltins(),
	}
}

// EnableBridging marks every pointer returned from a host library as
// needing to pass through the trampoline generator before exposure, per
// spec.md §4.4's "uniformly ABI-correct" requirement.
func (p *Provider) EnableBridging(kind trampoline.Kind, opts trampoline.StubOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.needsBridging = true
	p.bridgeKind = kind
	p.bridgeOpts = opts
}

// Resolve implements the four-step resolution order of spec.md §4.4.
func (p *Provider) Resolve(name string) (uintptr, bool) {
	p.mu.Lock()
	addr, ok := p.builtins[name]
	p.mu.Unlock()
	if ok {
		return addr, true
	}
	if p.export != nil {
		if addr, ok := p.export.LookupExport(name); ok {
			return addr, true
		}
	}
	if addr, ok := p.resolveFromHostLibraries(name); ok {
		return p.bridge(addr, name), true
	}
	return 0, false
}

func (p *Provider) resolveFromHostLibraries(name string) (uintptr, bool) {
	if p.loader == nil {
		return 0, false
	}
	for _, handle := range p.openLibraries() {
		if addr, ok := p.loader.Sym(handle, name); ok {
			return addr, true
		}
	}
	return 0, false
}

// openLibraries opens every candidate host library once, caching the
// resulting handles for the process's lifetime — the same
// detect-once-cache-forever shape as the teacher's dockerHostOnce.
func (p *Provider) openLibraries() []uintptr {
	p.libsOnce.Do(func() {
		for _, name := range hostLibraryCandidates() {
			handle, err := p.loader.Open(name)
			if err != nil {
				if p.log != nil {
					p.log.Debugf("symbols: host library %s unavailable: %v", name, err)
				}
				continue
			}
			p.libHandle = append(p.libHandle, handle)
		}
	})
	return p.libHandle
}

func (p *Provider) bridge(addr uintptr, name string) uintptr {
	p.mu.Lock()
	needs := p.needsBridging
	kind, opts := p.bridgeKind, p.bridgeOpts
	p.mu.Unlock()
	if !needs || p.table == nil {
		return addr
	}
	return p.table.GetOrCreate(kind, addr, name, opts)
}
