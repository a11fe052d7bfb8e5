// Package cosmorun is the module's public entry point: a thin, process-
// wide convenience wrapper around internal/runtime's import coordinator,
// so an embedder can call cosmorun.Import without assembling C1-C7
// themselves. Anything needing direct control over the collaborators
// (a custom compiler.Engine, a non-default config) should construct
// internal/runtime.Runtime directly instead.
package cosmorun

import (
	"context"
	"sync"

	"github.com/wanjochan/cosmorun/internal/compiler"
	"github.com/wanjochan/cosmorun/internal/objcache"
	"github.com/wanjochan/cosmorun/internal/registry"
	"github.com/wanjochan/cosmorun/internal/resolver"
	"github.com/wanjochan/cosmorun/internal/runtime"
	"github.com/wanjochan/cosmorun/internal/symbols"
	"github.com/wanjochan/cosmorun/internal/trampoline"
	"github.com/wanjochan/cosmorun/pkg/config"
	cosmolog "github.com/wanjochan/cosmorun/pkg/log"
)

// Handle is the opaque, refcounted module reference returned by Import.
type Handle = runtime.Handle

var (
	defaultOnce sync.Once
	defaultRt   *runtime.Runtime
	defaultErr  error
)

// Default lazily builds the process-wide Runtime used by the package-level
// Import/ImportSym/ImportFree/PrintCacheStats functions, rooted at the
// current working directory with the default configuration. Like New, it
// uses the null compiler engine and null native loader this module ships
// (spec.md §1: both are opaque, out-of-scope collaborators), so any Import
// that needs a compile or a cached-object load fails.
func Default() (*runtime.Runtime, error) {
	defaultOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			defaultErr = err
			return
		}
		defaultRt = New(cfg, ".")
	})
	return defaultRt, defaultErr
}

// New builds an independent Runtime rooted at dir, for an embedder that
// wants its own instance instead of the process-wide default.
func New(cfg *config.Config, dir string) *runtime.Runtime {
	logger := cosmolog.NewLogger(cfg)
	table := trampoline.New(logger)
	provider := symbols.New(logger, symbols.NullLoader{}, nil, table)
	driver := compiler.New(logger, compiler.NewNullEngine(), provider.Resolve)

	return runtime.New(runtime.Config{
		Log:             logger,
		Resolver:        resolver.New(dir),
		Cache:           objcache.New(cfg.IncludePaths),
		Registry:        registry.New(cfg.MaxIdle),
		Driver:          driver,
		Provider:        provider,
		ExportWhitelist: cfg.ExportWhitelist,
	})
}

// Import resolves specifier, compiling and registering it if this is the
// first request for its canonical path, and returns a refcounted handle.
func Import(ctx context.Context, specifier string) (*Handle, error) {
	rt, err := Default()
	if err != nil {
		return nil, err
	}
	return rt.Import(ctx, specifier)
}

// ImportSym looks up name in h's symbol table without affecting its
// refcount.
func ImportSym(h *Handle, name string) (uintptr, bool) {
	rt, err := Default()
	if err != nil {
		return 0, false
	}
	return rt.ImportSym(h, name)
}

// ImportFree releases h's refcount, making its module eligible for
// eviction once idle.
func ImportFree(h *Handle) {
	rt, err := Default()
	if err != nil {
		return
	}
	rt.ImportFree(h)
}

// PrintCacheStats renders the process-wide registry's current counters.
func PrintCacheStats() string {
	rt, err := Default()
	if err != nil {
		return err.Error()
	}
	return rt.PrintCacheStats()
}
