// Package runtime implements the import coordinator (C7): the public
// front door that orchestrates path resolution, deduplicated compilation,
// dependency pre-loading, cross-module symbol export, and module
// lifecycle, per spec.md §4.7.
//
// Grounded on the teacher's pkg/app/app.go and pkg/tasks/tasks.go, which
// coordinate several subsystems (gui, config, command runner) behind one
// facade the rest of the program calls into — generalized here from
// "orchestrate a TUI frame" to "orchestrate one module import".
package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/wanjochan/cosmorun/internal/cerr"
	"github.com/wanjochan/cosmorun/internal/compiler"
	"github.com/wanjochan/cosmorun/internal/manifest"
	"github.com/wanjochan/cosmorun/internal/objcache"
	"github.com/wanjochan/cosmorun/internal/registry"
	"github.com/wanjochan/cosmorun/internal/resolver"
	"github.com/wanjochan/cosmorun/internal/symbols"
	"github.com/wanjochan/cosmorun/internal/trampoline"
)

// Handle is the opaque, refcounted module reference returned to callers.
type Handle struct {
	rec *registry.Record
}

// maxLoadingDepth is spec.md §4.7 step 6's "depth > 32 -> depth exceeded".
const maxLoadingDepth = 32

type loadingStackKey struct{}
type compileLockTokenKey struct{}

// Runtime wires C1-C6 together behind the Import/ImportSym/ImportFree/
// PrintCacheStats API of spec.md §6.
type Runtime struct {
	log *logrus.Entry

	resolve  *resolver.Resolver
	cache    *objcache.Cache
	reg      *registry.Registry
	driver   *compiler.Driver
	provider *symbols.Provider

	// compileLock is the non-recursive mutex backing the recursive
	// compile lock (Open Question O3): reentrancy on the same logical
	// call chain is detected via compileLockTokenKey in ctx instead of a
	// counter inside the mutex itself.
	compileLock deadlock.Mutex

	exportWhitelist []string
	staticDeps      map[string][]string
}

// Config bundles the collaborators a Runtime needs. All fields are
// required except Log (nil drops warnings), ExportWhitelist (nil exports
// nothing), and StaticDependencies, which backs spec.md §4.7 step 5's
// "hard-coded map as fallback" when a module carries no module.json.
type Config struct {
	Log             *logrus.Entry
	Resolver        *resolver.Resolver
	Cache           *objcache.Cache
	Registry        *registry.Registry
	Driver          *compiler.Driver
	Provider        *symbols.Provider
	ExportWhitelist []string
	StaticDependencies map[string][]string
}

func New(cfg Config) *Runtime {
	return &Runtime{
		log:             cfg.Log,
		resolve:         cfg.Resolver,
		cache:           cfg.Cache,
		reg:             cfg.Registry,
		driver:          cfg.Driver,
		provider:        cfg.Provider,
		exportWhitelist: cfg.ExportWhitelist,
		staticDeps:      cfg.StaticDependencies,
	}
}

// Import implements the eleven-step algorithm of spec.md §4.7.
func (rt *Runtime) Import(ctx context.Context, specifier string) (*Handle, error) {
	path := rt.resolve.Resolve(specifier) // step 1

	if rec, ok := rt.reg.Lookup(path); ok { // step 2, fast path
		return &Handle{rec: rec}, nil
	}

	return rt.importLocked(ctx, path)
}

// importLocked is the internal, already-locked variant spec.md §4.7 step 5
// calls for recursive dependency imports: it acquires the compile lock
// (or observes it is already held on this call chain) before doing
// anything else.
func (rt *Runtime) importLocked(ctx context.Context, path string) (*Handle, error) {
	if ctx.Value(compileLockTokenKey{}) == nil {
		rt.compileLock.Lock()
		defer rt.compileLock.Unlock()
		ctx = context.WithValue(ctx, compileLockTokenKey{}, true)
	}

	if rec, ok := rt.reg.Lookup(path); ok { // step 4, double-check
		return &Handle{rec: rec}, nil
	}

	// Step 6 (push the loading stack) must happen before step 5 (preload
	// dependencies): a dependency's own preload recurses back into
	// importLocked, and neither side of a cycle is ever registered before
	// that recursion bottoms out. Without path already on the stack here,
	// a manifest cycle (spec.md §3) recurses without bound instead of
	// surfacing as cerr.Circular.
	ctx, err := rt.pushLoadingStack(ctx, path)
	if err != nil {
		return nil, err
	}

	moduleDir := moduleDirFor(path)
	if err := rt.preloadDependencies(ctx, path, moduleDir); err != nil { // step 5
		return nil, err
	}

	if data, result, err := rt.cache.Lookup(path); err == nil && result == objcache.Hit { // step 7
		img, err := rt.driver.LoadCached(ctx, data)
		if err != nil {
			return nil, err
		}
		rec := rt.reg.Insert(path, newImageHandle(img), img.Symbols) // step 10
		return &Handle{rec: rec}, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, cerr.New(cerr.NotFound, "module %s: source and cache file both missing", path)
	}

	img, err := rt.compile(ctx, path) // step 8
	if err != nil {
		return nil, err
	}

	if err := rt.runInitHook(path, img); err != nil { // step 9
		return nil, cerr.New(cerr.InitFailed, "module %s: %v", path, err)
	}

	rec := rt.reg.Insert(path, newImageHandle(img), img.Symbols) // step 10
	return &Handle{rec: rec}, nil
	// step 11: loading stack pop is implicit — ctx's extended stack value
	// is never propagated back to the caller; compile lock release is the
	// deferred Unlock above (or a no-op if this call was itself nested).
}

// moduleDirFor derives the c_modules/<name>/ directory a module's manifest
// lives in (spec.md §6: "c_modules/<name>/module.json (optional)"), which
// is keyed by module name regardless of which of the resolver's three
// source forms actually matched. For package form ("c_modules/<name>/
// index.c"), the directory containing the source already is that
// directory. For flat form ("c_modules/<name>.c") and legacy-prefix form
// ("c_modules/mod_<name>.c"), the directory containing the source is the
// shared c_modules/ parent, not the per-module directory — so the name is
// taken from the file and joined onto that parent instead.
func moduleDirFor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	if name == "index" {
		return dir
	}

	name = strings.TrimPrefix(name, "mod_")
	return filepath.Join(dir, name)
}

// preloadDependencies implements spec.md §4.7 step 5: read the manifest
// (or fall back to the static dependency map), and recursively import
// each declared dependency using the already-locked variant. Any failure
// short-circuits to error; already-imported siblings are left registered
// (Open Question O1 — preserved as observed).
func (rt *Runtime) preloadDependencies(ctx context.Context, path, moduleDir string) error {
	if !strings.Contains(path, "c_modules") {
		return nil
	}

	deps, err := rt.dependenciesFor(moduleDir)
	if err != nil {
		rt.warnf("%v", cerr.New(cerr.ManifestParse, "module.json in %s: %v; dependency list treated as empty", moduleDir, err))
		return nil
	}

	for _, dep := range deps {
		if _, err := rt.importLocked(ctx, rt.resolve.Resolve(dep)); err != nil {
			// Circular and DepthExceeded are already the caller-facing kind
			// spec.md §7 names; wrapping them as DependencyFailed here would
			// bury the cycle a caller needs to branch on underneath a
			// generic kind, so those two propagate unwrapped.
			if cerr.Is(err, cerr.Circular) || cerr.Is(err, cerr.DepthExceeded) {
				return err
			}
			return cerr.New(cerr.DependencyFailed, "dependency %s of %s: %v", dep, path, err)
		}
	}
	return nil
}

func (rt *Runtime) dependenciesFor(moduleDir string) ([]string, error) {
	m, err := manifest.Load(moduleDir)
	if err != nil {
		if deps, ok := rt.staticDeps[moduleDir]; ok {
			return deps, nil
		}
		return nil, err
	}
	if len(m.Dependencies) == 0 {
		if deps, ok := rt.staticDeps[moduleDir]; ok {
			return deps, nil
		}
	}
	return m.Dependencies, nil
}

// pushLoadingStack implements spec.md §4.7 step 6. The stack is carried in
// ctx (Open Question O4) rather than real thread-local storage; the
// returned ctx must only be used for this call's own recursive work.
func (rt *Runtime) pushLoadingStack(ctx context.Context, path string) (context.Context, error) {
	stack, _ := ctx.Value(loadingStackKey{}).([]string)
	for _, p := range stack {
		if p == path {
			return ctx, cerr.New(cerr.Circular, "circular import: %s -> %s", strings.Join(stack, " -> "), path)
		}
	}
	if len(stack) >= maxLoadingDepth {
		return ctx, cerr.New(cerr.DepthExceeded, "loading depth exceeded %d at %s", maxLoadingDepth, path)
	}
	next := append(append([]string{}, stack...), path)
	return context.WithValue(ctx, loadingStackKey{}, next), nil
}

// compile performs spec.md §4.7 step 8, including the cross-module symbol
// export scan "between steps 5 and 6 in practice".
func (rt *Runtime) compile(ctx context.Context, path string) (compiler.Image, error) {
	exports := rt.reg.ExportSnapshot(rt.exportWhitelist)
	for name, addr := range exports {
		rt.provider.RegisterEntryPoint(name, addr)
	}

	moduleDir := moduleDirFor(path)
	var extraSources []string
	if m, err := manifest.Load(moduleDir); err == nil {
		extraSources = m.AssemblySources(moduleDir, objcache.ArchTag())
	}

	img, err := rt.driver.Compile(ctx, path, compiler.Options{
		PopulateCache: true,
		ExtraSources:  extraSources,
	})
	if err != nil {
		return compiler.Image{}, err
	}

	if err := rt.cache.Store(path, img.Object); err != nil {
		rt.warnf("caching %s: %v", path, err)
	}
	return img, nil
}

// runInitHook implements spec.md §4.7 step 9's hook-name lookup order.
func (rt *Runtime) runInitHook(path string, img compiler.Image) error {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := strings.TrimPrefix(base, "mod_")

	candidates := []string{
		"mod_" + name + "_init",
		name + "_init",
		"__init__",
		"__module_init__",
	}
	for _, hook := range candidates {
		if addr, ok := img.Symbols[hook]; ok {
			return callInitHook(addr)
		}
	}
	return nil // no hook present is not an error
}

// ImportSym implements spec.md §4.7's import_sym: a direct lookup in the
// image's symbol table with no refcount effect.
func (rt *Runtime) ImportSym(h *Handle, name string) (uintptr, bool) {
	if h == nil || h.rec == nil {
		return 0, false
	}
	addr, ok := h.rec.Symbols[name]
	return addr, ok
}

// ImportFree implements spec.md §4.7's import_free for a handle returned by
// Import: it releases the handle's refcount via the registry's protocol. A
// bare image that never went through Import is freed with ImportFreeImage
// instead.
func (rt *Runtime) ImportFree(h *Handle) {
	if h == nil || h.rec == nil {
		return
	}
	rt.reg.Release(h.rec)
}

// ImportFreeImage is the bypass path spec.md §4.7 calls out for a bare
// image handle that never went through Import (e.g. a host loaded an
// object file directly). It finds the owning record and releases it
// normally; if no record owns the image, it frees the image directly and
// warns (Open Question O2, preserved as observed).
func (rt *Runtime) ImportFreeImage(img registry.Image) {
	if rec, ok := rt.reg.FindByImage(img); ok {
		rt.reg.Release(rec)
		return
	}
	rt.warnf("import_free: handle not registered, freeing image directly")
	if err := img.Close(); err != nil {
		rt.warnf("import_free: closing unregistered image: %v", err)
	}
}

// PrintCacheStats implements the debug introspection hook of spec.md §6.
func (rt *Runtime) PrintCacheStats() string {
	s := rt.reg.Stats()
	return fmt.Sprintf(
		"modules=%d active=%d idle=%d hits=%d misses=%d evictions=%d",
		s.Count, s.ActiveCount, s.IdleCount, s.CacheHits, s.CacheMisses, s.Evictions,
	)
}

func (rt *Runtime) warnf(format string, args ...interface{}) {
	if rt.log != nil {
		rt.log.Warnf(format, args...)
	}
}

// moduleImage adapts a compiler.Image to registry.Image so the registry
// can own it without depending on the compiler package.
type moduleImage struct {
	img compiler.Image
}

func newImageHandle(img compiler.Image) *moduleImage { return &moduleImage{img: img} }

// Close is a no-op: the opaque compiler Engine owns the underlying
// executable mapping's lifetime, not this wrapper. Trampoline thunks
// referenced by the image's symbols persist for the process's lifetime
// regardless (spec.md §3).
func (m *moduleImage) Close() error { return nil }

// callInitHook invokes a module's init hook by address (spec.md §4.7 step
// 9's "() -> int" signature); non-zero aborts the import.
func callInitHook(addr uintptr) error {
	if trampoline.Invoke0(addr) != 0 {
		return fmt.Errorf("non-zero return")
	}
	return nil
}
