package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"dario.cat/mergo"
	"github.com/sirupsen/logrus"

	"github.com/wanjochan/cosmorun/internal/cerr"
)

// Driver drives an Engine through spec.md §4.5's eight steps. One Driver
// is shared by every compile in the process; the include-path set (step
// 3) is taken from the first Compile and reused for every later one, per
// spec.md §5 ("Include path cache: populated once, then read-only").
type Driver struct {
	log    *logrus.Entry
	engine Engine
	resolve SymbolResolver

	includeOnce sync.Once
	includePaths []string
}

// New returns a Driver wrapping engine. resolve backs Engine.DefineSymbols
// and is normally symbols.Provider.Resolve. Pass NewNullEngine() when no
// real compiler backend has been wired in yet.
func New(log *logrus.Entry, engine Engine, resolve SymbolResolver) *Driver {
	return &Driver{log: log, engine: engine, resolve: resolve}
}

// SetEngine replaces d's Engine, the extension point an embedder uses to
// plug in a real compiler/linker backend (e.g. a cgo binding to TinyCC)
// in place of the NullEngine default. Safe only before any concurrent
// Compile call begins; it does not itself synchronize against in-flight
// compiles.
func SetEngine(d *Driver, engine Engine) {
	d.engine = engine
}

// Compile runs the full pipeline for one source file.
func (d *Driver) Compile(ctx context.Context, path string, opts Options) (Image, error) {
	d.engine.SetOutputImage() // step 1

	merged, err := d.mergedOptions(opts) // step 2
	if err != nil {
		return Image{}, cerr.Wrap(err)
	}

	merged.IncludePaths = d.cachedIncludePaths(merged.IncludePaths) // step 3
	if err := d.engine.ApplyOptions(merged); err != nil {
		return Image{}, cerr.New(cerr.CompileFailed, "apply compiler options: %v", err)
	}

	d.engine.DefineSymbols(d.resolve) // step 4, built-in table
	for name, src := range intrinsicSnippets(runtime.GOOS, runtime.GOARCH) {
		if err := d.engine.CompileSnippet(ctx, name, src); err != nil {
			return Image{}, cerr.New(cerr.CompileFailed, "compile intrinsic %s: %v", name, err)
		}
	}

	for _, extra := range merged.ExtraSources { // step 5
		src, err := os.ReadFile(extra)
		if err != nil {
			return Image{}, cerr.New(cerr.CompileFailed, "read auxiliary source %s: %v", extra, err)
		}
		if err := d.engine.CompileSnippet(ctx, filepath.Base(extra), src); err != nil {
			return Image{}, cerr.New(cerr.CompileFailed, "compile auxiliary source %s: %v", extra, err)
		}
	}

	if err := d.engine.CompileFile(ctx, path); err != nil { // step 6
		return Image{}, cerr.New(cerr.CompileFailed, "compile %s: %v", path, err)
	}

	var object []byte
	if merged.PopulateCache { // step 7
		object, err = d.engine.Object()
		if err != nil {
			return Image{}, cerr.New(cerr.CacheWrite, "extract object form of %s: %v", path, err)
		}
	}

	img, err := d.engine.Relocate() // step 8
	if err != nil {
		return Image{}, cerr.New(cerr.RelocateFailed, "relocate %s: %v", path, err)
	}
	img.Object = object
	return img, nil
}

// LoadCached relocates data — a previously stored object-cache hit —
// without recompiling, per spec.md §4.7 step 7.
func (d *Driver) LoadCached(ctx context.Context, data []byte) (Image, error) {
	img, err := d.engine.LoadObject(ctx, data)
	if err != nil {
		return Image{}, cerr.New(cerr.RelocateFailed, "load cached object: %v", err)
	}
	return img, nil
}

// mergedOptions layers per-module overrides onto the host-default option
// set, mirroring how the teacher's config package layers UserConfig onto
// AppConfig defaults via mergo.
func (d *Driver) mergedOptions(override Options) (Options, error) {
	merged := defaultOptions(runtime.GOOS, runtime.GOARCH)
	if err := mergo.Merge(&merged, override, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
		return Options{}, fmt.Errorf("merge compiler options: %w", err)
	}
	return merged, nil
}

// cachedIncludePaths records the include paths passed on the first call
// and returns that same set on every call for the Driver's lifetime;
// paths passed on later calls are ignored. The paths are not checked
// against the filesystem.
func (d *Driver) cachedIncludePaths(extra []string) []string {
	d.includeOnce.Do(func() {
		d.includePaths = append([]string{}, extra...)
	})
	return d.includePaths
}

// defaultOptions synthesizes the per-OS/arch default option set (spec.md
// §4.5 step 2).
func defaultOptions(goos, goarch string) Options {
	return Options{
		Freestanding: true,
		Predefines: map[string]string{
			"__COSMORUN__":      "1",
			"__COSMORUN_OS__":   goos,
			"__COSMORUN_ARCH__": goarch,
		},
	}
}
