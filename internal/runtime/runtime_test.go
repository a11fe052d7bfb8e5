package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wanjochan/cosmorun/internal/cerr"
	"github.com/wanjochan/cosmorun/internal/compiler"
	"github.com/wanjochan/cosmorun/internal/objcache"
	"github.com/wanjochan/cosmorun/internal/registry"
	"github.com/wanjochan/cosmorun/internal/resolver"
	"github.com/wanjochan/cosmorun/internal/symbols"
)

type fakeEngine struct {
	compileCalls int
	failCompile  bool
	symbols      map[string]uintptr
}

func (f *fakeEngine) SetOutputImage()                                {}
func (f *fakeEngine) ApplyOptions(opts compiler.Options) error       { return nil }
func (f *fakeEngine) DefineSymbols(resolve compiler.SymbolResolver)  {}
func (f *fakeEngine) CompileSnippet(ctx context.Context, name string, source []byte) error {
	return nil
}

func (f *fakeEngine) CompileFile(ctx context.Context, path string) error {
	f.compileCalls++
	if f.failCompile {
		return assertErr("boom")
	}
	if _, err := os.Stat(path); err != nil {
		return assertErr("source not found: " + path)
	}
	return nil
}

func (f *fakeEngine) Object() ([]byte, error) { return []byte("OBJDATA"), nil }

func (f *fakeEngine) Relocate() (compiler.Image, error) {
	return compiler.Image{EntryPoint: 0x1000, Symbols: f.symbols}, nil
}

func (f *fakeEngine) LoadObject(ctx context.Context, object []byte) (compiler.Image, error) {
	return compiler.Image{EntryPoint: 0x2000, Object: object, Symbols: f.symbols}, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func newTestRuntime(t *testing.T, eng *fakeEngine) (*Runtime, string) {
	t.Helper()
	dir := t.TempDir()
	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "c_modules"), 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "c_modules", "foo.c"), []byte("void foo() {}"), 0o644))

	provider := symbols.New(nil, nil, nil, nil)
	driver := compiler.New(nil, eng, provider.Resolve)

	rt := New(Config{
		Resolver:        resolver.New(dir),
		Cache:           objcache.New([]string{dir}),
		Registry:        registry.New(4),
		Driver:          driver,
		Provider:        provider,
		ExportWhitelist: []string{"shared_fn"},
	})
	return rt, dir
}

func TestImportCompilesNewModule(t *testing.T) {
	eng := &fakeEngine{symbols: map[string]uintptr{}}
	rt, _ := newTestRuntime(t, eng)

	h, err := rt.Import(context.Background(), "foo")
	assert.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, 1, eng.compileCalls)
}

func TestImportFastPathOnSecondCall(t *testing.T) {
	eng := &fakeEngine{symbols: map[string]uintptr{}}
	rt, _ := newTestRuntime(t, eng)

	h1, err := rt.Import(context.Background(), "foo")
	assert.NoError(t, err)
	h2, err := rt.Import(context.Background(), "foo")
	assert.NoError(t, err)

	assert.Same(t, h1.rec, h2.rec)
	assert.Equal(t, 1, eng.compileCalls, "a registered module must not be recompiled")
}

func TestImportUsesObjectCacheOnSecondProcess(t *testing.T) {
	eng := &fakeEngine{symbols: map[string]uintptr{}}
	rt, dir := newTestRuntime(t, eng)

	_, err := rt.Import(context.Background(), "foo")
	assert.NoError(t, err)

	// Simulate a fresh process: new registry, same disk cache.
	provider := symbols.New(nil, nil, nil, nil)
	driver := compiler.New(nil, eng, provider.Resolve)
	rt2 := New(Config{
		Resolver: resolver.New(dir),
		Cache:    objcache.New([]string{dir}),
		Registry: registry.New(4),
		Driver:   driver,
		Provider: provider,
	})

	_, err = rt2.Import(context.Background(), "foo")
	assert.NoError(t, err)
	assert.Equal(t, 1, eng.compileCalls, "a fresh process must hit the object cache, not recompile")
}

func TestImportUnknownSpecifierFails(t *testing.T) {
	eng := &fakeEngine{}
	rt, _ := newTestRuntime(t, eng)

	_, err := rt.Import(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestImportSymReturnsModuleSymbol(t *testing.T) {
	eng := &fakeEngine{symbols: map[string]uintptr{"foo_fn": 0xabc}}
	rt, _ := newTestRuntime(t, eng)

	h, err := rt.Import(context.Background(), "foo")
	assert.NoError(t, err)

	addr, ok := rt.ImportSym(h, "foo_fn")
	assert.True(t, ok)
	assert.Equal(t, uintptr(0xabc), addr)

	_, ok = rt.ImportSym(h, "missing")
	assert.False(t, ok)
}

func TestImportFreeReleasesRefcount(t *testing.T) {
	eng := &fakeEngine{symbols: map[string]uintptr{}}
	rt, _ := newTestRuntime(t, eng)

	h, err := rt.Import(context.Background(), "foo")
	assert.NoError(t, err)

	rt.ImportFree(h)
	assert.Equal(t, registry.Idle, h.rec.State())
}

func TestPreloadDependenciesFromManifest(t *testing.T) {
	eng := &fakeEngine{symbols: map[string]uintptr{}}
	rt, dir := newTestRuntime(t, eng)

	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "c_modules", "bar"), 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "c_modules", "bar", "index.c"), []byte("void bar() {}"), 0o644))
	assert.NoError(t, os.WriteFile(
		filepath.Join(dir, "c_modules", "bar", "module.json"),
		[]byte(`{"dependencies": ["foo"]}`),
		0o644,
	))

	h, err := rt.Import(context.Background(), "bar")
	assert.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, 2, eng.compileCalls, "both bar and its dependency foo must compile")

	_, ok := rt.reg.Lookup(filepath.Join(dir, "c_modules", "foo.c"))
	assert.True(t, ok, "the preloaded dependency must be registered")
}

func TestPreloadDependenciesFromFlatFormManifest(t *testing.T) {
	eng := &fakeEngine{symbols: map[string]uintptr{}}
	rt, dir := newTestRuntime(t, eng)

	// lib.c is flat form: its manifest lives at c_modules/lib/module.json,
	// not alongside the source file itself.
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "c_modules", "lib.c"), []byte("void lib() {}"), 0o644))
	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "c_modules", "lib"), 0o755))
	assert.NoError(t, os.WriteFile(
		filepath.Join(dir, "c_modules", "lib", "module.json"),
		[]byte(`{"dependencies": ["foo"]}`),
		0o644,
	))

	h, err := rt.Import(context.Background(), "lib")
	assert.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, 2, eng.compileCalls, "both lib and its flat-form manifest dependency foo must compile")

	_, ok := rt.reg.Lookup(filepath.Join(dir, "c_modules", "foo.c"))
	assert.True(t, ok, "the preloaded dependency must be registered")
}

func TestImportCircularDependencyFails(t *testing.T) {
	eng := &fakeEngine{symbols: map[string]uintptr{}}
	rt, dir := newTestRuntime(t, eng)

	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "c_modules", "a"), 0o755))
	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "c_modules", "b"), 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "c_modules", "a.c"), []byte("void a() {}"), 0o644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "c_modules", "b.c"), []byte("void b() {}"), 0o644))
	assert.NoError(t, os.WriteFile(
		filepath.Join(dir, "c_modules", "a", "module.json"),
		[]byte(`{"dependencies": ["b"]}`),
		0o644,
	))
	assert.NoError(t, os.WriteFile(
		filepath.Join(dir, "c_modules", "b", "module.json"),
		[]byte(`{"dependencies": ["a"]}`),
		0o644,
	))

	_, err := rt.Import(context.Background(), "a")
	assert.Error(t, err)
	assert.True(t, cerr.Is(err, cerr.Circular), "a genuine a<->b manifest cycle must surface as cerr.Circular, got: %v", err)
}

func TestPrintCacheStatsReportsCounts(t *testing.T) {
	eng := &fakeEngine{symbols: map[string]uintptr{}}
	rt, _ := newTestRuntime(t, eng)

	_, err := rt.Import(context.Background(), "foo")
	assert.NoError(t, err)

	assert.Contains(t, rt.PrintCacheStats(), "modules=1")
}
