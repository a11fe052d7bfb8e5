// Package compiler implements the compilation driver (C5): it drives an
// opaque compiler Engine through the eight steps of spec.md §4.5, turning
// one source file into a relocated in-memory image.
//
// The Engine itself — the embedded C compiler/linker — is out of scope
// (spec.md §1): only the interface it must satisfy is specified here,
// grounded on the teacher's pkg/commands/container_runtime.go /
// runtime_types.go shape of "an interface wrapping an opaque external
// engine".
package compiler

import "context"

// Image is a relocated, in-memory compiled module, opaque beyond its
// byte length and entry point — the driver never inspects its contents.
type Image struct {
	// EntryPoint is the address of the module's init hook, if any.
	EntryPoint uintptr
	// Object is the pre-relocation object form, used by the caller to
	// populate the object cache (spec.md §4.5 step 7).
	Object []byte
	// Size is the relocated image's size in bytes, for diagnostics.
	Size int
	// Symbols is the full set of global symbols the compiled unit
	// defines, keyed by name. The import coordinator filters this against
	// the export whitelist when publishing cross-module exports
	// (spec.md §4.7).
	Symbols map[string]uintptr
}

// Options configures one compile. Defaults are synthesized per
// runtime.GOOS/GOARCH (spec.md §4.5 step 2); module.json may override a
// subset via mergo.
type Options struct {
	// Freestanding selects a minimal headers/predefines set appropriate
	// for a hosted-but-minimal C environment.
	Freestanding bool
	// Predefines are additional `-D NAME=VALUE` style macros.
	Predefines map[string]string
	// IncludePaths are extra `-I` directories. Driver keeps the set given
	// to its first Compile and applies it to every later compile, ignoring
	// later values (spec.md §4.5 step 3).
	IncludePaths []string
	// ExtraSources are additional inputs fed to the engine alongside the
	// primary source (spec.md §4.5 step 5: module.json "sources").
	ExtraSources []string
	// PopulateCache, when true, makes the driver request the
	// pre-relocation object form (step 7); false skips that work for a
	// compile whose result will not be persisted.
	PopulateCache bool
}

// SymbolResolver is how the driver asks for the address of a name the
// source references but does not define — normally backed by
// symbols.Provider, injected here only as a function to keep this package
// independent of internal/symbols.
type SymbolResolver func(name string) (uintptr, bool)

// Engine is the opaque compiler/linker collaborator (spec.md §1). A real
// implementation wraps an embedded C compiler such as tcc or chibicc; this
// package never assumes which.
type Engine interface {
	// SetOutputImage selects in-memory relocated output (step 1).
	SetOutputImage()
	// ApplyOptions configures freestanding headers, predefines, and
	// include paths (steps 2-3).
	ApplyOptions(opts Options) error
	// DefineSymbols registers the resolver the engine consults for any
	// name it cannot otherwise satisfy (step 4, built-in table).
	DefineSymbols(resolve SymbolResolver)
	// CompileSnippet compiles an auxiliary source into the same
	// compilation unit without producing a separate image — used for
	// compiler-intrinsic helpers (step 4) and extra module sources (step
	// 5).
	CompileSnippet(ctx context.Context, name string, source []byte) error
	// CompileFile feeds the primary source file to the engine (step 6).
	CompileFile(ctx context.Context, path string) error
	// Object returns the pre-relocation object form (step 7). Only valid
	// after CompileFile.
	Object() ([]byte, error)
	// Relocate finalizes the image in memory (step 8).
	Relocate() (Image, error)
	// LoadObject relocates a previously cached object form directly,
	// skipping compilation entirely — the object-cache hit path of
	// spec.md §4.7 step 7 ("load image directly into a new module
	// record").
	LoadObject(ctx context.Context, object []byte) (Image, error)
}
