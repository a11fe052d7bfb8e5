package compiler

import (
	"context"

	"github.com/wanjochan/cosmorun/internal/cerr"
)

// NullEngine is the default Engine: it accepts configuration calls but
// refuses to compile anything. It exists so Driver and its tests have a
// concrete collaborator without this repo shipping a real embedded C
// compiler (spec.md §1 keeps that out of scope). An embedder wires a real
// engine via SetEngine before calling Compile against actual sources.
type NullEngine struct {
	appliedOpts Options
	resolve     SymbolResolver
}

// NewNullEngine returns a NullEngine ready for ApplyOptions/DefineSymbols,
// but CompileFile/CompileSnippet always fail.
func NewNullEngine() *NullEngine { return &NullEngine{} }

func (e *NullEngine) SetOutputImage() {}

func (e *NullEngine) ApplyOptions(opts Options) error {
	e.appliedOpts = opts
	return nil
}

func (e *NullEngine) DefineSymbols(resolve SymbolResolver) {
	e.resolve = resolve
}

func (e *NullEngine) CompileSnippet(ctx context.Context, name string, source []byte) error {
	return cerr.New(cerr.CompileFailed, "no compiler engine configured: cannot compile snippet %s", name)
}

func (e *NullEngine) CompileFile(ctx context.Context, path string) error {
	return cerr.New(cerr.CompileFailed, "no compiler engine configured: cannot compile %s (see compiler.SetEngine)", path)
}

func (e *NullEngine) Object() ([]byte, error) {
	return nil, cerr.New(cerr.CompileFailed, "no compiler engine configured")
}

func (e *NullEngine) Relocate() (Image, error) {
	return Image{}, cerr.New(cerr.RelocateFailed, "no compiler engine configured")
}

func (e *NullEngine) LoadObject(ctx context.Context, object []byte) (Image, error) {
	return Image{}, cerr.New(cerr.RelocateFailed, "no compiler engine configured: cannot load cached object")
}
