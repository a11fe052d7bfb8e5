// Package cerr defines the typed error taxonomy shared by every component
// of the module runtime. Every error an Import attempt can surface is a
// *Error carrying one of the Kind values below, so callers can branch on
// the kind without string-matching messages.
package cerr

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
	"golang.org/x/xerrors"
)

// Kind identifies why an import-level operation failed.
type Kind int

const (
	// NotFound means the source and any cache file are both missing.
	NotFound Kind = iota
	// Circular means a module transitively depends on itself.
	Circular
	// DepthExceeded means the loading stack grew past its bound.
	DepthExceeded
	// ManifestParse means module.json could not be parsed; treated as a
	// warning (the dependency list degrades to empty) rather than fatal.
	ManifestParse
	// DependencyFailed means a preloaded dependency failed to import.
	DependencyFailed
	// CompileFailed means the compiler engine rejected the source.
	CompileFailed
	// RelocateFailed means relocation of a compiled image failed.
	RelocateFailed
	// InitFailed means the module's init hook returned non-zero.
	InitFailed
	// CacheWrite means writing the object cache failed; a warning, the
	// compile itself still succeeded in memory.
	CacheWrite
	// TrampolineFailed means thunk generation failed; a warning, the raw
	// pointer is returned instead.
	TrampolineFailed
	// RegistryAlloc means the registry could not allocate a new record.
	RegistryAlloc
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case Circular:
		return "circular"
	case DepthExceeded:
		return "depth-exceeded"
	case ManifestParse:
		return "manifest-parse"
	case DependencyFailed:
		return "dependency-failed"
	case CompileFailed:
		return "compile-failed"
	case RelocateFailed:
		return "relocate-failed"
	case InitFailed:
		return "init-failed"
	case CacheWrite:
		return "cache-write"
	case TrampolineFailed:
		return "trampoline-failed"
	case RegistryAlloc:
		return "registry-alloc"
	default:
		return "unknown"
	}
}

// Recoverable reports whether a caller can reasonably retry after this kind
// of failure (with a different specifier, after fixing the manifest, etc).
// Every kind in this taxonomy is recoverable; the method exists so the
// property is explicit and testable rather than implied.
func (k Kind) Recoverable() bool { return true }

// Error is the error type returned from the public API. It carries a Kind,
// a human message, and a stack frame for diagnostics, following the same
// code+message+frame shape the teacher's ComplexError uses.
//
// adapted from https://medium.com/yakka/better-go-error-handling-with-xerrors-1987650e0c79
type Error struct {
	Kind    Kind
	Message string
	frame   xerrors.Frame
}

// New constructs an Error of the given kind, capturing the caller's frame.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		frame:   xerrors.Caller(1),
	}
}

// FormatError implements xerrors.Formatter.
func (e *Error) FormatError(p xerrors.Printer) error {
	p.Printf("%s: %s", e.Kind, e.Message)
	e.frame.Format(p)
	return nil
}

// Format implements fmt.Formatter via xerrors.FormatError.
func (e *Error) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if xerrors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// Wrap attaches a stack trace to err for top-level diagnostics, mirroring
// the teacher's WrapError: go-errors.Wrap doesn't return nil for a nil
// input on its own, so we guard it here.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, 1)
}
