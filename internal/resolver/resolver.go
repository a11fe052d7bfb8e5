// Package resolver implements the path resolver (C1): turning a
// user-supplied module specifier into the canonical source path used as
// the registry's lookup key.
//
// The candidate-list shape is grounded on the teacher's socket discovery
// (getSocketCandidates in pkg/commands/socket_detection_unix.go): build an
// ordered list of places the thing might be, then take the first that
// exists on disk.
package resolver

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolver turns specifiers into canonical paths rooted at a base
// directory. The zero value is usable and rooted at ".".
type Resolver struct {
	// Root is the directory c_modules/ is resolved relative to. Defaults
	// to "." when empty.
	Root string
}

// New returns a Resolver rooted at dir.
func New(dir string) *Resolver {
	return &Resolver{Root: dir}
}

func (r *Resolver) root() string {
	if r.Root == "" {
		return "."
	}
	return r.Root
}

// Resolve applies spec.md §4.1's five ordered rules, first match wins.
func (r *Resolver) Resolve(specifier string) string {
	if hasPathSeparator(specifier) || strings.HasSuffix(specifier, ".c") || strings.HasSuffix(specifier, ".o") {
		return specifier
	}

	candidates := []string{
		filepath.Join(r.root(), "c_modules", specifier+".c"),
		filepath.Join(r.root(), "c_modules", specifier, "index.c"),
		filepath.Join(r.root(), "c_modules", "mod_"+specifier+".c"),
	}

	for _, c := range candidates {
		if fileExists(c) {
			return c
		}
	}

	// Rule 5: pass through unchanged; the downstream compile will fail
	// with "not found" if nothing matches.
	return specifier
}

func hasPathSeparator(s string) bool {
	return strings.ContainsRune(s, '/') || strings.ContainsRune(s, filepath.Separator)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
