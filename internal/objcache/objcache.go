// Package objcache implements the object cache (C2): the on-disk
// persistence of compiled images, keyed by (source path, host arch), with
// the staleness and atomic-store rules of spec.md §4.2.
//
// Grounded on the mtime-based staleness check in other_examples'
// oarkflow-fasttpl cache.go and the write-temp-then-rename atomicity in
// abtreece-confd's template_cache.go.
package objcache

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Result is the outcome of a Lookup.
type Result int

const (
	// Miss means there is no usable cached image.
	Miss Result = iota
	// Hit means the cache file is present and not stale.
	Hit
	// StaleHit means a cache file exists but its mtime differs from the
	// source's or a header is newer; the caller must recompile.
	StaleHit
)

// Cache persists compiled images to disk next to their source files.
type Cache struct {
	// HeaderDirs are scanned recursively for any .h file newer than a
	// candidate cache file, per spec.md §4.2 rule (b). Defaults to
	// []string{".", "c_modules", "include"}. Unlike the compiler driver's
	// include-path cache (populated once, read-only), this scan is
	// deliberately re-run on every Lookup: a header touched mid-process
	// must still be able to invalidate the cache.
	HeaderDirs []string
}

// New returns a Cache scanning the given header directories for
// staleness. Passing nil uses the default set.
func New(headerDirs []string) *Cache {
	if headerDirs == nil {
		headerDirs = []string{".", "c_modules", "include"}
	}
	return &Cache{HeaderDirs: headerDirs}
}

// ArchTag returns the host architecture tag used in cache filenames, e.g.
// "x86_64" or "aarch64".
func ArchTag() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}

// FilePath returns the cache file path for a given source, per spec.md
// §6: "<stem>.<arch-tag>.o next to the source".
func FilePath(source string) string {
	ext := filepath.Ext(source)
	stem := strings.TrimSuffix(source, ext)
	return stem + "." + ArchTag() + ".o"
}

// Lookup implements spec.md §4.2's lookup, including the fallback where a
// missing source with an existing cache file is still usable.
func (c *Cache) Lookup(source string) ([]byte, Result, error) {
	cachePath := FilePath(source)

	cacheInfo, cacheErr := os.Stat(cachePath)
	if cacheErr != nil {
		if os.IsNotExist(cacheErr) {
			return nil, Miss, nil
		}
		return nil, Miss, cacheErr
	}

	sourceInfo, sourceErr := os.Stat(source)
	if sourceErr != nil {
		if os.IsNotExist(sourceErr) {
			// Fallback: source missing, cache file is used as-is.
			data, err := os.ReadFile(cachePath)
			if err != nil {
				return nil, Miss, err
			}
			return data, Hit, nil
		}
		return nil, Miss, sourceErr
	}

	if !cacheInfo.ModTime().Equal(sourceInfo.ModTime()) {
		return nil, StaleHit, nil
	}
	if c.headersNewerThan(cacheInfo.ModTime()) {
		return nil, StaleHit, nil
	}

	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, Miss, err
	}
	return data, Hit, nil
}

// Store writes data to the cache file for source, atomically (temp file +
// rename), then synchronizes the cache file's mtime/atime with the
// source's, per spec.md §4.2.
func (c *Cache) Store(source string, data []byte) error {
	cachePath := FilePath(source)

	tmp := cachePath + ".tmp." + strconv.Itoa(os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, cachePath); err != nil {
		os.Remove(tmp)
		return err
	}

	atime, mtime, err := statTimes(source)
	if err != nil {
		// The in-memory compile already succeeded; a failure to
		// synchronize mtimes is a cache-write warning, not fatal
		// (spec.md §7). Callers are expected to log it.
		return err
	}
	return os.Chtimes(cachePath, atime, mtime)
}

// headersNewerThan reports whether any .h file under the configured header
// directories has an mtime strictly after cutoff. This is a conservative
// over-approximation: false positives (spurious recompiles) are fine,
// false negatives are not (spec.md §4.2).
func (c *Cache) headersNewerThan(cutoff interface {
	UnixNano() int64
}) bool {
	cutoffNanos := cutoff.UnixNano()
	for _, dir := range c.HeaderDirs {
		if c.newestHeaderMtime(dir) > cutoffNanos {
			return true
		}
	}
	return false
}

func (c *Cache) newestHeaderMtime(dir string) int64 {
	var newest int64
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort scan; unreadable subtrees don't abort it
		}
		if d.IsDir() || !strings.HasSuffix(path, ".h") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if n := info.ModTime().UnixNano(); n > newest {
			newest = n
		}
		return nil
	})
	return newest
}
