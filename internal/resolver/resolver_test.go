package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveVerbatimWhenPathLike(t *testing.T) {
	r := New(t.TempDir())

	assert.Equal(t, "./foo.c", r.Resolve("./foo.c"))
	assert.Equal(t, "some/dir/foo", r.Resolve("some/dir/foo"))
	assert.Equal(t, "bare.c", r.Resolve("bare.c"))
	assert.Equal(t, "bare.o", r.Resolve("bare.o"))
}

func TestResolveFlatModule(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "c_modules", "foo.c"), "")

	r := New(dir)
	assert.Equal(t, filepath.Join(dir, "c_modules", "foo.c"), r.Resolve("foo"))
}

func TestResolvePackageForm(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "c_modules", "bar", "index.c"), "")

	r := New(dir)
	assert.Equal(t, filepath.Join(dir, "c_modules", "bar", "index.c"), r.Resolve("bar"))
}

func TestResolveLegacyPrefix(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "c_modules", "mod_baz.c"), "")

	r := New(dir)
	assert.Equal(t, filepath.Join(dir, "c_modules", "mod_baz.c"), r.Resolve("baz"))
}

func TestResolveOrderPrefersFlatOverPackageOverLegacy(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "c_modules", "qux.c"), "")
	mustWrite(t, filepath.Join(dir, "c_modules", "qux", "index.c"), "")
	mustWrite(t, filepath.Join(dir, "c_modules", "mod_qux.c"), "")

	r := New(dir)
	assert.Equal(t, filepath.Join(dir, "c_modules", "qux.c"), r.Resolve("qux"))
}

func TestResolveFallsThroughUnchanged(t *testing.T) {
	r := New(t.TempDir())
	assert.Equal(t, "nonexistent", r.Resolve("nonexistent"))
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
