package objcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLookupMissWhenNoCacheFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "bar.c")
	assert.NoError(t, os.WriteFile(source, []byte("int x;"), 0o644))

	c := New([]string{dir})
	_, result, err := c.Lookup(source)
	assert.NoError(t, err)
	assert.Equal(t, Miss, result)
}

func TestStoreThenLookupHit(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "bar.c")
	assert.NoError(t, os.WriteFile(source, []byte("int x;"), 0o644))

	c := New([]string{dir})
	assert.NoError(t, c.Store(source, []byte("OBJDATA")))

	data, result, err := c.Lookup(source)
	assert.NoError(t, err)
	assert.Equal(t, Hit, result)
	assert.Equal(t, []byte("OBJDATA"), data)
}

func TestMtimeInvariantAfterStore(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "bar.c")
	assert.NoError(t, os.WriteFile(source, []byte("int x;"), 0o644))

	c := New([]string{dir})
	assert.NoError(t, c.Store(source, []byte("OBJDATA")))

	srcInfo, err := os.Stat(source)
	assert.NoError(t, err)
	cacheInfo, err := os.Stat(FilePath(source))
	assert.NoError(t, err)
	assert.True(t, srcInfo.ModTime().Equal(cacheInfo.ModTime()))
}

func TestLookupStaleWhenSourceTouched(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "bar.c")
	assert.NoError(t, os.WriteFile(source, []byte("int x;"), 0o644))

	c := New([]string{dir})
	assert.NoError(t, c.Store(source, []byte("OBJDATA")))

	future := time.Now().Add(time.Hour)
	assert.NoError(t, os.Chtimes(source, future, future))

	_, result, err := c.Lookup(source)
	assert.NoError(t, err)
	assert.Equal(t, StaleHit, result)
}

func TestLookupStaleWhenHeaderTouched(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "bar.c")
	assert.NoError(t, os.WriteFile(source, []byte("int x;"), 0o644))

	c := New([]string{dir})
	assert.NoError(t, c.Store(source, []byte("OBJDATA")))

	header := filepath.Join(dir, "bar.h")
	assert.NoError(t, os.WriteFile(header, []byte("// decl"), 0o644))
	future := time.Now().Add(time.Hour)
	assert.NoError(t, os.Chtimes(header, future, future))

	_, result, err := c.Lookup(source)
	assert.NoError(t, err)
	assert.Equal(t, StaleHit, result)
}

func TestLookupFallsBackWhenSourceMissing(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "bar.c")
	assert.NoError(t, os.WriteFile(source, []byte("int x;"), 0o644))

	c := New([]string{dir})
	assert.NoError(t, c.Store(source, []byte("OBJDATA")))
	assert.NoError(t, os.Remove(source))

	data, result, err := c.Lookup(source)
	assert.NoError(t, err)
	assert.Equal(t, Hit, result)
	assert.Equal(t, []byte("OBJDATA"), data)
}

func TestFilePathEncodesArchTag(t *testing.T) {
	got := FilePath("/tmp/c_modules/foo.c")
	assert.Equal(t, "/tmp/c_modules/foo."+ArchTag()+".o", got)
}
