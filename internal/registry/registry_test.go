package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeImage struct {
	closed bool
}

func (f *fakeImage) Close() error {
	f.closed = true
	return nil
}

func TestLookupMissOnEmptyRegistry(t *testing.T) {
	r := New(2)
	_, ok := r.Lookup("a.c")
	assert.False(t, ok)
	// Lookup itself never touches cache_misses — only Insert does, per
	// spec.md §4.6's protocols.
	assert.Equal(t, int64(0), r.Stats().CacheMisses)
}

func TestInsertThenLookupHits(t *testing.T) {
	r := New(2)
	rec := r.Insert("a.c", &fakeImage{}, nil)
	assert.Equal(t, Active, rec.State())
	assert.Equal(t, int64(1), rec.Refcount())

	found, ok := r.Lookup("a.c")
	assert.True(t, ok)
	assert.Same(t, rec, found)
	assert.Equal(t, int64(2), found.Refcount())
	// found was already Active; a repeat lookup is not a 0->1 reactivation
	// and must not count as a cache hit.
	assert.Equal(t, int64(0), r.Stats().CacheHits)
}

func TestReleaseTransitionsActiveToIdleAtZero(t *testing.T) {
	r := New(2)
	rec := r.Insert("a.c", &fakeImage{}, nil)

	r.Release(rec)
	assert.Equal(t, int64(0), rec.Refcount())
	assert.Equal(t, Idle, rec.State())
	assert.Equal(t, int64(1), r.Stats().IdleCount)
	assert.Equal(t, int64(0), r.Stats().ActiveCount)
}

func TestLookupReactivatesIdleRecord(t *testing.T) {
	r := New(2)
	rec := r.Insert("a.c", &fakeImage{}, nil)
	r.Release(rec)

	found, ok := r.Lookup("a.c")
	assert.True(t, ok)
	assert.Equal(t, Active, found.State())
	assert.Equal(t, int64(1), r.Stats().ActiveCount)
	assert.Equal(t, int64(0), r.Stats().IdleCount)
	// The 0->1 reactivation is the one case spec.md §4.6 counts as a
	// cache hit.
	assert.Equal(t, int64(1), r.Stats().CacheHits)
}

func TestInsertEvictsLRUIdleBeyondCap(t *testing.T) {
	r := New(1)
	img1 := &fakeImage{}
	rec1 := r.Insert("a.c", img1, nil)
	r.Release(rec1)

	img2 := &fakeImage{}
	rec2 := r.Insert("b.c", img2, nil)
	r.Release(rec2)

	// With an idle cap of 1, every insert that finds one Idle record evicts
	// it first: b.c's insert evicted a.c, and this third insert evicts b.c.
	r.Insert("c.c", &fakeImage{}, nil)

	assert.True(t, img1.closed)
	assert.True(t, img2.closed)
	_, ok := r.Lookup("a.c")
	assert.False(t, ok, "evicted record must not be found by Lookup")

	assert.Equal(t, int64(2), r.Stats().Evictions)
}

func TestEvictionNeverTouchesActiveRecords(t *testing.T) {
	r := New(0)
	active := r.Insert("active.c", &fakeImage{}, nil) // stays Active (refcount 1, never released)
	idle := r.Insert("idle.c", &fakeImage{}, nil)
	r.Release(idle)

	r.Insert("third.c", &fakeImage{}, nil)

	found, ok := r.Lookup("active.c")
	assert.True(t, ok)
	assert.Same(t, active, found)
}

func TestExportSnapshotCollectsWhitelistedSymbols(t *testing.T) {
	r := New(4)
	r.Insert("a.c", &fakeImage{}, map[string]uintptr{"shared_helper": 0x10})
	r.Insert("b.c", &fakeImage{}, map[string]uintptr{"other": 0x20})

	snap := r.ExportSnapshot([]string{"shared_helper", "other", "missing"})
	assert.Equal(t, uintptr(0x10), snap["shared_helper"])
	assert.Equal(t, uintptr(0x20), snap["other"])
	_, ok := snap["missing"]
	assert.False(t, ok)
}

func TestFindByImageLocatesOwningRecord(t *testing.T) {
	r := New(4)
	img := &fakeImage{}
	rec := r.Insert("a.c", img, nil)

	found, ok := r.FindByImage(img)
	assert.True(t, ok)
	assert.Same(t, rec, found)

	_, ok = r.FindByImage(&fakeImage{})
	assert.False(t, ok)
}
