// Package registry implements the module registry (C6): an intrusive
// linked list of module records with LRU + refcount semantics, exactly
// the lookup/release/insert protocols of spec.md §4.6.
//
// Grounded on the teacher's pkg/commands/container.go, which guards a
// container's display/lifecycle state behind a mutex and a small set of
// atomics — generalized here into a process-wide list of records instead
// of one mutex per entity, to match the registry's single reader-writer
// lock plus per-record atomics model.
package registry

import (
	"sync/atomic"

	"github.com/sasha-s/go-deadlock"
)

// CacheState is a record's position in the Active/Idle/Evicted lifecycle
// (spec.md §3).
type CacheState int32

const (
	Active CacheState = iota
	Idle
	Evicted
)

// Image is the opaque compiled artifact a record owns. The registry never
// inspects it beyond calling Close on eviction.
type Image interface {
	Close() error
}

// Record is one loaded module. All mutable fields beyond the intrusive
// pointers are atomics so incref/decref never take a lock.
type Record struct {
	CanonicalPath string
	Image         Image
	Symbols       map[string]uintptr

	refcount   atomic.Int64
	cacheState atomic.Int32
	lastAccess atomic.Int64

	next *Record
}

func (r *Record) State() CacheState { return CacheState(r.cacheState.Load()) }
func (r *Record) Refcount() int64   { return r.refcount.Load() }

// Registry holds every live module record plus the counters
// PrintCacheStats reports.
type Registry struct {
	mu       deadlock.RWMutex
	head     *Record
	count    int
	maxIdle  int

	activeCount atomic.Int64
	idleCount   atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	evictions   atomic.Int64

	clock func() int64
}

// New returns an empty Registry enforcing maxIdle as the idle-population
// cap (spec.md §4.6's "evict_lru_idle" ceiling). last_access timestamps
// come from a monotonic counter driven by Lookup/Insert call order, which
// is sufficient for LRU ordering without depending on wall-clock
// resolution.
func New(maxIdle int) *Registry {
	r := &Registry{maxIdle: maxIdle}
	var tick atomic.Int64
	r.clock = func() int64 { return tick.Add(1) }
	return r
}

// Lookup implements spec.md §4.6's lookup protocol.
func (r *Registry) Lookup(canonicalPath string) (*Record, bool) {
	r.mu.RLock()
	var found *Record
	for rec := r.head; rec != nil; rec = rec.next {
		if rec.State() == Evicted {
			continue
		}
		if rec.CanonicalPath == canonicalPath {
			found = rec
			break
		}
	}
	if found != nil {
		now := r.clock()
		old := found.refcount.Add(1) - 1
		found.lastAccess.Store(now)
		if old == 0 {
			// Was Idle; best-effort CAS to Active. A lost race means
			// another goroutine already made this transition. cache_hits
			// only counts this reactivation, per spec.md §4.6 — an
			// already-Active record's repeat lookups are free.
			if found.cacheState.CompareAndSwap(int32(Idle), int32(Active)) {
				r.idleCount.Add(-1)
				r.activeCount.Add(1)
				r.cacheHits.Add(1)
			}
		}
	}
	r.mu.RUnlock()
	return found, found != nil
}

// Release implements spec.md §4.6's decref (release) protocol. The record
// is never freed here — eviction is lazy, performed only by a subsequent
// Insert.
func (r *Registry) Release(rec *Record) {
	old := rec.refcount.Add(-1) + 1
	if old == 1 && rec.State() == Active && rec.refcount.Load() == 0 {
		if rec.cacheState.CompareAndSwap(int32(Active), int32(Idle)) {
			r.activeCount.Add(-1)
			r.idleCount.Add(1)
		}
	}
}

// Insert implements spec.md §4.6's insert protocol: evict least-recently
// accessed Idle records until fewer than maxIdle remain, then prepend the
// new Active record.
func (r *Registry) Insert(canonicalPath string, image Image, symbols map[string]uintptr) *Record {
	rec := &Record{CanonicalPath: canonicalPath, Image: image, Symbols: symbols}
	rec.refcount.Store(1)
	rec.cacheState.Store(int32(Active))
	rec.lastAccess.Store(r.clock())

	r.mu.Lock()
	for r.idleCount.Load() >= int64(r.maxIdle) {
		if !r.evictLRUIdleLocked() {
			break // nothing Idle left to evict; proceed anyway
		}
	}
	rec.next = r.head
	r.head = rec
	r.count++
	r.activeCount.Add(1)
	r.cacheMisses.Add(1)
	r.mu.Unlock()

	return rec
}

// evictLRUIdleLocked must be called with mu held for writing. It removes
// the Idle record with the smallest last_access, freeing its image. It
// never touches Active records.
func (r *Registry) evictLRUIdleLocked() bool {
	var victim, victimPrev *Record
	var prev *Record
	var best int64 = -1

	for rec := r.head; rec != nil; rec = rec.next {
		if rec.State() == Idle {
			la := rec.lastAccess.Load()
			if victim == nil || la < best {
				victim, victimPrev, best = rec, prev, la
			}
		}
		prev = rec
	}
	if victim == nil {
		return false
	}

	if victimPrev == nil {
		r.head = victim.next
	} else {
		victimPrev.next = victim.next
	}
	victim.cacheState.Store(int32(Evicted))
	if victim.Image != nil {
		_ = victim.Image.Close()
	}
	r.count--
	r.idleCount.Add(-1)
	r.evictions.Add(1)
	return true
}

// ExportSnapshot scans every registered record for names in whitelist and
// returns whatever it finds, for the cross-module symbol export step
// between C7's steps 5 and 6 (spec.md §4.7). Held under the read lock
// only for the scan itself; the caller installs the result lock-free.
func (r *Registry) ExportSnapshot(whitelist []string) map[string]uintptr {
	out := make(map[string]uintptr)
	r.mu.RLock()
	for rec := r.head; rec != nil; rec = rec.next {
		if rec.State() == Evicted {
			continue
		}
		for _, name := range whitelist {
			if addr, ok := rec.Symbols[name]; ok {
				if _, already := out[name]; !already {
					out[name] = addr
				}
			}
		}
	}
	r.mu.RUnlock()
	return out
}

// FindByImage locates the record owning image, for import_free's fallback
// path when a caller holds a bare image handle (spec.md §4.7).
func (r *Registry) FindByImage(image Image) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for rec := r.head; rec != nil; rec = rec.next {
		if rec.State() != Evicted && rec.Image == image {
			return rec, true
		}
	}
	return nil, false
}

// Stats is the snapshot PrintCacheStats reports.
type Stats struct {
	Count       int
	ActiveCount int64
	IdleCount   int64
	CacheHits   int64
	CacheMisses int64
	Evictions   int64
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	count := r.count
	r.mu.RUnlock()
	return Stats{
		Count:       count,
		ActiveCount: r.activeCount.Load(),
		IdleCount:   r.idleCount.Load(),
		CacheHits:   r.cacheHits.Load(),
		CacheMisses: r.cacheMisses.Load(),
		Evictions:   r.evictions.Load(),
	}
}
