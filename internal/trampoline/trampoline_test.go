package trampoline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupMissInitially(t *testing.T) {
	tbl := New(nil)
	_, ok := tbl.Lookup(0x1234)
	assert.False(t, ok)
}

func TestGetOrCreateFallsBackOnUnknownKind(t *testing.T) {
	tbl := New(nil)
	original := uintptr(0xdeadbeef)

	got := tbl.GetOrCreate(Kind(99), original, "mystery", StubOptions{})
	assert.Equal(t, original, got)

	_, ok := tbl.Lookup(original)
	assert.False(t, ok, "a failed build must not occupy a table slot")
}

func TestGetOrCreateDegradesWhenTableFull(t *testing.T) {
	tbl := New(nil)
	tbl.entries = make([]Entry, maxEntries)
	for i := range tbl.entries {
		tbl.entries[i] = Entry{Original: uintptr(i + 1), Thunk: uintptr(i + 1)}
	}

	original := uintptr(0xffff)
	got := tbl.GetOrCreate(ABIBridge, original, "overflow", StubOptions{})
	assert.Equal(t, original, got, "a full table must degrade to the raw pointer")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "abi-bridge", ABIBridge.String())
	assert.Equal(t, "variadic", Variadic.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
