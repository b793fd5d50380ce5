/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corevm/ref"
)

func TestRootListAllocateSetGet(t *testing.T) {
	l := NewRootList()
	r := l.Allocate()
	assert.Equal(t, ref.Null, r.Get())

	r.Set(ref.Addr(128))
	assert.Equal(t, ref.Addr(128), r.Get())
}

func TestRootListFreeLIFONoNetGrowth(t *testing.T) {
	l := NewRootList()
	slabsBefore := len(l.slabs)

	refs := make([]RootRef, 8)
	for i := range refs {
		refs[i] = l.Allocate()
		refs[i].Set(ref.Addr(i + 1))
	}
	// Freeing in reverse (LIFO) order should just rewind the bump cursor,
	// never touching the free list or growing the slab slice.
	for i := len(refs) - 1; i >= 0; i-- {
		l.Free(refs[i])
	}
	assert.Equal(t, slabsBefore, len(l.slabs))
	assert.Equal(t, l.next, l.end)

	var live []RootRef
	l.VisitLive(func(r RootRef) { live = append(live, r) })
	assert.Empty(t, live)
}

func TestRootListFreeNonLIFOReusesCell(t *testing.T) {
	l := NewRootList()
	a := l.Allocate()
	a.Set(ref.Addr(10))
	b := l.Allocate()
	b.Set(ref.Addr(20))
	c := l.Allocate()
	c.Set(ref.Addr(30))

	// Free the middle cell (not the most recent allocation): must go onto
	// the free list rather than rewinding the bump cursor.
	l.Free(b)

	var live []ref.Addr
	l.VisitLive(func(r RootRef) { live = append(live, r.Get()) })
	assert.ElementsMatch(t, []ref.Addr{10, 30}, live)

	reused := l.Allocate()
	assert.Equal(t, ref.Null, reused.Get())
	reused.Set(ref.Addr(98))

	live = live[:0]
	l.VisitLive(func(r RootRef) { live = append(live, r.Get()) })
	assert.ElementsMatch(t, []ref.Addr{10, 30, 98}, live)
}

func TestRootListCrossSlabBoundary(t *testing.T) {
	l := NewRootList()
	n := rootSlabSize + 10
	refs := make([]RootRef, n)
	for i := range refs {
		refs[i] = l.Allocate()
		refs[i].Set(ref.Addr((i + 1) * 8))
	}
	require.True(t, len(l.slabs) >= 2, "expected allocation to span at least two slabs")

	count := 0
	l.VisitLive(func(RootRef) { count++ })
	assert.Equal(t, n, count)

	// Rewind back across the slab boundary in LIFO order.
	for i := n - 1; i >= 0; i-- {
		l.Free(refs[i])
	}
	assert.Equal(t, uint64(0), l.next)
	assert.Equal(t, uint64(0), l.end)
}
