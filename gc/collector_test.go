/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corevm/classloader"
	"corevm/gc/unwind"
	"corevm/ref"
)

func TestCollectCompactsReachableGraphAndDropsGarbage(t *testing.T) {
	leafClass := &classloader.ClassObject{Kind: classloader.KindClass}
	nodeClass := &classloader.ClassObject{Kind: classloader.KindClass, FieldAreaSize: pointerSize, GCMask: []int{0}}

	heap := NewHeap(256, NewFrameStack(), nil)

	garbage, err := heap.Allocate(leafClass, 0)
	require.NoError(t, err)
	leaf, err := heap.Allocate(leafClass, 0)
	require.NoError(t, err)
	node, err := heap.Allocate(nodeClass, pointerSize)
	require.NoError(t, err)
	heap.writeRef(heap.from, int(node)+headerSize, leaf)
	_ = garbage

	root := heap.frames.Top().Allocate()
	root.Set(node)

	heap.Collect()

	newNode := root.Get()
	assert.Equal(t, ref.Addr(objectAlignment+align(headerSize+leafClass.FieldAreaSize)), newNode,
		"node should compact right behind the leaf, which precedes it in address order")
	assert.Same(t, nodeClass, heap.ClassOf(newNode))

	newLeaf := heap.readRef(heap.from, int(newNode)+headerSize)
	assert.Same(t, leafClass, heap.ClassOf(newLeaf))

	// Only the two reachable objects (leaf + node) should remain.
	leafSize := align(headerSize + leafClass.FieldAreaSize)
	nodeSize := align(headerSize + nodeClass.FieldAreaSize)
	assert.Equal(t, objectAlignment+leafSize+nodeSize, heap.next)
}

// TestCollectPreservesLiveHalfAndClassIdentity exercises the same shape as
// spec.md §8's "allocate many small objects into a heap far smaller than
// their total size, keep every other one live via a root" scenario, scaled
// down so the test runs fast: the live half must survive every interleaved
// collection triggered by allocation pressure, end up compacted at the
// start of the sibling space in allocation order, and keep each survivor's
// class pointer identical before and after.
func TestCollectPreservesLiveHalfAndClassIdentity(t *testing.T) {
	objClass := &classloader.ClassObject{Kind: classloader.KindClass, FieldAreaSize: pointerSize}
	objSize := align(headerSize + objClass.FieldAreaSize)

	heap := NewHeap(2048, NewFrameStack(), nil)

	const total = 100
	var liveRoots []RootRef
	for i := 0; i < total; i++ {
		addr, err := heap.Allocate(objClass, objClass.FieldAreaSize)
		require.NoError(t, err)
		if i%2 == 0 {
			r := heap.frames.Top().Allocate()
			r.Set(addr)
			liveRoots = append(liveRoots, r)
		}
	}
	require.Len(t, liveRoots, total/2)

	heap.Collect()

	assert.Equal(t, objectAlignment+(total/2)*objSize, heap.next)

	seen := make(map[ref.Addr]bool)
	prev := ref.Addr(0)
	for _, r := range liveRoots {
		addr := r.Get()
		assert.False(t, seen[addr], "duplicate address %d after compaction", addr)
		seen[addr] = true
		assert.Greater(t, addr, prev, "survivors must stay in allocation order")
		prev = addr
		assert.Same(t, objClass, heap.ClassOf(addr))
	}
	assert.Len(t, seen, total/2)
}

// TestCollectPreservesDerivedPointerOffset is spec.md §4.6 step 5's
// correctness invariant: a derived pointer (computed from a base pointer
// plus a constant offset, e.g. by JIT-compiled code indexing into an
// array) must keep the same offset from its base after the base is
// relocated, even though the absolute address changes.
func TestCollectPreservesDerivedPointerOffset(t *testing.T) {
	objClass := &classloader.ClassObject{Kind: classloader.KindClass, FieldAreaSize: pointerSize}

	heap := NewHeap(256, NewFrameStack(), nil)

	garbage, err := heap.Allocate(objClass, objClass.FieldAreaSize)
	require.NoError(t, err)
	_ = garbage
	target, err := heap.Allocate(objClass, objClass.FieldAreaSize)
	require.NoError(t, err)

	const derivedOffset = 4
	ctx := unwind.NewMockContext(0x1000)
	ctx.Registers[0] = uint64(target)
	ctx.Registers[1] = uint64(target) + derivedOffset

	sm := NewStackMap()
	sm.AddStackmapEntries(0x1000, []BaseDerivedPair{
		{Base: Location{Register: 0}, Derived: Location{Register: 1}},
	})
	heap.SetStackWalker(sm, unwind.MockWalker{Frames: []unwind.Context{ctx}})

	heap.Collect()

	newBase := ctx.ReadRegister(0)
	newDerived := ctx.ReadRegister(1)
	assert.NotEqual(t, uint64(target), newBase, "target should have relocated past the collected garbage object")
	assert.Equal(t, newBase+derivedOffset, newDerived)
	assert.Equal(t, uint64(objectAlignment), newBase)
}
