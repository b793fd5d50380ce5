/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

// Package gc implements the relocating collector, its root list/frame
// stack, and the tagged class pointer encoding described in spec.md §4.5
// and §4.6, grounded on
// original_source/src/jllvm/gc/{RootFreeList,GarbageCollector}.{hpp,cpp}.
package gc

import "corevm/ref"

const rootSlabSize = 512

// rootCell is one pointer-sized slot: either a live root (its raw bits are
// exactly a ref.Addr, whose low bit is always clear because heap objects
// are header-aligned) or a free slot (low bit set, remaining bits the
// global index of the next free cell, shifted up to make room for the
// tag). This mirrors RootFreeList.cpp's ObjectInterface**-with-LSB-tag
// trick using an explicit tag type instead of raw pointer punning, since
// Go slices aren't addressable the same way.
type rootCell uint64

const rootFreeTag rootCell = 1

func liveRootCell(addr ref.Addr) rootCell { return rootCell(addr) }
func freeRootCell(next uint64) rootCell   { return rootCell(next<<1) | rootFreeTag }
func (c rootCell) isFree() bool           { return c&rootFreeTag != 0 }
func (c rootCell) addr() ref.Addr         { return ref.Addr(c) }
func (c rootCell) nextFree() uint64       { return uint64(c >> 1) }

type rootSlab struct {
	cells [rootSlabSize]rootCell
}

// RootList is a slab-allocated, LIFO-optimized free list of GC roots
// (spec.md §4.5). Deallocating the most recently allocated cell just
// rewinds the bump cursor; any other deallocation pushes onto an in-place
// singly linked free list.
type RootList struct {
	slabs   []*rootSlab
	curSlab int
	next    uint64 // global cell index: the next cell to hand out
	end     uint64 // global cell index: one past the bump frontier
}

// NewRootList returns an empty root list with one pre-allocated slab.
func NewRootList() *RootList {
	return &RootList{slabs: []*rootSlab{{}}}
}

func globalIndex(slab, idx int) uint64 { return uint64(slab)*rootSlabSize + uint64(idx) }
func fromGlobal(g uint64) (slab, idx int) {
	return int(g / rootSlabSize), int(g % rootSlabSize)
}

// RootRef is a non-owning handle to one allocated cell (spec.md §5: "a
// non-owning view that must not outlive the owning slab").
type RootRef struct {
	list *RootList
	slab int
	idx  int
}

// Get reads the cell's current value.
func (r RootRef) Get() ref.Addr {
	return r.list.slabs[r.slab].cells[r.idx].addr()
}

// Set overwrites the cell's value in place.
func (r RootRef) Set(addr ref.Addr) {
	r.list.slabs[r.slab].cells[r.idx] = liveRootCell(addr)
}

// Allocate returns a new, zero-initialized (ref.Null) root cell.
func (l *RootList) Allocate() RootRef {
	if l.next == l.end {
		if l.next-uint64(l.curSlab)*rootSlabSize == rootSlabSize {
			l.curSlab++
			if l.curSlab == len(l.slabs) {
				l.slabs = append(l.slabs, &rootSlab{})
			}
			base := uint64(l.curSlab) * rootSlabSize
			l.next, l.end = base, base
		}
		result := l.next
		l.next++
		l.end++
		slab, idx := fromGlobal(result)
		l.slabs[slab].cells[idx] = liveRootCell(ref.Null)
		return RootRef{list: l, slab: slab, idx: idx}
	}

	result := l.next
	slab, idx := fromGlobal(result)
	l.next = l.slabs[slab].cells[idx].nextFree()
	l.slabs[slab].cells[idx] = liveRootCell(ref.Null)
	return RootRef{list: l, slab: slab, idx: idx}
}

// Free returns a cell to the list, reusable by a later Allocate call.
func (l *RootList) Free(r RootRef) {
	p := globalIndex(r.slab, r.idx)
	if l.next == l.end && p+1 == l.next {
		l.next--
		l.end--
		if l.curSlab > 0 && l.next == uint64(l.curSlab)*rootSlabSize {
			l.curSlab--
			base := uint64(l.curSlab)*rootSlabSize + rootSlabSize
			l.next, l.end = base, base
		}
		return
	}
	l.slabs[r.slab].cells[r.idx] = freeRootCell(l.next)
	l.next = p
}

// VisitLive calls visit for every occupied cell, in insertion order, in
// every slab at-or-before the slab holding the bump frontier.
func (l *RootList) VisitLive(visit func(RootRef)) {
	curSlab, endIdx := fromGlobal(l.end)
	for s := 0; s <= curSlab; s++ {
		limit := rootSlabSize
		if s == curSlab {
			limit = endIdx
		}
		for i := 0; i < limit; i++ {
			if !l.slabs[s].cells[i].isFree() {
				visit(RootRef{list: l, slab: s, idx: i})
			}
		}
	}
}
