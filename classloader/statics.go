/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package classloader

import "corevm/ref"

// StaticRef is a single reference-typed static field's storage cell.
// Jacobin keeps a flat Statics map keyed by "class.field" pointing into a
// StaticsArray; corevm generalizes that into a GC-managed slab (spec.md
// §4.6 "Static reference heap") so the collector can treat every occupied
// cell as a root and rewrite it during fixup.
type StaticRef struct {
	Value ref.Addr
}

const staticSlabSize = 1024

type staticSlab struct {
	cells [staticSlabSize]StaticRef
}

// StaticRefHeap is a slab-allocated, append-only arena of StaticRef cells.
// It never frees individual cells — static storage lives for the process,
// same as class objects. Chunking into fixed-capacity slabs (rather than
// one growing slice) keeps previously handed-out *StaticRef addresses
// stable across further allocation, the same reason the class-object
// arena (arena.go) and the GC root list (gc/rootlist.go) are chunked.
type StaticRefHeap struct {
	slabs []*staticSlab
	next  int
}

// Allocate returns a pointer-stable cell for a new reference-typed static
// field. This is the concrete implementation behind the GC hook
// allocate_static() in spec.md §6.
func (h *StaticRefHeap) Allocate() *StaticRef {
	if len(h.slabs) == 0 || h.next >= staticSlabSize {
		h.slabs = append(h.slabs, &staticSlab{})
		h.next = 0
	}
	cell := &h.slabs[len(h.slabs)-1].cells[h.next]
	h.next++
	return cell
}

// VisitRoots calls visit for every occupied cell across every slab,
// implementing the GC root-provider contract (spec.md §4.6) for the
// static-reference heap: "The GC treats every occupied cell as a root."
func (h *StaticRefHeap) VisitRoots(visit func(*StaticRef)) {
	for _, slab := range h.slabs {
		for i := range slab.cells {
			if slab.cells[i].Value != ref.Null {
				visit(&slab.cells[i])
			}
		}
	}
}
