/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package gc

import (
	"corevm/classloader"
	"corevm/ref"
)

// WalkLive visits every object currently in the active semi-space, in
// ascending address order, without running a collection. It is a
// read-only counterpart to forwardAndCopy's linear scan, exposed for
// external consumers (hprofdump's heap-dump writer) that need to inspect
// the heap's shape without taking part in marking or relocation.
// fieldArea covers only the object's declared field bytes for non-arrays;
// for arrays it is the raw element payload (length word excluded;
// Heap.ArrayLength reads it).
func (h *Heap) WalkLive(visit func(addr ref.Addr, class *classloader.ClassObject, size int, fieldArea []byte)) {
	for addr := ref.Addr(objectAlignment); int(addr) < h.next; {
		size := h.objectSize(h.from, addr)
		class := h.classAt(h.from, addr)

		var fieldArea []byte
		if class.Kind == classloader.KindArray {
			fieldArea = h.ArrayData(addr, class)
		} else {
			fieldArea = h.FieldArea(addr, class)
		}
		visit(addr, class, size, fieldArea)
		addr += ref.Addr(size)
	}
}

// WalkRoots visits every root address gatherRoots would mark, again
// without running a collection: the stack-map-driven native frames, the
// static-reference slab, the interpreter's frame stack, and every
// registered root provider. hprofdump reports these as HeapDumpRecord
// "other root" entries (randall77-hprof's tagOtherRoot).
func (h *Heap) WalkRoots(visit func(ref.Addr)) {
	if h.walker != nil && h.stackMap != nil {
		for _, frame := range h.walker.Walk() {
			for _, pair := range h.stackMap.EntriesAt(frame.ProgramCounter()) {
				if base := ref.Addr(pair.Base.read(frame)); base != ref.Null {
					visit(base)
				}
			}
		}
	}

	if h.statics != nil {
		h.statics.VisitRoots(func(s *classloader.StaticRef) {
			if s.Value != ref.Null {
				visit(s.Value)
			}
		})
	}

	if h.frames != nil {
		h.frames.VisitRoots(func(addr ref.Addr) {
			if addr != ref.Null {
				visit(addr)
			}
		})
	}

	for _, p := range h.providers {
		p.AddRootObjects(func(addr ref.Addr) {
			if addr != ref.Null {
				visit(addr)
			}
		})
	}
}
