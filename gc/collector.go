/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package gc

import (
	"encoding/binary"
	"time"
	"unsafe"

	"corevm/classloader"
	"corevm/gc/unwind"
	"corevm/ref"
)

// pointerSize is the width, in bytes, of every reference-typed field and
// array element on the managed heap.
const pointerSize = 8

// Collect runs one full stop-the-world collection cycle (spec.md §4.6):
// clear `to`, gather roots, mark reachable objects, forward/copy them
// into `to`, fix up every pointer, then swap the two spaces.
func (h *Heap) Collect() {
	start := time.Now()
	bytesBefore := h.next

	for i := range h.to {
		h.to[i] = 0
	}

	worklist := h.gatherRoots()
	h.mark(worklist)

	forwarding, tNext := h.forwardAndCopy()
	h.fixup(forwarding, tNext)

	h.from, h.to = h.to, h.from
	h.next = tNext

	h.stats.record(bytesBefore, tNext, h.size, time.Since(start))
}

func (h *Heap) classAt(space []byte, addr ref.Addr) *classloader.ClassObject {
	p := h.readClassPtrRaw(space, addr)
	return (*classloader.ClassObject)(unsafe.Pointer(p.class()))
}

func (h *Heap) objectSize(space []byte, addr ref.Addr) int {
	class := h.classAt(space, addr)
	if class.Kind == classloader.KindArray {
		length := binary.LittleEndian.Uint32(space[int(addr)+headerSize:])
		return align(headerSize + 4 + int(length)*arrayElementSize(class))
	}
	return align(headerSize + class.FieldAreaSize)
}

// gatherRoots implements spec.md §4.6 step 2: stack-map-driven native
// frame walk, the static-reference slab, the interpreter's frame stack,
// and every registered root provider. Each discovered address already in
// `from` and not yet marked is marked and returned in the work list.
func (h *Heap) gatherRoots() []ref.Addr {
	var worklist []ref.Addr
	mark := func(addr ref.Addr) {
		if h.tryMark(addr) {
			worklist = append(worklist, addr)
		}
	}

	if h.walker != nil && h.stackMap != nil {
		for _, frame := range h.walker.Walk() {
			for _, pair := range h.stackMap.EntriesAt(frame.ProgramCounter()) {
				base := ref.Addr(pair.Base.read(frame))
				mark(base)
			}
		}
	}

	if h.statics != nil {
		h.statics.VisitRoots(func(s *classloader.StaticRef) {
			if s.Value != ref.Null {
				mark(s.Value)
			}
		})
	}

	if h.frames != nil {
		h.frames.VisitRoots(mark)
	}

	for _, p := range h.providers {
		p.AddRootObjects(mark)
	}

	return worklist
}

// tryMark sets the mark bit for addr if it lies within `from` and isn't
// already marked, reporting whether it newly became marked.
func (h *Heap) tryMark(addr ref.Addr) bool {
	if addr == ref.Null || int(addr) >= len(h.from) {
		return false
	}
	p := h.readClassPtrRaw(h.from, addr)
	if p.marked() {
		return false
	}
	h.writeClassPtrRaw(h.from, addr, p.withMark(true))
	return true
}

// mark implements spec.md §4.6 step 3: depth-first traversal over the
// work list, using each object's class's gc_mask (or, for reference
// arrays, the trailing element payload) to find outgoing pointers.
func (h *Heap) mark(worklist []ref.Addr) {
	for len(worklist) > 0 {
		addr := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		class := h.classAt(h.from, addr)
		fieldStart := int(addr) + headerSize

		if class.Kind == classloader.KindArray && class.ComponentType != nil && class.ComponentType.Kind != classloader.KindPrimitive {
			length := binary.LittleEndian.Uint32(h.from[fieldStart:])
			payload := fieldStart + 4
			for i := 0; i < int(length); i++ {
				target := h.readRef(h.from, payload+i*pointerSize)
				if target != 0 && h.tryMark(target) {
					worklist = append(worklist, target)
				}
			}
			continue
		}

		for _, unit := range class.GCMask {
			target := h.readRef(h.from, fieldStart+unit*pointerSize)
			if target != 0 && h.tryMark(target) {
				worklist = append(worklist, target)
			}
		}
	}
}

// forwardAndCopy implements spec.md §4.6 step 4: a single linear scan
// over `from`, copying every still-marked object into `to` and recording
// the from->to address map. The scan order is ascending address, which is
// also the determinism guarantee on surviving objects' relative order in
// `to`.
func (h *Heap) forwardAndCopy() (map[ref.Addr]ref.Addr, int) {
	forwarding := make(map[ref.Addr]ref.Addr)
	tNext := objectAlignment

	for addr := ref.Addr(objectAlignment); int(addr) < h.next; {
		size := h.objectSize(h.from, addr)
		p := h.readClassPtrRaw(h.from, addr)
		if p.marked() {
			dst := ref.Addr(tNext)
			copy(h.to[tNext:tNext+size], h.from[int(addr):int(addr)+size])
			tNext += size
			forwarding[addr] = dst
			h.writeClassPtrRaw(h.from, addr, p.withMark(false))
		}
		addr += ref.Addr(size)
	}

	return forwarding, tNext
}

// fixup implements spec.md §4.6 step 5: rewrite every root (stack-map
// base/derived pairs, the static slab, the frame stack, root providers)
// and every live object's own reference fields through the forwarding
// map.
func (h *Heap) fixup(forwarding map[ref.Addr]ref.Addr, toNext int) {
	if h.walker != nil && h.stackMap != nil {
		for _, frame := range h.walker.Walk() {
			fixupFrame(frame, h.stackMap, forwarding)
		}
	}

	if h.statics != nil {
		h.statics.VisitRoots(func(s *classloader.StaticRef) {
			if fwd, ok := forwarding[s.Value]; ok {
				s.Value = fwd
			}
		})
	}

	if h.frames != nil {
		h.frames.VisitRefs(func(r RootRef) {
			if fwd, ok := forwarding[r.Get()]; ok {
				r.Set(fwd)
			}
		})
	}

	for _, p := range h.providers {
		p.AddRootsForRelocation(func(addr *ref.Addr) {
			if fwd, ok := forwarding[*addr]; ok {
				*addr = fwd
			}
		})
	}

	for addr := ref.Addr(objectAlignment); int(addr) < toNext; {
		size := h.objectSize(h.to, addr)
		class := h.classAt(h.to, addr)
		fieldStart := int(addr) + headerSize

		if class.Kind == classloader.KindArray && class.ComponentType != nil && class.ComponentType.Kind != classloader.KindPrimitive {
			length := binary.LittleEndian.Uint32(h.to[fieldStart:])
			payload := fieldStart + 4
			for i := 0; i < int(length); i++ {
				at := payload + i*pointerSize
				v := h.readRef(h.to, at)
				if fwd, ok := forwarding[v]; ok {
					h.writeRef(h.to, at, fwd)
				}
			}
		} else {
			for _, unit := range class.GCMask {
				at := fieldStart + unit*pointerSize
				v := h.readRef(h.to, at)
				if fwd, ok := forwarding[v]; ok {
					h.writeRef(h.to, at, fwd)
				}
			}
		}
		addr += ref.Addr(size)
	}
}

// fixupFrame rewrites one native frame's base/derived pairs, preserving
// each derived pointer's offset from its (possibly relocated) base
// (spec.md §4.6 step 5, the correctness invariant "derived pointers
// retain their offset from their base").
func fixupFrame(frame unwind.Context, sm *StackMap, forwarding map[ref.Addr]ref.Addr) {
	for _, pair := range sm.EntriesAt(frame.ProgramCounter()) {
		base := ref.Addr(pair.Base.read(frame))
		fwd, ok := forwarding[base]
		if !ok {
			continue
		}
		derived := ref.Addr(pair.Derived.read(frame))
		offset := int64(derived) - int64(base)
		pair.Base.write(frame, uint64(fwd))
		pair.Derived.write(frame, uint64(int64(fwd)+offset))
	}
}
