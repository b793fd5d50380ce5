/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package gc

import (
	"encoding/binary"
	"unsafe"

	"corevm/classloader"
	"corevm/gc/unwind"
	"corevm/ref"
	"corevm/vmerrors"
)

// headerSize is the leading, fixed part of every heap object (spec.md §3:
// "the first machine word is a pointer to this object's own meta-class,
// followed by a cached identity hash"). The first word is the tagged
// class pointer the collector inspects; the second is reserved for the
// identity hash word and currently left zeroed, since identity-hash
// computation itself is out of scope — but its reservation is what makes
// stringpool's fixed field-offset assertions against java/lang/String
// line up with the rest of the class's declared fields.
const headerSize = 16

// objectAlignment is the header-alignment every object's address is
// rounded up to, matching spec.md §4.6's "re-align to the object-header
// alignment" allocation step.
const objectAlignment = 8

// Heap is the two-space relocating collector's managed region (spec.md
// §4.6), grounded on
// original_source/src/jllvm/gc/GarbageCollector.{hpp,cpp}.
type Heap struct {
	from, to []byte
	next     int // bump pointer, an offset into from
	size     int

	frames    *FrameStack
	statics   *classloader.StaticRefHeap
	providers []RootProvider

	stackMap *StackMap
	walker   unwind.Walker

	stats statsRecorder
}

// RootProvider lets an external allocator (the string interner, the
// class-object store) participate in marking without living on the
// managed heap (spec.md §4.6).
type RootProvider interface {
	// AddRootObjects visits every object the provider itself roots.
	AddRootObjects(visit func(ref.Addr))
	// AddRootsForRelocation visits every cell the provider owns that
	// holds a heap address, letting the collector rewrite it in place
	// during pointer fixup.
	AddRootsForRelocation(visit func(*ref.Addr))
}

// DefaultAddRootObjects implements the "first callback in terms of the
// second" relationship spec.md §4.6 describes: an object is rooted
// because the provider holds a reference to it, so every cell visited for
// relocation names a root object too.
func DefaultAddRootObjects(p RootProvider, visit func(ref.Addr)) {
	p.AddRootsForRelocation(func(addr *ref.Addr) {
		if *addr != ref.Null {
			visit(*addr)
		}
	})
}

// NewHeap allocates a two-space heap of heapSize bytes per space. The bump
// pointer starts at objectAlignment rather than 0: ref.Null is the zero
// address, and offset 0 would otherwise be a legitimate first allocation,
// making a live object indistinguishable from "no reference" (ref.Null).
func NewHeap(heapSize int, frames *FrameStack, statics *classloader.StaticRefHeap) *Heap {
	return &Heap{
		from:    make([]byte, heapSize),
		to:      make([]byte, heapSize),
		next:    objectAlignment,
		size:    heapSize,
		frames:  frames,
		statics: statics,
	}
}

// RegisterRootProvider plugs a non-heap source of roots into the marking
// phase (spec.md §6's register_root_provider hook).
func (h *Heap) RegisterRootProvider(p RootProvider) {
	h.providers = append(h.providers, p)
}

// Stats returns the most recently completed collection cycle's record,
// and whether any cycle has run yet (gcmon's live TUI polls this).
func (h *Heap) Stats() (CycleStats, bool) {
	return h.stats.Latest()
}

// StatsHistory returns every collection cycle recorded so far, oldest
// first.
func (h *Heap) StatsHistory() []CycleStats {
	return h.stats.History()
}

// SetStackWalker wires the native-stack-map-driven root source (spec.md
// §4.6 step 2); both must be set for stack-map roots to participate, else
// the collector falls back to the other root sources only.
func (h *Heap) SetStackWalker(sm *StackMap, w unwind.Walker) {
	h.stackMap = sm
	h.walker = w
}

func align(n int) int {
	return (n + objectAlignment - 1) &^ (objectAlignment - 1)
}

// Allocate reserves size bytes for a new instance of class, triggering a
// collection if the bump region is exhausted, and failing with OutOfMemory
// if a collection does not free enough space (spec.md §7).
func (h *Heap) Allocate(class *classloader.ClassObject, size int) (ref.Addr, error) {
	total := align(headerSize + size)
	if h.next+total > h.size {
		h.Collect()
		if h.next+total > h.size {
			return ref.Null, vmerrors.New(vmerrors.OutOfMemory, "heap exhausted after collection")
		}
	}
	addr := ref.Addr(h.next)
	h.next += total
	h.writeClassPtr(addr, packClassPtr(classObjectAddr(unsafe.Pointer(class))).withMark(false))
	return addr, nil
}

// arrayElementSize returns the width, in bytes, of one element of an
// array class: a primitive's own instance size, or pointerSize for a
// reference component type (spec.md §4.6's array layout).
func arrayElementSize(class *classloader.ClassObject) int {
	if class.ComponentType.Kind == classloader.KindPrimitive {
		return class.ComponentType.InstanceSize
	}
	return pointerSize
}

// AllocateArray reserves space for a new array of class (Kind==KindArray)
// holding length elements, laid out as header + uint32 length + elements
// (the same layout gc/collector.go's objectSize/mark/fixup already assume
// for arrays). Triggers a collection under the same pressure rule as
// Allocate.
func (h *Heap) AllocateArray(class *classloader.ClassObject, length int) (ref.Addr, error) {
	total := align(headerSize + 4 + length*arrayElementSize(class))
	if h.next+total > h.size {
		h.Collect()
		if h.next+total > h.size {
			return ref.Null, vmerrors.New(vmerrors.OutOfMemory, "heap exhausted after collection")
		}
	}
	addr := ref.Addr(h.next)
	h.next += total
	h.writeClassPtr(addr, packClassPtr(classObjectAddr(unsafe.Pointer(class))).withMark(false))
	binary.LittleEndian.PutUint32(h.from[int(addr)+headerSize:], uint32(length))
	return addr, nil
}

// ArrayLength returns the element count of an array previously allocated
// with AllocateArray.
func (h *Heap) ArrayLength(addr ref.Addr) int {
	return int(binary.LittleEndian.Uint32(h.from[int(addr)+headerSize:]))
}

// ArrayData returns the byte range holding an array's elements, after its
// header and length word.
func (h *Heap) ArrayData(addr ref.Addr, class *classloader.ClassObject) []byte {
	length := h.ArrayLength(addr)
	start := int(addr) + headerSize + 4
	return h.from[start : start+length*arrayElementSize(class)]
}

func (h *Heap) readClassPtrRaw(space []byte, addr ref.Addr) classPtr {
	return classPtr(binary.LittleEndian.Uint64(space[addr:]))
}

func (h *Heap) writeClassPtrRaw(space []byte, addr ref.Addr, p classPtr) {
	binary.LittleEndian.PutUint64(space[addr:], uint64(p))
}

func (h *Heap) readClassPtr(addr ref.Addr) classPtr  { return h.readClassPtrRaw(h.from, addr) }
func (h *Heap) writeClassPtr(addr ref.Addr, p classPtr) { h.writeClassPtrRaw(h.from, addr, p) }

// ClassOf returns the class object an allocated instance belongs to.
func (h *Heap) ClassOf(addr ref.Addr) *classloader.ClassObject {
	p := h.readClassPtr(addr)
	return (*classloader.ClassObject)(unsafe.Pointer(p.class()))
}

// FieldArea returns the byte range, within from, of an object's field
// area (its bytes after the header).
func (h *Heap) FieldArea(addr ref.Addr, class *classloader.ClassObject) []byte {
	start := int(addr) + headerSize
	return h.from[start : start+class.FieldAreaSize]
}

func (h *Heap) readRef(space []byte, fieldOffset int) ref.Addr {
	return ref.Addr(binary.LittleEndian.Uint64(space[fieldOffset:]))
}

func (h *Heap) writeRef(space []byte, fieldOffset int, v ref.Addr) {
	binary.LittleEndian.PutUint64(space[fieldOffset:], uint64(v))
}
