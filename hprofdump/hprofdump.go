/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

// Package hprofdump writes a corevm heap snapshot in the Go runtime's own
// legacy heap-dump wire format: the format _examples/randall77-hprof/read
// parses (header line "go1.3 heap dump\n" followed by a stream of
// LEB128-varint-tagged records, terminated by tagEOF). This is not the JVM
// HPROF binary format despite the similar name; it is the record shape
// runtime/debug.WriteHeapDump emitted before Go 1.11, and it is the one
// concrete wire format this codebase has a reader for, so it is the one
// corvm's writer targets (spec.md §8's "a tool can externally verify a
// collection left the heap in a consistent state").
package hprofdump

import (
	"bufio"
	"encoding/binary"
	"io"
	"unsafe"

	"corevm/classloader"
	"corevm/gc"
	"corevm/ref"
)

// Record tags, names and shapes confirmed against
// _examples/randall77-hprof/read/parser.go's rawRead switch.
const (
	tagEOF       = 0
	tagObject    = 1
	tagOtherRoot = 2
	tagType      = 3
	tagParams    = 6
)

// FieldKind values as read by parser.go's readFields.
const (
	fieldKindEol = 0
	fieldKindPtr = 1
)

// TypeKind values parser.go attaches to a tagType record's "kind" varint
// via tagObject's own kind field.
const (
	typeKindObject = 0
	typeKindArray  = 1
)

const header = "go1.3 heap dump\n"

// Writer serializes a gc.Heap snapshot to the legacy runtime heap-dump wire
// format. One Writer dumps exactly one heap; create a new Writer per Dump.
type Writer struct {
	w         *bufio.Writer
	seenTypes map[uintptr]bool
	err       error
}

// NewWriter wraps w for a single Dump call.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), seenTypes: make(map[uintptr]bool)}
}

func (wr *Writer) putUvarint(v uint64) {
	if wr.err != nil {
		return
	}
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, wr.err = wr.w.Write(buf[:n])
}

func (wr *Writer) putBytes(b []byte) {
	wr.putUvarint(uint64(len(b)))
	if wr.err != nil {
		return
	}
	_, wr.err = wr.w.Write(b)
}

func (wr *Writer) putString(s string) {
	wr.putBytes([]byte(s))
}

func (wr *Writer) putBool(b bool) {
	if wr.err != nil {
		return
	}
	if b {
		wr.err = wr.w.WriteByte(1)
	} else {
		wr.err = wr.w.WriteByte(0)
	}
}

// Dump writes a full snapshot of heap: the format header, a tagParams
// record describing the target machine, one tagType record per distinct
// class encountered while walking the heap, one tagObject record per live
// object (gc.Heap.WalkLive), one tagOtherRoot record per GC root
// (gc.Heap.WalkRoots), and a closing tagEOF.
//
// Type addresses are the ClassObject's own pointer value: class objects
// live for the lifetime of the VM once loaded (classloader.Loader never
// frees one), so the pointer is stable for the duration of a single Dump
// and serves the same role a *runtime._type address serves in a real Go
// heap dump.
func (wr *Writer) Dump(heap *gc.Heap, ptrSize int) error {
	if _, err := wr.w.WriteString(header); err != nil {
		return err
	}

	wr.putUvarint(tagParams)
	wr.putUvarint(0) // byte order: 0 means little-endian
	wr.putUvarint(uint64(ptrSize))
	wr.putUvarint(0) // hchan size: corevm has no channel objects to report
	wr.putUvarint(0) // heap start
	wr.putUvarint(0) // heap end
	wr.putUvarint(0) // "the char" experiment byte
	wr.putString("")
	wr.putUvarint(1) // ncpu

	heap.WalkLive(func(addr ref.Addr, class *classloader.ClassObject, size int, fieldArea []byte) {
		typAddr := classAddr(class)
		if !wr.seenTypes[typAddr] {
			wr.writeType(class, typAddr)
			wr.seenTypes[typAddr] = true
		}
		wr.putUvarint(tagObject)
		wr.putUvarint(uint64(addr))
		wr.putUvarint(uint64(typAddr))
		wr.putUvarint(typeKindOf(class))
		wr.putUvarint(uint64(size))
	})

	heap.WalkRoots(func(addr ref.Addr) {
		wr.putUvarint(tagOtherRoot)
		wr.putString("gc root")
		wr.putUvarint(uint64(addr))
	})

	wr.putUvarint(tagEOF)
	if wr.err != nil {
		return wr.err
	}
	return wr.w.Flush()
}

func classAddr(class *classloader.ClassObject) uintptr {
	return uintptr(unsafe.Pointer(class))
}

func typeKindOf(class *classloader.ClassObject) uint64 {
	if class.Kind == classloader.KindArray {
		return typeKindArray
	}
	return typeKindObject
}

// writeType emits a tagType record for class: its size, its binary name,
// and the field list readFields expects — one (kind, offset) pair per
// reference-typed field, drawn from the class's own GC mask (spec.md §8),
// terminated by fieldKindEol.
func (wr *Writer) writeType(class *classloader.ClassObject, typAddr uintptr) {
	wr.putUvarint(tagType)
	wr.putUvarint(uint64(typAddr))
	wr.putUvarint(uint64(class.InstanceSize))
	wr.putString(class.Name)
	wr.putBool(false) // efaceptr: corevm has no interface-value boxing to report
	for _, unit := range class.GCMask {
		wr.putUvarint(fieldKindPtr)
		wr.putUvarint(uint64(unit * 8))
	}
	wr.putUvarint(fieldKindEol)
}
