/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

// Package ref defines the one reference type shared by the class-object
// store, the string interner, and the garbage collector: an Addr naming a
// Java heap object by its byte offset within whichever GC semi-space
// currently holds it.
//
// A true machine pointer won't do here: the collector relocates objects by
// memcpy-ing them to the sibling space, and an offset is what lets every
// holder of a reference (a static field, a root-list cell, a stack-map
// base/derived pair) be rewritten uniformly during fixup, rather than
// requiring unsafe pointer arithmetic at every call site.
package ref

// Addr is an offset, in bytes, into the GC heap's currently active
// semi-space. Null denotes "no object" and is never a valid object's
// address (object headers never start at offset 0; see gc.Heap).
type Addr uint64

// Null is the zero value, reserved to mean "no reference".
const Null Addr = 0
