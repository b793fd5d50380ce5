/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package gc

import "corevm/gc/unwind"

// Location names where a stack-map entry's pointer lives: a DWARF
// register, or a register-plus-constant-offset spill slot (spec.md §6
// "Stack map").
type Location struct {
	Register int
	Offset   int64 // added to the register's value; 0 for a plain register location
}

func (l Location) read(ctx unwind.Context) uint64 {
	return uint64(int64(ctx.ReadRegister(l.Register)) + l.Offset)
}

func (l Location) write(ctx unwind.Context, v uint64) {
	ctx.WriteRegister(l.Register, uint64(int64(v)-l.Offset))
}

// BaseDerivedPair is one entry of a stack-map record: a base-location and
// a derived-location, spec.md §4.6's "read the base pointer(s) from the
// named frame location(s)" / §4.6 step 5's offset-preserving fixup.
type BaseDerivedPair struct {
	Base    Location
	Derived Location
}

// StackMap registers, per compiled code range, the set of base/derived
// location pairs live at each program counter — the "GC hook"
// add_stackmap_entries(pc, entries) from spec.md §6.
type StackMap struct {
	entries map[uintptr][]BaseDerivedPair
}

// NewStackMap returns an empty stack map.
func NewStackMap() *StackMap {
	return &StackMap{entries: make(map[uintptr][]BaseDerivedPair)}
}

// AddStackmapEntries registers the base/derived pairs live when execution
// is suspended at pc (a call site inside JIT-compiled code).
func (m *StackMap) AddStackmapEntries(pc uintptr, pairs []BaseDerivedPair) {
	m.entries[pc] = pairs
}

// EntriesAt returns the registered pairs for pc, or nil if pc has none
// (e.g. a frame that isn't JIT-compiled code the collector needs to scan).
func (m *StackMap) EntriesAt(pc uintptr) []BaseDerivedPair {
	return m.entries[pc]
}
