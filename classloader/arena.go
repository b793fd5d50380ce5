/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package classloader

const classArenaChunkSize = 256

// classArena is the bump allocator class objects are pinned in for the
// process lifetime (spec.md §3 "Lifecycles": "created by the class
// loader, never freed, pinned in a bump allocator"). Allocating in fixed
// chunks, rather than append()-ing to one growing slice, keeps every
// previously returned *ClassObject stable — a reallocating slice would
// invalidate them the moment it grew.
type classArena struct {
	chunks [][]ClassObject
}

func newClassArena() *classArena {
	return &classArena{}
}

func (a *classArena) alloc() *ClassObject {
	if len(a.chunks) == 0 || len(a.chunks[len(a.chunks)-1]) == cap(a.chunks[len(a.chunks)-1]) {
		a.chunks = append(a.chunks, make([]ClassObject, 0, classArenaChunkSize))
	}
	last := &a.chunks[len(a.chunks)-1]
	*last = (*last)[:len(*last)+1]
	return &(*last)[len(*last)-1]
}

// Count returns the number of class objects allocated so far, across all
// chunks.
func (a *classArena) Count() int {
	n := 0
	for _, c := range a.chunks {
		n += len(c)
	}
	return n
}
