/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package gc

import (
	"sync"
	"time"
)

// CycleStats is a record of one completed collection cycle: the live-data
// size before and after, how long the cycle took, and the heap's total
// capacity. Grounded on _examples/mabhi256-jdiag's gc.GCEvent (Duration,
// HeapBefore/HeapAfter/HeapTotal), trimmed to the fields a single
// in-process collector actually knows about a cycle it just ran rather
// than one recovered from a parsed log line.
type CycleStats struct {
	Cycle        int
	BytesBefore  int
	BytesAfter   int
	HeapCapacity int
	Pause        time.Duration
}

// Occupancy returns the fraction of the heap's capacity occupied by live
// data after the cycle, in [0, 1].
func (s CycleStats) Occupancy() float64 {
	if s.HeapCapacity == 0 {
		return 0
	}
	return float64(s.BytesAfter) / float64(s.HeapCapacity)
}

// statsRecorder accumulates cycle history behind a mutex: Collect runs on
// the owning goroutine (spec.md §5's single-owner model), but gcmon polls
// Stats from a separate bubbletea update loop.
type statsRecorder struct {
	mu      sync.Mutex
	cycle   int
	history []CycleStats
}

func (r *statsRecorder) record(bytesBefore, bytesAfter, capacity int, pause time.Duration) CycleStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycle++
	s := CycleStats{Cycle: r.cycle, BytesBefore: bytesBefore, BytesAfter: bytesAfter, HeapCapacity: capacity, Pause: pause}
	r.history = append(r.history, s)
	return s
}

// Latest returns the most recently completed cycle's stats, and whether
// any cycle has run yet.
func (r *statsRecorder) Latest() (CycleStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return CycleStats{}, false
	}
	return r.history[len(r.history)-1], true
}

// History returns every recorded cycle, oldest first.
func (r *statsRecorder) History() []CycleStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CycleStats, len(r.history))
	copy(out, r.history)
	return out
}
