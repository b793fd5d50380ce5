/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package gc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corevm/classloader"
)

func TestCollectRecordsCycleStats(t *testing.T) {
	class := &classloader.ClassObject{Kind: classloader.KindClass}
	heap := NewHeap(256, NewFrameStack(), nil)

	_, ok := heap.Stats()
	assert.False(t, ok, "no cycle has run yet")

	_, err := heap.Allocate(class, 0)
	require.NoError(t, err)

	heap.Collect()

	stats, ok := heap.Stats()
	require.True(t, ok)
	assert.Equal(t, 1, stats.Cycle)
	assert.Equal(t, 256, stats.HeapCapacity)
	assert.GreaterOrEqual(t, stats.BytesBefore, stats.BytesAfter)

	heap.Collect()
	history := heap.StatsHistory()
	assert.Len(t, history, 2)
	assert.Equal(t, 2, history[1].Cycle)
}

func TestCycleStatsOccupancy(t *testing.T) {
	s := CycleStats{BytesAfter: 64, HeapCapacity: 256}
	assert.InDelta(t, 0.25, s.Occupancy(), 0.0001)

	s = CycleStats{HeapCapacity: 0}
	assert.Equal(t, 0.0, s.Occupancy())
}
