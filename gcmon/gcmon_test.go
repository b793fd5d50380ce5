/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package gcmon

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corevm/classloader"
	"corevm/gc"
)

func TestViewBeforeFirstCycleIsWaiting(t *testing.T) {
	heap := gc.NewHeap(256, gc.NewFrameStack(), nil)
	m := NewModel(heap)
	assert.Contains(t, m.View(), "waiting for the first collection cycle")
}

func TestUpdateOnTickPicksUpLatestStats(t *testing.T) {
	class := &classloader.ClassObject{Kind: classloader.KindClass}
	heap := gc.NewHeap(256, gc.NewFrameStack(), nil)
	_, err := heap.Allocate(class, 0)
	require.NoError(t, err)
	heap.Collect()

	m := NewModel(heap)
	updated, cmd := m.Update(tickMsg(time.Now()))
	next := updated.(*Model)

	assert.True(t, next.seen)
	assert.Equal(t, 1, next.latest.Cycle)
	assert.Contains(t, next.View(), "cycle #1")
	assert.NotNil(t, cmd)
}

func TestUpdateQuitsOnQ(t *testing.T) {
	m := NewModel(gc.NewHeap(256, gc.NewFrameStack(), nil))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestWithDriverRunsOnceBeforeEachPoll(t *testing.T) {
	heap := gc.NewHeap(256, gc.NewFrameStack(), nil)
	calls := 0
	m := NewModel(heap).WithDriver(func() { calls++ })

	_, _ = m.Update(tickMsg(time.Now()))
	_, _ = m.Update(tickMsg(time.Now()))

	assert.Equal(t, 2, calls)
}
