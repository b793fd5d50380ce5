/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

// Package gcmon is a live terminal dashboard over a running gc.Heap's
// collection history, grounded on _examples/mabhi256-jdiag's
// internal/tui (bar.go's horizontal-bar rendering, styles.go's palette),
// adapted from a log-file visualizer to a live poller: where jdiag reads
// a completed GC log and renders it once, gcmon polls gc.Heap.Stats on a
// bubbletea tick and redraws as new cycles complete.
package gcmon

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"corevm/gc"
)

var (
	goodColor  = lipgloss.Color("#228B22")
	warnColor  = lipgloss.Color("#FF8800")
	critColor  = lipgloss.Color("#CC3333")
	mutedColor = lipgloss.Color("#888888")
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	barFilled = "█"
	barEmpty  = "▱"
)

const barWidth = 40

// pollInterval is how often the TUI re-reads the heap's stats recorder.
const pollInterval = 500 * time.Millisecond

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the bubbletea model driving the dashboard: it holds only a
// reference to the heap being observed and the latest polled snapshot.
type Model struct {
	heap   *gc.Heap
	driver func()
	width  int
	latest gc.CycleStats
	seen   bool
}

// NewModel returns a Model that will poll heap's collection stats. Since
// the heap is not reentrant across threads (spec.md §5), any allocation
// activity the dashboard should react to must be driven from inside this
// same bubbletea event loop rather than a separate goroutine; pass such a
// driver with WithDriver.
func NewModel(heap *gc.Heap) *Model {
	return &Model{heap: heap}
}

// WithDriver installs a function called once per tick, before the stats
// poll, from bubbletea's own single update goroutine — e.g. to advance a
// synthetic allocation workload without introducing a second thread onto
// the heap.
func (m *Model) WithDriver(driver func()) *Model {
	m.driver = driver
	return m
}

func (m *Model) Init() tea.Cmd {
	return tickCmd()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		if m.driver != nil {
			m.driver()
		}
		if stats, ok := m.heap.Stats(); ok {
			m.latest, m.seen = stats, true
		}
		return m, tickCmd()
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("corevm gc monitor") + "\n")
	b.WriteString(mutedStyle.Render("q to quit") + "\n\n")

	if !m.seen {
		b.WriteString(mutedStyle.Render("waiting for the first collection cycle...") + "\n")
		return b.String()
	}

	occupancy := m.latest.Occupancy()
	b.WriteString(occupancyBar("heap occupancy", occupancy))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("cycle #%d  pause %s  %d -> %d bytes (capacity %d)\n",
		m.latest.Cycle, m.latest.Pause, m.latest.BytesBefore, m.latest.BytesAfter, m.latest.HeapCapacity))
	return b.String()
}

// occupancyBar renders one labelled horizontal bar for a [0,1] fraction,
// in the same "label │bar│ value" shape as jdiag's CreateHorizontalBar.
func occupancyBar(label string, fraction float64) string {
	color := goodColor
	switch {
	case fraction >= 0.9:
		color = critColor
	case fraction >= 0.7:
		color = warnColor
	}

	filled := int(fraction * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, barWidth-filled)
	styledBar := lipgloss.NewStyle().Foreground(color).Render(bar)

	return fmt.Sprintf("%-16s │%s│ %5.1f%%\n", label, styledBar, fraction*100)
}

// Run starts the dashboard as a full-screen bubbletea program, blocking
// until the user quits.
func Run(heap *gc.Heap) error {
	return RunWithDriver(heap, nil)
}

// RunWithDriver is Run, but also wires driver to fire once per tick (see
// Model.WithDriver).
func RunWithDriver(heap *gc.Heap, driver func()) error {
	model := NewModel(heap).WithDriver(driver)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
