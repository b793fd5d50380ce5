/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package gc

import "corevm/ref"

// FrameStack is the runtime's stack of root lists (spec.md §4.5): a
// per-function call into native code pushes a frame at entry and pops at
// return, with at least one frame always present.
type FrameStack struct {
	frames []*RootList
}

// NewFrameStack returns a frame stack with its one always-present bottom
// frame already pushed.
func NewFrameStack() *FrameStack {
	return &FrameStack{frames: []*RootList{NewRootList()}}
}

// PushFrame appends a new, empty root list to the stack.
func (fs *FrameStack) PushFrame() {
	fs.frames = append(fs.frames, NewRootList())
}

// PopFrame drops the top root list and every root cell it held. The
// bottom frame may not be popped.
func (fs *FrameStack) PopFrame() {
	if len(fs.frames) <= 1 {
		return
	}
	fs.frames = fs.frames[:len(fs.frames)-1]
}

// Top returns the current innermost root list, where new locals get
// allocated.
func (fs *FrameStack) Top() *RootList {
	return fs.frames[len(fs.frames)-1]
}

// VisitRoots calls visit once for every live root address across every
// frame, oldest frame first.
func (fs *FrameStack) VisitRoots(visit func(ref.Addr)) {
	for _, rl := range fs.frames {
		rl.VisitLive(func(r RootRef) { visit(r.Get()) })
	}
}

// VisitRefs calls visit with each live cell's RootRef (rather than just
// its current value), letting the collector's pointer-fixup phase rewrite
// cells in place (spec.md §4.6 step 5: "for every active frame, rewrite
// in place").
func (fs *FrameStack) VisitRefs(visit func(RootRef)) {
	for _, rl := range fs.frames {
		rl.VisitLive(visit)
	}
}
