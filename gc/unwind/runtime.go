/*
 * corevm - a just-in-time JVM core
 * Reworked from the Jacobin VM (Copyright 2021-4 the Jacobin authors, MPL 2.0)
 */

package unwind

import "runtime"

// runtimeContext is a best-effort Context backed by one runtime.Frame.
// Go does not expose a compiled function's register file to user code, so
// ReadRegister/WriteRegister are no-ops here: a real JIT-compiled mutator
// would supply its own Context (e.g. reading spilled registers out of a
// compiler-emitted save area), and tests exercise the collector against
// MockContext instead of this one.
type runtimeContext struct {
	pc uintptr
}

func (c runtimeContext) ProgramCounter() uintptr    { return c.pc }
func (c runtimeContext) ReadRegister(n int) uint64   { return 0 }
func (c runtimeContext) WriteRegister(n int, v uint64) {}

// RuntimeWalker walks the calling goroutine's Go call stack via
// runtime.Callers. It exists to give the collector *some* default
// Walker outside of tests; a JIT mutator in this core would register its
// own Walker over the compiled code's frame-pointer chain instead.
type RuntimeWalker struct {
	// SkipFrames is the number of innermost frames (e.g. the collector's
	// own Collect method) to omit from the walk.
	SkipFrames int
}

func (w RuntimeWalker) Walk() []Context {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2+w.SkipFrames, pcs)
	contexts := make([]Context, 0, n)
	for _, pc := range pcs[:n] {
		contexts = append(contexts, runtimeContext{pc: pc})
	}
	return contexts
}
