package runtime

import (
	"sync/atomic"

	"github.com/wafflevm/wafflevm/internal/object"
	"github.com/wafflevm/wafflevm/value"
)

// Fiber is a stackful coroutine: one mutator's call stack plus the
// scheduling flags the runtime checks before resuming it.
//
// Grounded on original_source/src/fiber.rs's Fiber: Running/Terminated
// map to atomic.Bool (the original's AtomicBool, racing two threads
// resuming the same fiber is a programming error there too — spec.md §5
// specifies a single mutator thread, so this port never actually
// contends on them, but keeps the flags for the same documentation value
// the original gets from them), CallStack becomes Stack, and Prev stays
// a linked pointer to whatever fiber was running before this one was
// resumed (e.g. a generator yielding back to its caller).
type Fiber struct {
	running    atomic.Bool
	terminated atomic.Bool
	Stack      Stack
	Prev       *Fiber
}

// NewFiber returns a fresh, non-running fiber with an empty call stack.
func NewFiber(prev *Fiber) *Fiber {
	return &Fiber{Prev: prev}
}

// Running reports whether this fiber is the one currently executing.
func (f *Fiber) Running() bool { return f.running.Load() }

// Terminated reports whether this fiber has finished and can never be
// resumed again.
func (f *Fiber) Terminated() bool { return f.terminated.Load() }

// Resume marks the fiber running, panicking if it already is — the Go
// analogue of original_source's documented two-thread-resume panic,
// reachable here only as a programming-error guard since spec.md §5
// restricts this core to a single mutator thread.
func (f *Fiber) Resume() {
	if !f.running.CompareAndSwap(false, true) {
		panic("runtime: fiber resumed while already running")
	}
}

// Suspend marks the fiber no longer running.
func (f *Fiber) Suspend() { f.running.Store(false) }

// Finish marks the fiber terminated and no longer running.
func (f *Fiber) Finish() {
	f.terminated.Store(true)
	f.running.Store(false)
}

// Roots collects every Cell handle directly reachable from this fiber's
// live call frames — the "every active call frame's register file" root
// set spec.md §5 requires the collector to trace, plus (per
// original_source's walk_references chaining into `prev`) every handle
// reachable from the fiber that was running before this one, since a
// suspended fiber's still-live locals must survive a collection that
// runs while a different fiber is on top.
func (f *Fiber) Roots() []object.Handle {
	var roots []object.Handle
	f.Stack.Walk(func(cf *CallFrame) {
		appendCellHandle(&roots, cf.This)
		appendCellHandle(&roots, cf.Env)
		appendCellHandle(&roots, cf.Module)
		for _, v := range cf.Registers {
			appendCellHandle(&roots, v)
		}
		for _, v := range cf.Arguments {
			appendCellHandle(&roots, v)
		}
	})
	if f.Prev != nil {
		roots = append(roots, f.Prev.Roots()...)
	}
	return roots
}

func appendCellHandle(roots *[]object.Handle, v value.Value) {
	if v.IsCell() && !v.IsEmpty() {
		*roots = append(*roots, object.HandleOf(v))
	}
}
