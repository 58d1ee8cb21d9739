// Package runtime is the embedding API of spec.md §6: the boundary
// everything in internal/... sits behind, mirroring how wazero keeps its
// whole wazevo backend internal and exposes only the top-level `wazero`
// package (SPEC_FULL.md's PACKAGE LAYOUT note). A host program constructs
// a Runtime, compiles CodeBlocks the front end supplies, and invokes the
// resulting Code — it never imports internal/heap, internal/gc,
// internal/regalloc, internal/codegen, or internal/code directly.
//
// Grounded on original_source/src/vm.rs's VirtualMachine{heap, stack}
// for the top-level struct shape, and on spec.md §9's "re-architect [the
// process-wide singleton] as an explicit Runtime context passed through
// every API that allocates or emits code" design note.
package runtime

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wafflevm/wafflevm/internal/codegen"
	"github.com/wafflevm/wafflevm/internal/gc"
	"github.com/wafflevm/wafflevm/internal/object"
	"github.com/wafflevm/wafflevm/value"
)

// Runtime is the single explicit context spec.md §9 asks for in place of
// the original's process-wide singleton: it owns the heap, the
// collector, the current fiber chain, and the native helper table every
// compiled Code object calls out to.
type Runtime struct {
	Heap      *object.Heap
	Collector *gc.Collector
	Global    object.Handle

	fiber *Fiber

	// Helpers supplies the native addresses FullCodegen's generated slow
	// paths call (spec.md §6's "tiny C ABI ... consumed" helper table).
	// Populating these with real, callable addresses requires a
	// System-V-ABI-compatible bridge into this process (cgo or hand
	// written assembly) that this module, being pure Go, does not ship;
	// an embedder wires Helpers before the first Invoke. Compile still
	// succeeds without them — the addresses are only read back by
	// generated code at call time, never validated at compile time.
	Helpers codegen.RuntimeHelpers

	// Trampoline enters a Code object's machine code with a prepared
	// CallFrame and returns its result. Left nil, Invoke refuses to run
	// anything rather than attempt an unsafe bare call through a raw
	// uintptr — see invoke.go's doc comment for why entering native code
	// from Go needs this injected rather than implemented in-package.
	Trampoline func(entry uintptr, frame *CallFrame) (value.Value, error)

	log *zap.Logger

	roots     []object.Handle
	freeRoots []int
}

// New constructs heap, collector, and global object per spec.md §6's
// `Runtime::new()`. log may be nil, defaulting to a no-op logger the same
// way internal/gc.NewCollector does.
func New(log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	h := object.NewHeap()
	rt := &Runtime{
		Heap:      h,
		Collector: gc.NewCollector(h, log),
		Global:    h.NewObject(0),
		log:       log,
	}
	rt.fiber = NewFiber(nil)
	return rt
}

// Fiber returns the currently scheduled fiber.
func (rt *Runtime) Fiber() *Fiber { return rt.fiber }

// Resume switches the running fiber to f, chaining the previously
// running fiber as f.Prev so its still-live locals keep tracing
// (Fiber.Roots' walk into Prev).
func (rt *Runtime) Resume(f *Fiber) {
	f.Prev = rt.fiber
	rt.fiber = f
	f.Resume()
}

// Roots returns every GC root the collector must trace right now: the
// global object, the current fiber chain's live call frames (and every
// suspended fiber chained through Prev), and every outstanding
// Handle[T] from Allocate.
func (rt *Runtime) Roots() []object.Handle {
	roots := append([]object.Handle{rt.Global}, rt.fiber.Roots()...)
	for _, h := range rt.roots {
		if h != 0 {
			roots = append(roots, h)
		}
	}
	return roots
}

// Collect runs a collection synchronously, per spec.md §5's "an
// allocation that requires space may call into the collector, which
// runs to completion before returning to the caller" scheduling model.
func (rt *Runtime) Collect() {
	rt.Collector.Collect(rt.Roots())
}

func (rt *Runtime) root(id object.Handle) int {
	if n := len(rt.freeRoots); n > 0 {
		slot := rt.freeRoots[n-1]
		rt.freeRoots = rt.freeRoots[:n-1]
		rt.roots[slot] = id
		return slot
	}
	rt.roots = append(rt.roots, id)
	return len(rt.roots) - 1
}

func (rt *Runtime) unroot(slot int) {
	if slot < 0 || slot >= len(rt.roots) || rt.roots[slot] == 0 {
		return
	}
	rt.roots[slot] = 0
	rt.freeRoots = append(rt.freeRoots, slot)
}

// RuntimeError is the embedding-boundary error type for spec.md §7's
// "user-visible errors surface as Result-style return values": it wraps
// whichever Value a Throw opcode or a bailout's trap stub produced.
type RuntimeError struct {
	Trap  TrapCode
	Value value.Value
}

func (e *RuntimeError) Error() string {
	if e.Trap != TrapNone {
		return fmt.Sprintf("runtime: trap %s", e.Trap)
	}
	return "runtime: uncaught exception"
}

// TrapCode enumerates the bailout reasons spec.md §6 requires generated
// code to pass to the runtime in an argument register.
type TrapCode int

const (
	TrapNone TrapCode = iota
	TrapDivideByZero
	TrapIndexOutOfBounds
	TrapNilDereference
	TrapIntOverflow
	TrapTypeError
)

func (t TrapCode) String() string {
	switch t {
	case TrapNone:
		return "none"
	case TrapDivideByZero:
		return "DIV0"
	case TrapIndexOutOfBounds:
		return "INDEX_OUT_OF_BOUNDS"
	case TrapNilDereference:
		return "NIL"
	case TrapIntOverflow:
		return "INT_OVERFLOW"
	case TrapTypeError:
		return "TYPE_ERROR"
	default:
		return fmt.Sprintf("TrapCode(%d)", int(t))
	}
}
