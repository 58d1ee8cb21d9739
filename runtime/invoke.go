package runtime

import (
	"errors"

	"github.com/wafflevm/wafflevm/internal/code"
	"github.com/wafflevm/wafflevm/value"
)

// ErrNoTrampoline is returned by Invoke when rt.Trampoline has not been
// set. Entering a Code object's raw machine code from the Go runtime
// needs a bridge that matches the System V calling convention Compile's
// generated prologue expects and that parks the goroutine off Go's own
// managed stack for the call's duration — neither of which this package
// can do in pure Go without cgo or a hand-written assembly shim (exactly
// the "tiny C ABI ... consumed" boundary spec.md §6 describes as an
// interface the core consumes, not one it implements). An embedder
// supplies that bridge as rt.Trampoline; this package only owns what
// happens either side of the call.
var ErrNoTrampoline = errors.New("runtime: no Trampoline configured, cannot enter compiled code")

// Invoke enters co with the given this-binding and arguments, per
// spec.md §6's `Runtime::invoke(callable, this, args) -> Result<Value,
// Value>`. It pushes a fresh CallFrame onto the current fiber's Stack
// (so the collector's root scan and the catch-handler unwinder both see
// it for the call's duration), delegates the actual entry into co's
// machine code to rt.Trampoline, and pops the frame back off before
// returning — on every path, success or error, so a bailout or an
// uncaught Throw never leaves a stale frame rooting garbage.
//
// Unwinding into a catch handler (spec.md §7: "walk catch-handler table
// by return-address range; jump to handler or propagate up frame
// chain") is Trampoline's responsibility, not Invoke's: only the code
// that actually owns the native stack pointer at the moment of a Throw
// can redirect execution to co.HandlerFor(returnPC).CatchPC. Invoke
// only ever sees Trampoline's final outcome — a successful Value, an
// unhandled *RuntimeError that propagates past this CallFrame to
// whichever frame invoked it, or a Go error for a host-level failure.
func (rt *Runtime) Invoke(co *code.Code, this value.Value, args []value.Value) (value.Value, error) {
	if rt.Trampoline == nil {
		return value.Value(0), ErrNoTrampoline
	}

	frame := NewCallFrame(rt.fiber.Stack.Top(), int(co.FrameSize()/8), this, args)
	rt.fiber.Stack.Push(frame)
	defer rt.fiber.Stack.Pop()

	return rt.Trampoline(co.Address(), frame)
}
