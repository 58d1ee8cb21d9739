package runtime

import "github.com/wafflevm/wafflevm/value"

// CallFrame is one activation record in a Stack's linked chain: the
// register window FullCodegen's generated code reads `this`/arguments
// out of via the CallFrame-relative Argument operand (internal/codegen's
// argumentMem), plus the bookkeeping a conservative stack walk and the
// catch-handler unwinder need.
//
// Grounded field-for-field on original_source/src/stack/callframe.rs's
// CallFrame: Registers/This/Env/Module/Arguments/RegCount map directly.
// Caller is this port's addition, turning the original's implicit
// native-stack frame-pointer chain into an explicit linked list a Go
// collector can walk without reading raw stack memory.
type CallFrame struct {
	// Registers holds every local virtual register's value for the
	// interpreter view of this frame (root-scanning and a future
	// interpreter fallback both read it); the compiled fast path instead
	// keeps these values live in real machine registers and only ever
	// touches this slice indirectly, through Safepoint's save area.
	Registers []value.Value
	This      value.Value
	Env       value.Value
	Module    value.Value
	Arguments []value.Value
	RegCount  uint8

	// Caller is the frame that invoked this one, or nil for a fiber's
	// outermost frame.
	Caller *CallFrame

	// ReturnPC is the return address pushed by the call instruction that
	// entered this frame's code; the catch-handler unwinder resolves it
	// against the active Code's Handlers table (spec.md §6).
	ReturnPC uintptr
}

// NewCallFrame builds a frame for a call with numRegs locals and the
// given this-binding/arguments, linked to caller (nil for a fresh
// fiber's first frame).
func NewCallFrame(caller *CallFrame, numRegs int, this value.Value, args []value.Value) *CallFrame {
	return &CallFrame{
		Registers: make([]value.Value, numRegs),
		This:      this,
		Arguments: args,
		RegCount:  uint8(numRegs),
		Caller:    caller,
	}
}

// Stack is a fiber's linked chain of CallFrames, topped by the
// most-recently-entered frame — the Go analogue of the native call
// stack original_source's stackful-coroutine Fiber walks via raw frame
// pointers.
type Stack struct {
	top *CallFrame
}

// Push installs f as the new top frame, chaining it to whatever was
// previously on top.
func (s *Stack) Push(f *CallFrame) {
	f.Caller = s.top
	s.top = f
}

// Pop removes and returns the top frame.
func (s *Stack) Pop() *CallFrame {
	f := s.top
	if f != nil {
		s.top = f.Caller
	}
	return f
}

// Top returns the current top frame, or nil if the stack is empty.
func (s *Stack) Top() *CallFrame { return s.top }

// Walk visits every frame from the top down to the outermost, the order
// the collector's conservative root scan and the catch-handler unwinder
// both need (innermost frame first).
func (s *Stack) Walk(visit func(*CallFrame)) {
	for f := s.top; f != nil; f = f.Caller {
		visit(f)
	}
}
