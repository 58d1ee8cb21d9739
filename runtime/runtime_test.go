package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wafflevm/wafflevm/internal/bytecode"
	"github.com/wafflevm/wafflevm/internal/codegen"
	"github.com/wafflevm/wafflevm/internal/object"
	"github.com/wafflevm/wafflevm/value"
)

func newCellValue(rt *Runtime) value.Value {
	return object.ToValue(rt.Heap.NewObject(0))
}

func TestStackPushPopWalkOrdersInnermostFirst(t *testing.T) {
	var s Stack
	f1 := NewCallFrame(nil, 0, value.Undefined(), nil)
	f2 := NewCallFrame(nil, 0, value.Undefined(), nil)
	s.Push(f1)
	s.Push(f2)
	require.Same(t, f2, s.Top())

	var seen []*CallFrame
	s.Walk(func(cf *CallFrame) { seen = append(seen, cf) })
	require.Equal(t, []*CallFrame{f2, f1}, seen)

	require.Same(t, f2, s.Pop())
	require.Same(t, f1, s.Top())
	require.Same(t, f1, s.Pop())
	require.Nil(t, s.Pop())
}

func TestFiberResumeTwiceWithoutSuspendPanics(t *testing.T) {
	f := NewFiber(nil)
	f.Resume()
	require.True(t, f.Running())
	require.Panics(t, func() { f.Resume() })
}

func TestFiberFinishStopsRunningAndMarksTerminated(t *testing.T) {
	f := NewFiber(nil)
	f.Resume()
	f.Finish()
	require.False(t, f.Running())
	require.True(t, f.Terminated())
}

func TestFiberRootsCollectsOnlyCellsFromLiveFrames(t *testing.T) {
	rt := New(nil)
	cellVal := newCellValue(rt)

	f := NewFiber(nil)
	frame := NewCallFrame(nil, 2, cellVal, nil)
	frame.Registers[0] = value.NewInt32(7)
	frame.Registers[1] = cellVal
	f.Stack.Push(frame)

	roots := f.Roots()
	require.Len(t, roots, 2) // This + Registers[1], Registers[0] is a plain int
}

func TestFiberRootsRecursesIntoPrev(t *testing.T) {
	rt := New(nil)
	cellVal := newCellValue(rt)

	prev := NewFiber(nil)
	prevFrame := NewCallFrame(nil, 1, cellVal, nil)
	prev.Stack.Push(prevFrame)

	cur := NewFiber(prev)
	roots := cur.Roots()
	require.Len(t, roots, 1)
}

func TestRuntimeRootUnrootReusesFreedSlots(t *testing.T) {
	rt := New(nil)
	a := rt.root(1)
	b := rt.root(2)
	require.NotEqual(t, a, b)

	rt.unroot(a)
	c := rt.root(3)
	require.Equal(t, a, c, "unrooted slot should be reused before growing the slice")
}

func TestRuntimeRootsIncludesGlobalAndHandles(t *testing.T) {
	rt := New(nil)
	h := Allocate[any](rt, newCellValue(rt))
	defer h.Release()

	roots := rt.Roots()
	require.Contains(t, roots, rt.Global)
	require.Contains(t, roots, h.Cell())
}

func TestAllocateNonCellRoundTripsValueWithoutRooting(t *testing.T) {
	rt := New(nil)
	h := Allocate[int32](rt, value.NewInt32(42))
	require.Equal(t, value.NewInt32(42), h.Value())

	before := len(rt.Roots())
	h.Release() // no-op: nothing was ever rooted
	require.Equal(t, before, len(rt.Roots()))
}

func TestAllocateCellRootsAndReleaseUnroots(t *testing.T) {
	rt := New(nil)
	v := newCellValue(rt)
	h := Allocate[any](rt, v)
	require.Equal(t, v, h.Value())

	withRoot := len(rt.Roots())
	h.Release()
	require.Less(t, len(rt.Roots()), withRoot)

	require.NotPanics(t, func() { h.Release() }, "double release must be a no-op")
}

func TestCompileProducesInvocableCode(t *testing.T) {
	cb := bytecode.NewCodeBlock("add", 2)
	cb.ReserveLocals(len(MachineRegisters))
	r := cb.AllocLocal()
	blk := cb.EntryBlock()
	blk.Code = append(blk.Code,
		bytecode.NewBinary(bytecode.OpAdd, r, bytecode.Argument(0), bytecode.Argument(1)),
		bytecode.Instruction{Op: bytecode.OpReturn, Lhs: r},
	)

	rt := New(nil)
	rt.Helpers = codegen.RuntimeHelpers{Add: 0x1000}
	co, err := rt.Compile(cb)
	require.NoError(t, err)
	defer co.Free()

	require.NotZero(t, co.Address())
	require.NotEmpty(t, co.Bytes())
}

func TestCompileRejectsMalformedBlock(t *testing.T) {
	cb := bytecode.NewCodeBlock("bad", 1)
	cb.ReserveLocals(len(MachineRegisters))
	r := cb.AllocLocal()
	blk := cb.EntryBlock()
	// Last instruction is a Mov, not a terminator: Verify must reject it.
	blk.Code = append(blk.Code, bytecode.Instruction{Op: bytecode.OpMov, Dst: r, Lhs: bytecode.Argument(0)})

	rt := New(nil)
	_, err := rt.Compile(cb)
	require.Error(t, err)
}

func TestInvokeWithoutTrampolineReturnsSentinelError(t *testing.T) {
	rt := New(nil)
	co, err := rt.Compile(simpleReturningCodeBlock())
	require.NoError(t, err)
	defer co.Free()

	_, err = rt.Invoke(co, value.Undefined(), nil)
	require.ErrorIs(t, err, ErrNoTrampoline)
}

func TestInvokeDelegatesToTrampolineAndPopsFrame(t *testing.T) {
	rt := New(nil)
	co, err := rt.Compile(simpleReturningCodeBlock())
	require.NoError(t, err)
	defer co.Free()

	var sawFrame *CallFrame
	rt.Trampoline = func(entry uintptr, frame *CallFrame) (value.Value, error) {
		require.Equal(t, co.Address(), entry)
		sawFrame = frame
		return value.NewInt32(99), nil
	}

	result, err := rt.Invoke(co, value.Undefined(), nil)
	require.NoError(t, err)
	require.Equal(t, value.NewInt32(99), result)
	require.NotNil(t, sawFrame)
	require.Nil(t, rt.fiber.Stack.Top(), "frame must be popped after Invoke returns")
}

func simpleReturningCodeBlock() *bytecode.CodeBlock {
	cb := bytecode.NewCodeBlock("ret", 1)
	cb.ReserveLocals(len(MachineRegisters))
	blk := cb.EntryBlock()
	blk.Code = append(blk.Code, bytecode.Instruction{Op: bytecode.OpReturn, Lhs: bytecode.Argument(0)})
	return cb
}
