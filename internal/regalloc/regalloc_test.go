package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wafflevm/wafflevm/internal/bytecode"
)

const numMachineRegs = 2

// buildThreeMutuallyLive builds one block with three temps loaded ahead of
// an accumulation chain, forcing several of them (plus the accumulator)
// to be simultaneously live against a 2-color palette — the same register
// pressure spec.md §8 scenario S6 exercises, though with an accumulator
// register added the exact spill count differs from S6's "exactly one".
func buildThreeMutuallyLive() *bytecode.CodeBlock {
	cb := bytecode.NewCodeBlock("s6", 0)
	cb.ReserveLocals(numMachineRegs)

	t0 := cb.AllocLocal()
	t1 := cb.AllocLocal()
	t2 := cb.AllocLocal()
	acc := cb.AllocLocal()

	b := cb.EntryBlock()
	// Define all three, independently, so none is clearly preferable by
	// definition order.
	b.Append(bytecode.Instruction{Op: bytecode.OpLoadGlobal, Dst: t0, Name: 0})
	b.Append(bytecode.Instruction{Op: bytecode.OpLoadGlobal, Dst: t1, Name: 1})
	b.Append(bytecode.Instruction{Op: bytecode.OpLoadGlobal, Dst: t2, Name: 2})

	// t0 used once.
	b.Append(bytecode.NewBinary(bytecode.OpAdd, acc, acc, t0))
	// t1 used twice.
	b.Append(bytecode.NewBinary(bytecode.OpAdd, acc, acc, t1))
	b.Append(bytecode.NewBinary(bytecode.OpAdd, acc, acc, t1))
	// t2 used three times.
	b.Append(bytecode.NewBinary(bytecode.OpAdd, acc, acc, t2))
	b.Append(bytecode.NewBinary(bytecode.OpAdd, acc, acc, t2))
	b.Append(bytecode.NewBinary(bytecode.OpAdd, acc, acc, t2))

	b.Append(bytecode.Instruction{Op: bytecode.OpReturn, Lhs: acc})
	return cb
}

func TestAllocateCodeBlockSucceedsUnderSpillPressure(t *testing.T) {
	cb := buildThreeMutuallyLive()

	result, err := AllocateCodeBlock(cb, numMachineRegs)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.NoError(t, cb.Verify())
}

func TestInterferenceGraphDetectsMutualLiveness(t *testing.T) {
	cb := bytecode.NewCodeBlock("pair", 0)
	cb.ReserveLocals(numMachineRegs)
	a := cb.AllocLocal()
	bReg := cb.AllocLocal()

	blk := cb.EntryBlock()
	blk.Append(bytecode.Instruction{Op: bytecode.OpLoadGlobal, Dst: a, Name: 0})
	blk.Append(bytecode.Instruction{Op: bytecode.OpLoadGlobal, Dst: bReg, Name: 1})
	blk.Append(bytecode.NewBinary(bytecode.OpAdd, a, a, bReg))
	blk.Append(bytecode.Instruction{Op: bytecode.OpReturn, Lhs: a})

	result, err := AllocateCodeBlock(cb, numMachineRegs)
	require.NoError(t, err)
	require.NoError(t, cb.Verify())
	require.NotNil(t, result)
}

func TestSimpleMoveCoalesces(t *testing.T) {
	cb := bytecode.NewCodeBlock("mov", 0)
	cb.ReserveLocals(4)
	a := cb.AllocLocal()
	c := cb.AllocLocal()

	blk := cb.EntryBlock()
	blk.Append(bytecode.Instruction{Op: bytecode.OpLoadGlobal, Dst: a, Name: 0})
	blk.Append(bytecode.Instruction{Op: bytecode.OpMov, Dst: c, Lhs: a})
	blk.Append(bytecode.Instruction{Op: bytecode.OpReturn, Lhs: c})

	result, err := AllocateCodeBlock(cb, 4)
	require.NoError(t, err)
	require.NoError(t, cb.Verify())
	require.NotNil(t, result)
}
