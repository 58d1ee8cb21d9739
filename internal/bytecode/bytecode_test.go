package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wafflevm/wafflevm/value"
)

func TestVRegFlavors(t *testing.T) {
	l := Local(3)
	require.True(t, l.IsLocal())
	require.False(t, l.IsConstant())
	require.False(t, l.IsArgument())
	require.Equal(t, 3, l.ToLocalIndex())

	c := Constant(5)
	require.True(t, c.IsConstant())
	require.False(t, c.IsLocal())
	require.Equal(t, 5, c.ToConstantIndex())

	a := Argument(0)
	require.True(t, a.IsArgument())
	require.Equal(t, 0, a.ToArgumentIndex())

	a1 := Argument(1)
	require.Equal(t, 1, a1.ToArgumentIndex())
	require.NotEqual(t, a, a1)

	require.False(t, InvalidVReg.IsValid())
	require.True(t, l.IsValid())
}

func TestOpcodeClassification(t *testing.T) {
	require.True(t, OpReturn.IsTerminator())
	require.True(t, OpJump.IsTerminator())
	require.True(t, OpJumpConditional.IsTerminator())
	require.True(t, OpThrow.IsTerminator())
	require.False(t, OpAdd.IsTerminator())
	require.False(t, OpMov.IsTerminator())

	require.True(t, OpAdd.IsArithmetic())
	require.True(t, OpGreaterEqual.IsArithmetic())
	require.False(t, OpMov.IsArithmetic())
	require.False(t, OpCall.IsArithmetic())
}

func TestInstructionUsesAndDefs(t *testing.T) {
	in := NewBinary(OpAdd, Local(2), Local(0), Local(1))
	uses := in.GetUses(nil)
	require.ElementsMatch(t, []VReg{Local(0), Local(1)}, uses)
	defs := in.GetDefs(nil)
	require.Equal(t, []VReg{Local(2)}, defs)

	mov := Instruction{Op: OpMov, Dst: Local(1), Lhs: Local(0)}
	require.True(t, mov.IsMove())
	require.ElementsMatch(t, []VReg{Local(0)}, mov.GetUses(nil))
	require.Equal(t, []VReg{Local(1)}, mov.GetDefs(nil))
}

func TestInstructionReplaceReg(t *testing.T) {
	in := NewBinary(OpAdd, Local(2), Local(0), Local(1))
	in.ReplaceReg(Local(0), Local(9))
	require.Equal(t, Local(9), in.Lhs)
	require.Equal(t, Local(1), in.Rhs)

	call := Instruction{Op: OpCall, Dst: Local(3), Lhs: Local(4), Rhs: Local(5),
		Args: []VReg{Local(6), Local(7)}}
	call.ReplaceReg(Local(6), Local(42))
	require.Equal(t, []VReg{Local(42), Local(7)}, call.Args)
}

func TestInstructionBranchTargets(t *testing.T) {
	jmp := Instruction{Op: OpJump, Target: 3}
	require.Equal(t, []BlockID{3}, jmp.BranchTargets())

	cond := Instruction{Op: OpJumpConditional, Lhs: Local(0), Target: 1, Target2: 2}
	require.Equal(t, []BlockID{1, 2}, cond.BranchTargets())

	require.True(t, cond.TryReplaceBranchTargets(2, 9))
	require.Equal(t, BlockID(9), cond.Target2)
	require.False(t, cond.TryReplaceBranchTargets(99, 0))
}

func TestBasicBlockWellFormed(t *testing.T) {
	var b BasicBlock
	require.Nil(t, b.Terminator())
	require.False(t, b.IsWellFormed())

	b.Append(NewBinary(OpAdd, Local(0), Local(1), Local(2)))
	require.False(t, b.IsWellFormed())

	b.Append(Instruction{Op: OpReturn, Lhs: Local(0)})
	require.True(t, b.IsWellFormed())
	require.Equal(t, OpReturn, b.Terminator().Op)
}

func TestCodeBlockConstruction(t *testing.T) {
	cb := NewCodeBlock("f", 1)
	require.Len(t, cb.Blocks, 1)
	require.Equal(t, BlockID(0), cb.EntryBlock().ID)

	body := cb.AddBlock()
	require.Equal(t, BlockID(1), body)

	r0 := cb.AllocLocal()
	require.Equal(t, Local(0), r0)
	r1 := cb.AllocLocal()
	require.Equal(t, Local(1), r1)
	require.Equal(t, 2, cb.NumVars)

	k := cb.AddConstant(value.NewInt32(7))
	require.True(t, k.IsConstant())
	require.Equal(t, value.NewInt32(7), cb.Constants[k.ToConstantIndex()])
}

func TestCodeBlockVerify(t *testing.T) {
	cb := NewCodeBlock("f", 0)
	cb.EntryBlock().Append(Instruction{Op: OpReturn, Lhs: Local(0)})
	require.NoError(t, cb.Verify())

	bad := NewCodeBlock("g", 0)
	bad.EntryBlock().Append(NewBinary(OpAdd, Local(0), Local(1), Local(2)))
	err := bad.Verify()
	require.Error(t, err)
	var malformed *MalformedBlockError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, BlockID(0), malformed.Block)
}
