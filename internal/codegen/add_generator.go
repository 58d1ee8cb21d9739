package codegen

import (
	"github.com/wafflevm/wafflevm/internal/asm/x64"
	"github.com/wafflevm/wafflevm/internal/bytecode"
)

// addGenerator is OpAdd's dedicated generator, grounded on
// original_source/src/fullcodegen/jitadd_generator.rs: both operands are
// checked int32, added with a 32-bit ADD whose overflow flag branches to
// the slow path, and boxed back
// with NewIntFromReg; anything else (a double operand, or an int32+int32
// overflow) falls to the registered slow path.
type addGenerator struct {
	in     *bytecode.Instruction
	helper uint64
	slow   x64.Label
	end    x64.Label
}

func newAddGenerator(in *bytecode.Instruction, helper uint64) *addGenerator {
	return &addGenerator{in: in, helper: helper}
}

func (g *addGenerator) FastPath(gen *FullCodegen) bool {
	a := gen.masm
	g.slow = a.CreateLabel()
	g.end = a.CreateLabel()

	lhs, rhs := x64.RAX, x64.RCX
	gen.loadOperands2(g.in.Lhs, g.in.Rhs, lhs, rhs)

	a.JumpNisInt32(lhs, g.slow)
	a.JumpNisInt32(rhs, g.slow)

	a.AsInt32(lhs, lhs)
	a.AsInt32(rhs, rhs)
	a.IntAdd(x64.Int32, lhs, rhs)
	a.JumpIf(x64.CondOverflow, g.slow)

	a.NewIntFromReg(x64.ReturnReg, lhs)
	gen.storeResult(g.in.Dst, x64.ReturnReg)
	a.Jump(g.end)
	return true
}

func (g *addGenerator) SlowPath(gen *FullCodegen) {
	a := gen.masm
	a.BindLabel(g.slow)
	gen.loadOperands2(g.in.Lhs, g.in.Rhs, ccallParams[0], ccallParams[1])
	a.RawCall(g.helper)
	gen.storeResult(g.in.Dst, x64.ReturnReg)
	a.BindLabel(g.end)
}
