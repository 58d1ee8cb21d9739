package codegen

import (
	"github.com/wafflevm/wafflevm/internal/asm/x64"
	"github.com/wafflevm/wafflevm/internal/bytecode"
)

// greaterEqGenerator is OpGreaterEqual's dedicated generator, grounded on
// original_source/src/fullcodegen/jitgreatereq_generator.rs: one of the
// few sub-generators whose fast path is actually complete in the
// original (unlike Mod/Shl/ToBoolean) — both operands checked int32,
// compared, boxed into a tagged boolean.
type greaterEqGenerator struct {
	in     *bytecode.Instruction
	helper uint64
	slow   x64.Label
	end    x64.Label
}

func newGreaterEqGenerator(in *bytecode.Instruction, helper uint64) *greaterEqGenerator {
	return &greaterEqGenerator{in: in, helper: helper}
}

func (g *greaterEqGenerator) FastPath(gen *FullCodegen) bool {
	a := gen.masm
	g.slow = a.CreateLabel()
	g.end = a.CreateLabel()

	lhs, rhs := x64.RAX, x64.RCX
	gen.loadOperands2(g.in.Lhs, g.in.Rhs, lhs, rhs)

	a.JumpNisInt32(lhs, g.slow)
	a.JumpNisInt32(rhs, g.slow)

	a.AsInt32(lhs, lhs)
	a.AsInt32(rhs, rhs)
	a.IntCmp(x64.Int32, lhs, rhs)
	a.LoadIntConst(x64.Int64, x64.ReturnReg, 0) // SetCC only ever writes the low byte; zero the rest first
	a.SetCC(x64.CondGreaterEqual, x64.ReturnReg)
	a.NewBoolean(x64.ReturnReg, x64.ReturnReg)
	gen.storeResult(g.in.Dst, x64.ReturnReg)
	a.Jump(g.end)
	return true
}

func (g *greaterEqGenerator) SlowPath(gen *FullCodegen) {
	a := gen.masm
	a.BindLabel(g.slow)
	gen.loadOperands2(g.in.Lhs, g.in.Rhs, ccallParams[0], ccallParams[1])
	a.RawCall(g.helper)
	gen.storeResult(g.in.Dst, x64.ReturnReg)
	a.BindLabel(g.end)
}
