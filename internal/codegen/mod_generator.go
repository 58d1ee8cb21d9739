package codegen

import (
	"github.com/wafflevm/wafflevm/internal/asm/x64"
	"github.com/wafflevm/wafflevm/internal/bytecode"
)

// modGenerator is OpMod's dedicated generator. original_source's own
// jitmod_generator.rs never finishes this fast path — its fast_path is a
// literal `// TODO: Fast path: number % number` followed by an
// unconditional slow-path call — so this port supplies the fast path the
// comment describes: both operands int32, remainder via the hardware
// IDIV (x64.IntDivMod already guards divide-by-zero and INT_MIN/-1
// overflow by bailing to the slow path), boxed back as int32.
type modGenerator struct {
	in     *bytecode.Instruction
	helper uint64
	slow   x64.Label
	end    x64.Label
}

func newModGenerator(in *bytecode.Instruction, helper uint64) *modGenerator {
	return &modGenerator{in: in, helper: helper}
}

func (g *modGenerator) FastPath(gen *FullCodegen) bool {
	a := gen.masm
	g.slow = a.CreateLabel()
	g.end = a.CreateLabel()

	lhs, rhs := x64.RAX, x64.RCX
	gen.loadOperands2(g.in.Lhs, g.in.Rhs, lhs, rhs)

	a.JumpNisInt32(lhs, g.slow)
	a.JumpNisInt32(rhs, g.slow)

	a.AsInt32(lhs, lhs)
	a.AsInt32(rhs, rhs)
	a.IntDivMod(x64.Int32, rhs, true, g.slow)

	a.NewIntFromReg(x64.ReturnReg, lhs)
	gen.storeResult(g.in.Dst, x64.ReturnReg)
	a.Jump(g.end)
	return true
}

func (g *modGenerator) SlowPath(gen *FullCodegen) {
	a := gen.masm
	a.BindLabel(g.slow)
	gen.loadOperands2(g.in.Lhs, g.in.Rhs, ccallParams[0], ccallParams[1])
	a.RawCall(g.helper)
	gen.storeResult(g.in.Dst, x64.ReturnReg)
	a.BindLabel(g.end)
}
