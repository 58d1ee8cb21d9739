package codegen

import (
	"github.com/wafflevm/wafflevm/internal/asm/x64"
	"github.com/wafflevm/wafflevm/internal/bytecode"
)

// shlGenerator is OpShl's dedicated generator. Like jitmod_generator.rs,
// original_source/src/fullcodegen/jitshl_generator.rs leaves its fast
// path a `// TODO` and always calls `__shl_slow_path`
// (`x.to_int32() << y.to_int32() & 0x1f`); this port implements that
// described fast path: both operands int32, shift count masked to 5
// bits (x86's SHL already only consults CL's low 5 bits for a 32-bit
// destination, so the mask is implied by the hardware, not emitted
// explicitly), boxed back as int32.
type shlGenerator struct {
	in     *bytecode.Instruction
	helper uint64
	slow   x64.Label
	end    x64.Label
}

func newShlGenerator(in *bytecode.Instruction, helper uint64) *shlGenerator {
	return &shlGenerator{in: in, helper: helper}
}

func (g *shlGenerator) FastPath(gen *FullCodegen) bool {
	a := gen.masm
	g.slow = a.CreateLabel()
	g.end = a.CreateLabel()

	lhs, rhs := x64.RAX, x64.RCX
	gen.loadOperands2(g.in.Lhs, g.in.Rhs, lhs, rhs)

	a.JumpNisInt32(lhs, g.slow)
	a.JumpNisInt32(rhs, g.slow)

	a.AsInt32(lhs, lhs)
	a.AsInt32(rhs, rhs)
	a.IntShl(x64.Int32, lhs) // shift-by-CL; rhs must be RCX, the fixed shift-count register

	a.NewIntFromReg(x64.ReturnReg, lhs)
	gen.storeResult(g.in.Dst, x64.ReturnReg)
	a.Jump(g.end)
	return true
}

func (g *shlGenerator) SlowPath(gen *FullCodegen) {
	a := gen.masm
	a.BindLabel(g.slow)
	gen.loadOperands2(g.in.Lhs, g.in.Rhs, ccallParams[0], ccallParams[1])
	a.RawCall(g.helper)
	gen.storeResult(g.in.Dst, x64.ReturnReg)
	a.BindLabel(g.end)
}
