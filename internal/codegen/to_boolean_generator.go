package codegen

import (
	"github.com/wafflevm/wafflevm/internal/asm/x64"
	"github.com/wafflevm/wafflevm/internal/bytecode"
)

// toBooleanGenerator backs OpJumpConditional's truthiness test.
// original_source/src/fullcodegen/to_boolean_generator.rs carries a large
// block of commented-out fast-path logic immediately above its live
// code, and the live code simply raw_calls `__slow_path_to_boolean`
// unconditionally. This port implements the commented-out logic: a
// number is falsy only at zero (int32 0, +0.0 or -0.0) and at NaN — the
// compare against 0.0 sets the parity flag for the unordered NaN case,
// which is tested before the equality flag — a boolean passes through
// IsTrue directly, null/undefined
// are always falsy, and anything else (an object/string Cell) falls to
// the slow path for the full ToBoolean abstract operation.
type toBooleanGenerator struct {
	val    bytecode.VReg
	helper uint64
	slow   x64.Label
	end    x64.Label
}

func (g *toBooleanGenerator) FastPath(gen *FullCodegen) bool {
	a := gen.masm
	g.slow = a.CreateLabel()
	g.end = a.CreateLabel()
	truthy := a.CreateLabel()
	falsy := a.CreateLabel()
	notNumber := a.CreateLabel()
	notInt := a.CreateLabel()
	notBoolean := a.CreateLabel()

	v := x64.RAX
	gen.loadOperand(g.val, v)

	a.JumpNisNumber(v, notNumber)
	a.JumpNisInt32(v, notInt)
	a.AsInt32(v, v)
	a.IntCmpImm(x64.Int32, v, 0)
	a.JumpIf(x64.CondEqual, falsy)
	a.Jump(truthy)

	a.BindLabel(notInt)
	a.AsDouble(x64.XMM0, v)
	a.LoadIntConst(x64.Int64, x64.ScratchReg0, 0)
	a.IntAsFloat(x64.XMM1, x64.ScratchReg0) // XMM1 = +0.0
	a.FloatCmp(x64.Float64, x64.XMM0, x64.XMM1)
	a.JumpIf(x64.CondParity, falsy) // NaN
	a.JumpIf(x64.CondEqual, falsy)  // +0.0 or -0.0
	a.Jump(truthy)

	a.BindLabel(notNumber)
	a.IsBoolean(v)
	a.JumpIf(x64.CondNotEqual, notBoolean)
	a.IsTrue(v)
	a.JumpIf(x64.CondEqual, truthy)
	a.Jump(falsy)

	a.BindLabel(notBoolean)
	a.IsNullOrUndefined(v)
	a.JumpIf(x64.CondEqual, falsy)
	a.Jump(g.slow)

	a.BindLabel(falsy)
	a.LoadIntConst(x64.Int64, x64.ReturnReg, 0)
	a.Jump(g.end)

	a.BindLabel(truthy)
	a.LoadIntConst(x64.Int64, x64.ReturnReg, 1)
	a.Jump(g.end)

	return true
}

func (g *toBooleanGenerator) SlowPath(gen *FullCodegen) {
	a := gen.masm
	a.BindLabel(g.slow)
	gen.loadOperand(g.val, ccallParams[0])
	a.RawCall(g.helper)
	a.BindLabel(g.end)
}
