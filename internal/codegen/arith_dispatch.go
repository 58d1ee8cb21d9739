package codegen

import (
	"fmt"

	"github.com/wafflevm/wafflevm/internal/asm/x64"
	"github.com/wafflevm/wafflevm/internal/bytecode"
)

// newArithGenerator dispatches one arithmetic/comparison Instruction to
// its Generator. SPEC_FULL.md's supplemented-module commitment gives
// Add/Div/Mod/Shl/GreaterEqual each their own file, one per
// original_source/src/fullcodegen/jit{add,div,mod,shl,greatereq}_generator.rs;
// every other {Dst,Lhs,Rhs} opcode shares genericArithGenerator below, the
// generic pattern those five dedicated files all specialize.
func newArithGenerator(in *bytecode.Instruction, helpers RuntimeHelpers) Generator {
	switch in.Op {
	case bytecode.OpAdd:
		return newAddGenerator(in, helpers.Add)
	case bytecode.OpDiv:
		return newDivGenerator(in, helpers.Div)
	case bytecode.OpMod:
		return newModGenerator(in, helpers.Mod)
	case bytecode.OpShl:
		return newShlGenerator(in, helpers.Shl)
	case bytecode.OpGreaterEqual:
		return newGreaterEqGenerator(in, helpers.GE)
	default:
		return newGenericArithGenerator(in, helpers)
	}
}

// arithKind distinguishes the three shapes genericArithGenerator's fast
// path must emit.
type arithKind int

const (
	arithInt    arithKind = iota // plain int32 op, no overflow possible (And/Or/Xor/Shr/Sar)
	arithOvf                     // int32 op that can overflow (Sub/Mul)
	arithCmp                     // int32 comparison, boxed to a boolean
)

// genericArithGenerator covers every {Dst,Lhs,Rhs} opcode without its own
// dedicated file: both operands are checked int32 (the only case this
// port's fast paths specialize — spec.md §4.10 — anything else, or an
// overflow, falls to the slow path), then dispatches by arithKind.
type genericArithGenerator struct {
	in     *bytecode.Instruction
	helper uint64
	kind   arithKind
	cc     x64.CondCode
	slow   x64.Label
	end    x64.Label
}

func newGenericArithGenerator(in *bytecode.Instruction, helpers RuntimeHelpers) *genericArithGenerator {
	g := &genericArithGenerator{in: in}
	switch in.Op {
	case bytecode.OpSub:
		g.helper, g.kind = helpers.Sub, arithOvf
	case bytecode.OpMul:
		g.helper, g.kind = helpers.Mul, arithOvf
	case bytecode.OpAnd:
		g.helper, g.kind = helpers.And, arithInt
	case bytecode.OpOr:
		g.helper, g.kind = helpers.Or, arithInt
	case bytecode.OpXor:
		g.helper, g.kind = helpers.Xor, arithInt
	case bytecode.OpShr:
		g.helper, g.kind = helpers.Shr, arithInt
	case bytecode.OpSar:
		g.helper, g.kind = helpers.Sar, arithInt
	case bytecode.OpEqual:
		g.helper, g.kind, g.cc = helpers.Equal, arithCmp, x64.CondEqual
	case bytecode.OpNotEqual:
		g.helper, g.kind, g.cc = helpers.NotEqual, arithCmp, x64.CondNotEqual
	case bytecode.OpLess:
		g.helper, g.kind, g.cc = helpers.Less, arithCmp, x64.CondLess
	case bytecode.OpLessEqual:
		g.helper, g.kind, g.cc = helpers.LessEqual, arithCmp, x64.CondLessEqual
	case bytecode.OpGreater:
		g.helper, g.kind, g.cc = helpers.Greater, arithCmp, x64.CondGreater
	default:
		panic(fmt.Sprintf("codegen: %s is not an arithmetic opcode", in.Op))
	}
	return g
}

func (g *genericArithGenerator) FastPath(gen *FullCodegen) bool {
	a := gen.masm
	g.slow = a.CreateLabel()
	g.end = a.CreateLabel()

	lhs, rhs := x64.RAX, x64.RCX
	gen.loadOperands2(g.in.Lhs, g.in.Rhs, lhs, rhs)

	a.JumpNisInt32(lhs, g.slow)
	a.JumpNisInt32(rhs, g.slow)
	a.AsInt32(lhs, lhs)
	a.AsInt32(rhs, rhs)

	switch g.kind {
	case arithInt, arithOvf:
		g.emitOp(a, lhs, rhs)
		if g.kind == arithOvf {
			a.JumpIf(x64.CondOverflow, g.slow)
		}
		if g.in.Op == bytecode.OpShr {
			// JS's >>> result is UInt32, which overflows int32 whenever the
			// shifted bit pattern's top bit is set; a plain 32-bit write
			// already zero-extends lhs's upper 32 bits, so reinterpreting
			// the full 64-bit register as Int64 converts the exact unsigned
			// value instead of a negative one.
			asDouble := a.CreateLabel()
			boxed := a.CreateLabel()
			a.IntCmpImm(x64.Int32, lhs, 0)
			a.JumpIf(x64.CondLess, asDouble)
			a.NewIntFromReg(x64.ReturnReg, lhs)
			a.Jump(boxed)
			a.BindLabel(asDouble)
			a.IntToFloat(x64.Float64, x64.Int64, x64.XMM0, lhs)
			a.NewDouble(x64.ReturnReg, x64.XMM0)
			a.BindLabel(boxed)
		} else {
			a.NewIntFromReg(x64.ReturnReg, lhs)
		}
	case arithCmp:
		a.IntCmp(x64.Int32, lhs, rhs)
		a.LoadIntConst(x64.Int64, x64.ReturnReg, 0) // SetCC only writes the low byte
		a.SetCC(g.cc, x64.ReturnReg)
		a.NewBoolean(x64.ReturnReg, x64.ReturnReg)
	}

	gen.storeResult(g.in.Dst, x64.ReturnReg)
	a.Jump(g.end)
	return true
}

// emitOp lowers the concrete bitwise/arithmetic instruction for every
// non-comparison opcode; shift opcodes require their count in RCX, which
// loadOperands2 already placed there.
func (g *genericArithGenerator) emitOp(a *x64.Assembler, lhs, rhs x64.Reg) {
	switch g.in.Op {
	case bytecode.OpSub:
		a.IntSub(x64.Int32, lhs, rhs)
	case bytecode.OpMul:
		a.IntMul(x64.Int32, lhs, rhs)
	case bytecode.OpAnd:
		a.IntAnd(x64.Int32, lhs, rhs)
	case bytecode.OpOr:
		a.IntOr(x64.Int32, lhs, rhs)
	case bytecode.OpXor:
		a.IntXor(x64.Int32, lhs, rhs)
	case bytecode.OpShr:
		a.IntShr(x64.Int32, lhs)
	case bytecode.OpSar:
		a.IntSar(x64.Int32, lhs)
	}
}

func (g *genericArithGenerator) SlowPath(gen *FullCodegen) {
	a := gen.masm
	a.BindLabel(g.slow)
	gen.loadOperands2(g.in.Lhs, g.in.Rhs, ccallParams[0], ccallParams[1])
	a.RawCall(g.helper)
	gen.storeResult(g.in.Dst, x64.ReturnReg)
	a.BindLabel(g.end)
}
