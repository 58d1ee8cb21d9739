package x64

// Integer and floating-point arithmetic emitters, spec.md §4.9's
// `int_*`/`float_*` macro-assembler surface. Two-operand destructive forms
// throughout: `dst op= src`.

// encodeRR0F emits a two-byte-opcode reg-reg instruction whose ModRM.reg
// field is the destination (the reversed convention 0F-prefixed opcodes
// like IMUL use, versus the one-byte ADD/SUB/... family encodeRR serves).
func (a *Assembler) encodeRR0F(opcode byte, mode Mode, dst, src Reg) {
	a.emitRegRegPrefix(mode.rexW(), dst, src)
	a.emitU8(0x0F)
	a.emitU8(opcode)
	a.emitU8(modrmDirect(dst, src))
}

// encodeGroupShift emits a `D3 /digit` shift-by-CL instruction.
func (a *Assembler) encodeGroupShift(digit byte, mode Mode, dst Reg) {
	p := rex(mode.rexW(), false, false, regHigh(dst))
	if p != rexBase || mode.rexW() {
		a.emitU8(p)
	}
	a.emitU8(0xD3)
	a.emitU8(0xC0 | (digit << 3) | regLow(dst))
}

// encodeGroupUnary emits an `F7 /digit` unary instruction (NEG, NOT).
func (a *Assembler) encodeGroupUnary(digit byte, mode Mode, dst Reg) {
	p := rex(mode.rexW(), false, false, regHigh(dst))
	if p != rexBase || mode.rexW() {
		a.emitU8(p)
	}
	a.emitU8(0xF7)
	a.emitU8(0xC0 | (digit << 3) | regLow(dst))
}

func (a *Assembler) IntAdd(mode Mode, dst, src Reg) { a.encodeRR(0x01, mode, dst, src) }
func (a *Assembler) IntSub(mode Mode, dst, src Reg) { a.encodeRR(0x29, mode, dst, src) }
func (a *Assembler) IntAnd(mode Mode, dst, src Reg) { a.encodeRR(0x21, mode, dst, src) }
func (a *Assembler) IntOr(mode Mode, dst, src Reg)  { a.encodeRR(0x09, mode, dst, src) }
func (a *Assembler) IntXor(mode Mode, dst, src Reg) { a.encodeRR(0x31, mode, dst, src) }
func (a *Assembler) IntCmp(mode Mode, lhs, rhs Reg) { a.encodeRR(0x39, mode, lhs, rhs) }
func (a *Assembler) IntMul(mode Mode, dst, src Reg) { a.encodeRR0F(0xAF, mode, dst, src) }

func (a *Assembler) IntNeg(mode Mode, dst Reg) { a.encodeGroupUnary(3, mode, dst) }
func (a *Assembler) IntNot(mode Mode, dst Reg) { a.encodeGroupUnary(2, mode, dst) }

func (a *Assembler) IntShl(mode Mode, dst Reg) { a.encodeGroupShift(4, mode, dst) }
func (a *Assembler) IntShr(mode Mode, dst Reg) { a.encodeGroupShift(5, mode, dst) }
func (a *Assembler) IntSar(mode Mode, dst Reg) { a.encodeGroupShift(7, mode, dst) }
func (a *Assembler) IntRol(mode Mode, dst Reg) { a.encodeGroupShift(0, mode, dst) }
func (a *Assembler) IntRor(mode Mode, dst Reg) { a.encodeGroupShift(1, mode, dst) }

// IntDivMod emits the div-by-zero and INT_MIN/-1 overflow guarded sequence
// spec.md §4.9 describes for `int_div`/`int_mod`: dividend in RAX, divisor
// in src, result left in RAX — the quotient (wantRemainder false) or the
// remainder, copied there from RDX (wantRemainder true). bailout is the
// label the guard jumps to on a trapping case; internal/codegen's mod
// generator passes its slow-path label, which calls the runtime helper.
//
// Grounded on original_source/src/fullcodegen/jitdiv_generator.rs and
// jitmod_generator.rs, which both guard the same two cases before the
// hardware IDIV.
func (a *Assembler) IntDivMod(mode Mode, src Reg, wantRemainder bool, bailout Label) {
	// if src == 0: bail out.
	a.IntCmpImm(mode, src, 0)
	a.JumpIf(CondEqual, bailout)

	// if RAX == INT_MIN && src == -1: bail out (quotient would overflow).
	minLabel := a.CreateLabel()
	a.LoadIntConst(mode, ScratchReg0, intMinFor(mode))
	a.IntCmp(mode, RAX, ScratchReg0)
	a.JumpIf(CondNotEqual, minLabel)
	a.IntCmpImm(mode, src, -1)
	a.JumpIf(CondEqual, bailout)
	a.BindLabel(minLabel)

	if mode.rexW() {
		a.emitU8(rex(true, false, false, false))
		a.emitU8(0x99) // CQO: sign-extend RAX into RDX:RAX
	} else {
		a.emitU8(0x99) // CDQ
	}
	p := rex(mode.rexW(), false, false, regHigh(src))
	if p != rexBase || mode.rexW() {
		a.emitU8(p)
	}
	a.emitU8(0xF7)
	a.emitU8(0xC0 | (7 << 3) | regLow(src)) // IDIV src
	if wantRemainder {
		a.CopyReg(mode, RAX, RDX)
	}
}

func intMinFor(mode Mode) int64 {
	if mode == Int32 {
		return int64(int32(-1 << 31))
	}
	return int64(-1 << 63)
}

// SetCC emits `setcc dst` (byte-sized), storing the condition as 0/1. A
// REX prefix is always emitted (even the bare 0x40) so dst's low byte is
// addressed via SIL/DIL/BPL/SPL rather than the legacy AH/BH/CH/DH
// aliases, matching how every other byte-register access in this package
// goes through a REX-qualified encoding.
func (a *Assembler) SetCC(cc CondCode, dst Reg) {
	a.emitU8(rex(false, false, false, regHigh(dst)))
	a.emitU8(0x0F)
	a.emitU8(0x90 | byte(cc))
	a.emitU8(0xC0 | regLow(dst))
}

// IntCmpImm emits `cmp dst, imm32`.
func (a *Assembler) IntCmpImm(mode Mode, dst Reg, imm int32) {
	p := rex(mode.rexW(), false, false, regHigh(dst))
	if p != rexBase || mode.rexW() {
		a.emitU8(p)
	}
	a.emitU8(0x81)
	a.emitU8(0xC0 | (7 << 3) | regLow(dst))
	a.emitU32(uint32(imm))
}

// --- Floating point ---------------------------------------------------------

func (a *Assembler) floatOp(opcode byte, mode Mode, dst, src Reg) {
	a.emitU8(floatPrefix(mode))
	a.emitU8(0x0F)
	a.emitU8(opcode)
	a.emitU8(modrmDirect(dst, src))
}

func (a *Assembler) FloatAdd(mode Mode, dst, src Reg)  { a.floatOp(0x58, mode, dst, src) }
func (a *Assembler) FloatSub(mode Mode, dst, src Reg)  { a.floatOp(0x5C, mode, dst, src) }
func (a *Assembler) FloatMul(mode Mode, dst, src Reg)  { a.floatOp(0x59, mode, dst, src) }
func (a *Assembler) FloatDiv(mode Mode, dst, src Reg)  { a.floatOp(0x5E, mode, dst, src) }
func (a *Assembler) FloatSqrt(mode Mode, dst, src Reg) { a.floatOp(0x51, mode, dst, src) }

// FloatNeg XORs the sign bit via a scratch XOR register holding the sign
// mask, since SSE2 has no direct negate instruction.
func (a *Assembler) FloatNeg(mode Mode, dst Reg) {
	mask := uint64(1) << 63
	if mode == Float32 {
		mask = uint64(1) << 31
	}
	a.LoadFloatConst(XMM7, mask)
	a.emitU8(0x66)
	a.emitU8(0x0F)
	a.emitU8(0x57) // XORPS/XORPD
	a.emitU8(modrmDirect(dst, XMM7))
}

// FloatCmp emits `ucomisd`/`ucomiss`, setting flags for a subsequent Jcc;
// unordered (NaN) results clear ZF/PF/CF in a pattern JumpIf(CondEqual,...)
// alone cannot distinguish from a true equal — callers needing NaN-safe
// comparisons should use FloatCmpNaN first.
func (a *Assembler) FloatCmp(mode Mode, lhs, rhs Reg) {
	if mode == Float64 {
		a.emitU8(0x66)
	}
	a.emitU8(0x0F)
	a.emitU8(0x2E) // UCOMISS/UCOMISD
	a.emitU8(modrmDirect(lhs, rhs))
}

// FloatCmpNaN emits a self-comparison (`x != x`) used to branch on NaN
// before a FloatCmp result is trusted, per spec.md §4.9's `float_cmp_nan`.
func (a *Assembler) FloatCmpNaN(mode Mode, v Reg) { a.FloatCmp(mode, v, v) }

// --- Conversions -------------------------------------------------------------

// IntToFloat emits CVTSI2SD/CVTSI2SS. srcMode selects whether the
// source is read as a 32-bit (Int32) or 64-bit (Int64) signed integer —
// the instruction only ever consults that many low bits of src, so a
// 32-bit source's upper register bits (however they got there) never
// affect the result.
func (a *Assembler) IntToFloat(dstMode, srcMode Mode, dst Reg, src Reg) {
	a.emitU8(floatPrefix(dstMode))
	a.emitU8(rex(srcMode.rexW(), regHigh(dst), false, regHigh(src)))
	a.emitU8(0x0F)
	a.emitU8(0x2A)
	a.emitU8(modrmDirect(dst, src))
}

// FloatToInt emits CVTTSD2SI/CVTTSS2SI (truncating).
func (a *Assembler) FloatToInt(srcMode Mode, dst Reg, src Reg) {
	a.emitU8(floatPrefix(srcMode))
	a.emitU8(rex(true, regHigh(dst), false, regHigh(src)))
	a.emitU8(0x0F)
	a.emitU8(0x2C)
	a.emitU8(modrmDirect(dst, src))
}

// FloatToDouble emits CVTSS2SD.
func (a *Assembler) FloatToDouble(dst, src Reg) {
	a.emitU8(0xF3)
	a.emitU8(0x0F)
	a.emitU8(0x5A)
	a.emitU8(modrmDirect(dst, src))
}

// DoubleToFloat emits CVTSD2SS.
func (a *Assembler) DoubleToFloat(dst, src Reg) {
	a.emitU8(0xF2)
	a.emitU8(0x0F)
	a.emitU8(0x5A)
	a.emitU8(modrmDirect(dst, src))
}

// IntAsFloat / FloatAsInt emit MOVQ bit-reinterpretation between a GPR and
// an XMM register, with no numeric conversion (spec.md §4.9's
// `int_as_float`/`float_as_int`).
func (a *Assembler) IntAsFloat(dst, src Reg) {
	a.emitU8(0x66)
	a.emitU8(rex(true, regHigh(dst), false, regHigh(src)))
	a.emitU8(0x0F)
	a.emitU8(0x6E)
	a.emitU8(modrmDirect(dst, src))
}

func (a *Assembler) FloatAsInt(dst, src Reg) {
	a.emitU8(0x66)
	a.emitU8(rex(true, regHigh(src), false, regHigh(dst)))
	a.emitU8(0x0F)
	a.emitU8(0x7E) // MOVQ r/m64, xmm
	a.emitU8(modrmDirect(src, dst))
}
