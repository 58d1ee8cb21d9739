package x64

// Tagged-value helpers, spec.md §3.1's NaN-boxing bit tests expressed as
// x86-64 instruction sequences, and spec.md §4.9's `new_*`/`as_*`/`is_*`/
// `jmp_is_*`/`jmp_nis_*` macro-assembler surface built on them.
//
// Bit patterns here MUST match value.Value exactly (value/value.go) — this
// package has no import on it (internal/asm is lower in the dependency
// graph than the value-representation package), so the constants below
// are a deliberate, commented duplication rather than a shared import.
//
// Grounded on original_source/src/value.rs's bit-layout constants and
// original_source/src/assembler/masmx64.rs's `is_number`/`is_int32`-style
// sequences, which test the top 16 "tag" bits of the boxed 64-bit word.
const (
	tagShift   = 48                   // top-16-bits tag boundary
	numberTag  = -int64(0x2) << 48    // value.numberTag (0xFFFE<<48 as two's-complement int64), Int32's tag pattern
	otherTag   = int64(0x2)
	boolTag    = int64(0x4)
	valueNull  = otherTag
	valueUndef = int64(0x8) | otherTag
	valueFalse = otherTag | boolTag
	valueTrue  = otherTag | boolTag | 1
)

// NewIntFromReg boxes the 32-bit value already in src into dst as a
// tagged int32 Value: a plain 32-bit MOV zero-extends the upper 32 bits
// (freeing them for the tag), then the NUMBER_TAG pattern is OR'd in —
// matching value.NewInt32's `numberTag | uint64(uint32(i))`.
func (a *Assembler) NewIntFromReg(dst, src Reg) {
	a.encodeRR(0x89, Int32, dst, src) // MOV r32, r32 (zero-extend to 64 bits)
	a.LoadIntConst(Int64, ScratchReg1, numberTag)
	a.IntOr(Int64, dst, ScratchReg1)
}

// NewDouble boxes a double held in an XMM register into a GPR by adding
// DOUBLE_ENCODE_OFFSET to its raw bits — value.NewDouble's encoding is
// additive, not a bitwise OR, so the box must go through a scratch GPR.
func (a *Assembler) NewDouble(dst Reg, src Reg) {
	a.FloatAsInt(dst, src)
	a.LoadIntConst(Int64, ScratchReg1, numberTag) // doubleEncodeOffset == numberTag
	a.IntAdd(Int64, dst, ScratchReg1)
}

// NewBoolean boxes a 0/1 GPR value into dst using the boolean tag pattern.
func (a *Assembler) NewBoolean(dst, src Reg) {
	a.CopyReg(Int64, dst, src)
	a.LoadIntConst(Int64, ScratchReg1, valueFalse)
	a.IntOr(Int64, dst, ScratchReg1)
}

// NewNumber is NewDouble when isFloat, NewIntFromReg otherwise; FullCodegen
// picks the branch statically from its type feedback, so this just
// dispatches.
func (a *Assembler) NewNumber(dst, src Reg, isFloat bool) {
	if isFloat {
		a.NewDouble(dst, src)
		return
	}
	a.NewIntFromReg(dst, src)
}

// AsInt32 extracts the 32-bit payload from a tagged int32 Value (the
// caller must have already checked IsInt32): the low 32 bits, reinterpreted
// as signed, exactly as value.Value.AsInt32 does.
func (a *Assembler) AsInt32(dst, src Reg) {
	a.encodeRR(0x89, Int32, dst, src) // MOV r32, r32
}

// AsDouble subtracts DOUBLE_ENCODE_OFFSET from src's bits (through
// ScratchReg0) and reinterprets the result as a double in dst, mirroring
// value.Value.AsDouble.
func (a *Assembler) AsDouble(dstXMM, src Reg) {
	a.CopyReg(Int64, ScratchReg0, src)
	a.LoadIntConst(Int64, ScratchReg1, numberTag)
	a.IntSub(Int64, ScratchReg0, ScratchReg1)
	a.IntAsFloat(dstXMM, ScratchReg0)
}

// IsInt32 tests whether v's top 16 bits equal NUMBER_TAG's, leaving ZF=1
// (equal) when v is a boxed int32 — callers branch with
// JumpIf(CondEqual, ...) for "is int32".
func (a *Assembler) IsInt32(v Reg) {
	a.CopyReg(Int64, ScratchReg0, v)
	a.encodeGroupShiftImm(5, Int64, ScratchReg0, tagShift) // SHR scratch, 48
	a.IntCmpImm(Int64, ScratchReg0, 0xFFFE) // logical SHR zero-fills, so the unsigned tag value
}

// IsNumber tests value.Value.IsNumber's invariant that a Value is a number
// iff its top 16 bits are not all zero: Int32 sets them to NUMBER_TAG
// (nonzero) and every Double's DOUBLE_ENCODE_OFFSET shift guarantees the
// same, so one shift-and-compare-to-zero covers both cases. ZF=1 (equal
// to zero) means v is NOT a number.
func (a *Assembler) IsNumber(v Reg) {
	a.CopyReg(Int64, ScratchReg0, v)
	a.encodeGroupShiftImm(5, Int64, ScratchReg0, tagShift) // SHR scratch, 48
	a.IntCmpImm(Int64, ScratchReg0, 0)
}

func (a *Assembler) encodeGroupShiftImm(digit byte, mode Mode, dst Reg, imm byte) {
	p := rex(mode.rexW(), false, false, regHigh(dst))
	if p != rexBase || mode.rexW() {
		a.emitU8(p)
	}
	a.emitU8(0xC1)
	a.emitU8(0xC0 | (digit << 3) | regLow(dst))
	a.emitU8(imm)
}

// IsUndefined/IsNull/IsTrue/IsFalse compare against the corresponding
// singleton bit pattern (spec.md §3.1).
func (a *Assembler) IsUndefined(v Reg) { a.cmpSingleton(v, valueUndef) }
func (a *Assembler) IsNull(v Reg)      { a.cmpSingleton(v, valueNull) }
func (a *Assembler) IsTrue(v Reg)      { a.cmpSingleton(v, valueTrue) }
func (a *Assembler) IsFalse(v Reg)     { a.cmpSingleton(v, valueFalse) }

func (a *Assembler) cmpSingleton(v Reg, pattern int64) {
	a.LoadIntConst(Int64, ScratchReg0, pattern)
	a.IntCmp(Int64, v, ScratchReg0)
}

// IsNullOrUndefined / IsBoolean implement value.Value's combined bit tests
// `(v &^ 8) == 2` / `(v &^ 8) == 6`, each covering two singletons with one
// mask-and-compare instead of two singleton comparisons.
func (a *Assembler) IsNullOrUndefined(v Reg) { a.maskCmp(v, ^int64(8), otherTag) }
func (a *Assembler) IsBoolean(v Reg)         { a.maskCmp(v, ^int64(8), otherTag|boolTag) }

func (a *Assembler) maskCmp(v Reg, mask, want int64) {
	a.CopyReg(Int64, ScratchReg0, v)
	a.LoadIntConst(Int64, ScratchReg1, mask)
	a.IntAnd(Int64, ScratchReg0, ScratchReg1)
	a.IntCmpImm(Int64, ScratchReg0, int32(want))
}

// JumpIsNumber / JumpNisNumber emit IsNumber's test followed by the
// corresponding conditional jump, matching spec.md §4.9's named
// `jmp_is_number`/`jmp_nis_number` combinators — "nis" (not-is) branches
// when the shifted top bits are zero, i.e. CondEqual.
func (a *Assembler) JumpIsNumber(v Reg, target Label)  { a.IsNumber(v); a.JumpIf(CondNotEqual, target) }
func (a *Assembler) JumpNisNumber(v Reg, target Label) { a.IsNumber(v); a.JumpIf(CondEqual, target) }

func (a *Assembler) JumpIsInt32(v Reg, target Label)  { a.IsInt32(v); a.JumpIf(CondEqual, target) }
func (a *Assembler) JumpNisInt32(v Reg, target Label) { a.IsInt32(v); a.JumpIf(CondNotEqual, target) }
