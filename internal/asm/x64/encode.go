package x64

// Low-level REX/ModRM/SIB encoding helpers shared by every public
// instruction emitter. Real x86-64 encodings (not a toy byte stream) so
// that internal/code's executable pages contain genuine machine code;
// kept to the reg-reg and common memory-operand forms FullCodegen
// actually needs (spec.md §4.9's logical surface), rather than every
// addressing mode the full ISA supports.

const rexBase = 0x40

// rex builds a REX prefix byte. w selects 64-bit operand size; r extends
// the ModRM.reg field; x extends SIB.index; b extends ModRM.rm or
// SIB.base.
func rex(w, r, x, b bool) byte {
	v := byte(rexBase)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func regLow(r Reg) byte  { return byte(r) & 0x7 }
func regHigh(r Reg) bool { return r >= R8 }

// emitRegRegPrefix emits a REX prefix for a reg-reg instruction only when
// one is needed: for 64-bit operand size (w) or when either operand is an
// extended register (R8-R15).
func (a *Assembler) emitRegRegPrefix(w bool, reg, rm Reg) {
	p := rex(w, regHigh(reg), false, regHigh(rm))
	if p != rexBase || w {
		a.emitU8(p)
	}
}

func modrmDirect(reg, rm Reg) byte {
	return 0xC0 | (regLow(reg) << 3) | regLow(rm)
}

// encodeRR emits `opcode /r` with a direct reg-reg ModRM byte, e.g. "ADD
// r/m, r" forms where dst is the r/m operand and src is the reg operand.
func (a *Assembler) encodeRR(opcode byte, mode Mode, dst, src Reg) {
	a.emitRegRegPrefix(mode.rexW(), src, dst)
	a.emitU8(opcode)
	a.emitU8(modrmDirect(src, dst))
}

// memRexXB reports the REX.X/REX.B extension bits a memory operand's
// index/base registers require, so callers can fold them into the single
// REX prefix byte that must precede the ModRM(+SIB) bytes.
func memRexXB(mem Mem) (x, b bool) {
	switch mem.Kind {
	case MemLocal:
		return false, regHigh(CallFrameReg)
	case MemBase:
		return false, regHigh(mem.Base)
	case MemIndex:
		return regHigh(mem.Index), regHigh(mem.Base)
	case MemOffset:
		return regHigh(mem.Index), regHigh(RBP)
	}
	return false, false
}

// encodeMemOperand emits the ModRM(+SIB)(+disp) bytes addressing mem with
// ModRM.reg set to reg (either a real register for a two-operand
// instruction, or an opcode-extension digit for a group instruction).
func (a *Assembler) encodeMemOperand(reg byte, mem Mem) {
	switch mem.Kind {
	case MemLocal:
		// [callframe + disp], callframe held in CallFrameReg (spec.md
		// §4.10: "Local register i is at [callframe.registers + 8*i]").
		a.encodeBaseDisp(reg, CallFrameReg, mem.Local)
	case MemBase:
		a.encodeBaseDisp(reg, mem.Base, mem.Disp)
	case MemIndex:
		a.encodeSIB(reg, mem.Base, mem.Index, mem.Scale, mem.Disp)
	case MemOffset:
		// No base register: SIB with base field 0x5 and mod=00 selects
		// [index*scale + disp32] with no base.
		a.emitU8((0 << 6) | (reg << 3) | 0x4)
		a.emitU8((scaleBits(mem.Scale) << 6) | (regLow(mem.Index) << 3) | regLow(RBP))
		a.emitU32(uint32(mem.Disp))
	}
}

func (a *Assembler) encodeBaseDisp(reg byte, base Reg, disp int32) {
	rm := regLow(base)
	switch {
	case disp == 0 && rm != regLow(RBP):
		a.emitU8((0 << 6) | (reg << 3) | rm)
	case fitsInt8(disp):
		a.emitU8((1 << 6) | (reg << 3) | rm)
		a.emitU8(byte(int8(disp)))
	default:
		a.emitU8((2 << 6) | (reg << 3) | rm)
		a.emitU32(uint32(disp))
	}
}

func (a *Assembler) encodeSIB(reg byte, base, index Reg, scale uint8, disp int32) {
	ss := scaleBits(scale)
	modBits := byte(2 << 6) // always disp32 for indexed forms, simplest correct encoding
	a.emitU8(modBits | (reg << 3) | 0x4)
	a.emitU8((ss << 6) | (regLow(index) << 3) | regLow(base))
	a.emitU32(uint32(disp))
}

func scaleBits(scale uint8) byte {
	switch scale {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 0
	}
}

func fitsInt8(v int32) bool { return v >= -128 && v <= 127 }
