package x64

// CopyReg emits `mov dst, src` for an integer/pointer register pair.
func (a *Assembler) CopyReg(mode Mode, dst, src Reg) {
	if dst == src {
		return
	}
	a.encodeRR(0x89, mode, dst, src) // MOV r/m, r
}

// CopyFreg emits a scalar `movsd`/`movss` between two XMM registers.
func (a *Assembler) CopyFreg(mode Mode, dst, src Reg) {
	if dst == src {
		return
	}
	a.emitU8(floatPrefix(mode))
	a.emitU8(0x0F)
	a.emitU8(0x10) // MOVSS/MOVSD xmm1, xmm2/m
	a.emitU8(modrmDirect(dst, src))
}

func floatPrefix(mode Mode) byte {
	if mode == Float64 {
		return 0xF2
	}
	return 0xF3
}

// LoadIntConst emits `mov dst, imm`, zero/sign-extended per mode.
func (a *Assembler) LoadIntConst(mode Mode, dst Reg, imm int64) {
	if mode.rexW() {
		a.emitU8(rex(true, false, false, regHigh(dst)))
		a.emitU8(0xB8 + regLow(dst))
		a.emitU64(uint64(imm))
		return
	}
	if regHigh(dst) {
		a.emitU8(rex(false, false, false, true))
	}
	a.emitU8(0xB8 + regLow(dst))
	a.emitU32(uint32(int32(imm)))
}

// LoadFloatConst materializes a float64 bit pattern into an XMM register
// via a scratch GPR (x86-64 has no MOVSD-immediate form).
func (a *Assembler) LoadFloatConst(dst Reg, bits uint64) {
	a.LoadIntConst(Int64, ScratchReg0, int64(bits))
	// MOVQ xmm, r64
	a.emitU8(0x66)
	a.emitU8(rex(true, regHigh(dst), false, regHigh(ScratchReg0)))
	a.emitU8(0x0F)
	a.emitU8(0x6E)
	a.emitU8(modrmDirect(dst, ScratchReg0))
}

// LoadTrue/LoadFalse/LoadNil load the corresponding NaN-boxed small
// immediate, per spec.md §3.1's bit patterns.
func (a *Assembler) LoadTrue(dst Reg)      { a.LoadIntConst(Int64, dst, 0x06|0x01) }
func (a *Assembler) LoadFalse(dst Reg)     { a.LoadIntConst(Int64, dst, 0x06) }
func (a *Assembler) LoadNil(dst Reg)       { a.LoadIntConst(Int64, dst, 0x02) }
func (a *Assembler) LoadUndefined(dst Reg) { a.LoadIntConst(Int64, dst, 0x10|0x02) }

// LoadMem emits `mov dst, [mem]`.
func (a *Assembler) LoadMem(mode Mode, dst Reg, mem Mem) {
	x, b := memRexXB(mem)
	if mode == Float32 || mode == Float64 {
		a.emitU8(floatPrefix(mode))
		a.emitMemRex(false, regHigh(dst), x, b)
		a.emitU8(0x0F)
		a.emitU8(0x10)
		a.encodeMemOperand(regLow(dst), mem)
		return
	}
	a.emitMemRex(mode.rexW(), regHigh(dst), x, b)
	opcode := byte(0x8B) // MOV r, r/m
	if mode == Int8 {
		opcode = 0x8A
	}
	a.emitU8(opcode)
	a.encodeMemOperand(regLow(dst), mem)
}

// StoreMem emits `mov [mem], src`.
func (a *Assembler) StoreMem(mode Mode, mem Mem, src Reg) {
	x, b := memRexXB(mem)
	if mode == Float32 || mode == Float64 {
		a.emitU8(floatPrefix(mode))
		a.emitMemRex(false, regHigh(src), x, b)
		a.emitU8(0x0F)
		a.emitU8(0x11)
		a.encodeMemOperand(regLow(src), mem)
		return
	}
	a.emitMemRex(mode.rexW(), regHigh(src), x, b)
	opcode := byte(0x89)
	if mode == Int8 {
		opcode = 0x88
	}
	a.emitU8(opcode)
	a.encodeMemOperand(regLow(src), mem)
}

// Lea emits `lea dst, [mem]`.
func (a *Assembler) Lea(dst Reg, mem Mem) {
	x, b := memRexXB(mem)
	a.emitMemRex(true, regHigh(dst), x, b)
	a.emitU8(0x8D)
	a.encodeMemOperand(regLow(dst), mem)
}

// emitMemRex emits a REX prefix whenever w is set or any of the reg/index/
// base extension bits require one.
func (a *Assembler) emitMemRex(w, r, x, b bool) {
	p := rex(w, r, x, b)
	if p != rexBase || w {
		a.emitU8(p)
	}
}
