package x64

// Control-flow, call, and prologue/epilogue emitters, spec.md §4.9/§4.10.

// STACK_FRAME_ALIGNMENT: the call-frame size prologues reserve is always
// rounded up to this so every call site keeps RSP 16-byte aligned, per
// the original's platform ABI requirement restated in spec.md §4.10.
const stackFrameAlignment = 16

// Jump emits an unconditional near jump to target. If target is already
// bound (a backward branch) the displacement is computed immediately;
// otherwise the site is queued for fixForwardJumps.
func (a *Assembler) Jump(target Label) {
	a.emitU8(0xE9)
	a.emitJumpDisp(target)
}

// JumpIf emits a conditional near jump (0F 8x cc).
func (a *Assembler) JumpIf(cc CondCode, target Label) {
	a.emitU8(0x0F)
	a.emitU8(0x80 | byte(cc))
	a.emitJumpDisp(target)
}

func (a *Assembler) emitJumpDisp(target Label) {
	site := a.Offset()
	if off := a.labelOffset(target); off >= 0 {
		disp := int32(off - (site + 4))
		a.emitU32(uint32(disp))
		return
	}
	a.forwardJumps = append(a.forwardJumps, forwardJump{siteOffset: site, label: target})
	a.emitU32(0) // patched by fixForwardJumps once target is bound
}

// JumpReg emits an indirect jump through a register (`jmp reg`), used for
// computed dispatch (e.g. returning through a bailout continuation).
func (a *Assembler) JumpReg(r Reg) {
	if regHigh(r) {
		a.emitU8(rex(false, false, false, true))
	}
	a.emitU8(0xFF)
	a.emitU8(0xE0 | regLow(r))
}

// CallReg emits a near call through a register.
func (a *Assembler) CallReg(r Reg) {
	if regHigh(r) {
		a.emitU8(rex(false, false, false, true))
	}
	a.emitU8(0xFF)
	a.emitU8(0xD0 | regLow(r))
}

// RawCall emits `mov scratch, ptr; call scratch` for a call to a fixed,
// already-known native address (e.g. a runtime helper stub).
func (a *Assembler) RawCall(ptr uint64) {
	a.LoadIntConst(Int64, ScratchReg0, int64(ptr))
	a.CallReg(ScratchReg0)
}

// DirectCall emits a direct `call rel32` to a not-yet-compiled function
// and records a LazySite so internal/code can repatch the displacement
// once fnID's Code is ready, per spec.md §4.9's lazy-compilation path.
// placeholderTarget is the stub's current (possibly interim) address.
func (a *Assembler) DirectCall(fnID uint32, placeholderTarget uint64) {
	a.emitU8(0xE8)
	site := a.Offset()
	a.emitU32(0)
	a.LazyCompilation[site] = LazySite{FnID: fnID, DispSite: site}
	_ = placeholderTarget // resolved by internal/code at link time, not here
}

// Ret emits a near return.
func (a *Assembler) Ret() { a.emitU8(0xC3) }

// Prolog emits the standard frame-setup sequence: push the caller's
// call-frame pointer, move CallFrameReg to the new frame base (RSP), then
// reserve stacksize bytes (rounded up to stackFrameAlignment) for locals.
//
// Grounded on original_source/src/fullcodegen/mod.rs's function prologue,
// which pushes the frame pointer before adjusting RSP so GC stack-walking
// always finds a consistent frame-pointer chain.
func (a *Assembler) Prolog(stacksize int32) {
	a.pushReg(CallFrameReg)
	a.CopyReg(Ptr, CallFrameReg, RSP)
	aligned := (stacksize + stackFrameAlignment - 1) &^ (stackFrameAlignment - 1)
	if aligned > 0 {
		a.subRspImm(aligned)
	}
}

// Epilog emits the mirror-image teardown: restore RSP from CallFrameReg,
// pop the saved frame pointer, and return.
func (a *Assembler) Epilog() {
	a.CopyReg(Ptr, RSP, CallFrameReg)
	a.popReg(CallFrameReg)
	a.Ret()
}

func (a *Assembler) pushReg(r Reg) {
	if regHigh(r) {
		a.emitU8(rex(false, false, false, true))
	}
	a.emitU8(0x50 + regLow(r))
}

func (a *Assembler) popReg(r Reg) {
	if regHigh(r) {
		a.emitU8(rex(false, false, false, true))
	}
	a.emitU8(0x58 + regLow(r))
}

func (a *Assembler) subRspImm(n int32) {
	a.emitU8(rex(true, false, false, false))
	a.emitU8(0x81)
	a.emitU8(0xC0 | (5 << 3) | regLow(RSP)) // SUB r/m64, imm32, /5
	a.emitU32(uint32(n))
}

// Safepoint emits a nop marker plus a call to the runtime safepoint
// handler, recording a GcPoint so internal/code's root-scanner knows
// which stack slots hold live references at this offset. Grounded on
// spec.md §4.10's Safepoint opcode and original_source/src/vm.rs's
// poll-for-gc sequence.
func (a *Assembler) Safepoint(handlerPtr uint64, liveOffsets []int32) {
	a.emitU8(0x90) // NOP, a stable patch point for future poll-flag checks
	a.RawCall(handlerPtr)
	a.GcPoints[a.Offset()] = GcPoint{Offsets: liveOffsets}
}

// LoopHint is a lighter-weight safepoint emitted at loop back edges: it
// records the same GcPoint metadata but emits no instruction — neither
// the call nor an interrupt-flag check.
func (a *Assembler) LoopHint(liveOffsets []int32) {
	a.GcPoints[a.Offset()] = GcPoint{Offsets: liveOffsets}
}
