package x64

// ScratchHandle releases a borrowed scratch register back to its
// Assembler when the borrowing generator's scope ends.
//
// Grounded on original_source/src/assembler/masm.rs's scratch-register
// RAII guard, which FullCodegen's generators use so a slow path can
// borrow a temporary without hand-tracking which of the two scratch
// registers is free.
type ScratchHandle struct {
	a   *Assembler
	reg Reg
	idx int
}

// Reg returns the borrowed register.
func (h ScratchHandle) Reg() Reg { return h.reg }

// Release returns the register to the free pool. Safe to call once;
// calling it twice panics, since that would indicate the same register
// was about to be handed out to two live borrowers.
func (h *ScratchHandle) Release() {
	if !h.a.scratchInUse[h.idx] {
		panic("x64: scratch register released twice")
	}
	h.a.scratchInUse[h.idx] = false
}

// GetScratch borrows one of the two fixed scratch registers (ScratchReg0,
// ScratchReg1). It panics if both are already borrowed: FullCodegen's
// inline fast paths are written to never need a third simultaneous
// temporary, so exhaustion means a generator bug, not a resource the
// caller should degrade gracefully around.
func (a *Assembler) GetScratch() *ScratchHandle {
	for i, reg := range [2]Reg{ScratchReg0, ScratchReg1} {
		if !a.scratchInUse[i] {
			a.scratchInUse[i] = true
			return &ScratchHandle{a: a, reg: reg, idx: i}
		}
	}
	panic("x64: no scratch register available")
}
