// Package codegen implements FullCodegen, the baseline JIT of spec.md
// §4.10: a linear, single-pass per-block compiler that lowers an already
// register-allocated bytecode.CodeBlock (internal/regalloc has already
// assigned every local virtual register a physical machine register) into
// real x86-64 machine code via internal/asm/x64, with one generator per
// opcode family giving an inline fast path backed by a deferred slow path.
//
// Grounded throughout on original_source/src/fullcodegen/mod.rs's
// FullCodegen::compile dispatch loop and load_register/store_register
// helpers, adapted for this port's register-allocated local space: the
// original treats every virtual register as CallFrame-relative memory
// (it has no register allocator), so load_register/store_register always
// go through Mem::Base(REG_CALLFRAME, ...); this port's locals already
// live in real machine registers after internal/regalloc runs, so the
// Local case collapses to a register move (or no-op), and only Argument
// and Constant operands still need the CallFrame-relative/immediate
// paths the original always took.
package codegen

import "github.com/wafflevm/wafflevm/internal/asm/x64"

// Call-frame layout constants every compiled CodeBlock's prologue and
// whatever code lays out its caller-supplied frame must agree on; no
// code in this module lays out that frame (runtime.Invoke hands its
// CallFrame to the embedder's Trampoline). x64.CallFrameReg does double duty: it is both the stack frame
// pointer Prolog/Epilog push and restore, and the pointer to the caller-
// supplied CallFrame struct (arguments, `this`, upvalues) that struct lives
// just above it, at positive offsets. Everything Prolog's `stacksize`
// reserves for this function's own use — including the safepoint save
// area — lives in the newly-allocated region below the frame pointer, at
// negative offsets, the ordinary frame-pointer-relative-locals convention.
const (
	// frameArgsOffset locates the actual-argument array inside the
	// CallFrame struct: argument i lives at frameArgsOffset + 8*i,
	// mirroring original_source's
	// `Mem::Base(REG_CALLFRAME, offset_of!(CallFrame, entries))`.
	frameArgsOffset int32 = 16

	// frameSaveAreaOffset is the base of the register-save area Safepoint
	// spills live locals into before calling the runtime's safepoint
	// handler, so the conservative stack scanner (internal/gc) can find
	// every live reference at a GC point without this port needing a
	// precise per-register stack map. It is negative (and distinct from
	// frameArgsOffset) because it addresses this function's own reserved
	// stack region, not the caller's CallFrame struct.
	frameSaveAreaOffset int32 = -8
)

func argumentMem(index int) x64.Mem {
	return x64.BaseMem(x64.CallFrameReg, frameArgsOffset+int32(index)*8)
}

func saveSlotMem(slot int) x64.Mem {
	return x64.BaseMem(x64.CallFrameReg, frameSaveAreaOffset-int32(slot)*8)
}
