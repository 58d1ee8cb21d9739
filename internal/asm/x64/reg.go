// Package x64 implements the macro-assembler of spec.md §4.9: a logical
// instruction surface over the x86-64 ISA (register moves, memory
// operands, integer/float arithmetic, the NaN-boxed tagged-value helpers,
// label-based control flow with forward-jump patching, calls, and
// prologue/epilogue sequences), plus the byte-offset-keyed sidetables
// FullCodegen (internal/codegen) and the Code artifact (internal/code)
// consume.
//
// Grounded on original_source/src/assembler/{masm,masmx64}.rs for the
// logical surface and the tagged-value bit tests, and structurally on
// faddat-wazero/internal/engine/wazevo/backend/isa/arm64/machine.go plus
// the reference amd64 backend at
// _examples/other_examples/..._amd64-machine.go for label-fixup and
// sidetable-by-offset bookkeeping idioms.
package x64

// Reg is a physical x86-64 general-purpose or XMM register.
type Reg uint8

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	numGPRegs
)

const (
	XMM0 Reg = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
)

// Fixed-purpose register conventions (spec.md §4.10's "Register layout
// at runtime"): a dedicated register holds the current thread pointer,
// another the current call-frame pointer, and two scratch registers are
// kept for the macro-assembler's own sequences; the allocator colors only
// the machine registers its caller hands it.
const (
	ThreadReg    = R14
	CallFrameReg = R15
	ReturnReg    = RAX
	ScratchReg0  = R10
	ScratchReg1  = R11
)

// Mode is an operand width/representation, spec.md §4.9's `mode`.
type Mode int

const (
	Int8 Mode = iota
	Int32
	Int64
	Ptr
	Float32
	Float64
)

func (m Mode) rexW() bool { return m == Int64 || m == Ptr }
