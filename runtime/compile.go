package runtime

import (
	"fmt"

	"github.com/wafflevm/wafflevm/internal/asm/x64"
	"github.com/wafflevm/wafflevm/internal/bytecode"
	"github.com/wafflevm/wafflevm/internal/code"
	"github.com/wafflevm/wafflevm/internal/codegen"
	"github.com/wafflevm/wafflevm/internal/regalloc"
)

// MachineRegisters is the concrete K-sized palette (spec.md §9's
// "Register count mismatch" note: "treat the palette size as a
// parameter K supplied by the back end") Compile colors every CodeBlock
// with. It excludes every register with a fixed-purpose role
// (internal/asm/x64.ThreadReg, CallFrameReg, ReturnReg, the two scratch
// registers) and every System V argument-passing register FullCodegen's
// slow paths and runtime-op dispatch load call arguments into
// (internal/codegen's ccallParams), leaving RBX, RBP, R12, and R13 as the
// registers a colored local can safely occupy across an ordinary
// instruction without a runtime call clobbering it first.
var MachineRegisters = []x64.Reg{x64.RBX, x64.RBP, x64.R12, x64.R13}

// Compile runs the full C6–C12 pipeline spec.md §6's `Runtime::compile`
// describes: CFG/liveness/interference analysis and Chaitin–Briggs
// register allocation (internal/regalloc, which also rewrites cb's
// virtual registers to machine-register-aliased locals in place),
// FullCodegen lowering (internal/codegen), then mapping the result into
// executable memory with its sidetables resolved (internal/code).
func (rt *Runtime) Compile(cb *bytecode.CodeBlock) (*code.Code, error) {
	if err := cb.Verify(); err != nil {
		return nil, fmt.Errorf("runtime: compile %q: %w", cb.Name, err)
	}

	if _, err := regalloc.AllocateCodeBlock(cb, len(MachineRegisters)); err != nil {
		return nil, fmt.Errorf("runtime: register allocation for %q: %w", cb.Name, err)
	}

	gen := codegen.New(cb, MachineRegisters, rt.Helpers)
	masm := gen.Compile()

	osr := make(code.OSREntrySource, len(cb.Blocks))
	for id, off := range gen.BlockOffsets() {
		osr[uint32(id)] = off
	}

	co, err := code.New(code.DescriptorFunction, cb.Name, masm, gen.FrameSize(), osr, rt.log)
	if err != nil {
		return nil, fmt.Errorf("runtime: mapping %q: %w", cb.Name, err)
	}
	return co, nil
}
