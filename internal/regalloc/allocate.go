package regalloc

import (
	"fmt"

	"github.com/wafflevm/wafflevm/internal/bytecode"
	"github.com/wafflevm/wafflevm/internal/cfg"
	"github.com/wafflevm/wafflevm/internal/liveness"
)

// AllocateCodeBlock runs register allocation to a fixed point: build the
// CFG and liveness, build the interference graph, try to color it, and on
// failure insert spill code and retry — bounded by MaxRewriteIterations,
// per spec.md §4.8's "abort after a small fixed number of rewrite
// iterations (e.g. 50) to detect infinite loops".
//
// On success, cb's instructions are rewritten in place so every local
// register below numMachineRegs is a real machine register and the
// CodeBlock is ready for code generation (spec.md §4.10).
//
// The caller must have reserved the bottom numMachineRegs indices of cb's
// Local space (bytecode.CodeBlock.ReserveLocals) before emitting any
// instruction, so virtual temps never collide with the machine-register
// aliases Local(0)..Local(numMachineRegs-1) this package precolors.
func AllocateCodeBlock(cb *bytecode.CodeBlock, numMachineRegs int) (*Result, error) {
	nonSpillable := map[bytecode.VReg]struct{}{}

	for iter := 0; ; iter++ {
		if iter >= MaxRewriteIterations() {
			return nil, fmt.Errorf("regalloc: exceeded %d spill-rewrite iterations", MaxRewriteIterations())
		}

		g := cfg.Build(cb)
		live := liveness.Analyze(cb, g)
		la := cfg.DetectLoops(g, len(cb.Blocks))

		ig := Build(cb, g, live, numMachineRegs, func(b bytecode.BlockID) int {
			return la.LoopDepth[b]
		})

		result, err := Allocate(ig, numMachineRegs, nonSpillable)
		var spillErr *SpillError
		if err == nil {
			rewriteFinalAssignment(cb, result)
			return result, nil
		}
		if !asSpillError(err, &spillErr) {
			return nil, err
		}

		introduced := rewriteSpills(cb, spillErr.Registers, numMachineRegs)
		for _, r := range introduced {
			nonSpillable[r] = struct{}{}
		}
	}
}

func asSpillError(err error, target **SpillError) bool {
	if se, ok := err.(*SpillError); ok {
		*target = se
		return true
	}
	return false
}

// rewriteFinalAssignment replaces every local virtual register with its
// assigned machine register (spec.md §4.8's "final step": "pop
// selectStack ... rewrite the code"). Registers that were never
// referenced (e.g. dead after coalescing) are left untouched.
func rewriteFinalAssignment(cb *bytecode.CodeBlock, result *Result) {
	for bi := range cb.Blocks {
		b := &cb.Blocks[bi]
		for ii := range b.Code {
			in := &b.Code[ii]
			for from, to := range result.Assignment {
				in.ReplaceReg(from, to)
			}
		}
	}
}

// rewriteSpills inserts a load before every use and a store after every
// def of each spilled register, each through a fresh scratch local that is
// marked non-spillable for the rest of this compilation (spec.md §4.8:
// "insert loads before uses and stores after defs of each spilled
// register, introducing scratch temporaries marked non-spillable").
//
// The "spill slot" is the spilled virtual register itself, left in place
// as a local: the inserted loads and stores go to it, and it stays in the
// graph and is colored again in the next round along with the scratch
// temps introduced here. No stack slot is assigned to it; internal/codegen
// maps every local index to a machine register.
func rewriteSpills(cb *bytecode.CodeBlock, spilled []bytecode.VReg, numMachineRegs int) []bytecode.VReg {
	spillSet := map[bytecode.VReg]struct{}{}
	for _, r := range spilled {
		spillSet[r] = struct{}{}
	}

	var scratches []bytecode.VReg
	var uses, defs []bytecode.VReg

	for bi := range cb.Blocks {
		b := &cb.Blocks[bi]
		var rewritten []bytecode.Instruction
		for ii := range b.Code {
			in := b.Code[ii]

			uses = in.GetUses(uses[:0])
			defs = in.GetDefs(defs[:0])

			// Map each spilled operand this instruction touches to a fresh
			// scratch, inserting a load before (for uses) or a store after
			// (for defs).
			scratchFor := map[bytecode.VReg]bytecode.VReg{}
			needsLoad := map[bytecode.VReg]bool{}
			for _, u := range uses {
				if _, isSpill := spillSet[u]; isSpill {
					if _, ok := scratchFor[u]; !ok {
						scratchFor[u] = cb.AllocLocal()
						needsLoad[u] = true
					}
				}
			}
			for _, d := range defs {
				if _, isSpill := spillSet[d]; isSpill {
					if _, ok := scratchFor[d]; !ok {
						scratchFor[d] = cb.AllocLocal()
					}
				}
			}

			for orig, scratch := range scratchFor {
				scratches = append(scratches, scratch)
				if needsLoad[orig] {
					rewritten = append(rewritten, bytecode.Instruction{Op: bytecode.OpMov, Dst: scratch, Lhs: orig})
				}
				in.ReplaceReg(orig, scratch)
			}

			rewritten = append(rewritten, in)

			for orig, scratch := range scratchFor {
				if _, isDef := spillSet[orig]; isDef {
					isActuallyDef := false
					for _, d := range defs {
						if d == orig {
							isActuallyDef = true
							break
						}
					}
					if isActuallyDef {
						rewritten = append(rewritten, bytecode.Instruction{Op: bytecode.OpMov, Dst: orig, Lhs: scratch})
					}
				}
			}
		}
		b.Code = rewritten
	}
	_ = numMachineRegs
	return scratches
}
