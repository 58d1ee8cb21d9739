// Package liveness computes per-block use/def sets and the global
// live-in/live-out fixpoint over a bytecode.CodeBlock's CFG (spec.md §4.6),
// the input the interference-graph builder needs (spec.md §4.7).
package liveness

import (
	"github.com/wafflevm/wafflevm/internal/bytecode"
	"github.com/wafflevm/wafflevm/internal/cfg"
)

// VRegSet is a plain set of virtual registers; liveness sets are rarely
// large enough to justify a bitset, and this mirrors the
// LinkedHashSet<VirtualRegister> the teacher port's liveness code uses.
type VRegSet map[bytecode.VReg]struct{}

func (s VRegSet) Has(r bytecode.VReg) bool { _, ok := s[r]; return ok }
func (s VRegSet) Add(r bytecode.VReg)      { s[r] = struct{}{} }

func (s VRegSet) equal(o VRegSet) bool {
	if len(s) != len(o) {
		return false
	}
	for r := range s {
		if !o.Has(r) {
			return false
		}
	}
	return true
}

func (s VRegSet) clone() VRegSet {
	c := make(VRegSet, len(s))
	for r := range s {
		c[r] = struct{}{}
	}
	return c
}

// Result is the per-block liveness of one CodeBlock, indexed by BlockID.
type Result struct {
	// Use[b] is the upward-exposed use set: registers b reads before any
	// local definition, i.e. registers whose value must flow in from a
	// predecessor.
	Use []VRegSet
	// Def[b] is every register b (re)defines, regardless of use order.
	Def []VRegSet

	LiveIn, LiveOut []VRegSet
}

// Analyze computes local use/def sets and the global live-in/live-out
// fixpoint, grounded on
// original_source/src/bytecompiler/interference_graph.rs's
// build_cfg_nodes/global_liveness_analysis.
func Analyze(cb *bytecode.CodeBlock, g *cfg.Graph) *Result {
	n := len(cb.Blocks)
	r := &Result{
		Use:     make([]VRegSet, n),
		Def:     make([]VRegSet, n),
		LiveIn:  make([]VRegSet, n),
		LiveOut: make([]VRegSet, n),
	}
	for i := range cb.Blocks {
		r.Use[i], r.Def[i] = localUsesDefs(&cb.Blocks[i])
		r.LiveIn[i] = VRegSet{}
		r.LiveOut[i] = VRegSet{}
	}

	for changed := true; changed; {
		changed = false
		for _, blk := range g.RPO {
			oldIn := r.LiveIn[blk]
			oldOut := r.LiveOut[blk]

			newOut := VRegSet{}
			for _, succ := range g.Succs[blk] {
				for reg := range r.LiveIn[succ] {
					newOut.Add(reg)
				}
			}

			newIn := newOut.clone()
			for def := range r.Def[blk] {
				delete(newIn, def)
			}
			for use := range r.Use[blk] {
				newIn.Add(use)
			}

			if !newIn.equal(oldIn) || !newOut.equal(oldOut) {
				changed = true
			}
			r.LiveIn[blk] = newIn
			r.LiveOut[blk] = newOut
		}
	}
	return r
}

// localUsesDefs walks a block's instructions in order, classifying each
// register reference as an upward-exposed use (read before any local
// write) or a def.
func localUsesDefs(b *bytecode.BasicBlock) (use, def VRegSet) {
	use, def = VRegSet{}, VRegSet{}
	var uses, defs []bytecode.VReg
	for i := range b.Code {
		in := &b.Code[i]
		uses = in.GetUses(uses[:0])
		for _, reg := range uses {
			if !def.Has(reg) {
				use.Add(reg)
			}
		}
		defs = in.GetDefs(defs[:0])
		for _, reg := range defs {
			def.Add(reg)
		}
	}
	return use, def
}
