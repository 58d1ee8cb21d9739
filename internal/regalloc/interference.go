// Package regalloc implements the Chaitin–Briggs graph-coloring register
// allocator with coalescing described in spec.md §4.7/§4.8: build an
// interference graph from liveness, then simplify/coalesce/freeze/spill
// worklists assign each virtual register a machine register; a spilled
// register is rewritten through scratch temps and colored again, with no
// stack slot of its own.
package regalloc

import (
	"github.com/wafflevm/wafflevm/internal/bytecode"
	"github.com/wafflevm/wafflevm/internal/cfg"
	"github.com/wafflevm/wafflevm/internal/liveness"
)

// NodeKind classifies why a node was created, which determines its base
// spill-cost weight (spec.md §4.7 spill-cost heuristic).
type NodeKind int

const (
	KindDef NodeKind = iota
	KindUse
	KindCopy
	KindMachine
)

// Move is a candidate coalescing edge: a plain register-copy instruction
// connecting From and To.
type Move struct {
	From, To bytecode.VReg
}

type node struct {
	reg        bytecode.VReg
	colored    bool
	color      bytecode.VReg
	spillCost  float64
	freezeCost float64
}

// Graph is the interference graph for one CodeBlock: an adjacency set +
// list (for fast edge queries and fast neighbor iteration), a degree
// table, and the move list used for coalescing. Grounded on
// original_source/src/bytecompiler/interference_graph.rs's
// InterferenceGraph.
type Graph struct {
	numMachineRegs int

	nodes map[bytecode.VReg]*node
	order []bytecode.VReg

	adjSet  map[[2]bytecode.VReg]struct{}
	adjList map[bytecode.VReg][]bytecode.VReg
	degree  map[bytecode.VReg]int

	moves   []Move
	moveSet map[Move]struct{}
}

func newGraph(numMachineRegs int) *Graph {
	return &Graph{
		numMachineRegs: numMachineRegs,
		nodes:          map[bytecode.VReg]*node{},
		adjSet:         map[[2]bytecode.VReg]struct{}{},
		adjList:        map[bytecode.VReg][]bytecode.VReg{},
		degree:         map[bytecode.VReg]int{},
		moveSet:        map[Move]struct{}{},
	}
}

// isMachine reports whether r is one of the precolored machine registers
// (the bottom numMachineRegs local-register indices, spec.md §4.8).
func (g *Graph) isMachine(r bytecode.VReg) bool {
	return r.IsLocal() && r.ToLocalIndex() < g.numMachineRegs
}

func spillCostHeuristic(kind NodeKind, loopDepth int) float64 {
	const defWeight, useWeight, copyWeight = 1.0, 1.0, 2.0
	scale := 1.0
	for i := 0; i < loopDepth; i++ {
		scale *= 10
	}
	switch kind {
	case KindMachine:
		return 0
	case KindDef:
		return defWeight * scale
	case KindUse:
		return useWeight * scale
	case KindCopy:
		return copyWeight * scale
	default:
		return 0
	}
}

func (g *Graph) newNode(r bytecode.VReg, kind NodeKind, loopDepth int) {
	n, ok := g.nodes[r]
	if !ok {
		n = &node{reg: r}
		g.nodes[r] = n
		g.order = append(g.order, r)
	}
	n.spillCost += spillCostHeuristic(kind, loopDepth)
}

func (g *Graph) Nodes() []bytecode.VReg { return g.order }

func (g *Graph) Moves() []Move { return g.moves }

func (g *Graph) addMove(from, to bytecode.VReg) {
	m := Move{from, to}
	if _, ok := g.moveSet[m]; ok {
		return
	}
	g.moveSet[m] = struct{}{}
	g.moves = append(g.moves, m)
}

// AddEdge inserts an interference edge between u and v, skipping
// self-edges and edges already present, as interference_graph.rs's
// add_edge does.
func (g *Graph) AddEdge(u, v bytecode.VReg) {
	if u == v {
		return
	}
	if _, ok := g.adjSet[[2]bytecode.VReg{u, v}]; ok {
		return
	}
	g.adjSet[[2]bytecode.VReg{u, v}] = struct{}{}
	g.adjSet[[2]bytecode.VReg{v, u}] = struct{}{}

	if !g.isMachine(u) {
		g.adjList[u] = append(g.adjList[u], v)
		g.degree[u]++
	}
	if !g.isMachine(v) {
		g.adjList[v] = append(g.adjList[v], u)
		g.degree[v]++
	}
}

func (g *Graph) InAdjSet(u, v bytecode.VReg) bool {
	_, ok := g.adjSet[[2]bytecode.VReg{u, v}]
	return ok
}

func (g *Graph) AdjList(r bytecode.VReg) []bytecode.VReg { return g.adjList[r] }

func (g *Graph) Degree(r bytecode.VReg) int { return g.degree[r] }

func (g *Graph) SetDegree(r bytecode.VReg, d int) { g.degree[r] = d }

func (g *Graph) ColorOf(r bytecode.VReg) (bytecode.VReg, bool) {
	n := g.nodes[r]
	if n == nil || !n.colored {
		return 0, false
	}
	return n.color, true
}

func (g *Graph) SetColor(r, color bytecode.VReg) {
	n := g.nodes[r]
	n.colored = true
	n.color = color
}

func (g *Graph) IsColored(r bytecode.VReg) bool {
	n := g.nodes[r]
	return n != nil && n.colored
}

func (g *Graph) SpillCost(r bytecode.VReg) float64 {
	if n := g.nodes[r]; n != nil {
		return n.spillCost
	}
	return 0
}

func (g *Graph) FreezeCost(r bytecode.VReg) float64 {
	if n := g.nodes[r]; n != nil {
		return n.freezeCost
	}
	return 0
}

func (g *Graph) SetFreezeCost(r bytecode.VReg, cost float64) {
	g.nodes[r].freezeCost = cost
}

// Build constructs the interference graph for cb: first a node per
// referenced register (weighted by def/use/copy and loop depth), then an
// edge from every definition to everything simultaneously live, walking
// each block's instructions in reverse order with a running "currently
// live" set (spec.md §4.7), grounded on
// interference_graph.rs's build_interference_graph_chaitin_briggs.
func Build(cb *bytecode.CodeBlock, g *cfg.Graph, live *liveness.Result, numMachineRegs int, loopDepth func(bytecode.BlockID) int) *Graph {
	ig := newGraph(numMachineRegs)

	for i := 0; i < numMachineRegs; i++ {
		r := bytecode.Local(i)
		ig.newNode(r, KindMachine, 0)
		ig.SetColor(r, r)
	}

	for bi := range cb.Blocks {
		b := &cb.Blocks[bi]
		depth := loopDepth(b.ID)
		var uses, defs []bytecode.VReg
		for ii := range b.Code {
			in := &b.Code[ii]
			kind := KindDef
			if in.IsMove() {
				kind = KindCopy
			}
			defs = in.GetDefs(defs[:0])
			for _, r := range defs {
				ig.newNode(r, kind, depth)
			}
			useKind := KindUse
			if in.IsMove() {
				useKind = KindCopy
			}
			uses = in.GetUses(uses[:0])
			for _, r := range uses {
				// Constant-pool and argument-frame operands are read
				// directly by codegen, never through a colorable register
				// (spec.md §4.9); only Local registers are RA-managed.
				if r.IsLocal() {
					ig.newNode(r, useKind, depth)
				}
			}
		}
	}

	var defs, uses []bytecode.VReg
	for bi := range cb.Blocks {
		b := &cb.Blocks[bi]
		currentLive := map[bytecode.VReg]struct{}{}
		for r := range live.LiveOut[b.ID] {
			currentLive[r] = struct{}{}
		}

		for ii := len(b.Code) - 1; ii >= 0; ii-- {
			in := &b.Code[ii]

			var moveSrc bytecode.VReg
			hasMoveSrc := false
			if in.IsMove() {
				uses = in.GetUses(uses[:0])
				defs = in.GetDefs(defs[:0])
				if len(uses) == 1 && len(defs) >= 1 && uses[0].IsLocal() {
					ig.addMove(uses[0], defs[0])
					moveSrc = uses[0]
					hasMoveSrc = true
				}
			}

			defs = in.GetDefs(defs[:0])
			for _, d := range defs {
				currentLive[d] = struct{}{}
			}
			for _, d := range defs {
				for e := range currentLive {
					if hasMoveSrc && e == moveSrc {
						continue
					}
					if d == e {
						continue
					}
					if !ig.IsColored(d) {
						ig.AddEdge(d, e)
					}
					if !ig.IsColored(e) {
						ig.AddEdge(e, d)
					}
				}
			}
			for _, d := range defs {
				delete(currentLive, d)
			}

			uses = in.GetUses(uses[:0])
			for _, u := range uses {
				if u.IsLocal() {
					currentLive[u] = struct{}{}
				}
			}
		}
	}

	return ig
}
