package cfg

import "github.com/wafflevm/wafflevm/internal/bytecode"

// NaturalLoop is one back edge's loop body: header through backedge,
// together with every block that can reach backedge without passing
// through header (spec.md §4.5), grounded on
// original_source/src/bytecompiler/loopanalysis.rs's identify_single_loop.
type NaturalLoop struct {
	Header, Backedge bytecode.BlockID
	Blocks           map[bytecode.BlockID]struct{}
}

// MergedLoop unions every natural loop sharing a header into one loop with
// potentially several backedges (loopanalysis.rs's BCMergedLoop) — the unit
// the loop-nest tree and loop-depth map are built over.
type MergedLoop struct {
	Header    bytecode.BlockID
	Backedges []bytecode.BlockID
	Blocks    map[bytecode.BlockID]struct{}
}

// LoopAnalysis is the full loop-nest result for one CodeBlock.
type LoopAnalysis struct {
	// Headers lists every loop header in discovery order.
	Headers []bytecode.BlockID
	Merged  map[bytecode.BlockID]*MergedLoop

	// NestParent[h] is h's immediately enclosing loop header, or Invalid if
	// h is a top-level loop (parented directly under the virtual root).
	NestParent map[bytecode.BlockID]bytecode.BlockID
	// NestChildren[h] lists the loop headers immediately nested in h; the
	// virtual root's children are keyed under Invalid.
	NestChildren map[bytecode.BlockID][]bytecode.BlockID

	// LoopDepth[b] is b's loop nesting depth: 0 outside any loop.
	LoopDepth []int
}

// DetectLoops finds every natural loop in g, merges same-header loops,
// builds the loop-nest tree, and assigns a loop depth to every block.
func DetectLoops(g *Graph, numBlocks int) *LoopAnalysis {
	natural := findNaturalLoops(g)

	merged := map[bytecode.BlockID]*MergedLoop{}
	var headers []bytecode.BlockID
	for _, nl := range natural {
		m, ok := merged[nl.Header]
		if !ok {
			m = &MergedLoop{Header: nl.Header, Blocks: map[bytecode.BlockID]struct{}{}}
			merged[nl.Header] = m
			headers = append(headers, nl.Header)
		}
		m.Backedges = append(m.Backedges, nl.Backedge)
		for b := range nl.Blocks {
			m.Blocks[b] = struct{}{}
		}
	}

	nestParent, nestChildren := buildLoopNestTree(headers, merged)

	la := &LoopAnalysis{
		Headers:      headers,
		Merged:       merged,
		NestParent:   nestParent,
		NestChildren: nestChildren,
		LoopDepth:    make([]int, numBlocks),
	}
	recordDepth(0, Invalid, la)
	return la
}

// findNaturalLoops walks every block/predecessor edge and reports a back
// edge wherever the successor dominates the predecessor (spec.md §4.5: "a
// back edge is an edge whose head dominates its tail").
func findNaturalLoops(g *Graph) []NaturalLoop {
	var loops []NaturalLoop
	for _, header := range g.RPO {
		for _, pred := range g.Preds[header] {
			if g.Dominates(header, pred) {
				loops = append(loops, identifySingleLoop(g, header, pred))
			}
		}
	}
	return loops
}

// identifySingleLoop walks predecessors backward from backedge, stopping at
// header, collecting every block reachable this way: exactly the blocks
// that can reach backedge without first passing through header.
func identifySingleLoop(g *Graph, header, backedge bytecode.BlockID) NaturalLoop {
	blocks := map[bytecode.BlockID]struct{}{header: {}, backedge: {}}
	worklist := []bytecode.BlockID{}
	if backedge != header {
		worklist = append(worklist, backedge)
	}
	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, pred := range g.Preds[n] {
			if _, seen := blocks[pred]; seen {
				continue
			}
			blocks[pred] = struct{}{}
			worklist = append(worklist, pred)
		}
	}
	return NaturalLoop{Header: header, Backedge: backedge, Blocks: blocks}
}

// buildLoopNestTree attaches each loop header to its tightest enclosing
// outer loop (the containing merged loop with the fewest blocks), or to the
// virtual root if it is not nested in any other loop. Grounded on
// loopanalysis.rs's compute_loop_nest_tree.
func buildLoopNestTree(headers []bytecode.BlockID, merged map[bytecode.BlockID]*MergedLoop) (
	map[bytecode.BlockID]bytecode.BlockID, map[bytecode.BlockID][]bytecode.BlockID) {

	parent := map[bytecode.BlockID]bytecode.BlockID{}
	children := map[bytecode.BlockID][]bytecode.BlockID{}

	for _, header := range headers {
		var best bytecode.BlockID = Invalid
		bestSize := -1
		for _, outerHeader := range headers {
			if outerHeader == header {
				continue
			}
			outer := merged[outerHeader]
			if _, inside := outer.Blocks[header]; !inside {
				continue
			}
			if bestSize == -1 || len(outer.Blocks) < bestSize {
				best = outerHeader
				bestSize = len(outer.Blocks)
			}
		}
		parent[header] = best
		children[best] = append(children[best], header)
	}
	return parent, children
}

// recordDepth assigns depth to node's loop and to every block belonging to
// that loop that is not itself a nested loop header, then recurses into
// nested loops at depth+1. node == Invalid is the virtual root (depth 0, so
// its direct children — the top-level loops — land at depth 1 and blocks
// outside every loop keep depth 0).
func recordDepth(depth int, node bytecode.BlockID, la *LoopAnalysis) {
	if node != Invalid {
		if m := la.Merged[node]; m != nil {
			for b := range m.Blocks {
				if _, isHeader := la.Merged[b]; !isHeader || b == node {
					if int(b) < len(la.LoopDepth) {
						la.LoopDepth[b] = depth
					}
				}
			}
		}
	}
	for _, child := range la.NestChildren[node] {
		recordDepth(depth+1, child, la)
	}
}
