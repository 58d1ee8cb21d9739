package regalloc

import (
	"fmt"

	"github.com/wafflevm/wafflevm/internal/bytecode"
)

// maxRewriteIterations bounds the spill-and-retry loop so a regalloc bug
// shows up as an error instead of an infinite compile (spec.md §4.8),
// grounded on graph_coloring.rs's MAX_REWRITE_ITERATIONS_ALLOWED.
const maxRewriteIterations = 50

// Allocator runs one round of the Chaitin–Briggs-with-coalescing
// algorithm (Appel's book §11.4, as the ported source's own comment
// names it) over an interference graph.
type Allocator struct {
	ig             *Graph
	numMachineRegs int

	precolored map[bytecode.VReg]struct{}
	colors     []bytecode.VReg

	initial []bytecode.VReg

	simplifyWL orderedSet
	freezeWL   orderedSet
	spillWL    orderedSet

	spilled   orderedSet
	coalesced orderedSet
	colored   orderedSet
	selectStk []bytecode.VReg

	coalescedMoves   map[Move]struct{}
	constrainedMoves map[Move]struct{}
	frozenMoves      orderedMoveSet
	worklistMoves    orderedMoveSet
	activeMoves      map[Move]struct{}

	movelist map[bytecode.VReg][]Move
	alias    map[bytecode.VReg]bytecode.VReg

	// nonSpillable holds registers introduced as spill-scratch temps in an
	// earlier rewrite round; selectSpill must never pick them again or the
	// rewrite loop would not converge (spec.md §4.8).
	nonSpillable map[bytecode.VReg]struct{}
}

// orderedSet is an insertion-ordered set of VReg, mirroring the teacher
// port's LinkedHashSet<VirtualRegister> so pop() is deterministic.
type orderedSet struct {
	order []bytecode.VReg
	has   map[bytecode.VReg]struct{}
}

func newOrderedSet() orderedSet {
	return orderedSet{has: map[bytecode.VReg]struct{}{}}
}
func (s *orderedSet) Insert(r bytecode.VReg) {
	if _, ok := s.has[r]; ok {
		return
	}
	s.has[r] = struct{}{}
	s.order = append(s.order, r)
}
func (s *orderedSet) Remove(r bytecode.VReg) {
	if _, ok := s.has[r]; !ok {
		return
	}
	delete(s.has, r)
	for i, x := range s.order {
		if x == r {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
func (s *orderedSet) Contains(r bytecode.VReg) bool { _, ok := s.has[r]; return ok }
func (s *orderedSet) Empty() bool                   { return len(s.order) == 0 }
func (s *orderedSet) PopFront() bytecode.VReg {
	r := s.order[0]
	s.Remove(r)
	return r
}
func (s *orderedSet) Items() []bytecode.VReg { return s.order }

type orderedMoveSet struct {
	order []Move
	has   map[Move]struct{}
}

func newOrderedMoveSet() orderedMoveSet {
	return orderedMoveSet{has: map[Move]struct{}{}}
}
func (s *orderedMoveSet) Insert(m Move) {
	if _, ok := s.has[m]; ok {
		return
	}
	s.has[m] = struct{}{}
	s.order = append(s.order, m)
}
func (s *orderedMoveSet) Remove(m Move) {
	if _, ok := s.has[m]; !ok {
		return
	}
	delete(s.has, m)
	for i, x := range s.order {
		if x == m {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
func (s *orderedMoveSet) Contains(m Move) bool { _, ok := s.has[m]; return ok }
func (s *orderedMoveSet) Empty() bool          { return len(s.order) == 0 }
func (s *orderedMoveSet) PopFront() Move {
	m := s.order[0]
	s.Remove(m)
	return m
}
func (s *orderedMoveSet) Items() []Move { return s.order }

// Result is the outcome of one allocation round: a color for every
// successfully assigned register, and the registers that still need to be
// spilled and the whole round retried (spec.md §4.8).
type Result struct {
	Assignment map[bytecode.VReg]bytecode.VReg
	Spilled    []bytecode.VReg
}

// Allocate runs the full simplify/coalesce/freeze/spill fixpoint over ig
// and assigns colors. numMachineRegs must match the value ig was built
// with. nonSpillable marks registers (typically spill-scratch temps from
// an earlier rewrite round) that selectSpill must never choose; it may be
// nil.
func Allocate(ig *Graph, numMachineRegs int, nonSpillable map[bytecode.VReg]struct{}) (*Result, error) {
	a := &Allocator{
		ig:               ig,
		numMachineRegs:   numMachineRegs,
		precolored:       map[bytecode.VReg]struct{}{},
		simplifyWL:       newOrderedSet(),
		freezeWL:         newOrderedSet(),
		spillWL:          newOrderedSet(),
		spilled:          newOrderedSet(),
		coalesced:        newOrderedSet(),
		colored:          newOrderedSet(),
		coalescedMoves:   map[Move]struct{}{},
		constrainedMoves: map[Move]struct{}{},
		frozenMoves:      newOrderedMoveSet(),
		worklistMoves:    newOrderedMoveSet(),
		activeMoves:      map[Move]struct{}{},
		movelist:         map[bytecode.VReg][]Move{},
		alias:            map[bytecode.VReg]bytecode.VReg{},
		nonSpillable:     nonSpillable,
	}
	for i := 0; i < numMachineRegs; i++ {
		r := bytecode.Local(i)
		a.precolored[r] = struct{}{}
		a.colors = append(a.colors, r)
	}
	for _, n := range ig.Nodes() {
		if !ig.IsColored(n) {
			a.initial = append(a.initial, n)
		}
	}

	a.build()
	a.makeWorkList()

	for !a.simplifyWL.Empty() || !a.worklistMoves.Empty() || !a.freezeWL.Empty() || !a.spillWL.Empty() {
		switch {
		case !a.simplifyWL.Empty():
			a.simplify()
		case !a.worklistMoves.Empty():
			a.coalesce()
		case !a.freezeWL.Empty():
			a.freeze()
		case !a.spillWL.Empty():
			a.selectSpill()
		}
	}

	if err := a.assignColors(); err != nil {
		return nil, err
	}

	result := &Result{Assignment: map[bytecode.VReg]bytecode.VReg{}}
	for _, n := range ig.Nodes() {
		if ig.isMachine(n) {
			continue
		}
		alias := a.getAlias(n)
		if color, ok := ig.ColorOf(alias); ok {
			result.Assignment[n] = color
		}
	}
	for _, n := range a.spilled.Items() {
		result.Spilled = append(result.Spilled, n)
	}
	return result, nil
}

func (a *Allocator) build() {
	for _, m := range a.ig.Moves() {
		a.worklistMoves.Insert(m)
		a.addToMovelist(m.From, m)
		a.addToMovelist(m.To, m)
	}

	for _, n := range a.ig.Nodes() {
		closure := map[bytecode.VReg]struct{}{}
		worklist := []bytecode.VReg{n}
		for len(worklist) > 0 {
			cur := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for _, m := range a.movelist[cur] {
				if _, ok := closure[m.From]; !ok {
					closure[m.From] = struct{}{}
					worklist = append(worklist, m.From)
				}
				if _, ok := closure[m.To]; !ok {
					closure[m.To] = struct{}{}
					worklist = append(worklist, m.To)
				}
			}
		}
		freezeCost := 0.0
		for r := range closure {
			freezeCost += a.ig.SpillCost(r)
		}
		a.ig.SetFreezeCost(n, freezeCost)
	}
}

func (a *Allocator) addToMovelist(r bytecode.VReg, m Move) {
	a.movelist[r] = append(a.movelist[r], m)
}

func (a *Allocator) makeWorkList() {
	for _, n := range a.initial {
		switch {
		case a.ig.Degree(n) >= a.numMachineRegs:
			a.spillWL.Insert(n)
		case a.isMoveRelated(n):
			a.freezeWL.Insert(n)
		default:
			a.simplifyWL.Insert(n)
		}
	}
	a.initial = nil
}

func (a *Allocator) nodeMoves(n bytecode.VReg) []Move {
	var out []Move
	seen := map[Move]struct{}{}
	consider := func(m Move) {
		if _, ok := seen[m]; ok {
			return
		}
		inActive := a.activeMovesContains(m)
		inWorklist := a.worklistMoves.Contains(m)
		if !inActive && !inWorklist {
			return
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	for _, m := range a.movelist[n] {
		consider(m)
	}
	return out
}

func (a *Allocator) activeMovesContains(m Move) bool {
	_, ok := a.activeMoves[m]
	return ok
}

func (a *Allocator) isMoveRelated(n bytecode.VReg) bool {
	return len(a.nodeMoves(n)) > 0
}

func (a *Allocator) adjacent(n bytecode.VReg) []bytecode.VReg {
	var out []bytecode.VReg
	for _, w := range a.ig.AdjList(n) {
		if a.isOnSelectStack(w) || a.coalesced.Contains(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func (a *Allocator) isOnSelectStack(n bytecode.VReg) bool {
	for _, x := range a.selectStk {
		if x == n {
			return true
		}
	}
	return false
}

func (a *Allocator) simplify() {
	n := a.simplifyWL.PopFront()
	a.selectStk = append(a.selectStk, n)
	for _, m := range a.adjacent(n) {
		a.decrementDegree(m)
	}
}

func (a *Allocator) decrementDegree(n bytecode.VReg) {
	if _, ok := a.precolored[n]; ok {
		return
	}
	d := a.ig.Degree(n)
	a.ig.SetDegree(n, d-1)
	if d == a.numMachineRegs {
		nodes := append([]bytecode.VReg{n}, a.adjacent(n)...)
		a.enableMoves(nodes)
		a.spillWL.Remove(n)
		if a.isMoveRelated(n) {
			a.freezeWL.Insert(n)
		} else {
			a.simplifyWL.Insert(n)
		}
	}
}

func (a *Allocator) enableMoves(nodes []bytecode.VReg) {
	for _, n := range nodes {
		for _, m := range a.nodeMoves(n) {
			if a.activeMovesContains(m) {
				delete(a.activeMoves, m)
				a.worklistMoves.Insert(m)
			}
		}
	}
}

func (a *Allocator) addWorklist(n bytecode.VReg) {
	if _, ok := a.precolored[n]; ok {
		return
	}
	if !a.isMoveRelated(n) && a.ig.Degree(n) < a.numMachineRegs {
		a.freezeWL.Remove(n)
		a.simplifyWL.Insert(n)
	}
}

func (a *Allocator) ok(t, r bytecode.VReg) bool {
	_, pre := a.precolored[t]
	return a.ig.Degree(t) < a.numMachineRegs || pre || a.ig.InAdjSet(t, r)
}

func (a *Allocator) checkOK(u, v bytecode.VReg) bool {
	for _, t := range a.adjacent(v) {
		if !a.ok(t, u) {
			return false
		}
	}
	return true
}

func (a *Allocator) conservative(nodes []bytecode.VReg) bool {
	k := 0
	seen := map[bytecode.VReg]struct{}{}
	for _, n := range nodes {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		_, pre := a.precolored[n]
		if pre || a.ig.Degree(n) >= a.numMachineRegs {
			k++
		}
	}
	return k < a.numMachineRegs
}

func (a *Allocator) checkConservative(u, v bytecode.VReg) bool {
	nodes := append(append([]bytecode.VReg{}, a.adjacent(u)...), a.adjacent(v)...)
	return a.conservative(nodes)
}

func (a *Allocator) getAlias(n bytecode.VReg) bytecode.VReg {
	if a.coalesced.Contains(n) {
		return a.getAlias(a.alias[n])
	}
	return n
}

func (a *Allocator) coalesce() {
	m := a.worklistMoves.PopFront()

	x := a.getAlias(m.From)
	y := a.getAlias(m.To)

	var u, v bytecode.VReg
	var preU, preV bool
	_, yPre := a.precolored[y]
	if yPre {
		u, v = y, x
		preU = true
		_, preV = a.precolored[v]
	} else {
		u, v = x, y
		_, preU = a.precolored[u]
		_, preV = a.precolored[v]
	}

	isUsableColor := func(r bytecode.VReg) bool {
		for _, c := range a.colors {
			if c == r {
				return true
			}
		}
		return false
	}

	if preU && !isUsableColor(u) {
		if !preV {
			a.addWorklist(v)
		}
		a.constrainedMoves[m] = struct{}{}
		return
	}
	if preV && !isUsableColor(v) {
		if !preU {
			a.addWorklist(u)
		}
		a.constrainedMoves[m] = struct{}{}
		return
	}

	switch {
	case u == v:
		a.coalescedMoves[m] = struct{}{}
		if !preU {
			a.addWorklist(u)
		}
	case preV || a.ig.InAdjSet(u, v):
		a.constrainedMoves[m] = struct{}{}
		if !preU {
			a.addWorklist(u)
		}
		if !preV {
			a.addWorklist(v)
		}
	case (preU && a.checkOK(u, v)) || (!preU && a.checkConservative(u, v)):
		a.coalescedMoves[m] = struct{}{}
		a.combine(u, v)
		if !preU {
			a.addWorklist(u)
		}
	default:
		a.activeMoves[m] = struct{}{}
	}
}

func (a *Allocator) combine(u, v bytecode.VReg) {
	if a.freezeWL.Contains(v) {
		a.freezeWL.Remove(v)
	} else {
		a.spillWL.Remove(v)
	}
	a.coalesced.Insert(v)
	a.alias[v] = u

	for _, m := range a.movelist[v] {
		a.addToMovelist(u, m)
	}

	a.enableMoves([]bytecode.VReg{v})

	for _, t := range a.adjacent(v) {
		a.ig.AddEdge(t, u)
		a.decrementDegree(t)
	}

	if a.freezeWL.Contains(u) && a.ig.Degree(u) >= a.numMachineRegs {
		a.freezeWL.Remove(u)
		a.spillWL.Insert(u)
	}
}

func (a *Allocator) freeze() {
	n := a.freezeHeuristic()
	a.freezeWL.Remove(n)
	a.simplifyWL.Insert(n)
	a.freezeMoves(n)
}

func (a *Allocator) freezeHeuristic() bytecode.VReg {
	var best bytecode.VReg
	bestCost := -1.0
	for _, n := range a.freezeWL.Items() {
		cost := a.ig.FreezeCost(n)
		if bestCost < 0 || cost < bestCost {
			best, bestCost = n, cost
		}
	}
	return best
}

func (a *Allocator) freezeMoves(u bytecode.VReg) {
	for _, m := range a.nodeMoves(u) {
		var v bytecode.VReg
		if a.getAlias(m.To) == a.getAlias(u) {
			v = a.getAlias(m.From)
		} else {
			v = a.getAlias(m.To)
		}
		delete(a.activeMoves, m)
		a.frozenMoves.Insert(m)

		if a.freezeWL.Contains(v) && len(a.nodeMoves(v)) == 0 {
			a.freezeWL.Remove(v)
			a.simplifyWL.Insert(v)
		}
	}
}

func (a *Allocator) isSpillable(n bytecode.VReg) bool {
	_, ok := a.nonSpillable[n]
	return !ok
}

func (a *Allocator) selectSpill() {
	var m bytecode.VReg
	found := false
	bestCost := 0.0
	for _, n := range a.spillWL.Items() {
		if !a.isSpillable(n) {
			continue
		}
		cost := a.ig.SpillCost(n)
		if !found || cost < bestCost {
			m, bestCost, found = n, cost, true
		}
	}
	if !found {
		panic("regalloc: no spillable node in worklist_spill")
	}
	a.spillWL.Remove(m)
	a.simplifyWL.Insert(m)
	a.freezeMoves(m)
}

func (a *Allocator) assignColors() error {
	// Pop the select stack (LIFO): nodes simplified last are colored first,
	// the classic Chaitin ordering.
	for len(a.selectStk) > 0 {
		n := a.selectStk[len(a.selectStk)-1]
		a.selectStk = a.selectStk[:len(a.selectStk)-1]

		okColors := map[bytecode.VReg]struct{}{}
		for _, c := range a.colors {
			okColors[c] = struct{}{}
		}
		for _, w := range a.ig.AdjList(n) {
			wa := a.getAlias(w)
			if c, ok := a.ig.ColorOf(wa); ok {
				delete(okColors, c)
			}
		}

		if len(okColors) == 0 {
			a.spilled.Insert(n)
			continue
		}
		color := a.colorHeuristic(n, okColors)
		a.colored.Insert(n)
		a.ig.SetColor(n, color)
	}

	for _, n := range a.coalesced.Items() {
		alias := a.getAlias(n)
		if c, ok := a.ig.ColorOf(alias); ok {
			a.ig.SetColor(n, c)
		}
	}

	if !a.spilled.Empty() {
		return &SpillError{Registers: append([]bytecode.VReg{}, a.spilled.Items()...)}
	}
	return nil
}

// colorHeuristic favors a color that lets a frozen move be eliminated
// later, weighted by the other side's spill cost — the same heuristic as
// graph_coloring.rs's color_heuristic.
func (a *Allocator) colorHeuristic(reg bytecode.VReg, okColors map[bytecode.VReg]struct{}) bytecode.VReg {
	weight := map[bytecode.VReg]float64{}
	for _, m := range a.frozenMoves.Items() {
		var other bytecode.VReg
		if m.From == reg {
			other = m.To
		} else if m.To == reg {
			other = m.From
		} else {
			continue
		}
		alias := a.getAlias(other)
		color, ok := a.ig.ColorOf(alias)
		if !ok {
			continue
		}
		if _, usable := okColors[color]; !usable {
			continue
		}
		weight[color] += a.ig.SpillCost(alias)
	}
	if len(weight) == 0 {
		for _, c := range a.colors {
			if _, ok := okColors[c]; ok {
				return c
			}
		}
	}
	var best bytecode.VReg
	bestWeight := -1.0
	for c, w := range weight {
		if w > bestWeight {
			best, bestWeight = c, w
		}
	}
	return best
}

// SpillError reports that assignColors could not find a color for one or
// more registers; the caller must insert spill code and re-run Build+
// Allocate (spec.md §4.8's bounded spill-and-rewrite loop).
type SpillError struct {
	Registers []bytecode.VReg
}

func (e *SpillError) Error() string {
	return fmt.Sprintf("regalloc: %d register(s) could not be colored, spill required", len(e.Registers))
}

// MaxRewriteIterations exposes the bound on spill-and-retry rounds so the
// compiler driver can fail loudly instead of looping forever.
func MaxRewriteIterations() int { return maxRewriteIterations }
