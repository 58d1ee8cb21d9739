package heap

import "sync"

// classAllocator is the per-size-class bump allocator state of spec.md
// §4.2: a current block plus the bump cursor/limit within it, and the
// three block lists a collection cycle reshuffles between (unavailable,
// recyclable, evacuation headroom). Grounded on
// original_source/src/gc/immix_space/block_allocator.rs's per-class
// cursor/limit pair and block-list bookkeeping.
type classAllocator struct {
	class int

	current *Block

	unavailable []*Block // fully occupied, not worth scanning for holes
	recyclable  []*Block // has at least one hole worth bump-allocating into
	evacuation  []*Block // held back as copy destinations during a GC cycle
}

// Allocator owns every size class's bump allocator, the overflow
// allocator used for MediumObjectSize+ allocations, and the precise
// (stand-alone) allocations for LargeCutoff+ objects. Grounded on
// original_source/src/gc/immix_space.rs, which is the top-level owner of
// exactly this set of sub-allocators.
type Allocator struct {
	mu sync.Mutex

	classes  []*classAllocator
	overflow *classAllocator

	precise []*PreciseAllocation

	newBlock func() *Block
}

// NewAllocator returns a fresh Allocator whose newBlock hook is NewBlock;
// tests may replace that field to observe/limit block creation.
func NewAllocator() *Allocator {
	a := &Allocator{newBlock: NewBlock}
	a.classes = make([]*classAllocator, NumSizeClasses())
	for i, c := range sizeClasses {
		a.classes[i] = &classAllocator{class: c}
	}
	a.overflow = &classAllocator{class: -1}
	return a
}

// Allocate reserves n bytes and returns the byte offset within the
// returned block's Memory where the object starts, or a *PreciseAllocation
// if n routed to the standalone path (spec.md §4.2 step 5: size-class
// bump allocation below MediumObjectSize, overflow allocator at or above
// it and below LargeCutoff, PreciseAllocation at or above LargeCutoff).
func (a *Allocator) Allocate(n int) (block *Block, offset int, precise *PreciseAllocation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n >= LargeCutoff {
		p := newPreciseAllocation(n)
		a.precise = append(a.precise, p)
		return nil, 0, p
	}

	class, ok := SizeClassFor(n)
	if !ok || n >= MediumObjectSize {
		b, off := a.allocateFrom(a.overflow, n)
		return b, off, nil
	}

	idx := sizeClassIndex(class)
	b, off := a.allocateFrom(a.classes[idx], n)
	return b, off, nil
}

// allocateFrom bump-allocates n bytes from ca's current block, pulling a
// new block (from the recyclable list, then a fresh Block) and rescanning
// for holes as needed (spec.md §4.2's five-step algorithm):
//  1. If the current block has room before its bump limit, bump and return.
//  2. Otherwise scan the current block for its next hole.
//  3. If no more holes, pull the next recyclable block and retry.
//  4. If no recyclable blocks remain, allocate a fresh block.
//  5. Mark lines, record the object start, and return the offset.
func (ca *classAllocator) allocateFrom(n int, newBlock func() *Block) (*Block, int) {
	for {
		if ca.current == nil {
			ca.current = ca.nextBlock(newBlock)
		}

		if ca.current.bump+n <= ca.current.bumpLimit {
			off := ca.current.bump
			ca.current.bump += n
			ca.current.markLines(off, n)
			return ca.current, off
		}

		start, end, ok := ca.current.scanHole(ca.current.bumpLimit)
		if ok && end-start >= n {
			ca.current.bump = start
			ca.current.bumpLimit = end
			continue
		}
		if ok {
			// Hole too small for this object; keep scanning past it.
			ca.current.bumpLimit = end
			continue
		}

		// Block exhausted: move it to unavailable and try the next one.
		ca.unavailable = append(ca.unavailable, ca.current)
		ca.current = nil
	}
}

func (a *Allocator) allocateFrom(ca *classAllocator, n int) (*Block, int) {
	return ca.allocateFrom(n, a.newBlock)
}

// nextBlock pops a recyclable block if one is available, otherwise
// allocates a fresh one (spec.md §4.2 step 3/4).
func (ca *classAllocator) nextBlock(newBlock func() *Block) *Block {
	if len(ca.recyclable) > 0 {
		b := ca.recyclable[len(ca.recyclable)-1]
		ca.recyclable = ca.recyclable[:len(ca.recyclable)-1]
		return b
	}
	b := newBlock()
	b.Class = ca.class
	return b
}

// Recycle returns a block to its class's recyclable list after a
// collection cycle has reset it, so future allocations can reuse its
// holes instead of requesting a fresh block from the OS.
func (a *Allocator) Recycle(class int, b *Block) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b.Reset()
	if class < 0 {
		a.overflow.recyclable = append(a.overflow.recyclable, b)
		return
	}
	idx := sizeClassIndex(class)
	if idx < 0 {
		return
	}
	a.classes[idx].recyclable = append(a.classes[idx].recyclable, b)
}

// PostCollectionSweep implements spec.md §4.3's "post-collection sweep":
// called once the collector has unmarked every reclaimed cell's lines
// (internal/object.Heap.Reclaim, via Block.UnmarkLines), it reclassifies
// every unavailable (fully-occupied-when-last-handed-out) block as
// empty, available, or still full. An empty block is Reset and returned
// to its class's recyclable free pool; a block with at least one hole
// moves from unavailable to recyclable with its bump cursor reset, so
// future allocations rescan it for holes; a still-full block stays
// unavailable. The current block's bump cursor is reset the same way, so
// lines freed behind it are reused. It returns a
// hole-count -> total-marked-lines histogram over every block (current,
// recyclable, and unavailable) for the collector to pick evacuation
// candidates from.
func (a *Allocator) PostCollectionSweep() map[int]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	histogram := map[int]int{}
	reclassify := func(ca *classAllocator) {
		kept := ca.unavailable[:0]
		for _, b := range ca.unavailable {
			holes, marked := b.CountHolesAndMarkedLines()
			switch {
			case marked == 0:
				b.Reset()
				ca.recyclable = append(ca.recyclable, b)
			case holes > 0:
				b.bump, b.bumpLimit = 0, 0 // rescan for holes from the block's start
				ca.recyclable = append(ca.recyclable, b)
			default:
				histogram[holes] += marked // recyclable blocks are counted below
				kept = append(kept, b)
			}
		}
		ca.unavailable = kept

		if ca.current != nil {
			holes, marked := ca.current.CountHolesAndMarkedLines()
			histogram[holes] += marked
			ca.current.bump, ca.current.bumpLimit = 0, 0 // rescan for holes from the block's start
		}
		for _, b := range ca.recyclable {
			holes, marked := b.CountHolesAndMarkedLines()
			histogram[holes] += marked
		}
	}

	for _, ca := range a.classes {
		reclassify(ca)
	}
	reclassify(a.overflow)
	return histogram
}

// AllBlocks returns every live block across every class, for root
// scanning and collection sweeps.
func (a *Allocator) AllBlocks() []*Block {
	a.mu.Lock()
	defer a.mu.Unlock()
	var all []*Block
	collect := func(ca *classAllocator) {
		if ca.current != nil {
			all = append(all, ca.current)
		}
		all = append(all, ca.unavailable...)
		all = append(all, ca.recyclable...)
		all = append(all, ca.evacuation...)
	}
	for _, ca := range a.classes {
		collect(ca)
	}
	collect(a.overflow)
	return all
}

// PreciseAllocations returns every standalone large-object allocation
// currently tracked, for root scanning and sweep/free decisions.
func (a *Allocator) PreciseAllocations() []*PreciseAllocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*PreciseAllocation(nil), a.precise...)
}

// Free releases p, removing it from the allocator's bookkeeping. Called
// by the collector's sweep phase when p is found unreachable.
func (a *Allocator) Free(p *PreciseAllocation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, q := range a.precise {
		if q == p {
			a.precise = append(a.precise[:i], a.precise[i+1:]...)
			return
		}
	}
}
