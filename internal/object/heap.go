// Package object implements the heap object model of spec.md §3.2/§3.3:
// a uniform Cell header, a vtable describing one object kind by function
// pointers, the built-in Array/String/Function/Object kinds, and the
// shared, transition-memoized Shape table backing property layout.
//
// Grounded on original_source/src/runtime/{cell,vtable,object,properties}.rs.
// Cell references are modeled as small integer Handles into a per-Heap
// cell table rather than raw pointers boxed through unsafe.Pointer: the
// rest of this port already indexes everything by small integers
// (bytecode.BlockID, bytecode.VReg), and a Handle lets internal/gc trace
// and sweep by walking a slice instead of fighting Go's own garbage
// collector over pointers it can't see into (see DESIGN.md's Open
// Question on Cell representation).
package object

import (
	"sync"

	"github.com/wafflevm/wafflevm/internal/heap"
	"github.com/wafflevm/wafflevm/value"
)

// Handle identifies one Cell within a Heap. The zero Handle is never
// valid and stands in for a null reference.
type Handle uint32

// Heap owns every live Cell plus the block/size-class allocator backing
// it (internal/heap.Allocator), charging each Cell's accounted size
// against the allocator so size-class and block bookkeeping reflects
// real object-population pressure even though the Cell headers
// themselves are ordinary Go-GC-managed structs.
type Heap struct {
	mu    sync.Mutex
	cells []*Cell // cells[0] is unused; Handle 0 means null.
	alloc *heap.Allocator

	// rootShapes holds one shared empty Shape per kind, so that two
	// cells of the same kind created along the same property-insertion
	// sequence transition to, and so share, the same Shape (spec.md
	// §3.3). A per-Cell root would never let any two objects converge.
	rootShapes [numKinds]*Shape
}

// NewHeap returns a fresh, empty Heap.
func NewHeap() *Heap {
	return &Heap{cells: make([]*Cell, 1), alloc: heap.NewAllocator()}
}

// rootShapeFor returns the shared root Shape new cells of kind start
// from, creating it on first use.
func (h *Heap) rootShapeFor(kind Kind) *Shape {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rootShapes[kind] == nil {
		h.rootShapes[kind] = RootShape()
	}
	return h.rootShapes[kind]
}

// register allocates accounted bytes for size through the block
// allocator and appends c to the cell table, returning its new Handle.
// The block/offset (or PreciseAllocation) the allocator hands back is
// kept on c itself so Reclaim can undo the accounting when c dies,
// rather than leaving every block's line marks to grow monotonically
// (spec.md §4.3's post-collection sweep).
func (h *Heap) register(c *Cell, accountedSize int) Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	block, offset, precise := h.alloc.Allocate(accountedSize)
	c.block, c.blockOffset, c.accountedSize, c.precise = block, offset, accountedSize, precise
	h.cells = append(h.cells, c)
	id := Handle(len(h.cells) - 1)
	c.self = id
	return id
}

// Cell returns the Cell a Handle refers to, or nil for the null Handle or
// one a sweep has already reclaimed.
func (h *Heap) Cell(id Handle) *Cell {
	if id == 0 {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(id) >= len(h.cells) {
		return nil
	}
	return h.cells[id]
}

// Reclaim drops the Heap's reference to id, letting Go's own collector
// free the underlying struct once nothing else (notably no root/stack
// slot) still points to it, and undoes id's block-allocator accounting
// (spec.md §4.3): an in-block cell's lines are unmarked so its block can
// later be reclassified empty/available by Allocator.PostCollectionSweep,
// and a precise allocation is returned to the allocator immediately,
// since it is never reclassified by a block sweep. Called by
// internal/gc's sweep phase.
func (h *Heap) Reclaim(id Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(id) >= len(h.cells) {
		return
	}
	c := h.cells[id]
	h.cells[id] = nil
	if c == nil {
		return
	}
	switch {
	case c.precise != nil:
		h.alloc.Free(c.precise)
	case c.block != nil:
		c.block.UnmarkLines(c.blockOffset, c.accountedSize)
	}
}

// AllHandles returns every currently-registered, non-reclaimed Handle,
// for the collector's sweep pass.
func (h *Heap) AllHandles() []Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Handle
	for i, c := range h.cells {
		if i == 0 || c == nil {
			continue
		}
		out = append(out, Handle(i))
	}
	return out
}

// Allocator exposes the underlying block/size-class allocator, for
// internal/gc's cycle-trigger heuristics (spec.md §4.3).
func (h *Heap) Allocator() *heap.Allocator { return h.alloc }

// ToValue boxes a Handle as a cell Value.
func ToValue(id Handle) value.Value {
	return value.NewCell(value.CellPointer(id))
}

// HandleOf unboxes a cell Value. The caller must have checked
// Value.IsCell().
func HandleOf(v value.Value) Handle {
	return Handle(v.AsCell())
}
