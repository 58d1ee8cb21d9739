package object

import (
	"github.com/wafflevm/wafflevm/internal/heap"
	"github.com/wafflevm/wafflevm/value"
)

// Tri-color mark state, matching original_source/src/runtime/cell.rs's
// CELL_WHITE_A/B/GREY/BLACK scheme: two white shades let the tracing
// collector flip "which white means garbage" each cycle without a
// separate unmark pass over every live cell.
const (
	ColorWhiteA uint8 = 1
	ColorWhiteB uint8 = 1 << 1
	ColorGrey   uint8 = 0
	ColorBlack  uint8 = 1 << 2
	ColorWhites       = ColorWhiteA | ColorWhiteB
)

// Kind tags which union member Cell.payload holds, the Go equivalent of
// original_source/src/runtime/cell.rs's CellValue enum (None/Array/
// String/Function), generalized with Object for the plain property-bag
// case spec.md §3.2 also names as a built-in kind.
type Kind int

const (
	KindObject Kind = iota
	KindArray
	KindString
	KindFunction

	numKinds
)

// Cell is the uniform heap object header of spec.md §3.2: every built-in
// kind is one Cell whose kind-specific data sits in its payload field
// (*arrayData, *stringData or *functionData, see kinds.go), reached by a
// type assertion inside that kind's vtable functions, mirroring how the
// VTable's function pointers dispatch without a Go interface method set.
type Cell struct {
	self  Handle
	VT    *VTable
	Kind  Kind
	Color uint8

	Prototype Handle
	Shape     *Shape
	Slots     []value.Value

	// payload carries the kind-specific data: *arrayData, *stringData,
	// *functionData, or nil for a plain Object (whose state is entirely
	// Shape + Slots).
	payload any

	// Accounting for internal/heap's block allocator, set once by
	// register and consumed by Heap.Reclaim to unmark this cell's lines
	// (or free its PreciseAllocation) once it is swept (spec.md §4.3's
	// post-collection sweep). block/precise are mutually exclusive:
	// register routes every allocation to exactly one of them.
	block         *heap.Block
	blockOffset   int
	accountedSize int
	precise       *heap.PreciseAllocation
}

// Self returns this Cell's own Handle.
func (c *Cell) Self() Handle { return c.self }

// Direct returns the slot at offset, or Undefined if offset is out of
// range (original_source/src/runtime/cell.rs's Cell::direct).
func (c *Cell) Direct(offset int) value.Value {
	if offset < 0 || offset >= len(c.Slots) {
		return value.Undefined()
	}
	return c.Slots[offset]
}

// StoreDirect writes val into the slot at offset, reporting whether
// offset was in range.
func (c *Cell) StoreDirect(offset int, val value.Value) bool {
	if offset < 0 || offset >= len(c.Slots) {
		return false
	}
	c.Slots[offset] = val
	return true
}

// Lookup searches c's own Shape-backed property table, then walks the
// prototype chain, matching original_source/src/runtime/cell.rs's
// Cell::lookup. The "length" property is special-cased ahead of the
// Shape lookup for Array and String cells (cell.rs's lookup_in_self).
func (h *Heap) Lookup(c *Cell, sym Symbol) (value.Value, bool) {
	for cur := c; cur != nil; {
		if sym == LengthSymbol {
			switch p := cur.payload.(type) {
			case *arrayData:
				return value.NewInt32(int32(len(p.elems))), true
			case *stringData:
				return value.NewInt32(int32(len(p.bytes))), true
			}
		}
		if cur.Shape != nil {
			if off, ok := cur.Shape.Lookup(sym); ok {
				return cur.Direct(off), true
			}
		}
		cur = h.Cell(cur.Prototype)
	}
	return value.Undefined(), false
}

// Insert adds (or overwrites) property sym on c with val, transitioning
// c's Shape if sym is new (spec.md §3.3). Matches
// original_source/src/runtime/cell.rs's Cell::insert.
func (h *Heap) Insert(c *Cell, sym Symbol, val value.Value) {
	if c.Shape == nil {
		c.Shape = RootShape()
	}
	if off, ok := c.Shape.Lookup(sym); ok {
		c.StoreDirect(off, val)
		return
	}
	child, off := c.Shape.Transition(sym)
	c.Shape = child
	if off == len(c.Slots) {
		c.Slots = append(c.Slots, val)
	} else {
		// A shared Shape was reached via a different insertion order
		// that already grew Slots past off; still safe to overwrite.
		c.StoreDirect(off, val)
	}
}

// Trace enumerates every Handle c directly references — its prototype,
// every cell-valued slot, and any kind-specific payload references —
// calling visit once per outgoing reference. Grounded on
// original_source/src/runtime/cell.rs's Cell::trace.
func (c *Cell) Trace(visit func(Handle)) {
	if c.Prototype != 0 {
		visit(c.Prototype)
	}
	for _, v := range c.Slots {
		if v.IsCell() {
			visit(HandleOf(v))
		}
	}
	if c.VT != nil && c.VT.Trace != nil {
		c.VT.Trace(c, visit)
	}
}
