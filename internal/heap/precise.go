package heap

// PreciseAllocation is a stand-alone allocation for an object at or above
// LargeCutoff, living outside any Block. Grounded on
// original_source/src/gc/precise_allocation.rs: the original keeps these
// off the line-based bump allocator entirely since a single object would
// otherwise occupy (and fragment) a whole block's worth of lines.
//
// Memory is an ordinary Go slice: its address carries no HalfAlignment
// tag, and no code tests a cell pointer for one.
type PreciseAllocation struct {
	Memory []byte

	// Marked is not set or cleared by any collector code; a
	// PreciseAllocation is released through Allocator.Free when
	// object.Heap.Reclaim sweeps its Cell, and it is never evacuated.
	Marked bool
}

func newPreciseAllocation(n int) *PreciseAllocation {
	// A plain slice of exactly n bytes; no half-alignment tag is applied,
	// since that would need the allocation placed at a chosen address
	// (raw mmap, which only internal/code uses, for executable pages).
	return &PreciseAllocation{Memory: make([]byte, n)}
}

// Size reports the allocation's payload size in bytes.
func (p *PreciseAllocation) Size() int { return len(p.Memory) }
