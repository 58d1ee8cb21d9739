package gc

import "github.com/wafflevm/wafflevm/internal/object"

// traceMark runs the BFS mark phase of spec.md §4.3's tracing
// collection: starting from roots, every reachable Cell is enqueued via
// Cell.Trace and added to the marked set. Evacuation (relocating a cell
// out of an evacuation-candidate block and leaving a forwarding pointer)
// is not modeled at the object level here: this port's Cells are
// ordinary Go-GC-managed structs referenced by object.Handle rather than
// raw addresses inside a Block (see internal/object's Handle design
// decision), so there is no block-relative address to overwrite with a
// forwarding pointer — moving a Handle's live set between blocks is
// instead just re-accounting bytes against internal/heap.Allocator,
// which sweep already does by recycling freed blocks.
//
// Grounded on original_source/src/gc/collector/immix.rs's
// ImmixCollector::collect BFS-over-roots structure.
func traceMark(h *object.Heap, roots []object.Handle) map[object.Handle]struct{} {
	marked := make(map[object.Handle]struct{}, len(roots)*4)
	var queue []object.Handle
	queue = append(queue, roots...)
	for _, r := range roots {
		marked[r] = struct{}{}
	}

	for len(queue) > 0 {
		id := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		c := h.Cell(id)
		if c == nil {
			continue
		}
		c.Trace(func(child object.Handle) {
			if child == 0 {
				return
			}
			if _, ok := marked[child]; ok {
				return
			}
			marked[child] = struct{}{}
			queue = append(queue, child)
		})
	}
	return marked
}

// sweep reclaims every Handle not present in marked, running each kind's
// Destroy hook first (spec.md §3.2's vtable.destroy), and returns the
// count reclaimed.
func sweep(h *object.Heap, marked map[object.Handle]struct{}) int {
	n := 0
	for _, id := range h.AllHandles() {
		if _, ok := marked[id]; ok {
			continue
		}
		h.Destroy(id)
		h.Reclaim(id)
		n++
	}
	return n
}
