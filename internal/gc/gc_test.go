package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wafflevm/wafflevm/internal/heap"
	"github.com/wafflevm/wafflevm/internal/object"
	"github.com/wafflevm/wafflevm/value"
)

func forceTracingCollect(c *Collector, roots []object.Handle) {
	marked := traceMark(c.heap, roots)
	sweep(c.heap, marked)
	c.markHistogram = c.heap.Allocator().PostCollectionSweep()
}

func TestTraceMarkReachesPrototypeChain(t *testing.T) {
	h := object.NewHeap()
	proto := h.NewObject(0)
	child := h.NewObject(proto)

	marked := traceMark(h, []object.Handle{child})
	_, ok := marked[proto]
	require.True(t, ok)
	_, ok = marked[child]
	require.True(t, ok)
}

func TestSweepReclaimsUnmarked(t *testing.T) {
	h := object.NewHeap()
	live := h.NewObject(0)
	garbage := h.NewObject(0)

	marked := traceMark(h, []object.Handle{live})
	n := sweep(h, marked)

	require.Equal(t, 1, n)
	require.NotNil(t, h.Cell(live))
	require.Nil(t, h.Cell(garbage))
}

func TestCollectorSelectsRCOnlyWithAmpleBlocks(t *testing.T) {
	c := NewCollector(object.NewHeap(), zaptest.NewLogger(t))
	c.totalBlocks = 100
	kind := c.selectCollectionType(90, 0)
	require.Equal(t, RCOnly, kind)
}

func TestCollectorSelectsTracingWhenBlocksScarce(t *testing.T) {
	c := NewCollector(object.NewHeap(), zaptest.NewLogger(t))
	c.totalBlocks = 100
	kind := c.selectCollectionType(5, 0)
	require.True(t, kind.isTracing())
}

func TestCollectReclaimsGarbageEndToEnd(t *testing.T) {
	h := object.NewHeap()
	c := NewCollector(h, zaptest.NewLogger(t))

	root := h.NewObject(0)
	h.Insert(h.Cell(root), object.Intern("child"), value.NewCell(value.CellPointer(h.NewObject(0))))
	garbage := h.NewObject(0)

	c.Collect([]object.Handle{root})

	require.NotNil(t, h.Cell(root))
	require.Nil(t, h.Cell(garbage))
}

func TestPostCollectionSweepReclaimsBlockAfterTracingCollection(t *testing.T) {
	h := object.NewHeap()
	c := NewCollector(h, zaptest.NewLogger(t))

	root := h.NewObject(0)
	before := h.Allocator().AllBlocks()
	beforeCount := len(before)

	// Allocate and then immediately orphan enough garbage objects to
	// occupy at least one whole block on top of root's.
	for i := 0; i < 2000; i++ {
		h.NewObject(0)
	}
	afterGarbage := len(h.Allocator().AllBlocks())
	require.Greater(t, afterGarbage, beforeCount, "garbage objects must have grown the block count")

	forceTracingCollect(c, []object.Handle{root})
	require.NotEmpty(t, c.markHistogram, "post-collection sweep must populate the mark histogram")

	// Allocating the same volume again must not grow the block count
	// past what garbage collection already freed: emptied blocks are
	// recycled rather than the heap growing monotonically (spec.md
	// §8.3(c)).
	for i := 0; i < 2000; i++ {
		h.NewObject(0)
	}
	forceTracingCollect(c, []object.Handle{root})
	afterSecondRound := len(h.Allocator().AllBlocks())
	require.LessOrEqual(t, afterSecondRound, afterGarbage,
		"recycled blocks must absorb the second round instead of the heap growing monotonically")
}

func TestPickEvacuationCandidatesMarksMostFragmentedBlock(t *testing.T) {
	c := NewCollector(object.NewHeap(), zaptest.NewLogger(t))

	fragmented := heap.NewBlock()
	for i := 0; i < heap.LinesPerBlock; i += 2 {
		fragmented.LineMarks[i] = 1
	}
	fragHoles, fragMarked := fragmented.CountHolesAndMarkedLines()

	solid := heap.NewBlock()
	for i := 0; i < 10; i++ {
		solid.LineMarks[i] = 1
	}
	solidHoles, solidMarked := solid.CountHolesAndMarkedLines()
	require.Less(t, solidHoles, fragHoles, "test fixture must set up solid as the less-fragmented block")

	c.markHistogram = map[int]int{fragHoles: fragMarked, solidHoles: solidMarked}

	c.pickEvacuationCandidates([]*heap.Block{fragmented, solid}, fragMarked/2)

	require.True(t, fragmented.EvacuationCandidate, "the most fragmented block must be picked as an evacuation candidate")
	require.False(t, solid.EvacuationCandidate, "a block far below the hole-count threshold must not be picked")
}

func TestRCCollectorDecrementsOldRoots(t *testing.T) {
	h := object.NewHeap()
	rc := newRCCollector()

	a := h.NewObject(0)
	rc.cycle(h, []object.Handle{a})
	require.Equal(t, 1, rc.counts[a])

	rc.cycle(h, nil)
	require.Nil(t, h.Cell(a))
}
