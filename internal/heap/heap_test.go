package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSizeClassForSmall(t *testing.T) {
	class, ok := SizeClassFor(10)
	require.True(t, ok)
	require.Equal(t, 16, class)

	class, ok = SizeClassFor(256)
	require.True(t, ok)
	require.Equal(t, 256, class)
}

func TestSizeClassForLargeRoutesToPrecise(t *testing.T) {
	_, ok := SizeClassFor(LargeCutoff)
	require.False(t, ok)
}

func TestAllocatorBumpAllocatesWithinBlock(t *testing.T) {
	a := NewAllocator()

	b1, off1, precise1 := a.Allocate(32)
	require.Nil(t, precise1)
	require.NotNil(t, b1)
	require.Equal(t, 0, off1)

	b2, off2, precise2 := a.Allocate(32)
	require.Nil(t, precise2)
	require.Same(t, b1, b2)
	require.Equal(t, 32, off2)

	require.True(t, b1.IsObjectStart(0))
	require.True(t, b1.IsObjectStart(32))
	require.False(t, b1.IsObjectStart(16))
}

func TestAllocatorRoutesLargeObjectToPreciseAllocation(t *testing.T) {
	a := NewAllocator()

	b, off, precise := a.Allocate(LargeCutoff + 1)
	require.Nil(t, b)
	require.Equal(t, 0, off)
	require.NotNil(t, precise)
	require.Equal(t, LargeCutoff+1, precise.Size())

	require.Len(t, a.PreciseAllocations(), 1)
	a.Free(precise)
	require.Len(t, a.PreciseAllocations(), 0)
}

func TestAllocatorFillsBlockThenMovesOn(t *testing.T) {
	a := NewAllocator()

	var blocks []*Block
	for i := 0; i < BlockSize/16+2; i++ {
		b, _, precise := a.Allocate(16)
		require.Nil(t, precise)
		blocks = append(blocks, b)
	}
	// At least one allocation must have spilled into a second block once
	// the first filled up.
	require.NotSame(t, blocks[0], blocks[len(blocks)-1])
}

func TestAllocatorRecycleReusesBlock(t *testing.T) {
	a := NewAllocator()

	b, _, _ := a.Allocate(16)
	a.Recycle(16, b)

	require.Equal(t, 0, b.bump)
	require.Equal(t, uint16(0), b.LineMarks[0])

	b2, off2, _ := a.Allocate(16)
	require.Same(t, b, b2)
	require.Equal(t, 0, off2)
}

func TestBlockUnmarkLinesReversesMarkLines(t *testing.T) {
	b := NewBlock()
	b.markLines(0, 32)
	require.True(t, b.IsObjectStart(0))
	require.False(t, b.IsEmpty())

	b.UnmarkLines(0, 32)
	require.True(t, b.IsEmpty())
	require.False(t, b.IsObjectStart(0))
}

func TestAllocatorPostCollectionSweepRecyclesEmptiedBlock(t *testing.T) {
	a := NewAllocator()

	class, ok := SizeClassFor(16)
	require.True(t, ok)
	idx := sizeClassIndex(class)

	// Fill the first block completely, then allocate one more object to
	// force it out to the unavailable list (a block only moves there
	// once an allocation finds no more room or holes in it).
	var offsets []int
	for i := 0; i < LinesPerBlock; i++ {
		_, off, precise := a.Allocate(16)
		require.Nil(t, precise)
		offsets = append(offsets, off)
	}
	first := a.classes[idx].current
	second, _, _ := a.Allocate(16)
	require.NotSame(t, first, second)
	require.Contains(t, a.classes[idx].unavailable, first)

	// Simulate the collector reclaiming every cell in the first block.
	for _, off := range offsets {
		first.UnmarkLines(off, 16)
	}
	require.True(t, first.IsEmpty())

	a.PostCollectionSweep()

	require.NotContains(t, a.classes[idx].unavailable, first)
	require.Contains(t, a.classes[idx].recyclable, first)
	require.Equal(t, 0, first.bump)
}

func TestAllocatorPostCollectionSweepMovesPartiallyEmptyBlockToRecyclable(t *testing.T) {
	a := NewAllocator()

	class, ok := SizeClassFor(16)
	require.True(t, ok)
	idx := sizeClassIndex(class)

	var offsets []int
	for i := 0; i < LinesPerBlock; i++ {
		_, off, _ := a.Allocate(16)
		offsets = append(offsets, off)
	}
	first := a.classes[idx].current
	a.Allocate(16) // forces first onto the unavailable list
	require.Contains(t, a.classes[idx].unavailable, first)

	// Reclaim only half of first's objects: it now has at least one
	// hole but is not fully empty.
	for _, off := range offsets[:LinesPerBlock/2] {
		first.UnmarkLines(off, 16)
	}
	holes, marked := first.CountHolesAndMarkedLines()
	require.True(t, holes > 0)
	require.True(t, marked > 0)

	a.PostCollectionSweep()

	require.NotContains(t, a.classes[idx].unavailable, first)
	require.Contains(t, a.classes[idx].recyclable, first)
}
