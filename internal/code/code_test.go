package code

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wafflevm/wafflevm/internal/asm/x64"
)

func simpleAssembler(t *testing.T) *x64.Assembler {
	t.Helper()
	a := x64.New()
	a.Prolog(0)
	a.LoadIntConst(x64.Int64, x64.RAX, 42)
	a.Epilog()
	a.Finish()
	return a
}

func TestNewMapsExecutableMemory(t *testing.T) {
	c, err := New(DescriptorFunction, "t", simpleAssembler(t), 0, nil, nil)
	require.NoError(t, err)
	defer c.Free()

	require.NotZero(t, c.Address())
	require.Equal(t, len(c.Bytes()), c.Size())
	require.Equal(t, DescriptorFunction, c.Descriptor())
}

func TestNewRoundsUpToPageMultipleButExposesExactSize(t *testing.T) {
	a := simpleAssembler(t)
	c, err := New(DescriptorFunction, "t", a, 0, nil, nil)
	require.NoError(t, err)
	defer c.Free()

	require.Equal(t, len(a.Bytes()), c.Size())
}

func TestGcPointAtFindsExactOffsetOnly(t *testing.T) {
	a := x64.New()
	a.Prolog(8)
	a.Safepoint(0x1234, []int32{-8})
	a.Epilog()
	a.Finish()

	c, err := New(DescriptorFunction, "t", a, 8, nil, nil)
	require.NoError(t, err)
	defer c.Free()

	offset := 0
	for off := range a.GcPoints {
		offset = off
	}
	gp, ok := c.GcPointAt(offset)
	require.True(t, ok)
	require.Equal(t, []int32{-8}, gp.Offsets)

	_, ok = c.GcPointAt(offset + 1)
	require.False(t, ok)
}

func TestHandlerForResolvesNestedRegionsInnermostFirst(t *testing.T) {
	a := x64.New()
	a.Handlers = []x64.Handler{
		{TryStart: 0, TryEnd: 20, Catch: 20},
		{TryStart: 5, TryEnd: 10, Catch: 10},
	}
	a.Prolog(0)
	for i := 0; i < 4; i++ {
		a.LoadIntConst(x64.Int32, x64.RAX, 1) // 5 bytes each, 20 bytes total
	}
	a.Epilog()
	a.Finish()

	c, err := New(DescriptorFunction, "t", a, 0, nil, nil)
	require.NoError(t, err)
	defer c.Free()

	base := c.Address()
	h, ok := c.HandlerFor(base + 7)
	require.True(t, ok)
	require.Equal(t, base+10, h.CatchPC)

	h, ok = c.HandlerFor(base + 15)
	require.True(t, ok)
	require.Equal(t, base+20, h.CatchPC)

	_, ok = c.HandlerFor(base + 25)
	require.False(t, ok)
}

func TestOSREntryForResolvesToAbsoluteAddress(t *testing.T) {
	a := simpleAssembler(t)
	c, err := New(DescriptorFunction, "t", a, 0, OSREntrySource{7: 2}, nil)
	require.NoError(t, err)
	defer c.Free()

	addr, ok := c.OSREntryFor(7)
	require.True(t, ok)
	require.Equal(t, c.Address()+2, addr)

	_, ok = c.OSREntryFor(8)
	require.False(t, ok)
}

func TestRepatchRewritesDirectCallDisplacement(t *testing.T) {
	a := x64.New()
	a.Prolog(0)
	a.DirectCall(3, 0)
	a.Epilog()
	a.Finish()

	c, err := New(DescriptorFunction, "t", a, 0, nil, nil)
	require.NoError(t, err)
	defer c.Free()

	var site x64.LazySite
	for _, s := range a.LazyCompilation {
		site = s
	}

	target := c.Address() + 64
	require.NoError(t, c.Repatch(site, target))

	siteAddr := c.Address() + uintptr(site.DispSite)
	disp := int32(c.Bytes()[site.DispSite]) |
		int32(c.Bytes()[site.DispSite+1])<<8 |
		int32(c.Bytes()[site.DispSite+2])<<16 |
		int32(c.Bytes()[site.DispSite+3])<<24
	require.Equal(t, int32(int64(target)-int64(siteAddr+4)), disp)
}

func TestFreeUnmapsAndIsIdempotentOnZeroValue(t *testing.T) {
	c, err := New(DescriptorFunction, "t", simpleAssembler(t), 0, nil, nil)
	require.NoError(t, err)
	require.NoError(t, c.Free())

	var zero Code
	require.NoError(t, zero.Free())
}
