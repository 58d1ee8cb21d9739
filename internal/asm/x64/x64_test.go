package x64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyRegSkipsSelfMove(t *testing.T) {
	a := New()
	a.CopyReg(Int64, RAX, RAX)
	require.Empty(t, a.Bytes())
}

func TestCopyRegEmitsRexAndModrm(t *testing.T) {
	a := New()
	a.CopyReg(Int64, RCX, RDX)
	b := a.Bytes()
	require.Len(t, b, 3)
	require.Equal(t, byte(0x48), b[0]) // REX.W
	require.Equal(t, byte(0x89), b[1]) // MOV r/m, r
}

func TestLoadIntConst32BitZeroesUpperWithoutRex(t *testing.T) {
	a := New()
	a.LoadIntConst(Int32, RAX, 7)
	b := a.Bytes()
	require.Equal(t, byte(0xB8), b[0])
}

func TestForwardJumpPatchedOnBind(t *testing.T) {
	a := New()
	end := a.CreateLabel()
	a.Jump(end)
	a.emitU8(0x90) // filler nop representing a real instruction
	a.BindLabel(end)
	a.Finish()

	b := a.Bytes()
	require.Equal(t, byte(0xE9), b[0])
	disp := int32(b[1]) | int32(b[2])<<8 | int32(b[3])<<16 | int32(b[4])<<24
	require.Equal(t, int32(1), disp) // jumps over exactly the one-byte filler
}

func TestBackwardJumpComputedImmediately(t *testing.T) {
	a := New()
	top := a.CreateLabel()
	a.BindLabel(top)
	a.emitU8(0x90)
	a.Jump(top)
	a.Finish()

	b := a.Bytes()
	disp := int32(b[2]) | int32(b[3])<<8 | int32(b[4])<<16 | int32(b[5])<<24
	require.Equal(t, int32(-6), disp)
}

func TestPrologEpilogBalancesStack(t *testing.T) {
	a := New()
	a.Prolog(40)
	a.Epilog()
	b := a.Bytes()
	require.NotEmpty(t, b)
	require.Equal(t, byte(0xC3), b[len(b)-1]) // ret
}

func TestScratchPoolExhaustionPanics(t *testing.T) {
	a := New()
	h0 := a.GetScratch()
	h1 := a.GetScratch()
	require.NotEqual(t, h0.Reg(), h1.Reg())
	require.Panics(t, func() { a.GetScratch() })

	h0.Release()
	h2 := a.GetScratch()
	require.Equal(t, h0.Reg(), h2.Reg())
}

func TestScratchDoubleReleasePanics(t *testing.T) {
	a := New()
	h := a.GetScratch()
	h.Release()
	require.Panics(t, func() { h.Release() })
}

func TestNewIntFromRegEmitsCode(t *testing.T) {
	a := New()
	a.NewIntFromReg(RAX, RCX)
	require.NotEmpty(t, a.Bytes())
}

func TestNewBooleanOrsTagIntoResult(t *testing.T) {
	a := New()
	a.NewBoolean(RAX, RCX)
	require.NotEmpty(t, a.Bytes())
}

func TestIntDivModEmitsGuardsAndIdiv(t *testing.T) {
	a := New()
	bail := a.CreateLabel()
	a.IntDivMod(Int64, RCX, true, bail)
	a.BindLabel(bail)
	a.Finish()
	require.NotEmpty(t, a.Bytes())
}

func TestMemOperandKinds(t *testing.T) {
	a := New()
	a.LoadMem(Int64, RAX, LocalMem(16))
	a.StoreMem(Int64, BaseMem(RBX, 8), RCX)
	a.Lea(RDX, IndexMem(RBX, RCX, 8, 0))
	require.NotEmpty(t, a.Bytes())
}

func TestSafepointRecordsGcPoint(t *testing.T) {
	a := New()
	a.Safepoint(0x1234, []int32{8, 16})
	require.Len(t, a.GcPoints, 1)
}

func TestDirectCallRecordsLazySite(t *testing.T) {
	a := New()
	a.DirectCall(42, 0)
	require.Len(t, a.LazyCompilation, 1)
}
