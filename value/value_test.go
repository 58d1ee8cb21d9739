package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInt32RoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, math.MaxInt32, math.MinInt32, 42, -42}
	for _, i := range cases {
		v := NewInt32(i)
		require.True(t, v.IsInt32())
		require.True(t, v.IsNumber())
		require.Equal(t, i, v.AsInt32())
	}
}

func TestDoubleRoundTrip(t *testing.T) {
	cases := []float64{1.5, -1.5, 3.14159, 1e300, -1e300, math.MaxFloat64, 2147483648.0}
	for _, d := range cases {
		v := NewDouble(d)
		require.True(t, v.IsDouble())
		require.True(t, v.IsNumber())
		require.Equal(t, d, v.AsDouble())
	}
}

func TestNaNBitExact(t *testing.T) {
	nan := math.NaN()
	v := NewDouble(nan)
	require.True(t, v.IsDouble())
	got := v.AsDouble()
	require.True(t, math.IsNaN(got))
	require.Equal(t, math.Float64bits(nan), math.Float64bits(got))
}

func TestSmallImmediates(t *testing.T) {
	require.True(t, Undefined().IsUndefined())
	require.True(t, Undefined().IsNullOrUndefined())
	require.False(t, Undefined().IsNull())

	require.True(t, Null().IsNull())
	require.True(t, Null().IsNullOrUndefined())
	require.False(t, Null().IsUndefined())

	require.True(t, NewBool(true).IsTrue())
	require.True(t, NewBool(true).IsBoolean())
	require.True(t, NewBool(false).IsFalse())
	require.True(t, NewBool(false).IsBoolean())
	require.False(t, NewBool(true).IsFalse())
}

func TestExactlyOneKindHolds(t *testing.T) {
	samples := []Value{
		NewInt32(0), NewInt32(-7), NewDouble(3.5), NewDouble(-0.0001),
		Null(), Undefined(), NewBool(true), NewBool(false),
		NewCell(CellPointer(0x7f0000001000)),
	}
	for _, v := range samples {
		n := 0
		for _, b := range []bool{v.IsInt32(), v.IsDouble(), v.IsCell(), v.IsBoolean(), v.IsNull(), v.IsUndefined()} {
			if b {
				n++
			}
		}
		require.Equal(t, 1, n, "value %#x must be exactly one kind", uint64(v))
	}
}

func TestTagCheckConsistency(t *testing.T) {
	v := NewInt32(5)
	require.True(t, v.IsNumber())

	require.True(t, Null().IsNullOrUndefined())
	require.True(t, Undefined().IsNullOrUndefined())
	require.False(t, NewInt32(2).IsNullOrUndefined())

	require.True(t, NewBool(true).IsBoolean())
	require.True(t, NewBool(false).IsBoolean())
	require.False(t, NewInt32(6).IsBoolean())
}

func TestToBoolean(t *testing.T) {
	require.False(t, Undefined().ToBoolean(nil))
	require.False(t, Null().ToBoolean(nil))
	require.False(t, NewInt32(0).ToBoolean(nil))
	require.True(t, NewInt32(1).ToBoolean(nil))
	require.False(t, NewDouble(0).ToBoolean(nil))
	require.False(t, NewDouble(math.NaN()).ToBoolean(nil))
	require.True(t, NewDouble(1.5).ToBoolean(nil))
	require.True(t, NewBool(true).ToBoolean(nil))
	require.False(t, NewBool(false).ToBoolean(nil))
}

func TestToNumber(t *testing.T) {
	require.Equal(t, float64(0), Null().ToNumber(nil))
	require.True(t, math.IsNaN(Undefined().ToNumber(nil)))
	require.Equal(t, float64(1), NewBool(true).ToNumber(nil))
	require.Equal(t, float64(0), NewBool(false).ToNumber(nil))
	require.Equal(t, float64(42), NewInt32(42).ToNumber(nil))
	require.Equal(t, 3.5, NewDouble(3.5).ToNumber(nil))
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindInt32, KindOf(NewInt32(1)))
	require.Equal(t, KindDouble, KindOf(NewDouble(1.5)))
	require.Equal(t, KindNull, KindOf(Null()))
	require.Equal(t, KindUndefined, KindOf(Undefined()))
	require.Equal(t, KindBoolean, KindOf(NewBool(true)))
	require.Equal(t, KindCell, KindOf(NewCell(CellPointer(0x1000))))
}
