package object

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wafflevm/wafflevm/value"
)

func TestObjectGetSetRoundTrips(t *testing.T) {
	h := NewHeap()
	obj := h.NewObject(0)

	ok := h.Set(obj, value.NewCell(value.CellPointer(h.NewString("x"))), value.NewInt32(42))
	require.True(t, ok)

	got, ok := h.Get(obj, value.NewCell(value.CellPointer(h.NewString("x"))))
	require.True(t, ok)
	require.True(t, got.IsInt32())
	require.Equal(t, int32(42), got.AsInt32())
}

func TestTwoObjectsShareShapeAfterSameInsertionOrder(t *testing.T) {
	h := NewHeap()
	a := h.Cell(h.NewObject(0))
	b := h.Cell(h.NewObject(0))

	h.Insert(a, Intern("x"), value.NewInt32(1))
	h.Insert(a, Intern("y"), value.NewInt32(2))
	h.Insert(b, Intern("x"), value.NewInt32(10))
	h.Insert(b, Intern("y"), value.NewInt32(20))

	require.Same(t, a.Shape, b.Shape)
}

func TestArrayGetSetByIndex(t *testing.T) {
	h := NewHeap()
	arr := h.NewArray([]value.Value{value.NewInt32(1), value.NewInt32(2)})

	got, ok := h.Get(arr, value.NewInt32(1))
	require.True(t, ok)
	require.Equal(t, int32(2), got.AsInt32())

	require.True(t, h.Set(arr, value.NewInt32(5), value.NewInt32(99)))
	require.Len(t, h.ArrayElems(arr), 6)

	length, ok := h.Get(arr, value.NewCell(value.CellPointer(h.NewString("length"))))
	require.True(t, ok)
	require.Equal(t, int32(6), length.AsInt32())
}

func TestPrototypeChainLookup(t *testing.T) {
	h := NewHeap()
	proto := h.NewObject(0)
	h.Insert(h.Cell(proto), Intern("greeting"), value.NewInt32(7))

	child := h.NewObject(proto)
	got, ok := h.Get(child, value.NewCell(value.CellPointer(h.NewString("greeting"))))
	require.True(t, ok)
	require.Equal(t, int32(7), got.AsInt32())
}

func TestCellTraceVisitsPrototypeAndSlots(t *testing.T) {
	h := NewHeap()
	proto := h.NewObject(0)
	child := h.NewObject(proto)
	str := h.NewString("hi")
	h.Insert(h.Cell(child), Intern("s"), value.NewCell(value.CellPointer(str)))

	var visited []Handle
	h.Cell(child).Trace(func(id Handle) { visited = append(visited, id) })

	require.Contains(t, visited, proto)
	require.Contains(t, visited, str)
}

func TestFunctionApplyWithoutCompilationFails(t *testing.T) {
	h := NewHeap()
	fn := h.NewFunction(nil, nil)
	_, err := h.Apply(fn, value.Undefined(), nil)
	require.Error(t, err)
}

func TestToStringFormatsPrimitivesLiterally(t *testing.T) {
	h := NewHeap()

	id, err := h.ToString(value.NewInt32(42))
	require.NoError(t, err)
	require.Equal(t, "42", h.StringValue(id))

	id, err = h.ToString(value.NewDouble(0.1))
	require.NoError(t, err)
	require.Equal(t, "0.1", h.StringValue(id))

	id, err = h.ToString(value.NewBool(true))
	require.NoError(t, err)
	require.Equal(t, "true", h.StringValue(id))

	id, err = h.ToString(value.Null())
	require.NoError(t, err)
	require.Equal(t, "null", h.StringValue(id))

	id, err = h.ToString(value.Undefined())
	require.NoError(t, err)
	require.Equal(t, "undefined", h.StringValue(id))
}

func TestToStringOnStringCellReturnsItself(t *testing.T) {
	h := NewHeap()
	str := h.NewString("foobar")

	id, err := h.ToString(value.NewCell(value.CellPointer(str)))
	require.NoError(t, err)
	require.Equal(t, str, id)
}

func TestToStringCallsObjectsToStringProperty(t *testing.T) {
	h := NewHeap()
	obj := h.NewObject(0)

	fn := h.NewFunction(nil, nil)
	h.Cell(fn).VT = &VTable{
		Name: "Function",
		Apply: func(h *Heap, c *Cell, this value.Value, args []value.Value) (value.Value, error) {
			return value.NewCell(value.CellPointer(h.NewString("foobar"))), nil
		},
	}
	h.Insert(h.Cell(obj), ToStringSymbol, value.NewCell(value.CellPointer(fn)))

	id, err := h.ToString(value.NewCell(value.CellPointer(obj)))
	require.NoError(t, err)
	require.Equal(t, "foobar", h.StringValue(id))
}

func TestToStringFailsWithoutToStringProperty(t *testing.T) {
	h := NewHeap()
	obj := h.NewObject(0)

	_, err := h.ToString(value.NewCell(value.CellPointer(obj)))
	require.Error(t, err)
}

func TestReclaimClearsHandle(t *testing.T) {
	h := NewHeap()
	obj := h.NewObject(0)
	require.NotNil(t, h.Cell(obj))
	h.Reclaim(obj)
	require.Nil(t, h.Cell(obj))
}
