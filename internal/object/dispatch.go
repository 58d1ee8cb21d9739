package object

import (
	"errors"
	"strconv"

	"github.com/wafflevm/wafflevm/value"
)

var errNotCallable = errors.New("object: cell is not callable")
var errToStringFailed = errors.New("object: toString did not produce a string")

// ToStringSymbol is the property name looked up on a cell (and its
// prototype chain) to coerce it to a string.
var ToStringSymbol = Intern("toString")

// Get performs a vtable-dispatched property read, falling back through
// VT.Parent the way original_source/src/runtime/object.rs's OBJECT_VTBL
// anchors Class/Instance gets. Used by the interpreter-less runtime's
// deoptimization/slow paths (internal/codegen's bailout targets) when an
// inline cache misses.
func (h *Heap) Get(id Handle, key value.Value) (value.Value, bool) {
	c := h.Cell(id)
	if c == nil || c.VT == nil {
		return value.Undefined(), false
	}
	get := c.VT.resolveGet()
	if get == nil {
		return value.Undefined(), false
	}
	return get(h, c, key)
}

// Set performs a vtable-dispatched property write.
func (h *Heap) Set(id Handle, key value.Value, val value.Value) bool {
	c := h.Cell(id)
	if c == nil || c.VT == nil {
		return false
	}
	set := c.VT.resolveSet()
	if set == nil {
		return false
	}
	return set(h, c, key, val)
}

// Size returns a cell's dynamic size in bytes, used by the collector to
// account memory pressure per kind (spec.md §4.3).
func (h *Heap) Size(id Handle) int {
	c := h.Cell(id)
	if c == nil || c.VT == nil || c.VT.Size == nil {
		return 0
	}
	return c.VT.Size(c)
}

// Destroy runs a cell's vtable Destroy hook, if any, ahead of reclaiming
// its Handle — the collector's sweep calls this for every unreachable
// cell (spec.md §3.2's vtable.destroy).
func (h *Heap) Destroy(id Handle) {
	c := h.Cell(id)
	if c == nil || c.VT == nil || c.VT.Destroy == nil {
		return
	}
	c.VT.Destroy(c)
}

// Apply invokes a callable cell, returning an error for a non-callable
// one; a Function cell's Apply always returns errUncompiledFunction.
func (h *Heap) Apply(id Handle, this value.Value, args []value.Value) (value.Value, error) {
	c := h.Cell(id)
	if c == nil || c.VT == nil || c.VT.Apply == nil {
		return value.Undefined(), errNotCallable
	}
	return c.VT.Apply(h, c, this, args)
}

// ToString implements spec.md §4.1 C1's `to_string() -> Result<Value(String),
// Value(Error)>` coercion: numbers format shortest round-trip, booleans/
// undefined/null are named literally, a String cell is returned as-is,
// and any other cell is coerced by calling its "toString" property
// ("objects via get(\"toString\")"). It lives here, on Heap, rather than
// as a value.Value method: unboxing a cell payload and walking its
// prototype chain for a callable "toString" both need the cell table
// internal/object owns, which value cannot reach without importing it
// and creating the cycle kinds.go's symbolFromKey comment already flags.
func (h *Heap) ToString(v value.Value) (Handle, error) {
	switch {
	case v.IsInt32():
		return h.NewString(strconv.Itoa(int(v.AsInt32()))), nil
	case v.IsDouble():
		return h.NewString(strconv.FormatFloat(v.AsDouble(), 'g', -1, 64)), nil
	case v.IsTrue():
		return h.NewString("true"), nil
	case v.IsFalse():
		return h.NewString("false"), nil
	case v.IsNull():
		return h.NewString("null"), nil
	case v.IsUndefined():
		return h.NewString("undefined"), nil
	case v.IsCell():
		return h.cellToString(HandleOf(v), v)
	default:
		return h.NewString("undefined"), nil
	}
}

// cellToString handles ToString's cell case: a String cell is returned
// directly, anything else must supply a callable "toString" reachable
// through Heap.Lookup's prototype walk.
func (h *Heap) cellToString(id Handle, this value.Value) (Handle, error) {
	c := h.Cell(id)
	if c == nil {
		return 0, errToStringFailed
	}
	if c.Kind == KindString {
		return id, nil
	}
	method, ok := h.Lookup(c, ToStringSymbol)
	if !ok || !method.IsCell() {
		return 0, errToStringFailed
	}
	result, err := h.Apply(HandleOf(method), this, nil)
	if err != nil {
		return 0, err
	}
	if result.IsCell() {
		if rc := h.Cell(HandleOf(result)); rc != nil && rc.Kind == KindString {
			return HandleOf(result), nil
		}
	}
	return 0, errToStringFailed
}
