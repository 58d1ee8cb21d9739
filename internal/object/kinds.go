package object

import (
	"errors"

	"github.com/wafflevm/wafflevm/internal/bytecode"
	"github.com/wafflevm/wafflevm/value"
)

// errUncompiledFunction is what Apply returns for every Function cell:
// functionApply never enters nativeEntry, whether or not one is installed.
var errUncompiledFunction = errors.New("object: function has no compiled entry point")

// --- Object -----------------------------------------------------------

var objectVTable = &VTable{
	Name: "Object",
	Get:  objectGet,
	Set:  objectSet,
	Size: func(c *Cell) int { return 0 },
}

func objectGet(h *Heap, c *Cell, key value.Value) (value.Value, bool) {
	return h.Lookup(c, h.symbolFromKey(key))
}

func objectSet(h *Heap, c *Cell, key value.Value, val value.Value) bool {
	h.Insert(c, h.symbolFromKey(key), val)
	return true
}

// symbolFromKey turns a property-access key Value into a Symbol. A
// String-cell key reads through the Heap directly rather than via a
// value.Value.ToString method, since value cannot know about object's
// cell kinds without an import cycle.
func (h *Heap) symbolFromKey(key value.Value) Symbol {
	if key.IsInt32() {
		return Intern(itoa(int(key.AsInt32())))
	}
	if key.IsCell() {
		if id := HandleOf(key); h.Cell(id) != nil && h.Cell(id).Kind == KindString {
			return Intern(h.StringValue(id))
		}
	}
	return Intern("")
}

// itoa is a minimal base-10 integer formatter for numeric property keys.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// NewObject allocates a plain Object cell with the given prototype
// (0 for none).
func (h *Heap) NewObject(proto Handle) Handle {
	c := &Cell{VT: objectVTable, Kind: KindObject, Prototype: proto, Shape: h.rootShapeFor(KindObject)}
	return h.register(c, 48)
}

// --- Array --------------------------------------------------------------

type arrayData struct {
	elems []value.Value
}

var arrayVTable = &VTable{
	Name:  "Array",
	Get:   arrayGet,
	Set:   arraySet,
	Trace: arrayTrace,
	Size:  func(c *Cell) int { return len(c.payload.(*arrayData).elems) * 8 },
}

func arrayGet(h *Heap, c *Cell, key value.Value) (value.Value, bool) {
	a := c.payload.(*arrayData)
	if key.IsInt32() {
		idx := int(key.AsInt32())
		if idx >= 0 && idx < len(a.elems) {
			return a.elems[idx], true
		}
		return value.Undefined(), false
	}
	return h.Lookup(c, h.symbolFromKey(key))
}

func arraySet(h *Heap, c *Cell, key value.Value, val value.Value) bool {
	a := c.payload.(*arrayData)
	if key.IsInt32() {
		idx := int(key.AsInt32())
		if idx < 0 {
			return false
		}
		for idx >= len(a.elems) {
			a.elems = append(a.elems, value.Undefined())
		}
		a.elems[idx] = val
		return true
	}
	h.Insert(c, h.symbolFromKey(key), val)
	return true
}

func arrayTrace(c *Cell, visit func(Handle)) {
	a := c.payload.(*arrayData)
	for _, v := range a.elems {
		if v.IsCell() {
			visit(HandleOf(v))
		}
	}
}

// NewArray allocates an Array cell from an initial element slice (copied).
func (h *Heap) NewArray(elems []value.Value) Handle {
	data := &arrayData{elems: append([]value.Value(nil), elems...)}
	c := &Cell{VT: arrayVTable, Kind: KindArray, Shape: h.rootShapeFor(KindArray), payload: data}
	return h.register(c, 24+len(elems)*8)
}

// ArrayElems exposes the backing slice of an Array cell, for callers that
// bypass the vtable.
func (h *Heap) ArrayElems(id Handle) []value.Value {
	c := h.Cell(id)
	if c == nil || c.Kind != KindArray {
		return nil
	}
	return c.payload.(*arrayData).elems
}

// --- String ---------------------------------------------------------------

type stringData struct {
	bytes []byte
}

var stringVTable = &VTable{
	Name: "String",
	Get:  stringGet,
	Size: func(c *Cell) int { return len(c.payload.(*stringData).bytes) },
}

func stringGet(h *Heap, c *Cell, key value.Value) (value.Value, bool) {
	return h.Lookup(c, h.symbolFromKey(key))
}

// NewString allocates an immutable String cell from s.
func (h *Heap) NewString(s string) Handle {
	data := &stringData{bytes: []byte(s)}
	c := &Cell{VT: stringVTable, Kind: KindString, Shape: h.rootShapeFor(KindString), payload: data}
	return h.register(c, 16+len(s))
}

// StringValue returns the Go string a String cell holds.
func (h *Heap) StringValue(id Handle) string {
	c := h.Cell(id)
	if c == nil || c.Kind != KindString {
		return ""
	}
	return string(c.payload.(*stringData).bytes)
}

// --- Function -------------------------------------------------------------

// FeedbackSlot is one entry of a Function's inline-cache feedback
// vector (an observed operand kind and a count), reached through
// Heap.Feedback; FullCodegen's fast paths do not read or write it.
type FeedbackSlot struct {
	Kind  value.Kind
	Count uint32
}

type functionData struct {
	code        *bytecode.CodeBlock
	captured    []value.Value
	nativeEntry uintptr
	feedback    []FeedbackSlot
}

var functionVTable = &VTable{
	Name: "Function",
	Get:  objectGet,
	Set:  objectSet,
	Trace: func(c *Cell, visit func(Handle)) {
		f := c.payload.(*functionData)
		for _, v := range f.captured {
			if v.IsCell() {
				visit(HandleOf(v))
			}
		}
	},
	Size: func(c *Cell) int {
		f := c.payload.(*functionData)
		return 32 + len(f.captured)*8 + len(f.feedback)*8
	},
	Apply: functionApply,
}

func functionApply(h *Heap, c *Cell, this value.Value, args []value.Value) (value.Value, error) {
	// Apply does not enter nativeEntry, even once SetNativeEntry has
	// recorded one, and there is no bytecode interpreter to fall back to:
	// it always fails with errUncompiledFunction. Compiled code is entered
	// through package runtime's Invoke and its Trampoline instead.
	return value.Undefined(), errUncompiledFunction
}

// NewFunction allocates a Function cell wrapping code, with an initial
// captured-environment slice (copied).
func (h *Heap) NewFunction(code *bytecode.CodeBlock, captured []value.Value) Handle {
	data := &functionData{code: code, captured: append([]value.Value(nil), captured...)}
	c := &Cell{VT: functionVTable, Kind: KindFunction, Shape: h.rootShapeFor(KindFunction), payload: data}
	return h.register(c, 64)
}

// FunctionCode returns the CodeBlock a Function cell wraps.
func (h *Heap) FunctionCode(id Handle) *bytecode.CodeBlock {
	c := h.Cell(id)
	if c == nil || c.Kind != KindFunction {
		return nil
	}
	return c.payload.(*functionData).code
}

// SetNativeEntry records the compiled entry point FullCodegen produced.
func (h *Heap) SetNativeEntry(id Handle, entry uintptr) {
	c := h.Cell(id)
	if c == nil || c.Kind != KindFunction {
		return
	}
	c.payload.(*functionData).nativeEntry = entry
}

// NativeEntry returns the Function's cached compiled entry point, or 0
// if it has not been compiled yet.
func (h *Heap) NativeEntry(id Handle) uintptr {
	c := h.Cell(id)
	if c == nil || c.Kind != KindFunction {
		return 0
	}
	return c.payload.(*functionData).nativeEntry
}

// Feedback returns the Function's inline-cache feedback vector, growing
// it to at least n+1 entries on demand.
func (h *Heap) Feedback(id Handle, n int) *FeedbackSlot {
	c := h.Cell(id)
	if c == nil || c.Kind != KindFunction {
		return nil
	}
	f := c.payload.(*functionData)
	for len(f.feedback) <= n {
		f.feedback = append(f.feedback, FeedbackSlot{})
	}
	return &f.feedback[n]
}
