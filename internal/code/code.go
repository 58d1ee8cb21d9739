// Package code implements the Code artifact of spec.md §4.11: the
// finished product of compilation, living in freshly mapped executable
// memory, plus the byte-offset-keyed side tables a caller needs to walk
// GC roots, resolve a trap's source position, or repatch a lazy
// compilation stub — and the handler/OSR tables resolving spec.md §9's
// two open questions.
//
// Grounded on original_source/src/jit/func.rs's Code struct and its
// Code::from_buffer constructor (executable-memory allocation, buffer
// copy, handler-pointer patching, OSR-table patching) and its four
// binary-search sidetable types (GcPoints, Comments, PositionTable,
// LazyCompilationData), each a sorted Vec<(u32, T)> queried by
// binary_search_by_key. internal/asm/x64.Assembler already accumulates
// those four tables as offset-keyed maps during emission; this package's
// job is to take a finished Assembler, map it into real executable
// memory, and turn its maps into the sorted slices a Code artifact
// queries at runtime.
package code

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/wafflevm/wafflevm/internal/asm/x64"
)

// Descriptor identifies what a Code object is, mirroring
// original_source/src/jit/func.rs's JitDescriptor enum.
type Descriptor int

const (
	DescriptorFunction Descriptor = iota
	DescriptorCompileStub
	DescriptorTrapStub
	DescriptorAllocStub
	DescriptorNativeStub
)

func (d Descriptor) String() string {
	switch d {
	case DescriptorFunction:
		return "function"
	case DescriptorCompileStub:
		return "compile-stub"
	case DescriptorTrapStub:
		return "trap-stub"
	case DescriptorAllocStub:
		return "alloc-stub"
	case DescriptorNativeStub:
		return "native-stub"
	default:
		return fmt.Sprintf("Descriptor(%d)", int(d))
	}
}

// Handler is one resolved catch-table entry, TryStart/TryEnd/CatchPC
// already absolute addresses — resolving spec.md Open Question 1, which
// asked whether the table ships offsets or patched addresses; this port
// patches them in New the way original_source's Code::from_buffer
// patches `handler.pointer` once the code's base address is known.
type Handler struct {
	TryStart, TryEnd, CatchPC uintptr
}

// OSREntry binds a loop-header block ID to the byte offset FullCodegen's
// label for that block resolved to, relative to the Code's base address —
// resolving spec.md Open Question 2: a table an interpreter's loop
// back-edge counter consults to jump into already-JIT-compiled code
// mid-function.
type OSREntry struct {
	ID     uint32
	Offset int
}

// offsetEntry is the shared shape every side table below sorts by Offset
// and binary-searches, converting one of Assembler's offset-keyed maps
// into the sorted-slice form original_source/src/jit/func.rs's
// GcPoints/Comments/PositionTable/LazyCompilationData each hand-roll.
type offsetEntry[T any] struct {
	Offset int
	Value  T
}

func lookup[T any](entries []offsetEntry[T], offset int) (T, bool) {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Offset >= offset })
	if i < len(entries) && entries[i].Offset == offset {
		return entries[i].Value, true
	}
	var zero T
	return zero, false
}

func buildEntries[T any](m map[int]T) []offsetEntry[T] {
	out := make([]offsetEntry[T], 0, len(m))
	for off, v := range m {
		out = append(out, offsetEntry[T]{Offset: off, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// Code is a finished, mapped compilation unit: RX executable memory plus
// every side table needed to interpret an offset within it.
type Code struct {
	desc Descriptor
	name string

	mem []byte // the mmap'd region backing the instruction stream

	frameSize int32

	gcPoints        []offsetEntry[x64.GcPoint]
	comments        []offsetEntry[string]
	positions       []offsetEntry[x64.SourcePosition]
	lazyCompilation []offsetEntry[x64.LazySite]

	Handlers []Handler
	OSRTable []OSREntry

	log *zap.Logger
}

// Address returns the absolute address of the byte at instruction offset
// 0 (the function's entry point).
func (c *Code) Address() uintptr {
	if len(c.mem) == 0 {
		return 0
	}
	return sliceAddress(c.mem)
}

// Bytes exposes the mapped instruction stream read-only, for disassembly
// or snapshot tooling.
func (c *Code) Bytes() []byte { return c.mem }

// Size returns the instruction stream's length in bytes.
func (c *Code) Size() int { return len(c.mem) }

// Descriptor reports what kind of Code object this is.
func (c *Code) Descriptor() Descriptor { return c.desc }

// Name is the originating CodeBlock's name, carried through for
// diagnostics and logging.
func (c *Code) Name() string { return c.name }

// FrameSize returns the stack-frame size FullCodegen's Prolog reserved.
func (c *Code) FrameSize() int32 { return c.frameSize }

// GcPointAt returns the GcPoint recorded at the given instruction offset,
// if any — used by the conservative/block-allocated heap's stack walker
// (internal/gc) to narrow a safepoint's live-root set.
func (c *Code) GcPointAt(offset int) (x64.GcPoint, bool) { return lookup(c.gcPoints, offset) }

// CommentAt returns the debug annotation recorded at offset, if any.
func (c *Code) CommentAt(offset int) (string, bool) { return lookup(c.comments, offset) }

// PositionAt returns the source position recorded at offset, if any.
func (c *Code) PositionAt(offset int) (x64.SourcePosition, bool) {
	return lookup(c.positions, offset)
}

// LazySiteAt returns the not-yet-compiled call site recorded at offset,
// if any — the runtime's lazy-compilation trampoline consults this to
// know which function to compile next and where to patch the result.
func (c *Code) LazySiteAt(offset int) (x64.LazySite, bool) {
	return lookup(c.lazyCompilation, offset)
}

// HandlerFor returns the innermost Handler whose try region covers pc, if
// any, walking Handlers back-to-front so a nested try block (appended
// after its enclosing block, since FullCodegen walks Catches in CodeBlock
// order) shadows its outer handler.
func (c *Code) HandlerFor(pc uintptr) (Handler, bool) {
	for i := len(c.Handlers) - 1; i >= 0; i-- {
		h := c.Handlers[i]
		if pc >= h.TryStart && pc < h.TryEnd {
			return h, true
		}
	}
	return Handler{}, false
}

// OSREntryFor returns the absolute address registered for loop header id,
// if any.
func (c *Code) OSREntryFor(id uint32) (uintptr, bool) {
	for _, e := range c.OSRTable {
		if e.ID == id {
			return c.Address() + uintptr(e.Offset), true
		}
	}
	return 0, false
}
