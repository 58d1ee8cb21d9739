package x64

import "encoding/binary"

// Label is a forward or backward branch target. The zero Label is never
// returned by CreateLabel; labels are 1-based so a Label field left at
// its zero value is detectably "not yet created".
type Label int

// CondCode is a jump condition, mapping directly to an x86-64 Jcc
// opcode's low nibble.
type CondCode uint8

const (
	CondEqual        CondCode = 0x4 // JE/JZ
	CondNotEqual     CondCode = 0x5 // JNE/JNZ
	CondLess         CondCode = 0xC // JL
	CondLessEqual    CondCode = 0xE // JLE
	CondGreater      CondCode = 0xF // JG
	CondGreaterEqual CondCode = 0xD // JGE
	CondOverflow     CondCode = 0x0 // JO
	CondBelow        CondCode = 0x2 // JB (unsigned <)
	CondAbove        CondCode = 0x7 // JA (unsigned >)
	CondAboveEqual   CondCode = 0x3 // JAE (unsigned >=)
	CondParity       CondCode = 0xA // JP, set on an unordered (NaN) UCOMISS/UCOMISD result
)

// forwardJump records a not-yet-resolved branch's 32-bit relative
// displacement site, patched once its label is bound.
type forwardJump struct {
	siteOffset int // offset of the 4-byte displacement field itself
	label      Label
}

// GcPoint lists the call-frame-relative stack offsets holding a managed
// reference at one safepoint, the conservative-root narrowing table of
// spec.md §4.3/§4.11.
type GcPoint struct {
	Offsets []int32
}

// SourcePosition is a diagnostic (file-independent: CodeBlocks are
// per-function) line/column pair recorded for one emitted instruction.
type SourcePosition struct {
	Line, Column int
}

// LazySite records a not-yet-compiled call target the runtime must
// repatch once the target's Code is ready (spec.md §4.9's
// `direct_call`/lazy-compilation path).
type LazySite struct {
	FnID     uint32
	DispSite int // offset of the 4-byte call-target displacement to patch
}

// Handler is one catch-table entry in byte offsets. internal/code resolves
// TryStart/TryEnd/Catch into its own code.Handler's absolute addresses
// (spec.md §4.11, resolving spec.md Open Question 1); Offset is not read
// or written by internal/code.
type Handler struct {
	TryStart, TryEnd, Catch int
	Offset                  int
}

// Assembler accumulates a function body's machine code plus every
// sidetable FullCodegen and the Code artifact need, keyed by byte offset
// into the emitted buffer.
//
// Grounded on original_source/src/assembler/masmx64.rs's MacroAssembler
// and its sidetable fields (gcpoints/positions/comments/
// lazy_compilation/handlers).
type Assembler struct {
	code []byte

	labels       []int // label id (1-based) -> bound offset, or -1 if unbound
	forwardJumps []forwardJump

	GcPoints         map[int]GcPoint
	Positions        map[int]SourcePosition
	Comments         map[int]string
	LazyCompilation  map[int]LazySite
	Handlers         []Handler

	scratchInUse [2]bool // ScratchReg0, ScratchReg1
}

// New returns an empty Assembler.
func New() *Assembler {
	return &Assembler{
		GcPoints:        map[int]GcPoint{},
		Positions:       map[int]SourcePosition{},
		Comments:        map[int]string{},
		LazyCompilation: map[int]LazySite{},
	}
}

// Offset returns the current end of the emitted buffer.
func (a *Assembler) Offset() int { return len(a.code) }

// Bytes returns the emitted buffer so far (read-only view; Finish copies
// it into executable memory).
func (a *Assembler) Bytes() []byte { return a.code }

func (a *Assembler) emitU8(b byte) { a.code = append(a.code, b) }

func (a *Assembler) emitU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	a.code = append(a.code, buf[:]...)
}

func (a *Assembler) emitU64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	a.code = append(a.code, buf[:]...)
}

func (a *Assembler) emitU8At(offset int, b byte) { a.code[offset] = b }

func (a *Assembler) emitU32At(offset int, v uint32) {
	binary.LittleEndian.PutUint32(a.code[offset:], v)
}

// AddComment records a debugging annotation at the current offset.
func (a *Assembler) AddComment(s string) { a.Comments[a.Offset()] = s }

// AddPosition records a source position at the current offset.
func (a *Assembler) AddPosition(p SourcePosition) { a.Positions[a.Offset()] = p }

// --- Labels ---------------------------------------------------------------

// CreateLabel allocates a new, unbound label.
func (a *Assembler) CreateLabel() Label {
	a.labels = append(a.labels, -1)
	return Label(len(a.labels))
}

// BindLabel binds l to the current emit offset.
func (a *Assembler) BindLabel(l Label) { a.labels[l-1] = a.Offset() }

// BindLabelTo binds l to an already-known offset (used when a label must
// point at a position emitted out of the usual linear order).
func (a *Assembler) BindLabelTo(l Label, offset int) { a.labels[l-1] = offset }

func (a *Assembler) labelOffset(l Label) int { return a.labels[l-1] }

// LabelOffset exposes a bound label's offset so internal/code can resolve
// FullCodegen's per-block labels into the handler table's TryStart/TryEnd/
// Catch offsets and the OSR table's per-block entry offsets.
func (a *Assembler) LabelOffset(l Label) int { return a.labelOffset(l) }

// --- Forward-jump patching --------------------------------------------------

// fixForwardJumps patches the 32-bit displacement of every recorded
// forward jump with target-(site+4), per spec.md §4.9's finish() step 2.
// Backward jumps (whose label was already bound at emit time) never go
// through this path — their displacement is computed immediately.
func (a *Assembler) fixForwardJumps() {
	for _, fj := range a.forwardJumps {
		target := a.labelOffset(fj.label)
		disp := int32(target - (fj.siteOffset + 4))
		a.emitU32At(fj.siteOffset, uint32(disp))
	}
	a.forwardJumps = a.forwardJumps[:0]
}

// Finish completes emission per spec.md §4.9's finish(): it is the
// caller's (internal/codegen's) responsibility to have already emitted
// every pending bailout stub before calling this, since step 1 of the
// spec's finish() is bailout-label-specific and codegen owns bailout
// bookkeeping; Finish itself performs step 2, patching every recorded
// forward jump.
func (a *Assembler) Finish() {
	a.fixForwardJumps()
}
