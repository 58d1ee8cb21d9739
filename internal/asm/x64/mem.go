package x64

// Mem is a memory operand, spec.md §4.9's `Mem` sum type. Exactly one of
// the four constructors below should be used; Kind tags which fields are
// meaningful.
type Mem struct {
	Kind MemKind

	Local int32 // MemLocal: byte offset from the call-frame base

	Base  Reg   // MemBase / MemIndex
	Disp  int32 // MemBase / MemIndex / MemOffset
	Index Reg   // MemIndex / MemOffset
	Scale uint8 // MemIndex / MemOffset: 1, 2, 4, or 8
}

type MemKind int

const (
	MemLocal MemKind = iota
	MemBase
	MemIndex
	MemOffset
)

// LocalMem addresses `[CallFrameReg + offset]`, where offset is a byte
// offset from the call-frame base (not a slot index).
func LocalMem(offset int32) Mem { return Mem{Kind: MemLocal, Local: offset} }

// BaseMem addresses `[base + disp]`.
func BaseMem(base Reg, disp int32) Mem { return Mem{Kind: MemBase, Base: base, Disp: disp} }

// IndexMem addresses `[base + index*scale + disp]`.
func IndexMem(base, index Reg, scale uint8, disp int32) Mem {
	return Mem{Kind: MemIndex, Base: base, Index: index, Scale: scale, Disp: disp}
}

// OffsetMem addresses `[index*scale + disp]` with no base register.
func OffsetMem(index Reg, scale uint8, disp int32) Mem {
	return Mem{Kind: MemOffset, Index: index, Scale: scale, Disp: disp}
}
