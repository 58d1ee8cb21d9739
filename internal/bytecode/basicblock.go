package bytecode

// BlockID is the index of a BasicBlock within a CodeBlock's Blocks slice.
// Block 0 is always the entry block, per spec.md §4.4.
type BlockID uint32

// BasicBlock is an ordered list of instructions; only the last instruction
// of a non-empty block is a terminator (spec.md §4.4).
type BasicBlock struct {
	ID   BlockID
	Code []Instruction
}

// Terminator returns the block's last instruction, or nil if the block is
// empty (only possible for a not-yet-finished block under construction).
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Code) == 0 {
		return nil
	}
	return &b.Code[len(b.Code)-1]
}

// BranchTargets returns the out-edges of this block: 0, 1, or 2 successor
// block IDs, read off the terminator.
func (b *BasicBlock) BranchTargets() []BlockID {
	t := b.Terminator()
	if t == nil {
		return nil
	}
	return t.BranchTargets()
}

// TryReplaceBranchTargets rewrites the terminator's targets in place.
func (b *BasicBlock) TryReplaceBranchTargets(from, to BlockID) bool {
	t := b.Terminator()
	if t == nil {
		return false
	}
	return t.TryReplaceBranchTargets(from, to)
}

// Append adds an instruction to the end of the block.
func (b *BasicBlock) Append(in Instruction) {
	b.Code = append(b.Code, in)
}

// IsWellFormed reports whether the block ends in a terminator, per
// spec.md §4.4's "Terminator well-formedness" requirement. An empty block
// is not well-formed on its own; CodeBlock.Verify flags it.
func (b *BasicBlock) IsWellFormed() bool {
	t := b.Terminator()
	return t != nil && t.Op.IsTerminator()
}
