package bytecode

import "github.com/wafflevm/wafflevm/value"

// CatchEntry marks a bytecode-level try/catch region: TryBlock through
// (inclusive) TryBlockEnd may throw into CatchBlock. FullCodegen resolves
// these into absolute code addresses for the Code artifact's handler table
// (spec.md §4.11/§6).
type CatchEntry struct {
	TryBlock, TryBlockEnd, CatchBlock BlockID
}

// CodeBlock is a compiled function body: basic blocks of three-address
// instructions, a constant pool, and the counts FullCodegen needs to lay
// out a call frame (spec.md §3.5/§4.4).
//
// Side tables produced by later passes (CFG, loop analysis, liveness,
// interference graph) are intentionally NOT stored here: this type is the
// frontend/lowering boundary (spec.md §6 — "the front end supplies a
// CodeBlock"), and each analysis package (internal/cfg, internal/liveness,
// internal/regalloc) returns its own result type keyed by CodeBlock so that
// bytecode never needs to import any of them.
type CodeBlock struct {
	Name      string
	Constants []value.Value
	Blocks    []BasicBlock
	NumArgs   int
	NumVars   int
	Catches   []CatchEntry
}

// NewCodeBlock returns an empty CodeBlock with a single (empty) entry
// block, ready for instructions to be appended.
func NewCodeBlock(name string, numArgs int) *CodeBlock {
	return &CodeBlock{
		Name:    name,
		NumArgs: numArgs,
		Blocks:  []BasicBlock{{ID: 0}},
	}
}

// AddBlock appends a new empty basic block and returns its ID.
func (cb *CodeBlock) AddBlock() BlockID {
	id := BlockID(len(cb.Blocks))
	cb.Blocks = append(cb.Blocks, BasicBlock{ID: id})
	return id
}

// Block returns a pointer to the basic block with the given ID.
func (cb *CodeBlock) Block(id BlockID) *BasicBlock {
	return &cb.Blocks[id]
}

// EntryBlock returns the entry block, which is always block 0.
func (cb *CodeBlock) EntryBlock() *BasicBlock {
	return &cb.Blocks[0]
}

// AllocLocal reserves and returns a fresh local virtual register.
func (cb *CodeBlock) AllocLocal() VReg {
	r := Local(cb.NumVars)
	cb.NumVars++
	return r
}

// ReserveLocals bumps the local-register counter by n without handing any
// of them out, so the bottom n indices of the Local space stay free for a
// fixed purpose. The register allocator (internal/regalloc) uses this to
// alias Local(0)..Local(numMachineRegs-1) to the real machine registers —
// callers must reserve that prefix before emitting any instruction that
// calls AllocLocal, or virtual temps would collide with machine-register
// indices.
func (cb *CodeBlock) ReserveLocals(n int) {
	cb.NumVars += n
}

// AddConstant appends v to the constant pool and returns its VReg.
func (cb *CodeBlock) AddConstant(v value.Value) VReg {
	idx := len(cb.Constants)
	cb.Constants = append(cb.Constants, v)
	return Constant(idx)
}

// Verify checks the terminator well-formedness invariant of spec.md §4.4:
// every non-empty basic block ends with a terminator.
func (cb *CodeBlock) Verify() error {
	for i := range cb.Blocks {
		b := &cb.Blocks[i]
		if len(b.Code) == 0 {
			continue
		}
		if !b.IsWellFormed() {
			return &MalformedBlockError{Block: b.ID}
		}
	}
	return nil
}

// MalformedBlockError reports a basic block whose last instruction is not
// a terminator.
type MalformedBlockError struct {
	Block BlockID
}

func (e *MalformedBlockError) Error() string {
	return "bytecode: block " + blockIDString(e.Block) + " does not end in a terminator"
}

func blockIDString(id BlockID) string {
	// Small helper to avoid pulling in fmt for a single call site used only
	// on the (rare) error path.
	if id == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = byte('0' + id%10)
		id /= 10
	}
	return string(buf[i:])
}
