package bytecode

// Opcode identifies one three-address bytecode instruction, per spec.md
// §3.5. Arithmetic/comparison opcodes all share the {Dst, Lhs, Rhs} shape;
// the rest carry whatever operands their comment documents.
type Opcode uint8

const (
	// OpMov copies {Lhs} into {Dst}.
	OpMov Opcode = iota
	// OpLoadGlobal loads the global named by the Name symbol into {Dst}.
	OpLoadGlobal
	// OpStoreGlobal stores {Lhs} into the global named by the Name symbol.
	OpStoreGlobal
	// OpLoadID loads {Lhs}[Name] into {Dst} (property access by name).
	OpLoadID
	// OpStoreID stores {Rhs} into {Lhs}[Name].
	OpStoreID
	// OpLoadThis loads the current frame's `this` into {Dst}.
	OpLoadThis
	// OpLoadUpvalue loads captured upvalue slot Imm into {Dst}.
	OpLoadUpvalue
	// OpClosure creates a closure over the CodeBlock referenced by the
	// constant register {Lhs}, storing it in {Dst}.
	OpClosure
	// OpCall calls {Lhs} with `this` = {Rhs} and the argument registers
	// listed in Args, storing the result in {Dst}.
	OpCall
	// OpNew constructs a new object via {Lhs} as constructor with the
	// argument registers listed in Args, storing the result in {Dst}.
	OpNew
	// OpReturn returns {Lhs} from the current CodeBlock.
	OpReturn
	// OpJump is an unconditional jump to Target.
	OpJump
	// OpJumpConditional jumps to Target if {Lhs} is truthy, else Target2.
	OpJumpConditional
	// OpSafepoint is a cooperative suspension point (spec.md §5).
	OpSafepoint
	// OpLoopHint is a lightweight safepoint emitted at loop back edges.
	OpLoopHint
	// OpThrow throws {Lhs} as an exception.
	OpThrow

	// Arithmetic / comparison, all of shape {Dst, Lhs, Rhs}:
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpSar
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

var opcodeNames = [...]string{
	OpMov: "Mov", OpLoadGlobal: "LoadGlobal", OpStoreGlobal: "StoreGlobal",
	OpLoadID: "LoadId", OpStoreID: "StoreId", OpLoadThis: "LoadThis",
	OpLoadUpvalue: "LoadU", OpClosure: "Closure", OpCall: "Call", OpNew: "New",
	OpReturn: "Return", OpJump: "Jump", OpJumpConditional: "JumpConditional",
	OpSafepoint: "Safepoint", OpLoopHint: "LoopHint", OpThrow: "Throw",
	OpAdd: "Add", OpSub: "Sub", OpMul: "Mul", OpDiv: "Div", OpMod: "Mod",
	OpAnd: "And", OpOr: "Or", OpXor: "Xor", OpShl: "Shl", OpShr: "Shr", OpSar: "Sar",
	OpEqual: "Equal", OpNotEqual: "NotEqual", OpLess: "Less", OpLessEqual: "LessEqual",
	OpGreater: "Greater", OpGreaterEqual: "GreaterEqual",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "Opcode(?)"
}

// IsTerminator reports whether op can only appear as the last instruction
// of a basic block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpReturn, OpJump, OpJumpConditional, OpThrow:
		return true
	default:
		return false
	}
}

// IsArithmetic reports whether op is one of the {Dst,Lhs,Rhs} binary
// arithmetic/comparison opcodes, the ones FullCodegen gives an inline fast
// path (spec.md §4.10).
func (op Opcode) IsArithmetic() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor, OpShl, OpShr, OpSar,
		OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	default:
		return false
	}
}
