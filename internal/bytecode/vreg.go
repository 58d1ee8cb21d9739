// Package bytecode implements the three-address bytecode IR described in
// spec.md §3.5/§4.4: CodeBlocks made of BasicBlocks of Instructions over
// virtual registers, the unit the CFG/liveness/regalloc/codegen passes all
// operate on.
package bytecode

import "fmt"

// VReg is a virtual register: one of three flavors encoded in a signed
// index, per spec.md §3.5.
//
//   - Argument registers occupy the negative range: VReg(-1) is argument 0,
//     VReg(-2) is argument 1, and so on.
//   - Constant registers are indices into the CodeBlock's constant pool,
//     offset by firstConstantVReg so they never collide with locals.
//   - Local registers are zero-based temporaries, the common case.
//
// This mirrors the well-known JSC VirtualRegister trick (a single signed
// int distinguishes the three spaces without a tag byte) referenced by
// spec.md's "encoded in a signed index" wording.
type VReg int32

// firstConstantVReg is the smallest VReg value that denotes a constant
// register. Local registers must stay below this threshold.
const firstConstantVReg VReg = 1 << 29

// InvalidVReg is returned by operations that have no such operand (e.g. the
// Safepoint opcode has no destination).
const InvalidVReg VReg = 1<<31 - 1

// Local constructs a local (temporary) virtual register.
func Local(i int) VReg { return VReg(i) }

// Constant constructs a constant-pool virtual register.
func Constant(i int) VReg { return firstConstantVReg + VReg(i) }

// Argument constructs an argument virtual register for the i-th actual
// argument.
func Argument(i int) VReg { return VReg(-1 - i) }

// IsLocal reports whether r is a local register.
func (r VReg) IsLocal() bool { return r >= 0 && r < firstConstantVReg }

// IsConstant reports whether r is a constant-pool register.
func (r VReg) IsConstant() bool { return r >= firstConstantVReg && r != InvalidVReg }

// IsArgument reports whether r is an argument register.
func (r VReg) IsArgument() bool { return r < 0 }

// IsValid reports whether r denotes a real operand.
func (r VReg) IsValid() bool { return r != InvalidVReg }

// ToLocalIndex returns the zero-based local slot index. Callers must have
// checked IsLocal.
func (r VReg) ToLocalIndex() int { return int(r) }

// ToConstantIndex returns the constant-pool index. Callers must have
// checked IsConstant.
func (r VReg) ToConstantIndex() int { return int(r - firstConstantVReg) }

// ToArgumentIndex returns the zero-based argument index. Callers must have
// checked IsArgument.
func (r VReg) ToArgumentIndex() int { return int(-1 - r) }

// String implements fmt.Stringer for debug dumps.
func (r VReg) String() string {
	switch {
	case r == InvalidVReg:
		return "<invalid>"
	case r.IsArgument():
		return fmt.Sprintf("arg%d", r.ToArgumentIndex())
	case r.IsConstant():
		return fmt.Sprintf("const%d", r.ToConstantIndex())
	default:
		return fmt.Sprintf("r%d", r.ToLocalIndex())
	}
}
