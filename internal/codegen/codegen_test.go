package codegen

import (
	"testing"

	"github.com/wafflevm/wafflevm/internal/asm/x64"
	"github.com/wafflevm/wafflevm/internal/bytecode"
)

func testMachineRegs() []x64.Reg {
	return []x64.Reg{x64.RBX, x64.R12, x64.R13}
}

func simpleCodeBlock() *bytecode.CodeBlock {
	cb := bytecode.NewCodeBlock("test", 2)
	cb.ReserveLocals(len(testMachineRegs()))
	a, b := cb.AllocLocal(), cb.AllocLocal()
	blk := cb.EntryBlock()
	blk.Code = append(blk.Code,
		bytecode.NewBinary(bytecode.OpAdd, a, bytecode.Argument(0), bytecode.Argument(1)),
		bytecode.Instruction{Op: bytecode.OpMov, Dst: b, Lhs: a},
		bytecode.Instruction{Op: bytecode.OpReturn, Lhs: b},
	)
	return cb
}

func TestCompileProducesNonEmptyCode(t *testing.T) {
	cb := simpleCodeBlock()
	gen := New(cb, testMachineRegs(), RuntimeHelpers{Add: 0x1000})
	masm := gen.Compile()
	if len(masm.Bytes()) == 0 {
		t.Fatal("Compile produced no machine code")
	}
}

func TestCompileRegistersAddSlowPath(t *testing.T) {
	cb := simpleCodeBlock()
	gen := New(cb, testMachineRegs(), RuntimeHelpers{Add: 0x2000})
	gen.Compile()
	if len(gen.slowPaths) != 1 {
		t.Fatalf("expected 1 registered slow path (Add), got %d", len(gen.slowPaths))
	}
}

func TestCompileWithComparisonAndBranch(t *testing.T) {
	cb := bytecode.NewCodeBlock("cmp", 2)
	cb.ReserveLocals(len(testMachineRegs()))
	r := cb.AllocLocal()
	thenBlk := cb.AddBlock()
	elseBlk := cb.AddBlock()

	entry := cb.EntryBlock()
	entry.Code = append(entry.Code, bytecode.Instruction{
		Op: bytecode.OpJumpConditional, Lhs: bytecode.Argument(0),
		Target: thenBlk, Target2: elseBlk,
	})

	cb.Block(thenBlk).Code = append(cb.Block(thenBlk).Code,
		bytecode.Instruction{Op: bytecode.OpMov, Dst: r, Lhs: bytecode.Argument(0)},
		bytecode.Instruction{Op: bytecode.OpReturn, Lhs: r},
	)
	cb.Block(elseBlk).Code = append(cb.Block(elseBlk).Code,
		bytecode.Instruction{Op: bytecode.OpMov, Dst: r, Lhs: bytecode.Argument(1)},
		bytecode.Instruction{Op: bytecode.OpReturn, Lhs: r},
	)

	gen := New(cb, testMachineRegs(), RuntimeHelpers{ToBoolean: 0x3000})
	masm := gen.Compile()
	if len(masm.Bytes()) == 0 {
		t.Fatal("Compile produced no machine code")
	}
	if len(gen.slowPaths) != 1 {
		t.Fatalf("expected 1 registered slow path (ToBoolean), got %d", len(gen.slowPaths))
	}
}

func TestGenericArithGeneratorCoversEveryRemainingOpcode(t *testing.T) {
	ops := []bytecode.Opcode{
		bytecode.OpSub, bytecode.OpMul, bytecode.OpAnd, bytecode.OpOr, bytecode.OpXor,
		bytecode.OpShr, bytecode.OpSar, bytecode.OpEqual, bytecode.OpNotEqual,
		bytecode.OpLess, bytecode.OpLessEqual, bytecode.OpGreater,
	}
	for _, op := range ops {
		in := bytecode.NewBinary(op, bytecode.Local(0), bytecode.Argument(0), bytecode.Argument(1))
		g := newArithGenerator(&in, RuntimeHelpers{})
		if _, ok := g.(*genericArithGenerator); !ok {
			t.Errorf("%s: expected genericArithGenerator, got %T", op, g)
		}
	}
}

func TestNewArithGeneratorDispatchesDedicatedOpcodes(t *testing.T) {
	cases := map[bytecode.Opcode]bool{
		bytecode.OpAdd:          true,
		bytecode.OpDiv:          true,
		bytecode.OpMod:          true,
		bytecode.OpShl:          true,
		bytecode.OpGreaterEqual: true,
	}
	for op := range cases {
		in := bytecode.NewBinary(op, bytecode.Local(0), bytecode.Argument(0), bytecode.Argument(1))
		g := newArithGenerator(&in, RuntimeHelpers{})
		if _, ok := g.(*genericArithGenerator); ok {
			t.Errorf("%s: expected a dedicated generator, got genericArithGenerator", op)
		}
	}
}
