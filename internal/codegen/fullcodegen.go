package codegen

import (
	"fmt"

	"github.com/wafflevm/wafflevm/internal/asm/x64"
	"github.com/wafflevm/wafflevm/internal/bytecode"
)

// ccallParams are the System V AMD64 integer argument registers, in
// order, used whenever a generator calls out to a runtime helper (the
// slow paths original_source's generators call via `raw_call`/
// `CCALL_REG_PARAMS`).
var ccallParams = [...]x64.Reg{x64.RDI, x64.RSI, x64.RDX, x64.RCX, x64.R8, x64.R9}

// RuntimeHelpers supplies the native function addresses FullCodegen's
// generated slow paths call out to — e.g. the arithmetic/comparison
// fallbacks for non-int32 operands (spec.md §4.10's "falls back to a full
// interpreter-level operation" for the cases the fast path can't handle).
// The embedding runtime (package runtime) supplies these when it
// compiles a CodeBlock; FullCodegen only needs the addresses at emit time.
type RuntimeHelpers struct {
	Add, Sub, Mul, Div, Mod                      uint64
	And, Or, Xor, Shl, Shr, Sar                  uint64
	Equal, NotEqual, Less, LessEqual, Greater, GE uint64
	ToBoolean                                     uint64
	Safepoint                                     uint64

	LoadGlobal, StoreGlobal uint64
	LoadProp, StoreProp     uint64
	LoadUpvalue             uint64
	MakeClosure             uint64
	Call, New               uint64
	Throw                   uint64
}

// FullCodegen lowers one already register-allocated bytecode.CodeBlock
// into machine code, linearly, one basic block at a time (spec.md §4.10).
//
// Grounded on original_source/src/fullcodegen/mod.rs's FullCodegen: the
// `code`/`masm`/`slow_paths` fields map directly, and Compile's structure
// (bind a label per block up front, emit each instruction in order,
// append every fast path's registered slow path after the main body, bind
// a single shared return label) follows mod.rs's `compile` method.
type FullCodegen struct {
	cb      *bytecode.CodeBlock
	masm    *x64.Assembler
	helpers RuntimeHelpers

	// machineRegs[i] is the physical register internal/regalloc assigned
	// to local virtual register i; its length is the K the allocator
	// colored with (spec.md §4.8's numColors).
	machineRegs []x64.Reg

	labels  map[bytecode.BlockID]x64.Label
	retLbl  x64.Label
	slowPaths []Generator
}

// New returns a FullCodegen ready to compile cb. machineRegs must be the
// same register set internal/regalloc.AllocateCodeBlock(cb,
// len(machineRegs)) was run with.
func New(cb *bytecode.CodeBlock, machineRegs []x64.Reg, helpers RuntimeHelpers) *FullCodegen {
	return &FullCodegen{
		cb:          cb,
		masm:        x64.New(),
		helpers:     helpers,
		machineRegs: machineRegs,
		labels:      map[bytecode.BlockID]x64.Label{},
	}
}

// Assembler exposes the underlying assembler so internal/code can read
// the finished buffer and sidetables.
func (gen *FullCodegen) Assembler() *x64.Assembler { return gen.masm }

func (gen *FullCodegen) frameSize() int32 {
	return int32(len(gen.machineRegs)) * 8
}

// FrameSize exposes the stack-frame size Compile's Prolog reserved, so
// internal/code's Code artifact can report it to a conservative stack
// walker without recomputing it from the machine-register count.
func (gen *FullCodegen) FrameSize() int32 { return gen.frameSize() }

// regFor returns the physical register a local VReg was colored to.
func (gen *FullCodegen) regFor(vr bytecode.VReg) x64.Reg {
	return gen.machineRegs[vr.ToLocalIndex()]
}

// loadOperand emits whatever is needed to materialize vr's value into
// dst: a register move for a machine-register local, a memory load for
// an argument, or an immediate load for a constant. Grounded on
// original_source/src/fullcodegen/mod.rs's load_register, minus the
// CallFrame-relative indirection Local no longer needs post-allocation.
func (gen *FullCodegen) loadOperand(vr bytecode.VReg, dst x64.Reg) {
	switch {
	case vr.IsLocal():
		gen.masm.CopyReg(x64.Int64, dst, gen.regFor(vr))
	case vr.IsConstant():
		c := gen.cb.Constants[vr.ToConstantIndex()]
		gen.masm.LoadIntConst(x64.Int64, dst, int64(uint64(c)))
	case vr.IsArgument():
		gen.masm.LoadMem(x64.Int64, dst, argumentMem(vr.ToArgumentIndex()))
	}
}

// loadOperands2 is the two-operand convenience original_source's
// load_registers2 provides, for the common binary-opcode case.
func (gen *FullCodegen) loadOperands2(lhs, rhs bytecode.VReg, dst1, dst2 x64.Reg) {
	gen.loadOperand(lhs, dst1)
	gen.loadOperand(rhs, dst2)
}

// storeResult writes src into vr's location. Constants are never a def
// target (bytecode.Instruction.GetDefs never returns one), so only the
// local and argument cases are reachable.
func (gen *FullCodegen) storeResult(vr bytecode.VReg, src x64.Reg) {
	switch {
	case vr.IsLocal():
		gen.masm.CopyReg(x64.Int64, gen.regFor(vr), src)
	case vr.IsArgument():
		gen.masm.StoreMem(x64.Int64, argumentMem(vr.ToArgumentIndex()), src)
	}
}

// Compile lowers every basic block in cb, in order, then appends every
// registered slow path, calls Finish, and returns the finished Assembler
// for internal/code to map into executable memory.
func (gen *FullCodegen) Compile() *x64.Assembler {
	for i := range gen.cb.Blocks {
		gen.labels[gen.cb.Blocks[i].ID] = gen.masm.CreateLabel()
	}
	gen.retLbl = gen.masm.CreateLabel()

	gen.masm.Prolog(gen.frameSize())

	for i := range gen.cb.Blocks {
		b := &gen.cb.Blocks[i]
		gen.masm.BindLabel(gen.labels[b.ID])
		for ii := range b.Code {
			gen.emit(&b.Code[ii])
		}
	}

	gen.masm.BindLabel(gen.retLbl)
	gen.resolveHandlers()
	gen.masm.Epilog()

	for _, g := range gen.slowPaths {
		g.SlowPath(gen)
	}

	gen.masm.Finish()
	return gen.masm
}

// resolveHandlers turns cb.Catches' block-ID try/catch regions into the
// byte-offset Handler entries internal/code resolves to absolute addresses
// (spec.md Open Question 1). Blocks emit back-to-back in cb.Blocks order
// with no gaps, so a try region's end is simply the following block's
// start offset — or, for the CodeBlock's last block, the shared return
// label's offset.
func (gen *FullCodegen) resolveHandlers() {
	for _, c := range gen.cb.Catches {
		tryStart := gen.masm.LabelOffset(gen.labels[c.TryBlock])
		var tryEnd int
		if next := c.TryBlockEnd + 1; int(next) < len(gen.cb.Blocks) {
			tryEnd = gen.masm.LabelOffset(gen.labels[next])
		} else {
			tryEnd = gen.masm.LabelOffset(gen.retLbl)
		}
		catchPC := gen.masm.LabelOffset(gen.labels[c.CatchBlock])
		gen.masm.Handlers = append(gen.masm.Handlers, x64.Handler{
			TryStart: tryStart,
			TryEnd:   tryEnd,
			Catch:    catchPC,
		})
	}
}

// BlockOffsets returns every basic block's bound entry offset, keyed by
// block ID, so internal/code can build the OSR entry table (spec.md Open
// Question 2) without reaching into FullCodegen's private label map.
func (gen *FullCodegen) BlockOffsets() map[bytecode.BlockID]int {
	out := make(map[bytecode.BlockID]int, len(gen.labels))
	for id, l := range gen.labels {
		out[id] = gen.masm.LabelOffset(l)
	}
	return out
}

func (gen *FullCodegen) emit(in *bytecode.Instruction) {
	gen.masm.AddComment(in.Op.String())

	if in.Op.IsArithmetic() {
		g := newArithGenerator(in, gen.helpers)
		if g.FastPath(gen) {
			gen.slowPaths = append(gen.slowPaths, g)
		}
		return
	}

	switch in.Op {
	case bytecode.OpMov:
		gen.loadOperand(in.Lhs, x64.ReturnReg)
		gen.storeResult(in.Dst, x64.ReturnReg)

	case bytecode.OpReturn:
		gen.loadOperand(in.Lhs, x64.ReturnReg)
		gen.masm.Jump(gen.retLbl)

	case bytecode.OpJump:
		gen.masm.Jump(gen.labels[in.Target])

	case bytecode.OpJumpConditional:
		tb := &toBooleanGenerator{val: in.Lhs, helper: gen.helpers.ToBoolean}
		if tb.FastPath(gen) {
			gen.slowPaths = append(gen.slowPaths, tb)
		}
		gen.masm.IntCmpImm(x64.Int8, x64.ReturnReg, 0)
		gen.masm.JumpIf(x64.CondEqual, gen.labels[in.Target2])
		gen.masm.Jump(gen.labels[in.Target])

	case bytecode.OpSafepoint:
		gen.emitSafepoint()

	case bytecode.OpLoopHint:
		gen.masm.LoopHint(gen.liveCellOffsets())

	case bytecode.OpThrow:
		gen.loadOperand(in.Lhs, ccallParams[0])
		gen.masm.RawCall(gen.helpers.Throw) // unwinding itself walks the Handler table internal/code builds from this CodeBlock's Catches
		gen.masm.Jump(gen.retLbl)

	case bytecode.OpLoadGlobal, bytecode.OpStoreGlobal, bytecode.OpLoadID, bytecode.OpStoreID,
		bytecode.OpLoadThis, bytecode.OpLoadUpvalue, bytecode.OpClosure, bytecode.OpCall, bytecode.OpNew:
		gen.emitRuntimeOp(in)

	default:
		panic(fmt.Sprintf("codegen: unhandled opcode %s", in.Op))
	}
}

// emitSafepoint flushes every live machine register to the frame's save
// area before calling the runtime's safepoint handler, so the
// conservative stack scanner (internal/gc) finds every live reference as
// an ordinary stack slot rather than needing a precise per-register stack
// map — the simplification this port makes in place of a full GC stack
// map (see DESIGN.md).
func (gen *FullCodegen) emitSafepoint() {
	for i, r := range gen.machineRegs {
		gen.masm.StoreMem(x64.Int64, saveSlotMem(i), r)
	}
	gen.masm.CopyReg(x64.Int64, ccallParams[0], x64.ThreadReg)
	gen.masm.Safepoint(gen.helpers.Safepoint, gen.liveCellOffsets())
	for i, r := range gen.machineRegs {
		gen.masm.LoadMem(x64.Int64, r, saveSlotMem(i))
	}
}

// liveCellOffsets conservatively reports every save slot as a possible
// root: without static type information FullCodegen cannot know which
// locals hold Cell-typed Values at this point, so it hands the
// conservative/block-allocated heap (spec.md §4.3) every slot and lets it
// fall back to its pointer-range test rather than trusting a precise
// type tag here.
func (gen *FullCodegen) liveCellOffsets() []int32 {
	offsets := make([]int32, len(gen.machineRegs))
	for i := range gen.machineRegs {
		offsets[i] = saveSlotMem(i).Local
	}
	return offsets
}

// emitRuntimeOp lowers the property/global/call/closure family, none of
// which original_source/src/fullcodegen/mod.rs implements either (its
// own compile() ends in `_ => unimplemented!()` for everything past
// Mov/Add/Sub/Less/Return/Safepoint/JumpConditional/Jump): each becomes a
// direct call into a runtime-owned helper stub, passing whichever of
// {Name, Lhs, Rhs, Args} the opcode actually carries in System V
// argument-register order, the same raw_call idiom
// original_source/src/fullcodegen/mod.rs uses for its own Add/Sub
// opcodes' slow paths.
func (gen *FullCodegen) emitRuntimeOp(in *bytecode.Instruction) {
	argc := 0
	loadArg := func(vr bytecode.VReg) {
		gen.loadOperand(vr, ccallParams[argc])
		argc++
	}
	loadImm := func(v int64) {
		gen.masm.LoadIntConst(x64.Int32, ccallParams[argc], v)
		argc++
	}

	switch in.Op {
	case bytecode.OpLoadThis:
		gen.masm.LoadMem(x64.Int64, x64.ReturnReg, argumentMem(-1))
		gen.storeResult(in.Dst, x64.ReturnReg)
		return

	case bytecode.OpLoadGlobal:
		loadImm(int64(in.Name))
	case bytecode.OpStoreGlobal:
		loadImm(int64(in.Name))
		loadArg(in.Lhs)
	case bytecode.OpLoadID:
		loadArg(in.Lhs)
		loadImm(int64(in.Name))
	case bytecode.OpStoreID:
		loadArg(in.Lhs)
		loadImm(int64(in.Name))
		loadArg(in.Rhs)
	case bytecode.OpLoadUpvalue:
		loadImm(int64(in.Imm))
	case bytecode.OpClosure:
		loadArg(in.Lhs)
	case bytecode.OpCall, bytecode.OpNew:
		loadArg(in.Lhs)
		loadArg(in.Rhs)
		for _, a := range in.Args {
			if argc >= len(ccallParams) {
				break // beyond the register-argument window; the runtime stub spills extras itself
			}
			loadArg(a)
		}
	}

	gen.masm.RawCall(gen.runtimeStub(in.Op))
	if in.Dst.IsValid() && in.Dst.IsLocal() {
		gen.storeResult(in.Dst, x64.ReturnReg)
	}
}

// runtimeStub picks the native helper address for one of the
// property/global/call/closure opcodes.
func (gen *FullCodegen) runtimeStub(op bytecode.Opcode) uint64 {
	switch op {
	case bytecode.OpLoadGlobal:
		return gen.helpers.LoadGlobal
	case bytecode.OpStoreGlobal:
		return gen.helpers.StoreGlobal
	case bytecode.OpLoadID:
		return gen.helpers.LoadProp
	case bytecode.OpStoreID:
		return gen.helpers.StoreProp
	case bytecode.OpLoadUpvalue:
		return gen.helpers.LoadUpvalue
	case bytecode.OpClosure:
		return gen.helpers.MakeClosure
	case bytecode.OpNew:
		return gen.helpers.New
	default: // OpCall
		return gen.helpers.Call
	}
}
