package liveness

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wafflevm/wafflevm/internal/bytecode"
	"github.com/wafflevm/wafflevm/internal/cfg"
)

// entry: r0 = r1 + r2 ; jump header
// header: jump-if r0 -> body, exit
// body: r0 = r0 - r1 ; jump header
// exit: return r0
func buildLoopWithUses() *bytecode.CodeBlock {
	cb := bytecode.NewCodeBlock("f", 0)
	header := cb.AddBlock()
	body := cb.AddBlock()
	exit := cb.AddBlock()

	cb.EntryBlock().Append(bytecode.NewBinary(bytecode.OpAdd, bytecode.Local(0), bytecode.Local(1), bytecode.Local(2)))
	cb.EntryBlock().Append(bytecode.Instruction{Op: bytecode.OpJump, Target: header})

	cb.Block(header).Append(bytecode.Instruction{Op: bytecode.OpJumpConditional, Lhs: bytecode.Local(0), Target: body, Target2: exit})

	cb.Block(body).Append(bytecode.NewBinary(bytecode.OpSub, bytecode.Local(0), bytecode.Local(0), bytecode.Local(1)))
	cb.Block(body).Append(bytecode.Instruction{Op: bytecode.OpJump, Target: header})

	cb.Block(exit).Append(bytecode.Instruction{Op: bytecode.OpReturn, Lhs: bytecode.Local(0)})
	return cb
}

func TestLocalUsesDefs(t *testing.T) {
	cb := buildLoopWithUses()
	g := cfg.Build(cb)
	r := Analyze(cb, g)

	// entry defines r0, uses r1 and r2.
	require.True(t, r.Use[0].Has(bytecode.Local(1)))
	require.True(t, r.Use[0].Has(bytecode.Local(2)))
	require.True(t, r.Def[0].Has(bytecode.Local(0)))
}

func TestGlobalLiveness(t *testing.T) {
	cb := buildLoopWithUses()
	g := cfg.Build(cb)
	r := Analyze(cb, g)

	// r1 is used inside the loop body on every iteration, so it must be
	// live across the back edge: live-out of body and live-in of header.
	bodyID := bytecode.BlockID(2)
	headerID := bytecode.BlockID(1)
	require.True(t, r.LiveOut[bodyID].Has(bytecode.Local(1)))
	require.True(t, r.LiveIn[headerID].Has(bytecode.Local(1)))

	// r0 is live out of entry (used by header's conditional and beyond).
	require.True(t, r.LiveOut[0].Has(bytecode.Local(0)))

	// exit block has no successors, so nothing should be live-out of it.
	exitID := bytecode.BlockID(3)
	require.Empty(t, r.LiveOut[exitID])
}
