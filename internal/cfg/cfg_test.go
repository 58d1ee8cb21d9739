package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wafflevm/wafflevm/internal/bytecode"
)

// buildDiamond builds entry -> {a, b} -> exit, all terminated appropriately.
func buildDiamond() *bytecode.CodeBlock {
	cb := bytecode.NewCodeBlock("diamond", 0)
	a := cb.AddBlock()
	b := cb.AddBlock()
	exit := cb.AddBlock()

	cb.EntryBlock().Append(bytecode.Instruction{Op: bytecode.OpJumpConditional, Lhs: bytecode.Local(0), Target: a, Target2: b})
	cb.Block(a).Append(bytecode.Instruction{Op: bytecode.OpJump, Target: exit})
	cb.Block(b).Append(bytecode.Instruction{Op: bytecode.OpJump, Target: exit})
	cb.Block(exit).Append(bytecode.Instruction{Op: bytecode.OpReturn, Lhs: bytecode.Local(0)})
	return cb
}

// buildLoop builds entry -> header -> body -> header (back edge) -> exit,
// i.e. a single natural loop with header `header`.
func buildLoop() (*bytecode.CodeBlock, bytecode.BlockID, bytecode.BlockID) {
	cb := bytecode.NewCodeBlock("loop", 0)
	header := cb.AddBlock()
	body := cb.AddBlock()
	exit := cb.AddBlock()

	cb.EntryBlock().Append(bytecode.Instruction{Op: bytecode.OpJump, Target: header})
	cb.Block(header).Append(bytecode.Instruction{Op: bytecode.OpJumpConditional, Lhs: bytecode.Local(0), Target: body, Target2: exit})
	cb.Block(body).Append(bytecode.Instruction{Op: bytecode.OpJump, Target: header})
	cb.Block(exit).Append(bytecode.Instruction{Op: bytecode.OpReturn, Lhs: bytecode.Local(0)})
	return cb, header, body
}

func TestBuildDiamondDominators(t *testing.T) {
	cb := buildDiamond()
	g := Build(cb)

	require.Equal(t, bytecode.BlockID(0), g.RPO[0])
	require.True(t, g.Dominates(0, 1))
	require.True(t, g.Dominates(0, 2))
	require.True(t, g.Dominates(0, 3))
	require.False(t, g.Dominates(1, 2))
	require.False(t, g.Dominates(2, 1))
	require.Equal(t, bytecode.BlockID(0), g.IDom[3])
}

func TestDetectLoopsSimple(t *testing.T) {
	cb, header, body := buildLoop()
	g := Build(cb)
	la := DetectLoops(g, len(cb.Blocks))

	require.Len(t, la.Headers, 1)
	require.Equal(t, header, la.Headers[0])
	m := la.Merged[header]
	require.NotNil(t, m)
	require.Contains(t, m.Backedges, body)
	require.Contains(t, m.Blocks, header)
	require.Contains(t, m.Blocks, body)

	require.Equal(t, 1, la.LoopDepth[header])
	require.Equal(t, 1, la.LoopDepth[body])
	require.Equal(t, 0, la.LoopDepth[0])
}

func TestDetectLoopsAcyclicHasNone(t *testing.T) {
	cb := buildDiamond()
	g := Build(cb)
	la := DetectLoops(g, len(cb.Blocks))
	require.Empty(t, la.Headers)
	for _, d := range la.LoopDepth {
		require.Equal(t, 0, d)
	}
}
