package regalloc

import (
	"fmt"

	"github.com/29jm/drak-lang/pkg/cfg"
	"github.com/29jm/drak-lang/pkg/ir"
	"github.com/29jm/drak-lang/pkg/liveness"
)

// MaxSpillRounds bounds the spill/recolor retry loop. Past this many
// rounds a graph is reported non-colorable rather than spilling forever;
// see DESIGN.md's "spill-of-spill" decision.
const MaxSpillRounds = 8

// ErrNonColorable is returned when a function could not be colored within
// MaxSpillRounds spill rounds.
var ErrNonColorable = fmt.Errorf("regalloc: function not colorable within %d spill rounds", MaxSpillRounds)

// Result is the outcome of allocating registers over a function's
// blocks: the final coloring and the (possibly spill-rewritten) blocks it
// applies to.
type Result struct {
	Blocks   [][]ir.Instruction
	Coloring Coloring
	Rounds   int
}

// Allocate runs coalescing followed by Chaitin coloring with iterated
// spilling over blocks, recomputing liveness and the interference graph
// after every spill round since spilling changes both. Mirrors
// orig:drak/middle_end/coloring.py's regalloc outer loop, generalized
// into an explicit bounded retry instead of unbounded recursion.
func Allocate(blocks [][]ir.Instruction) (*Result, error) {
	palette := Palette()
	exempt := ir.NewVarSet()

	for round := 0; round < MaxSpillRounds; round++ {
		flat := flatten(blocks)
		g, err := cfg.Build(flat)
		if err != nil {
			return nil, err
		}
		live := liveness.Compute(g)
		graph := Build(live.PerInstr)

		Coalesce(blocks, graph)

		// Coalescing can remove instructions (and thus interferences);
		// rebuild before coloring.
		flat = flatten(blocks)
		g, err = cfg.Build(flat)
		if err != nil {
			return nil, err
		}
		live = liveness.Compute(g)
		graph = Build(live.PerInstr)

		coloring, ok := Color(graph, palette)
		if ok {
			coloring.Apply(blocks)
			return &Result{Blocks: blocks, Coloring: coloring, Rounds: round + 1}, nil
		}

		spilled, ok := SelectSpill(graph, blocks, exempt)
		if !ok {
			return nil, ErrNonColorable
		}
		introduced := Rewrite(blocks, []ir.Var{spilled})
		exempt = introduced
	}
	return nil, ErrNonColorable
}

func flatten(blocks [][]ir.Instruction) []ir.Instruction {
	var out []ir.Instruction
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}
