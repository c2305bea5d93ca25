// Package compile drives a single function through the full mid-end
// pipeline — block splitting, dominance, liveness, SSA construction and
// lowering, coalescing, and register allocation with iterated spilling
// — and exposes a worker pool for running that pipeline over a batch of
// functions, mirroring pkg/search's task/worker split adapted from
// "search candidate instruction sequences" to "compile IR functions".
package compile

import (
	"fmt"

	"github.com/29jm/drak-lang/pkg/cfg"
	"github.com/29jm/drak-lang/pkg/ir"
	"github.com/29jm/drak-lang/pkg/liveness"
	"github.com/29jm/drak-lang/pkg/regalloc"
	"github.com/29jm/drak-lang/pkg/ssa"
)

// Function is the mid-end's unit of input: one function's flat,
// front-end-produced instruction stream (func_def first, func_ret last
// on every exit path).
type Function struct {
	Name   string
	Instrs []ir.Instruction
}

// Result is a completed compilation: the final, fully-colored
// basic blocks (physical registers only, no PHI, addressing forms
// lowered to ldr/str) plus diagnostics collected along the way.
type Result struct {
	Name        string
	Blocks      [][]ir.Instruction
	Coloring    regalloc.Coloring
	SpillRounds int
	Dropped     []int // indices of unreachable blocks discarded before dominance
}

// Compile runs one function through the state machine: split into
// blocks, build the CFG and dominator tree, compute liveness, build and
// lower SSA, then hand off to regalloc for coalescing, coloring, and
// iterated spilling; finally emit physical-register-only blocks with
// memory pseudo-ops lowered to concrete ldr/str. Mirrors spec.md §4.6's
// per-function pipeline.
func Compile(fn Function) (*Result, error) {
	g, err := cfg.Build(fn.Instrs)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", fn.Name, err)
	}

	dropped := g.Unreachable()
	if len(dropped) > 0 {
		g = dropUnreachable(g, dropped)
	}

	dom := cfg.ComputeDominance(g)
	live := liveness.Compute(g)

	blocks := ssa.FromGraph(g)
	ssa.Build(blocks, g, dom, live)
	ssa.Lower(blocks)

	alloc, err := regalloc.Allocate(blocks)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", fn.Name, err)
	}

	emitted := emit(alloc.Blocks)
	return &Result{
		Name:        fn.Name,
		Blocks:      emitted,
		Coloring:    alloc.Coloring,
		SpillRounds: alloc.Rounds - 1,
		Dropped:     dropped,
	}, nil
}

// emit lowers the backend-internal memory pseudo-ops spill rewriting
// introduced (memload/memstore) to their concrete ldr/str equivalents,
// satisfying the output contract that no REG*-namespace pseudo-ops
// survive past the mid-end other than stackalloc, which remains opaque
// to this pipeline (see DESIGN.md's "stackalloc" decision) since it is
// a front-end-owned allocation, not one this pipeline introduces.
func emit(blocks [][]ir.Instruction) [][]ir.Instruction {
	out := make([][]ir.Instruction, len(blocks))
	for i, instrs := range blocks {
		converted := make([]ir.Instruction, len(instrs))
		for j, in := range instrs {
			switch in.Op {
			case ir.OpMemLoad:
				converted[j] = ir.Instruction{Op: ir.OpLdr, Operands: in.Operands}
			case ir.OpMemStore:
				converted[j] = ir.Instruction{Op: ir.OpStr, Operands: in.Operands}
			default:
				converted[j] = in
			}
		}
		out[i] = converted
	}
	return out
}

// dropUnreachable rebuilds a graph with the given block indices removed
// and every successor/predecessor index renumbered accordingly. Spec
// §7's dominance-failure policy: unreachable blocks are discarded
// before dominance is computed, with their indices reported as
// diagnostics rather than aborting the function.
func dropUnreachable(g *cfg.Graph, dropped []int) *cfg.Graph {
	drop := make(map[int]bool, len(dropped))
	for _, i := range dropped {
		drop[i] = true
	}
	remap := make(map[int]int, len(g.Blocks))
	blocks := make([]cfg.Block, 0, len(g.Blocks)-len(dropped))
	for i, b := range g.Blocks {
		if drop[i] {
			continue
		}
		remap[i] = len(blocks)
		blocks = append(blocks, b)
	}
	succ := make([][]int, len(blocks))
	for i := range g.Blocks {
		if drop[i] {
			continue
		}
		var s []int
		for _, to := range g.Succ[i] {
			if !drop[to] {
				s = append(s, remap[to])
			}
		}
		succ[remap[i]] = s
	}
	return &cfg.Graph{Blocks: blocks, Succ: succ}
}
