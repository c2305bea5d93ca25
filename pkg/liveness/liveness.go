// Package liveness computes per-instruction and per-block live-variable
// sets over a function's basic blocks, grounded on
// orig:drak/middle_end/liveness.go's GEN/KILL/liveness/block_liveness2.
package liveness

import (
	"github.com/29jm/drak-lang/pkg/cfg"
	"github.com/29jm/drak-lang/pkg/ir"
)

// Gen returns the set of variables read by an instruction before it
// defines anything -- the variables that must already be alive for the
// instruction to execute correctly.
func Gen(in ir.Instruction) ir.VarSet { return ir.NewVarSet(ir.Reads(in)...) }

// Kill returns the set of variables an instruction defines.
func Kill(in ir.Instruction) ir.VarSet { return ir.NewVarSet(ir.Writes(in)...) }

// BlockLiveness computes, for a single basic block, the live-variable set
// immediately before each instruction, given the set of variables live at
// the block's exit (outLive). The backward scan mirrors
// orig:drak/middle_end/liveness.py's liveness: live = (live - killed) | gen,
// walked from the block's last instruction to its first.
func BlockLiveness(instrs []ir.Instruction, outLive ir.VarSet) []ir.VarSet {
	live := outLive.Clone()
	result := make([]ir.VarSet, len(instrs))
	for i := len(instrs) - 1; i >= 0; i-- {
		live = live.Sub(Kill(instrs[i])).Union(Gen(instrs[i]))
		result[i] = live
	}
	return result
}

// Result holds the whole-function liveness solution: LiveIn[b] is the set
// of variables live at the entry of block b, and PerInstr[b] is the
// per-instruction live-before set within block b (as returned by
// BlockLiveness, given block b's computed out-state).
type Result struct {
	LiveIn   []ir.VarSet
	PerInstr [][]ir.VarSet
}

// Compute runs the backward worklist fixed-point over g to find, for every
// block, the set of variables live on entry, then derives per-instruction
// live sets within each block from those boundary solutions. Grounded on
// orig:drak/middle_end/liveness.py's block_liveness2 (the clean worklist
// formulation mandated over the recursive, edge-memoized block_liveness).
func Compute(g *cfg.Graph) Result {
	n := len(g.Blocks)
	liveIn := make([]ir.VarSet, n)
	for i := range liveIn {
		liveIn[i] = ir.NewVarSet()
	}

	worklist := make([]int, n)
	onList := make([]bool, n)
	for i := range worklist {
		worklist[i] = i
		onList[i] = true
	}

	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		onList[b] = false

		outState := ir.NewVarSet()
		for _, s := range g.Succ[b] {
			outState = outState.Union(liveIn[s])
		}

		perInstr := BlockLiveness(g.Blocks[b].Instrs, outState)
		var alive ir.VarSet
		if len(perInstr) > 0 {
			alive = perInstr[0]
		} else {
			alive = outState
		}

		if !alive.Equal(liveIn[b]) {
			liveIn[b] = alive
			for _, p := range g.Predecessors(b) {
				if !onList[p] {
					worklist = append(worklist, p)
					onList[p] = true
				}
			}
		}
	}

	perInstr := make([][]ir.VarSet, n)
	for b := range g.Blocks {
		outState := ir.NewVarSet()
		for _, s := range g.Succ[b] {
			outState = outState.Union(liveIn[s])
		}
		perInstr[b] = BlockLiveness(g.Blocks[b].Instrs, outState)
	}

	return Result{LiveIn: liveIn, PerInstr: perInstr}
}

// LiveOut returns the variables live immediately after block b, i.e. the
// union of the live-in sets of its successors.
func (r Result) LiveOut(g *cfg.Graph, b int) ir.VarSet {
	out := ir.NewVarSet()
	for _, s := range g.Succ[b] {
		out = out.Union(r.LiveIn[s])
	}
	return out
}
