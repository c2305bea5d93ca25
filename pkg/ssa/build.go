// Package ssa constructs and deconstructs static single assignment form
// over a function's basic blocks: phi-insertion at dominance-frontier
// join points, dominator-tree-driven renaming, and phi-lowering back to
// plain copies. Grounded on orig:drak/middle_end/ssa.py's phi_insertion,
// renumber_variables, and simpliphy.
package ssa

import (
	"sort"

	"github.com/29jm/drak-lang/pkg/cfg"
	"github.com/29jm/drak-lang/pkg/ir"
	"github.com/29jm/drak-lang/pkg/liveness"
)

// Blocks is a function's basic blocks as independently mutable
// instruction slices, indexed identically to the cfg.Graph they were
// built from. Phi-insertion and renaming both mutate in place.
type Blocks [][]ir.Instruction

// FromGraph copies a cfg.Graph's block contents into a mutable Blocks.
func FromGraph(g *cfg.Graph) Blocks {
	out := make(Blocks, len(g.Blocks))
	for i, b := range g.Blocks {
		out[i] = append([]ir.Instruction(nil), b.Instrs...)
	}
	return out
}

func definitionsInBlock(instrs []ir.Instruction) ir.VarSet {
	s := ir.NewVarSet()
	for _, in := range instrs {
		for _, v := range ir.Writes(in) {
			s.Add(v.Base())
		}
	}
	return s
}

func leadsWithLabel(instrs []ir.Instruction) bool {
	if len(instrs) == 0 {
		return false
	}
	_, ok := instrs[0].DefinedLabel()
	return ok
}

// InsertPhis places phi instructions at each variable's iterated
// dominance frontier, restricted to variables live across a block
// boundary somewhere in the function (the "globals" set of
// orig:drak/middle_end/ssa.py's phi_insertion). live is the whole-function
// liveness solution computed before entering SSA form.
func InsertPhis(blocks Blocks, g *cfg.Graph, dom *cfg.Dominance, live liveness.Result) {
	defsites := map[ir.Var]map[int]struct{}{}
	hasPhiFor := make([]ir.VarSet, len(blocks))
	for n, instrs := range blocks {
		hasPhiFor[n] = ir.NewVarSet()
		for v := range definitionsInBlock(instrs) {
			if defsites[v] == nil {
				defsites[v] = map[int]struct{}{}
			}
			defsites[v][n] = struct{}{}
		}
	}

	globals := ir.NewVarSet()
	for _, s := range live.LiveIn {
		globals = globals.Union(s)
	}

	for v := range defsites {
		if v.IsFixed() || !globals.Has(v) {
			continue
		}
		worklist := make([]int, 0, len(defsites[v]))
		inWorklist := map[int]bool{}
		for n := range defsites[v] {
			worklist = append(worklist, n)
			inWorklist[n] = true
		}
		for len(worklist) > 0 {
			n := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			inWorklist[n] = false

			for _, y := range dom.FrontierOf(n) {
				if hasPhiFor[y].Has(v) {
					continue
				}
				preds := g.Predecessors(y)
				sort.Ints(preds)
				args := make([]ir.Operand, len(preds))
				for i := range preds {
					args[i] = ir.VarOperand(v)
				}
				phi := ir.Instruction{Op: ir.OpPhi, Operands: []ir.Operand{ir.VarOperand(v), ir.List(args...)}}
				insertAt := 0
				if leadsWithLabel(blocks[y]) {
					insertAt = 1
				}
				blocks[y] = insertInstr(blocks[y], insertAt, phi)
				hasPhiFor[y].Add(v)

				if !definitionsInBlock(blocks[y]).Has(v) {
					if !inWorklist[y] {
						worklist = append(worklist, y)
						inWorklist[y] = true
					}
				}
			}
		}
	}
}

func insertInstr(instrs []ir.Instruction, at int, in ir.Instruction) []ir.Instruction {
	out := make([]ir.Instruction, 0, len(instrs)+1)
	out = append(out, instrs[:at]...)
	out = append(out, in)
	out = append(out, instrs[at:]...)
	return out
}

// renameState carries the per-variable counters and version stacks used
// during dominator-tree renaming.
type renameState struct {
	counts map[ir.Var]int
	stacks map[ir.Var][]int
}

func newRenameState(blocks Blocks) *renameState {
	rs := &renameState{counts: map[ir.Var]int{}, stacks: map[ir.Var][]int{}}
	for _, instrs := range blocks {
		for v := range definitionsInBlock(instrs) {
			if v.IsFixed() {
				continue
			}
			if _, ok := rs.counts[v]; !ok {
				rs.counts[v] = 0
				rs.stacks[v] = nil
			}
		}
	}
	return rs
}

func (rs *renameState) top(v ir.Var) (ir.Var, bool) {
	stack := rs.stacks[v.Base()]
	if len(stack) == 0 {
		return ir.Var{}, false
	}
	return v.Versioned(stack[len(stack)-1]), true
}

func (rs *renameState) push(v ir.Var) ir.Var {
	base := v.Base()
	rs.counts[base]++
	idx := rs.counts[base]
	rs.stacks[base] = append(rs.stacks[base], idx)
	return v.Versioned(idx)
}

func (rs *renameState) pop(v ir.Var) {
	base := v.Base()
	stack := rs.stacks[base]
	if len(stack) > 0 {
		rs.stacks[base] = stack[:len(stack)-1]
	}
}

func renameOperands(ops []ir.Operand, rename func(ir.Var) (ir.Var, bool)) []ir.Operand {
	out := make([]ir.Operand, len(ops))
	for i, o := range ops {
		switch o.Kind {
		case ir.OperandVar:
			if nv, ok := rename(o.Var); ok {
				out[i] = ir.VarOperand(nv)
			} else {
				out[i] = o
			}
		case ir.OperandList:
			out[i] = ir.List(renameOperands(o.List, rename)...)
		case ir.OperandAddress:
			addr := *o.Addr
			if addr.Base.IsVar() {
				if nv, ok := rename(addr.Base.Var); ok {
					addr.Base = ir.VarOperand(nv)
				}
			}
			if addr.Offset.IsVar() {
				if nv, ok := rename(addr.Offset.Var); ok {
					addr.Offset = ir.VarOperand(nv)
				}
			}
			out[i] = ir.AddressOperand(addr)
		default:
			out[i] = o
		}
	}
	return out
}

func renameReadOperands(in ir.Instruction, rs *renameState) ir.Instruction {
	reads := ir.NewVarSet(ir.ReadsFiltered(in, false)...)
	in.Operands = renameOperands(in.Operands, func(v ir.Var) (ir.Var, bool) {
		if !reads.Has(v) {
			return v, false
		}
		return rs.top(v)
	})
	return in
}

func renameWrittenOperands(in ir.Instruction, rs *renameState) ir.Instruction {
	writes := ir.NewVarSet(ir.WritesFiltered(in, false)...)
	renamed := map[ir.Var]ir.Var{}
	for v := range writes {
		renamed[v] = rs.push(v)
	}
	in.Operands = renameOperands(in.Operands, func(v ir.Var) (ir.Var, bool) {
		nv, ok := renamed[v]
		return nv, ok
	})
	return in
}

// RenameVariables renumbers every free (non-fixed) variable with SSA
// version suffixes by walking the dominator tree with an explicit stack
// rather than recursion, so a deep dominator tree cannot overflow the
// call stack. Mirrors orig:drak/middle_end/ssa.py's renumber_variables.
func RenameVariables(blocks Blocks, g *cfg.Graph, dom *cfg.Dominance) {
	rs := newRenameState(blocks)

	type frame struct {
		node int
		exit bool
	}
	stack := []frame{{node: 0}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.exit {
			for v := range definitionsInBlock(blocks[f.node]) {
				if !v.IsFixed() {
					rs.pop(v)
				}
			}
			continue
		}

		for i, in := range blocks[f.node] {
			if in.Op == ir.OpPhi {
				blocks[f.node][i] = renameWrittenOperands(in, rs)
				continue
			}
			orig := in
			in = renameReadOperands(in, rs)
			// renameReadOperands renames by value, so in `add d, d, s` it also
			// rewrote the written slot; put the pre-rename variable back in
			// every write-only slot so only that slot gets the new version.
			probeVar := ir.Var{Class: ir.VarFree, Num: -1, Version: -1}
			for j := range orig.Operands {
				probe := orig
				probe.Operands = append([]ir.Operand(nil), orig.Operands...)
				probe.Operands[j] = ir.VarOperand(probeVar)
				if ir.NewVarSet(ir.Writes(probe)...).Has(probeVar) && !ir.NewVarSet(ir.Reads(probe)...).Has(probeVar) {
					in.Operands[j] = orig.Operands[j]
				}
			}
			in = renameWrittenOperands(in, rs)
			blocks[f.node][i] = in
		}

		for _, succ := range g.Succ[f.node] {
			preds := g.Predecessors(succ)
			sort.Ints(preds)
			predNo := sort.SearchInts(preds, f.node)
			for j, in := range blocks[succ] {
				if in.Op != ir.OpPhi {
					continue
				}
				args := in.Operands[1].List
				if predNo >= len(args) {
					continue
				}
				arg := args[predNo]
				if !arg.IsVar() || arg.Var.IsFixed() {
					continue
				}
				if nv, ok := rs.top(arg.Var); ok {
					args[predNo] = ir.VarOperand(nv)
				}
				blocks[succ][j].Operands[1] = ir.List(args...)
			}
		}

		stack = append(stack, frame{node: f.node, exit: true})
		children := append([]int(nil), dom.Children[f.node]...)
		sort.Sort(sort.Reverse(sort.IntSlice(children)))
		for _, c := range children {
			stack = append(stack, frame{node: c})
		}
	}
}

// Build runs the full SSA-construction pipeline over blocks: phi
// insertion followed by dominator-tree renaming.
func Build(blocks Blocks, g *cfg.Graph, dom *cfg.Dominance, live liveness.Result) {
	InsertPhis(blocks, g, dom, live)
	RenameVariables(blocks, g, dom)
}
