package regalloc

import "github.com/29jm/drak-lang/pkg/ir"

// Cost returns, for every variable appearing in graph, the number of
// instructions across blocks that read or write it, with a heavy penalty
// added for pre-colored (fixed) variables so they are effectively never
// selected as a spill candidate. Mirrors
// orig:drak/middle_end/coloring.py's spillcosts.
func Cost(graph Graph, blocks [][]ir.Instruction) map[ir.Var]int {
	costs := make(map[ir.Var]int, len(graph))
	for _, instrs := range blocks {
		for _, in := range instrs {
			touched := ir.NewVarSet(ir.Reads(in)...).Union(ir.NewVarSet(ir.Writes(in)...))
			for v := range touched {
				if _, ok := graph[v]; !ok {
					continue
				}
				costs[v]++
				if v.IsFixed() {
					costs[v] += 1000
				}
			}
		}
	}
	return costs
}

// SelectSpill picks the least costly colorable candidate to spill next,
// weighting cost against the node's current degree so a cheap, highly
// connected variable is preferred over an expensive, lightly connected
// one: min(cost[n] / (degree[n] + 0.5)). Pre-colored variables and any
// variable in exempt (freshly introduced spill temporaries from this same
// rewrite pass) are never candidates. Mirrors
// orig:drak/middle_end/coloring.go's regalloc's inner selection step.
func SelectSpill(graph Graph, blocks [][]ir.Instruction, exempt ir.VarSet) (ir.Var, bool) {
	costs := Cost(graph, blocks)
	best := ir.Var{}
	bestRatio := 0.0
	found := false
	for v, cost := range costs {
		if v.IsFixed() || exempt.Has(v) {
			continue
		}
		ratio := float64(cost) / (float64(len(graph[v])) + 0.5)
		if !found || ratio < bestRatio {
			best, bestRatio, found = v, ratio, true
		}
	}
	return best, found
}

// Rewrite spills every variable in spills to its own stack slot: a
// `sub sp, sp, #n` frame adjustment is inserted right after the entry
// block's first instruction (its func_def), and every read/write of a spilled variable is replaced by a
// fresh ir.NewSpill temporary loaded from (memload) or stored to
// (memstore) its slot immediately around the using instruction. Mirrors
// orig:drak/middle_end/coloring.py's spillvars; returns the fresh spill
// variables introduced, for the caller's "never re-spill this pass"
// exemption on the next Color/SelectSpill round.
func Rewrite(blocks [][]ir.Instruction, spills []ir.Var) ir.VarSet {
	// Slots and REGSPILL temporaries left by earlier Rewrite calls on the
	// same blocks are still in use; number the new ones after them.
	nextSlot, nextSpillNum := 0, 0
	for _, instrs := range blocks {
		for _, in := range instrs {
			if (in.Op != ir.OpMemLoad && in.Op != ir.OpMemStore) || len(in.Operands) != 2 ||
				!in.Operands[0].IsVar() || in.Operands[0].Var.Class != ir.VarSpill {
				continue
			}
			nextSpillNum = max(nextSpillNum, in.Operands[0].Var.Num+1)
			nextSlot = max(nextSlot, int(-in.Operands[1].Addr.Offset.Imm/4))
		}
	}
	offsets := make(map[ir.Var]int64, len(spills))
	for i, v := range spills {
		offsets[v] = -int64(4 + 4*(nextSlot+i))
	}
	stackspace := int64(4*len(spills) + 4)

	if len(blocks) > 0 {
		frameAdj := ir.Instruction{Op: ir.OpSub, Operands: []ir.Operand{
			ir.PhysReg("sp"), ir.PhysReg("sp"), ir.Imm(stackspace),
		}}
		insertAt := 1
		if len(blocks[0]) < insertAt {
			insertAt = len(blocks[0])
		}
		blocks[0] = insertInstr(blocks[0], insertAt, frameAdj)
	}

	introduced := ir.NewVarSet()
	spillSet := ir.NewVarSet(spills...)

	for n := range blocks {
		i := 0
		for i < len(blocks[n]) {
			in := blocks[n][i]
			reads := ir.NewVarSet(ir.Reads(in)...).Intersect(spillSet)
			writes := ir.NewVarSet(ir.Writes(in)...).Intersect(spillSet)
			readWrite := reads.Intersect(writes)
			readOnly := reads.Sub(readWrite)
			writeOnly := writes.Sub(readWrite)
			storesAdded := 0

			// Variables both read and written by in (the common `add d,d,s`
			// shape) must be loaded and stored through the same temp: renaming
			// already replaced every occurrence of v in in by the time the
			// write-side would otherwise look for it, so a second, distinct
			// temp for the write side would silently drop the computed result.
			for v := range readWrite {
				tmp := ir.NewSpill(nextSpillNum)
				nextSpillNum++
				introduced.Add(tmp)
				load := ir.Instruction{Op: ir.OpMemLoad, Operands: []ir.Operand{
					ir.VarOperand(tmp),
					ir.AddressOperand(ir.Address{Base: ir.PhysReg("sp"), Offset: ir.Imm(offsets[v])}),
				}}
				renameInstrOperand(&in, v, tmp)
				blocks[n] = insertInstr(blocks[n], i, load)
				i++
				store := ir.Instruction{Op: ir.OpMemStore, Operands: []ir.Operand{
					ir.VarOperand(tmp),
					ir.AddressOperand(ir.Address{Base: ir.PhysReg("sp"), Offset: ir.Imm(offsets[v])}),
				}}
				blocks[n][i] = in
				blocks[n] = insertInstr(blocks[n], i+1, store)
				storesAdded++
			}
			for v := range readOnly {
				tmp := ir.NewSpill(nextSpillNum)
				nextSpillNum++
				introduced.Add(tmp)
				load := ir.Instruction{Op: ir.OpMemLoad, Operands: []ir.Operand{
					ir.VarOperand(tmp),
					ir.AddressOperand(ir.Address{Base: ir.PhysReg("sp"), Offset: ir.Imm(offsets[v])}),
				}}
				renameInstrOperand(&in, v, tmp)
				blocks[n] = insertInstr(blocks[n], i, load)
				i++
			}
			for v := range writeOnly {
				tmp := ir.NewSpill(nextSpillNum)
				nextSpillNum++
				introduced.Add(tmp)
				store := ir.Instruction{Op: ir.OpMemStore, Operands: []ir.Operand{
					ir.VarOperand(tmp),
					ir.AddressOperand(ir.Address{Base: ir.PhysReg("sp"), Offset: ir.Imm(offsets[v])}),
				}}
				renameInstrOperand(&in, v, tmp)
				blocks[n][i] = in
				blocks[n] = insertInstr(blocks[n], i+1, store)
				storesAdded++
			}
			blocks[n][i] = in
			i += 1 + storesAdded
		}
	}
	return introduced
}

func renameInstrOperand(in *ir.Instruction, src, dst ir.Var) {
	in.Operands = renameOperandList(in.Operands, src, dst)
}

func insertInstr(instrs []ir.Instruction, at int, in ir.Instruction) []ir.Instruction {
	out := make([]ir.Instruction, 0, len(instrs)+1)
	out = append(out, instrs[:at]...)
	out = append(out, in)
	out = append(out, instrs[at:]...)
	return out
}
