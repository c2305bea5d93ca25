package ssa

import "github.com/29jm/drak-lang/pkg/ir"

// Lower removes every phi instruction from blocks, replacing each
// x_i = phi(x_j, x_j', ...) with a plain copy `mov x_i, x_j` appended at
// the tail of the block that defines each x_j (before that block's
// terminating jump, if any). Grounded on orig:drak/middle_end/ssa.py's
// simpliphy.
func Lower(blocks Blocks) {
	defBlock := map[ir.Var]int{}
	for n, instrs := range blocks {
		for _, in := range instrs {
			for _, v := range ir.WritesFiltered(in, false) {
				defBlock[v] = n
			}
		}
	}

	for n := range blocks {
		i := 0
		for i < len(blocks[n]) {
			in := blocks[n][i]
			if in.Op != ir.OpPhi {
				i++
				continue
			}
			dst := in.Operands[0].Var
			args := in.Operands[1].List
			for _, arg := range args {
				if !arg.IsVar() {
					continue
				}
				src := arg.Var
				source, ok := defBlock[src]
				if !ok {
					source = n
				}
				copyIn := ir.Instruction{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(dst), ir.VarOperand(src)}}
				insertAt := len(blocks[source])
				if insertAt > 0 && blocks[source][insertAt-1].IsJump() {
					insertAt--
				}
				blocks[source] = insertInstr(blocks[source], insertAt, copyIn)
			}
			blocks[n] = append(blocks[n][:i], blocks[n][i+1:]...)
		}
	}
}
