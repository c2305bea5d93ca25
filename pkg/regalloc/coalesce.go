package regalloc

import "github.com/29jm/drak-lang/pkg/ir"

// isCopy reports whether in is a single-source, single-destination mov
// (orig:drak/middle_end/ir_utils.py's is_copy_instruction).
func isCopy(in ir.Instruction) bool {
	return in.Op == ir.OpMov &&
		len(ir.ReadsFiltered(in, true)) == 1 &&
		len(ir.WritesFiltered(in, true)) == 1
}

func renameVar(blocks [][]ir.Instruction, src, dst ir.Var) {
	for n, instrs := range blocks {
		for i, in := range instrs {
			blocks[n][i] = renameInstr(in, src, dst)
		}
	}
}

func renameInstr(in ir.Instruction, src, dst ir.Var) ir.Instruction {
	in.Operands = renameOperandList(in.Operands, src, dst)
	return in
}

func renameOperandList(ops []ir.Operand, src, dst ir.Var) []ir.Operand {
	out := make([]ir.Operand, len(ops))
	for i, o := range ops {
		switch o.Kind {
		case ir.OperandVar:
			if o.Var == src {
				out[i] = ir.VarOperand(dst)
			} else {
				out[i] = o
			}
		case ir.OperandList:
			out[i] = ir.List(renameOperandList(o.List, src, dst)...)
		case ir.OperandAddress:
			addr := *o.Addr
			if addr.Base.IsVar() && addr.Base.Var == src {
				addr.Base = ir.VarOperand(dst)
			}
			if addr.Offset.IsVar() && addr.Offset.Var == src {
				addr.Offset = ir.VarOperand(dst)
			}
			out[i] = ir.AddressOperand(addr)
		default:
			out[i] = o
		}
	}
	return out
}

// Coalesce removes copies whose source and destination can share a
// register: self-copies are deleted outright, and a copy whose
// destination does not interfere with its source, with neither endpoint
// pre-colored, is eliminated by renaming every occurrence of the
// destination to the source. A pre-colored source is just as unsafe to
// merge as a pre-colored destination: renaming the destination onto a
// fixed register forces that register live across the destination's
// whole use-chain, which can create new conflicts with unrelated uses of
// the same physical register elsewhere in the function. graph must
// reflect the interference structure of blocks before coalescing begins.
// Mirrors orig:drak/middle_end/liveness.py's coalesce.
func Coalesce(blocks [][]ir.Instruction, graph Graph) {
	for n := range blocks {
		i := 0
		for i < len(blocks[n]) {
			in := blocks[n][i]
			written := ir.Writes(in)
			read := ir.Reads(in)
			if len(written) == 0 || len(read) == 0 {
				i++
				continue
			}

			copyRelated := isCopy(in)
			interferes := len(written) == 1 && graph.neighbors(read[0]).Has(written[0])
			fixedDst := len(written) == 1 && written[0].IsFixed()
			fixedSrc := len(read) == 1 && read[0].IsFixed()
			selfCopy := copyRelated && written[0] == read[0]

			switch {
			case selfCopy:
				blocks[n] = append(blocks[n][:i], blocks[n][i+1:]...)
			case copyRelated && !interferes && !fixedDst && !fixedSrc:
				renameVar(blocks, written[0], read[0])
				blocks[n] = append(blocks[n][:i], blocks[n][i+1:]...)
			default:
				i++
			}
		}
	}
}
