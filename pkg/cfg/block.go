// Package cfg partitions a function's flat instruction stream into basic
// blocks and computes the control-flow and dominance structures the rest
// of the pipeline builds on: successors, dominator sets, immediate
// dominators, the dominator tree, and dominance frontiers.
package cfg

import "github.com/29jm/drak-lang/pkg/ir"

// Block is a maximal run of instructions with no jumps except possibly the
// last one. Start is the index of the block's first instruction in the
// owning function's Instrs slice; this lets callers translate between
// block-local and whole-function instruction indices.
type Block struct {
	Start  int
	Instrs []ir.Instruction
}

// Last returns the block's terminating instruction. Every block has at
// least one instruction by construction.
func (b Block) Last() ir.Instruction { return b.Instrs[len(b.Instrs)-1] }

// Graph holds a function's basic blocks, indexed 0..len(Blocks)-1 with
// block 0 the function's entry, plus the control-flow edges between them.
// Successors of a block with no outgoing edges fall through to the
// function's implicit end (spec.md's clean no-sentinel model: an empty
// successor slice means "returns/exits here", not a synthetic -1 node).
type Graph struct {
	Blocks []Block
	Succ   [][]int
}

// isLocalJump reports whether in can end a block with a local
// control-flow edge: every jump form except bl, which calls out to
// another function and returns control to the very next instruction
// (spec.md's "out-of-function branches do not split the caller's
// block").
func isLocalJump(in ir.Instruction) bool {
	return in.Op != ir.OpBl && in.IsJump()
}

// Split partitions instrs into basic blocks using the leader rule:
// the first instruction, any instruction that defines a label, and any
// instruction immediately following a local jump, are all leaders
// (grounded on orig:drak/compiler/ir_utils.py's basic_blocks; bl is
// excluded since a subroutine call falls through to its own next
// instruction rather than branching).
func Split(instrs []ir.Instruction) []Block {
	if len(instrs) == 0 {
		return nil
	}
	leaders := []int{0}
	for i, in := range instrs {
		if i == 0 {
			continue
		}
		if _, ok := in.DefinedLabel(); ok {
			leaders = append(leaders, i)
			continue
		}
		if isLocalJump(instrs[i-1]) {
			leaders = append(leaders, i)
		}
	}
	blocks := make([]Block, 0, len(leaders))
	for i, start := range leaders {
		end := len(instrs)
		if i+1 < len(leaders) {
			end = leaders[i+1]
		}
		blocks = append(blocks, Block{Start: start, Instrs: instrs[start:end]})
	}
	return blocks
}

// labelIndex maps a label name to the index of the block whose leading
// instruction defines it.
func labelIndex(blocks []Block) map[string]int {
	idx := make(map[string]int, len(blocks))
	for i, b := range blocks {
		if label, ok := b.Instrs[0].DefinedLabel(); ok {
			idx[label] = i
		}
	}
	return idx
}

// successors returns the successor block indices of blocks[i] (grounded on
// orig:drak/middle_end/ir_utils.py's block_successors, adapted to the
// clean model: func_ret and bx yield no successors instead of a -1
// sentinel). A block ending in bl falls through to the next block like
// a non-jump, since bl is a call to another function's code, not a
// local branch.
func successors(blocks []Block, labels map[string]int, i int) ([]int, error) {
	last := blocks[i].Last()
	if !isLocalJump(last) && last.Op != ir.OpFuncRet {
		if i+1 < len(blocks) {
			return []int{i + 1}, nil
		}
		return nil, nil
	}
	if last.Op == ir.OpFuncRet || last.Op == ir.OpBx {
		return nil, nil
	}
	target, ok := last.TargetLabel()
	if !ok {
		return nil, &ir.MalformedIRError{Index: blocks[i].Start + len(blocks[i].Instrs) - 1, Instr: last, Msg: "jump with no target label"}
	}
	tgt, ok := labels[target]
	if !ok {
		return nil, &ir.MalformedIRError{Index: blocks[i].Start + len(blocks[i].Instrs) - 1, Instr: last, Msg: "jump target label not defined: " + target}
	}
	if last.IsConditionalJump() {
		fallthroughIdx := i + 1
		if fallthroughIdx >= len(blocks) {
			return []int{tgt}, nil
		}
		return []int{tgt, fallthroughIdx}, nil
	}
	return []int{tgt}, nil
}

// Build computes the control-flow graph of a function's basic blocks.
func Build(instrs []ir.Instruction) (*Graph, error) {
	blocks := Split(instrs)
	labels := labelIndex(blocks)
	succ := make([][]int, len(blocks))
	for i := range blocks {
		s, err := successors(blocks, labels, i)
		if err != nil {
			return nil, err
		}
		succ[i] = s
	}
	return &Graph{Blocks: blocks, Succ: succ}, nil
}

// Predecessors returns the indices of blocks with an edge into block n.
func (g *Graph) Predecessors(n int) []int {
	var preds []int
	for b, succs := range g.Succ {
		for _, s := range succs {
			if s == n {
				preds = append(preds, b)
				break
			}
		}
	}
	return preds
}

// Unreachable returns the indices of blocks not reachable from block 0 via
// a forward BFS over Succ (spec §4.2's dominance-failure precondition:
// callers should remove unreachable blocks from the graph before computing
// dominance over it, as compile.Compile does).
func (g *Graph) Unreachable() []int {
	seen := make([]bool, len(g.Blocks))
	if len(g.Blocks) == 0 {
		return nil
	}
	queue := []int{0}
	seen[0] = true
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, s := range g.Succ[n] {
			if !seen[s] {
				seen[s] = true
				queue = append(queue, s)
			}
		}
	}
	var unreached []int
	for i, ok := range seen {
		if !ok {
			unreached = append(unreached, i)
		}
	}
	return unreached
}
