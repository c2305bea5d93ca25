package cfg

import (
	"fmt"
	"strings"
	"testing"

	"github.com/29jm/drak-lang/pkg/ir"
)

// straightLine builds: func_def, mov, add, func_ret -- a single block.
func straightLine() []ir.Instruction {
	d := ir.NewFree(4)
	return []ir.Instruction{
		{Op: ir.OpFuncDef, Operands: []ir.Operand{ir.Label("f")}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(d), ir.Imm(1)}},
		{Op: ir.OpFuncRet, Operands: []ir.Operand{ir.VarOperand(d)}},
	}
}

// ifThenElse builds a diamond CFG:
//
//	b0: cmp; beq .else
//	b1 (then): mov; b .end
//	b2 (else, label .else): mov
//	b3 (end, label .end): func_ret
func ifThenElse() []ir.Instruction {
	r := ir.NewFree(1)
	return []ir.Instruction{
		{Op: ir.OpFuncDef, Operands: []ir.Operand{ir.Label("f")}},
		{Op: ir.OpCmp, Operands: []ir.Operand{ir.VarOperand(r), ir.Imm(0)}},
		{Op: ir.OpBCond, Cond: ir.CondEQ, Operands: []ir.Operand{ir.Label(".else")}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(r), ir.Imm(1)}},
		{Op: ir.OpB, Operands: []ir.Operand{ir.Label(".end")}},
		{Op: ir.OpLabel, Operands: []ir.Operand{ir.LabelDef(".else")}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(r), ir.Imm(2)}},
		{Op: ir.OpLabel, Operands: []ir.Operand{ir.LabelDef(".end")}},
		{Op: ir.OpFuncRet, Operands: []ir.Operand{ir.VarOperand(r)}},
	}
}

func TestSplitStraightLine(t *testing.T) {
	blocks := Split(straightLine())
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	if len(blocks[0].Instrs) != 3 {
		t.Fatalf("got %d instrs in block, want 3", len(blocks[0].Instrs))
	}
}

func TestBuildDiamondCFG(t *testing.T) {
	g, err := Build(ifThenElse())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	// Leaders: 0 (func_def+cmp+beq), 3 (mov+b, following the beq), 5
	// (.else: label+mov, both a label leader and follows the b), 7 (.end:
	// label+func_ret, a label leader).
	if len(g.Blocks) != 4 {
		t.Fatalf("got %d blocks, want 4: %+v", len(g.Blocks), g.Blocks)
	}
	if got := g.Succ[0]; len(got) != 2 {
		t.Fatalf("entry block successors = %v, want 2 (then-fallthrough and else-target)", got)
	}
	if len(g.Unreachable()) != 0 {
		t.Fatalf("diamond CFG reported unreachable blocks: %v", g.Unreachable())
	}
}

// straightLineWithCall builds a function that calls out to another
// function mid-block: func_def, mov, bl callee, mov, func_ret. The bl
// must not split the block or be treated as a local jump.
func straightLineWithCall() []ir.Instruction {
	d := ir.NewFree(4)
	return []ir.Instruction{
		{Op: ir.OpFuncDef, Operands: []ir.Operand{ir.Label("f")}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(d), ir.Imm(1)}},
		{Op: ir.OpBl, Operands: []ir.Operand{ir.Label("callee")}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(d), ir.Imm(2)}},
		{Op: ir.OpFuncRet, Operands: []ir.Operand{ir.VarOperand(d)}},
	}
}

func TestSplitDoesNotBreakBlockOnCall(t *testing.T) {
	blocks := Split(straightLineWithCall())
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1: bl must not start a new block", len(blocks))
	}
	if len(blocks[0].Instrs) != 5 {
		t.Fatalf("got %d instrs in block, want 5", len(blocks[0].Instrs))
	}
}

func TestBuildFallsThroughAfterCall(t *testing.T) {
	g, err := Build(straightLineWithCall())
	if err != nil {
		t.Fatalf("Build failed on a function with a mid-block call: %v", err)
	}
	if len(g.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(g.Blocks))
	}
	if got := g.Succ[0]; len(got) != 0 {
		t.Fatalf("call-containing single block successors = %v, want none (ends in func_ret)", got)
	}
}

func TestBuildMalformedJumpTarget(t *testing.T) {
	instrs := []ir.Instruction{
		{Op: ir.OpFuncDef, Operands: []ir.Operand{ir.Label("f")}},
		{Op: ir.OpB, Operands: []ir.Operand{ir.Label(".nowhere")}},
	}
	if _, err := Build(instrs); err == nil {
		t.Fatalf("Build succeeded on a jump to an undefined label")
	}
}

func TestDominanceDiamond(t *testing.T) {
	g, err := Build(ifThenElse())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	dom := ComputeDominance(g)

	// Block 0 dominates everything.
	for b := range g.Blocks {
		if !dom.Dominates(0, b) {
			t.Errorf("entry block does not dominate block %d", b)
		}
	}
	// The merge block (.end, last block) is not dominated by either arm.
	end := len(g.Blocks) - 1
	for _, arm := range []int{1, 2} {
		if dom.Dominates(arm, end) {
			t.Errorf("arm block %d wrongly dominates merge block %d", arm, end)
		}
	}
	// Its dominance frontier membership: the merge point should appear in
	// the frontier of each arm (or of the entry, depending on which block
	// the arm collapses to) since both paths to it are not dominated by
	// a single non-entry block.
	frontierUnion := map[int]bool{}
	for b := range g.Blocks {
		for _, f := range dom.FrontierOf(b) {
			frontierUnion[f] = true
		}
	}
	if !frontierUnion[end] {
		t.Errorf("merge block %d does not appear in any dominance frontier", end)
	}
}

func TestDominanceStraightLine(t *testing.T) {
	g, err := Build(straightLine())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	dom := ComputeDominance(g)
	if dom.Idom[0] != -1 {
		t.Errorf("entry block idom = %d, want -1", dom.Idom[0])
	}
	for b := range g.Blocks {
		if len(dom.FrontierOf(b)) != 0 {
			t.Errorf("straight-line block %d has a non-empty dominance frontier: %v", b, dom.FrontierOf(b))
		}
	}
}

func TestDOTContainsOneNodePerBlockAndEdges(t *testing.T) {
	g, err := Build(ifThenElse())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	dot := g.DOT(nil)
	if !strings.HasPrefix(dot, "digraph G {") {
		t.Fatalf("DOT output missing digraph header: %s", dot)
	}
	for b := range g.Blocks {
		want := fmt.Sprintf("\t%d [label=", b)
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing node for block %d: %s", b, dot)
		}
	}
}

func TestDOTIncludesLiveInWhenProvided(t *testing.T) {
	g, err := Build(straightLine())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	d := ir.NewFree(4)
	liveIn := map[int]ir.VarSet{0: ir.NewVarSet(d)}
	dot := g.DOT(liveIn)
	if !strings.Contains(dot, "REG4") {
		t.Errorf("DOT with liveIn should mention REG4: %s", dot)
	}
}
