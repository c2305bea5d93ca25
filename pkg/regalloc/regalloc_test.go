package regalloc

import (
	"strings"
	"testing"

	"github.com/29jm/drak-lang/pkg/cfg"
	"github.com/29jm/drak-lang/pkg/interp"
	"github.com/29jm/drak-lang/pkg/ir"
	"github.com/29jm/drak-lang/pkg/liveness"
)

func buildGraph(t *testing.T, instrs []ir.Instruction) Graph {
	t.Helper()
	g, err := cfg.Build(instrs)
	if err != nil {
		t.Fatalf("cfg.Build: %v", err)
	}
	live := liveness.Compute(g)
	return Build(live.PerInstr)
}

// chain of 3 simultaneously-live variables: all pairwise interfere.
func triangle() []ir.Instruction {
	a, b, c := ir.NewFree(1), ir.NewFree(2), ir.NewFree(3)
	return []ir.Instruction{
		{Op: ir.OpFuncDef, Operands: []ir.Operand{ir.Label("f")}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(a), ir.Imm(1)}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(b), ir.Imm(2)}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(c), ir.Imm(3)}},
		{Op: ir.OpAdd, Operands: []ir.Operand{ir.VarOperand(a), ir.VarOperand(a), ir.VarOperand(b)}},
		{Op: ir.OpAdd, Operands: []ir.Operand{ir.VarOperand(a), ir.VarOperand(a), ir.VarOperand(c)}},
		{Op: ir.OpFuncRet, Operands: []ir.Operand{ir.VarOperand(a)}},
	}
}

func TestInterferenceGraphTriangle(t *testing.T) {
	graph := buildGraph(t, triangle())
	a, b, c := ir.NewFree(1), ir.NewFree(2), ir.NewFree(3)
	if !graph[a].Has(b) || !graph[b].Has(a) {
		t.Errorf("a and b should interfere: %v / %v", graph[a], graph[b])
	}
	if !graph[a].Has(c) || !graph[b].Has(c) {
		t.Errorf("a/b should each interfere with c: %v / %v", graph[a], graph[b])
	}
}

func TestColorTriangleFitsInPalette(t *testing.T) {
	graph := buildGraph(t, triangle())
	coloring, ok := Color(graph, Palette())
	if !ok {
		t.Fatalf("triangle of 3 should color with a 9-register palette")
	}
	seen := map[int]bool{}
	for v, c := range coloring {
		if seen[c] && graph[v] != nil {
			// only a problem if the two same-colored vars interfere; check below
			_ = v
		}
	}
	// Direct pairwise check: no interfering pair shares a color.
	for v, neighbors := range graph {
		for n := range neighbors {
			if coloring[v] == coloring[n] {
				t.Fatalf("interfering vars %v and %v share color %d", v, n, coloring[v])
			}
		}
	}
}

func TestColorFailsWithTooSmallPalette(t *testing.T) {
	graph := buildGraph(t, triangle())
	_, ok := Color(graph, []int{4, 5})
	if ok {
		t.Fatalf("3-clique should not color with only 2 registers")
	}
}

func TestColorHonorsFixedPrecoloring(t *testing.T) {
	r0 := ir.NewFixed(0)
	free := ir.NewFree(1)
	graph := Graph{}
	graph.addEdge(r0, free)
	coloring, ok := Color(graph, Palette())
	if !ok {
		t.Fatalf("trivial fixed+free graph should color")
	}
	if coloring[r0] != 0 {
		t.Errorf("fixed var REGF0 colored %d, want 0", coloring[r0])
	}
	if coloring[free] == 0 {
		t.Errorf("free var wrongly assigned the fixed var's forced color")
	}
}

func TestCoalesceRemovesSelfCopy(t *testing.T) {
	r := ir.NewFree(4)
	instrs := []ir.Instruction{
		{Op: ir.OpFuncDef, Operands: []ir.Operand{ir.Label("f")}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(r), ir.Imm(1)}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(r), ir.VarOperand(r)}},
		{Op: ir.OpFuncRet, Operands: []ir.Operand{ir.VarOperand(r)}},
	}
	blocks := [][]ir.Instruction{instrs}
	graph := buildGraph(t, instrs)
	Coalesce(blocks, graph)

	for _, in := range blocks[0] {
		if in.Op == ir.OpMov && len(ir.Reads(in)) == 1 && len(ir.Writes(in)) == 1 {
			if ir.Reads(in)[0] == ir.Writes(in)[0] {
				t.Fatalf("self-copy survived coalescing: %v", blocks[0])
			}
		}
	}
}

func TestCoalesceMergesNonInterferingCopy(t *testing.T) {
	a, b := ir.NewFree(1), ir.NewFree(2)
	instrs := []ir.Instruction{
		{Op: ir.OpFuncDef, Operands: []ir.Operand{ir.Label("f")}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(a), ir.Imm(1)}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(b), ir.VarOperand(a)}},
		{Op: ir.OpFuncRet, Operands: []ir.Operand{ir.VarOperand(b)}},
	}
	blocks := [][]ir.Instruction{instrs}
	graph := buildGraph(t, instrs)
	Coalesce(blocks, graph)

	for _, in := range blocks[0] {
		for _, v := range ir.Reads(in) {
			if v == b {
				t.Fatalf("coalesced variable b still appears after coalescing: %v", blocks[0])
			}
		}
		for _, v := range ir.Writes(in) {
			if v == b {
				t.Fatalf("coalesced variable b still written after coalescing: %v", blocks[0])
			}
		}
	}
}

// TestCoalesceDoesNotMergeFixedSourceCopy guards the other half of
// spec.md's coalescing rule: "neither endpoint is pre-colored". A copy
// out of a fixed (argument) variable must survive coalescing even when
// its destination doesn't interfere with the source, since renaming the
// destination onto the fixed register would force that physical
// register live across the destination's whole use-chain.
func TestCoalesceDoesNotMergeFixedSourceCopy(t *testing.T) {
	arg := ir.NewFixed(0)
	d := ir.NewFree(1)
	instrs := []ir.Instruction{
		{Op: ir.OpFuncDef, Operands: []ir.Operand{ir.Label("f")}},
		{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(d), ir.VarOperand(arg)}},
		{Op: ir.OpFuncRet, Operands: []ir.Operand{ir.VarOperand(d)}},
	}
	blocks := [][]ir.Instruction{instrs}
	graph := buildGraph(t, instrs)
	Coalesce(blocks, graph)

	found := false
	for _, in := range blocks[0] {
		if in.Op != ir.OpMov {
			continue
		}
		reads, writes := ir.Reads(in), ir.Writes(in)
		if len(reads) == 1 && len(writes) == 1 && reads[0] == arg && writes[0] == d {
			found = true
		}
	}
	if !found {
		t.Fatalf("copy from a fixed source was coalesced away: %v", blocks[0])
	}
}

func TestAllocateColorsSimpleFunction(t *testing.T) {
	res, err := Allocate([][]ir.Instruction{triangle()})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	for _, instrs := range res.Blocks {
		for _, in := range instrs {
			for _, o := range in.Operands {
				if o.Kind == ir.OperandVar {
					t.Fatalf("instruction %v still references a virtual variable after allocation", in)
				}
			}
		}
	}
}

func TestAllocateSpillsWhenPaletteExhausted(t *testing.T) {
	// More simultaneously-live variables than the 2-register toy palette
	// this test enforces by shrinking Palette() isn't possible (Allocate
	// always uses the real 9-register palette), so instead this checks
	// that a function using more variables than registers still resolves
	// without error -- the spill path must be reachable and terminating.
	var instrs []ir.Instruction
	instrs = append(instrs, ir.Instruction{Op: ir.OpFuncDef, Operands: []ir.Operand{ir.Label("f")}})
	vars := make([]ir.Var, 15)
	for i := range vars {
		vars[i] = ir.NewFree(i + 1)
		instrs = append(instrs, ir.Instruction{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(vars[i]), ir.Imm(int64(i))}})
	}
	sum := vars[0]
	for i := 1; i < len(vars); i++ {
		instrs = append(instrs, ir.Instruction{Op: ir.OpAdd, Operands: []ir.Operand{
			ir.VarOperand(sum), ir.VarOperand(sum), ir.VarOperand(vars[i]),
		}})
	}
	instrs = append(instrs, ir.Instruction{Op: ir.OpFuncRet, Operands: []ir.Operand{ir.VarOperand(sum)}})

	res, err := Allocate([][]ir.Instruction{instrs})
	if err != nil {
		t.Fatalf("Allocate failed on a 15-variable function: %v", err)
	}
	if res.Rounds < 1 {
		t.Fatalf("expected at least one round")
	}
}

// accumulatorFn builds a chain of n mov-initialized variables reduced by
// repeated `add sum, sum, vars[i]` -- the 2-operand-arithmetic shape
// where the destination is also a source, under enough register
// pressure to force at least one spill round. Returns the instructions
// and the value func_ret should carry if execution is faithful.
func accumulatorFn(n int) ([]ir.Instruction, int64) {
	var instrs []ir.Instruction
	instrs = append(instrs, ir.Instruction{Op: ir.OpFuncDef, Operands: []ir.Operand{ir.Label("f")}})
	vars := make([]ir.Var, n)
	var want int64
	for i := range vars {
		vars[i] = ir.NewFree(i + 1)
		instrs = append(instrs, ir.Instruction{Op: ir.OpMov, Operands: []ir.Operand{ir.VarOperand(vars[i]), ir.Imm(int64(i))}})
		want += int64(i)
	}
	sum := vars[0]
	for i := 1; i < len(vars); i++ {
		instrs = append(instrs, ir.Instruction{Op: ir.OpAdd, Operands: []ir.Operand{
			ir.VarOperand(sum), ir.VarOperand(sum), ir.VarOperand(vars[i]),
		}})
	}
	instrs = append(instrs, ir.Instruction{Op: ir.OpFuncRet, Operands: []ir.Operand{ir.VarOperand(sum)}})
	return instrs, want
}

// TestAllocateSpillPreservesReadWriteSemantics guards against Rewrite
// assigning separate load/store temps to a variable that is both read
// and written by the same instruction: a second, distinct store temp
// would leave the instruction's actual computed result discarded, and
// the spilled accumulator would settle on whatever garbage that unused
// temp's slot happened to hold.
func TestAllocateSpillPreservesReadWriteSemantics(t *testing.T) {
	instrs, want := accumulatorFn(15)
	res, err := Allocate([][]ir.Instruction{instrs})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if res.Rounds < 2 {
		t.Fatalf("expected at least one spill round to exercise Rewrite")
	}

	var flat []ir.Instruction
	for _, block := range res.Blocks {
		flat = append(flat, block...)
	}
	s := interp.NewState()
	got, ok, err := interp.Run(s, flat)
	if err != nil {
		t.Fatalf("interp.Run: %v", err)
	}
	if !ok {
		t.Fatalf("interp.Run returned no value")
	}
	if got != want {
		t.Fatalf("accumulator result = %d, want %d (0+1+...+14)", got, want)
	}
}

func TestDOTListsEveryInterferingVariable(t *testing.T) {
	graph := buildGraph(t, triangle())
	dot := graph.DOT(nil)
	if !strings.HasPrefix(dot, "strict graph G {") {
		t.Fatalf("DOT output missing header: %s", dot)
	}
	a := ir.NewFree(1)
	if !strings.Contains(dot, `"REG1"`) {
		t.Errorf("DOT output should mention %v: %s", a, dot)
	}
}

func TestDOTLabelsNodesWithColoring(t *testing.T) {
	graph := buildGraph(t, triangle())
	coloring, ok := Color(graph, Palette())
	if !ok {
		t.Fatalf("Color failed on a 3-clique with a 9-wide palette")
	}
	dot := graph.DOT(coloring)
	if !strings.Contains(dot, "label=") {
		t.Errorf("colored DOT output should carry register labels: %s", dot)
	}
}
