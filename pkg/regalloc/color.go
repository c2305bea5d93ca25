package regalloc

import "github.com/29jm/drak-lang/pkg/ir"

// Coloring maps a variable to the physical register number assigned to
// it (r0..r15; see ir.Var.FixedReg for the naming).
type Coloring map[ir.Var]int

// Palette returns the general-purpose registers available to the
// allocator: r4 through r12, the callee-saved working set left over once
// r0-r3 (argument/return slots), sp, lr, and pc are excluded.
func Palette() []int {
	p := make([]int, 0, 9)
	for r := 4; r <= 12; r++ {
		p = append(p, r)
	}
	return p
}

// Color attempts to color graph with the given palette, honoring every
// pre-colored (fixed) variable's forced register. It returns ok=false if
// the graph could not be fully colored with the palette given.
//
// Implements Chaitin's simplify/select algorithm with an explicit stack
// rather than orig:drak/middle_end/coloring.py's recursive `color`, so
// coloring a large function cannot overflow the call stack. A fixed
// variable is always removable during simplify regardless of its degree,
// since its color is predetermined and never drawn from the palette; a
// free variable is only removable once its degree drops below the
// palette size.
func Color(graph Graph, palette []int) (Coloring, bool) {
	work := graph.Clone()
	paletteSize := len(palette)

	var stack []ir.Var
	for len(work) > 0 {
		v, ok := pickSimplifiable(work, paletteSize)
		if !ok {
			return nil, false
		}
		work.removeNode(v)
		stack = append(stack, v)
	}

	coloring := make(Coloring, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		v := stack[i]
		if v.IsFixed() {
			coloring[v] = v.Num
			continue
		}
		taken := make(map[int]bool, len(graph[v]))
		for n := range graph[v] {
			if c, ok := coloring[n]; ok {
				taken[c] = true
			}
		}
		assigned, ok := firstAvailable(palette, taken)
		if !ok {
			return nil, false
		}
		coloring[v] = assigned
	}
	return coloring, true
}

func pickSimplifiable(work Graph, paletteSize int) (ir.Var, bool) {
	for v := range work {
		if !v.IsFixed() && len(work[v]) < paletteSize {
			return v, true
		}
	}
	for v := range work {
		if v.IsFixed() {
			return v, true
		}
	}
	return ir.Var{}, false
}

func firstAvailable(palette []int, taken map[int]bool) (int, bool) {
	for _, c := range palette {
		if !taken[c] {
			return c, true
		}
	}
	return 0, false
}

// Apply renames every variable in blocks to the physical register string
// its coloring assigned.
func (c Coloring) Apply(blocks [][]ir.Instruction) {
	for v, reg := range c {
		physical := ir.PhysReg(regName(reg))
		for n, instrs := range blocks {
			for i, in := range instrs {
				blocks[n][i] = renameToPhysical(in, v, physical)
			}
		}
	}
}

func regName(n int) string {
	switch n {
	case 13:
		return "sp"
	case 14:
		return "lr"
	case 15:
		return "pc"
	}
	return "r" + itoaSmall(n)
}

func itoaSmall(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

func renameToPhysical(in ir.Instruction, v ir.Var, physical ir.Operand) ir.Instruction {
	in.Operands = renamePhysicalList(in.Operands, v, physical)
	return in
}

func renamePhysicalList(ops []ir.Operand, v ir.Var, physical ir.Operand) []ir.Operand {
	out := make([]ir.Operand, len(ops))
	for i, o := range ops {
		switch o.Kind {
		case ir.OperandVar:
			if o.Var == v {
				out[i] = physical
			} else {
				out[i] = o
			}
		case ir.OperandList:
			out[i] = ir.List(renamePhysicalList(o.List, v, physical)...)
		case ir.OperandAddress:
			addr := *o.Addr
			if addr.Base.IsVar() && addr.Base.Var == v {
				addr.Base = physical
			}
			if addr.Offset.IsVar() && addr.Offset.Var == v {
				addr.Offset = physical
			}
			out[i] = ir.AddressOperand(addr)
		default:
			out[i] = o
		}
	}
	return out
}
