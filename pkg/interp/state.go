// Package interp is a small interpreter for the virtual ARM subset
// pkg/ir models. It exists only to serve as a semantics oracle in
// tests: interpret a function before and after a pipeline stage on the
// same sample inputs and assert the two runs agree, the way
// orig:drak/misc/interpreter.py's tree-walker lets the original project
// sanity-check a transform against the source AST.
package interp

import "github.com/29jm/drak-lang/pkg/ir"

// State is the interpreter's register file plus spill memory. Kept as
// plain maps rather than a fixed register-count struct (contrast
// pkg/cpu.State's 8-register byte layout) since the virtual register
// space is open-ended until an allocator has run; after regalloc the
// same State still works, keyed by physical register name instead of
// variable name.
type State struct {
	Regs map[string]int64
	Mem  map[int64]int64
	Flags
}

// Flags holds the condition flags set by cmp and consulted by
// conditional branches. Approximate: good enough to make bcond
// deterministic for oracle comparisons, not a faithful ARM CPSR model.
type Flags struct {
	Z, N, C, V bool
}

// NewState returns an empty interpreter state.
func NewState() *State {
	return &State{Regs: make(map[string]int64), Mem: make(map[int64]int64)}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	out := &State{
		Regs:  make(map[string]int64, len(s.Regs)),
		Mem:   make(map[int64]int64, len(s.Mem)),
		Flags: s.Flags,
	}
	for k, v := range s.Regs {
		out.Regs[k] = v
	}
	for k, v := range s.Mem {
		out.Mem[k] = v
	}
	return out
}

// Equal reports whether s and o hold the same memory contents and
// flags. Registers are not compared (spill temporaries and coloring
// assign different names across two runs of the "same" program;
// callers compare via the variables/registers they actually care
// about, typically by reading Get on a known result operand).
func (s *State) Equal(o *State) bool {
	if len(s.Mem) != len(o.Mem) {
		return false
	}
	for k, v := range s.Mem {
		if ov, ok := o.Mem[k]; !ok || ov != v {
			return false
		}
	}
	return s.Flags == o.Flags
}

func regKey(o ir.Operand) (string, bool) {
	switch o.Kind {
	case ir.OperandVar:
		return o.Var.String(), true
	case ir.OperandPhysReg:
		return o.Reg, true
	}
	return "", false
}

// Get evaluates an operand to its integer value: an immediate's literal
// value, or the current contents of the register it names. Label,
// address, and list operands have no scalar value and return 0.
func (s *State) Get(o ir.Operand) int64 {
	switch o.Kind {
	case ir.OperandImmediate:
		return o.Imm
	case ir.OperandVar, ir.OperandPhysReg:
		if key, ok := regKey(o); ok {
			return s.Regs[key]
		}
	}
	return 0
}

// Set stores v into the register named by o. o must be a Var or
// PhysReg operand; any other kind is a no-op.
func (s *State) Set(o ir.Operand, v int64) {
	if key, ok := regKey(o); ok {
		s.Regs[key] = v
	}
}

// Addr computes the effective address of an addressing operand:
// base + offset. Shifted addressing is not modeled; no IR this
// interpreter is exercised against emits a shifted address operand.
func (s *State) Addr(a ir.Address) int64 {
	return s.Get(a.Base) + s.Get(a.Offset)
}
