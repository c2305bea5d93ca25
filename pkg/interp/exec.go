package interp

import (
	"fmt"

	"github.com/29jm/drak-lang/pkg/ir"
)

// ErrNoReturn is returned by Run when execution falls off the end of
// a function's instructions without reaching a func_ret.
var ErrNoReturn = fmt.Errorf("interp: function did not return")

// Run interprets a single function's flattened instruction list
// starting at its func_def and finishing at the first func_ret or bx
// (treated as an implicit "return with no value", mirroring an ARM
// `bx lr` epilogue). Arguments must already be present in s.Regs under
// their REGF<n>/variable keys before calling Run, matching how
// func_def's write set (spec §4.1) documents ABI argument variables as
// defined by the prologue rather than by any instruction Run executes.
//
// Grounded on pkg/cpu/exec.go's per-opcode big switch, generalized from
// "one instruction in, T-states out" to "one instruction in, a
// (possibly updated) program counter out" since this IR has control
// flow pkg/cpu's flat Z80 sequences don't.
func Run(s *State, instrs []ir.Instruction) (result int64, hasResult bool, err error) {
	labels := make(map[string]int, len(instrs))
	for i, in := range instrs {
		if name, ok := in.DefinedLabel(); ok {
			labels[name] = i
		}
	}

	pc := 0
	for pc < len(instrs) {
		in := instrs[pc]
		next := pc + 1

		switch in.Op {
		case ir.OpFuncDef, ir.OpLabel:
			// no-op: arguments are seeded by the caller, labels just mark position.

		case ir.OpMov:
			if len(in.Operands) == 2 {
				s.Set(in.Operands[0], s.Get(in.Operands[1]))
			}

		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpSdiv:
			dst, a, b, ok := arithOperands(in.Operands)
			if ok {
				s.Set(dst, applyArith(in.Op, s.Get(a), s.Get(b)))
			}

		case ir.OpCmp:
			if len(in.Operands) == 2 {
				a, b := s.Get(in.Operands[0]), s.Get(in.Operands[1])
				s.setCompareFlags(a, b)
			}

		case ir.OpB:
			if target, ok := in.TargetLabel(); ok {
				if idx, ok := labels[target]; ok {
					next = idx
				}
			}

		case ir.OpBCond:
			if target, ok := in.TargetLabel(); ok && s.condHolds(in.Cond) {
				if idx, ok := labels[target]; ok {
					next = idx
				}
			}

		case ir.OpBx:
			return 0, false, nil

		case ir.OpBl:
			// subroutine calls to external symbols are not modeled; the
			// callee's effect on clobbered registers is invisible here.

		case ir.OpPush:
			if len(in.Operands) == 1 && in.Operands[0].Kind == ir.OperandList {
				for _, o := range in.Operands[0].List {
					sp := s.Get(ir.PhysReg("sp")) - 4
					s.Set(ir.PhysReg("sp"), sp)
					s.Mem[sp] = s.Get(o)
				}
			}

		case ir.OpPop:
			if len(in.Operands) == 1 && in.Operands[0].Kind == ir.OperandList {
				list := in.Operands[0].List
				for i := len(list) - 1; i >= 0; i-- {
					sp := s.Get(ir.PhysReg("sp"))
					s.Set(list[i], s.Mem[sp])
					s.Set(ir.PhysReg("sp"), sp+4)
				}
			}

		case ir.OpFuncCall:
			if len(in.Operands) == 3 && in.Operands[2].Kind == ir.OperandList {
				for _, c := range in.Operands[2].List {
					s.Set(c, 0)
				}
			}

		case ir.OpFuncRet:
			if len(in.Operands) == 1 {
				return s.Get(in.Operands[0]), true, nil
			}
			return 0, false, nil

		case ir.OpStackAlloc:
			if len(in.Operands) == 2 {
				s.Set(in.Operands[0], 0)
			}

		case ir.OpMemStore:
			if len(in.Operands) == 2 && in.Operands[1].Kind == ir.OperandAddress {
				s.Mem[s.Addr(*in.Operands[1].Addr)] = s.Get(in.Operands[0])
			}

		case ir.OpMemLoad:
			if len(in.Operands) == 2 && in.Operands[1].Kind == ir.OperandAddress {
				s.Set(in.Operands[0], s.Mem[s.Addr(*in.Operands[1].Addr)])
			}

		case ir.OpPhi:
			// phi nodes are resolved by ssa.Lower before any block reaches an
			// interpreter; encountering one here is a bug upstream, not a value
			// this interpreter can compute on its own.
			return 0, false, fmt.Errorf("interp: unresolved PHI at instruction %d", pc)

		default:
			return 0, false, fmt.Errorf("interp: unhandled opcode %s at instruction %d", in.Op, pc)
		}

		pc = next
	}
	return 0, false, ErrNoReturn
}

func arithOperands(ops []ir.Operand) (dst, a, b ir.Operand, ok bool) {
	switch len(ops) {
	case 2:
		return ops[0], ops[0], ops[1], true
	case 3:
		return ops[0], ops[1], ops[2], true
	}
	return ir.Operand{}, ir.Operand{}, ir.Operand{}, false
}

func applyArith(op ir.Opcode, a, b int64) int64 {
	switch op {
	case ir.OpAdd:
		return a + b
	case ir.OpSub:
		return a - b
	case ir.OpMul:
		return a * b
	case ir.OpSdiv:
		if b == 0 {
			return 0
		}
		return a / b
	}
	return 0
}

func (s *State) setCompareFlags(a, b int64) {
	diff := a - b
	s.Flags = Flags{
		Z: diff == 0,
		N: diff < 0,
		C: a >= b,
		V: (a >= 0 && b < 0 && diff < 0) || (a < 0 && b >= 0 && diff >= 0),
	}
}

func (s *State) condHolds(c ir.Cond) bool {
	switch c {
	case ir.CondEQ:
		return s.Z
	case ir.CondNE:
		return !s.Z
	case ir.CondLT:
		return s.N != s.V
	case ir.CondLE:
		return s.Z || s.N != s.V
	case ir.CondGT:
		return !s.Z && s.N == s.V
	case ir.CondGE:
		return s.N == s.V
	case ir.CondHS:
		return s.C
	case ir.CondLS:
		return !s.C || s.Z
	}
	return false
}
