package ir

// Opcode identifies an instruction's operation (spec §3's three
// families plus the SSA pseudo-op).
type Opcode int

const (
	OpMov Opcode = iota
	OpLdr
	OpStr
	OpAdd
	OpSub
	OpMul
	OpSdiv
	OpCmp
	OpB
	OpBCond
	OpBx
	OpBl
	OpPush
	OpPop
	OpFuncDef
	OpFuncCall
	OpFuncRet
	OpStackAlloc
	OpMemStore
	OpMemLoad
	OpPhi
	OpLabel
)

var opcodeNames = map[Opcode]string{
	OpMov: "mov", OpLdr: "ldr", OpStr: "str",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpSdiv: "sdiv", OpCmp: "cmp",
	OpB: "b", OpBCond: "b", OpBx: "bx", OpBl: "bl",
	OpPush: "push", OpPop: "pop",
	OpFuncDef: "func_def", OpFuncCall: "func_call", OpFuncRet: "func_ret",
	OpStackAlloc: "stackalloc", OpMemStore: "memstore", OpMemLoad: "memload",
	OpPhi:   "PHI",
	OpLabel: "label",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "?"
}

// Cond is a branch condition suffix (spec §3's b{eq,ne,lt,le,gt,ge,hs,ls}).
type Cond int

const (
	CondNone Cond = iota
	CondEQ
	CondNE
	CondLT
	CondLE
	CondGT
	CondGE
	CondHS
	CondLS
)

var condNames = map[Cond]string{
	CondEQ: "eq", CondNE: "ne", CondLT: "lt", CondLE: "le",
	CondGT: "gt", CondGE: "ge", CondHS: "hs", CondLS: "ls",
}

func (c Cond) String() string { return condNames[c] }

// Instruction is an opcode plus its operands, following spec §3's
// ordered-tuple model with the Operand tagged variant of §9.
type Instruction struct {
	Op       Opcode
	Cond     Cond // meaningful only when Op == OpBCond
	Operands []Operand
}

// IsJump reports whether the instruction is any branch form (spec
// §4.2's "is_jumping": b/bx/bl/b<cond>).
func (in Instruction) IsJump() bool {
	switch in.Op {
	case OpB, OpBCond, OpBx, OpBl:
		return true
	}
	return false
}

// IsConditionalJump reports whether the instruction is a conditional branch.
func (in Instruction) IsConditionalJump() bool { return in.Op == OpBCond }

// TargetLabel returns the branch target label for jump instructions
// that carry one (b, b<cond>); ok is false otherwise.
func (in Instruction) TargetLabel() (label string, ok bool) {
	if in.Op != OpB && in.Op != OpBCond {
		return "", false
	}
	if len(in.Operands) == 0 || in.Operands[0].Kind != OperandLabel {
		return "", false
	}
	return in.Operands[0].Label, true
}

// DefinedLabel returns the label defined by this instruction, if any
// (a bare "name:" as the first operand).
func (in Instruction) DefinedLabel() (label string, ok bool) {
	if len(in.Operands) == 0 {
		return "", false
	}
	o := in.Operands[0]
	if o.Kind == OperandLabel && o.LabelDef {
		return o.Label, true
	}
	return "", false
}

// String renders the instruction in spec.md's illustrative textual form.
func (in Instruction) String() string {
	s := in.Op.String()
	if in.Op == OpBCond {
		s += in.Cond.String()
	}
	for i, o := range in.Operands {
		if i == 0 {
			s += " "
		} else {
			s += ", "
		}
		s += o.String()
	}
	return s
}
