package ir

import "strings"

// OperandKind tags the variant held by an Operand (spec.md §9 design
// notes: a closed enum in place of heterogeneous nested string lists).
type OperandKind int

const (
	OperandImmediate OperandKind = iota
	OperandPhysReg
	OperandVar
	OperandLabel
	OperandAddress
	OperandList
)

// Operand is a single instruction argument. Exactly one of its fields
// is meaningful, selected by Kind.
type Operand struct {
	Kind OperandKind

	Imm int64 // OperandImmediate

	Reg string // OperandPhysReg: "r0".."r15", "sp", "lr"

	Var Var // OperandVar

	Label    string // OperandLabel
	LabelDef bool   // true if this operand defines the label ("L1:")

	Addr *Address // OperandAddress

	List []Operand // OperandList: push/pop register lists, phi argument vectors
}

// Address is an effective-address operand: [base, #offset] with an
// optional shift, e.g. used by ldr/str/memload/memstore.
type Address struct {
	Base     Operand
	Offset   Operand
	Shift    int
	HasShift bool
}

func Imm(v int64) Operand        { return Operand{Kind: OperandImmediate, Imm: v} }
func PhysReg(name string) Operand { return Operand{Kind: OperandPhysReg, Reg: name} }
func VarOperand(v Var) Operand   { return Operand{Kind: OperandVar, Var: v} }
func Label(name string) Operand  { return Operand{Kind: OperandLabel, Label: name} }
func LabelDef(name string) Operand {
	return Operand{Kind: OperandLabel, Label: name, LabelDef: true}
}
func AddressOperand(a Address) Operand { return Operand{Kind: OperandAddress, Addr: &a} }
func List(ops ...Operand) Operand      { return Operand{Kind: OperandList, List: ops} }

// IsVar reports whether the operand directly names a variable.
func (o Operand) IsVar() bool { return o.Kind == OperandVar }

// String renders the operand in the textual form spec.md's scenarios use.
func (o Operand) String() string {
	switch o.Kind {
	case OperandImmediate:
		return "#" + itoa(o.Imm)
	case OperandPhysReg:
		return o.Reg
	case OperandVar:
		return o.Var.String()
	case OperandLabel:
		if o.LabelDef {
			return o.Label + ":"
		}
		return o.Label
	case OperandAddress:
		s := "[" + o.Addr.Base.String()
		if o.Addr.Offset.Kind != OperandImmediate || o.Addr.Offset.Imm != 0 {
			s += ", " + o.Addr.Offset.String()
		}
		if o.Addr.HasShift {
			s += ", #" + itoa(int64(o.Addr.Shift))
		}
		return s + "]"
	case OperandList:
		parts := make([]string, len(o.List))
		for i, e := range o.List {
			parts[i] = e.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// varsIn recursively collects every variable named by operands,
// flattening OperandList (register lists, phi argument vectors) and
// descending into OperandAddress's base/offset. Mirrors
// orig:drak/middle_end/ir_utils.py's vars_in, generalized to the
// tagged Operand model.
func varsIn(operands []Operand) []Var {
	var out []Var
	for _, op := range operands {
		switch op.Kind {
		case OperandVar:
			out = append(out, op.Var)
		case OperandList:
			out = append(out, varsIn(op.List)...)
		case OperandAddress:
			out = append(out, varsIn([]Operand{op.Addr.Base, op.Addr.Offset})...)
		}
	}
	return out
}
