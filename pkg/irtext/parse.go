// Package irtext is a minimal textual loader for the flat IR pkg/ir
// models, letting the CLI and tests exercise the mid-end pipeline
// without a real AST-to-IR front end. It is not an AST-to-IR lowering
// pass — it only accepts the flat instruction-list textual form
// (`func_def main; mov REG4, #100; ...`), one function per `---`
// separated block, semicolon-separated instructions. Grounded on
// pkg/z80opt's parseAssembly/parseSingleInstruction (split-on-`:`,
// match-mnemonic-then-operands shape), adapted to this IR's opcode set
// and tagged Operand variant instead of a Z80 instruction catalog.
package irtext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/29jm/drak-lang/pkg/ir"
)

var mnemonics = map[string]ir.Opcode{
	"mov": ir.OpMov, "ldr": ir.OpLdr, "str": ir.OpStr,
	"add": ir.OpAdd, "sub": ir.OpSub, "mul": ir.OpMul, "sdiv": ir.OpSdiv, "cmp": ir.OpCmp,
	"bx": ir.OpBx, "bl": ir.OpBl,
	"push": ir.OpPush, "pop": ir.OpPop,
	"func_def": ir.OpFuncDef, "func_call": ir.OpFuncCall, "func_ret": ir.OpFuncRet,
	"stackalloc": ir.OpStackAlloc, "memstore": ir.OpMemStore, "memload": ir.OpMemLoad,
	"phi": ir.OpPhi, "label": ir.OpLabel,
}

var condSuffixes = map[string]ir.Cond{
	"eq": ir.CondEQ, "ne": ir.CondNE, "lt": ir.CondLT, "le": ir.CondLE,
	"gt": ir.CondGT, "ge": ir.CondGE, "hs": ir.CondHS, "ls": ir.CondLS,
}

// ParseError reports a textual-IR parse failure with the offending
// source fragment for diagnostics.
type ParseError struct {
	Text string
	Msg  string
}

func (e *ParseError) Error() string { return fmt.Sprintf("irtext: %q: %s", e.Text, e.Msg) }

// Program is a parsed source file: a named function's instructions,
// in the order `---`-separated blocks appeared in the source.
type Program struct {
	Functions []NamedFunction
}

// NamedFunction pairs a function's textual name with its flat
// instruction list, ready to hand to compile.Function.
type NamedFunction struct {
	Name   string
	Instrs []ir.Instruction
}

// Parse reads a textual IR program: one function per `---`-delimited
// block, semicolon-separated instructions within a block. Blank lines
// and blocks are ignored.
func Parse(src string) (*Program, error) {
	var prog Program
	for _, block := range strings.Split(src, "---") {
		instrs, err := parseBlock(block)
		if err != nil {
			return nil, err
		}
		if len(instrs) == 0 {
			continue
		}
		name, err := functionName(instrs[0])
		if err != nil {
			return nil, err
		}
		prog.Functions = append(prog.Functions, NamedFunction{Name: name, Instrs: instrs})
	}
	return &prog, nil
}

func functionName(first ir.Instruction) (string, error) {
	if first.Op != ir.OpFuncDef || len(first.Operands) == 0 || first.Operands[0].Kind != ir.OperandLabel {
		return "", &ParseError{Text: first.String(), Msg: "function block must start with func_def"}
	}
	return first.Operands[0].Label, nil
}

func parseBlock(block string) ([]ir.Instruction, error) {
	var instrs []ir.Instruction
	for _, stmt := range splitTopLevel(block, ';') {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		in, err := parseInstruction(stmt)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, in)
	}
	return instrs, nil
}

func parseInstruction(text string) (ir.Instruction, error) {
	mnemonic, rest, _ := strings.Cut(text, " ")
	mnemonic = strings.TrimSpace(mnemonic)
	rest = strings.TrimSpace(rest)

	op, cond, ok := resolveMnemonic(mnemonic)
	if !ok {
		return ir.Instruction{}, &ParseError{Text: text, Msg: "unrecognized mnemonic " + mnemonic}
	}

	var operands []ir.Operand
	for _, field := range splitTopLevel(rest, ',') {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		o, err := parseOperand(field)
		if err != nil {
			return ir.Instruction{}, err
		}
		operands = append(operands, o)
	}
	return ir.Instruction{Op: op, Cond: cond, Operands: operands}, nil
}

func resolveMnemonic(m string) (ir.Opcode, ir.Cond, bool) {
	if op, ok := mnemonics[m]; ok {
		return op, ir.CondNone, true
	}
	if strings.HasPrefix(m, "b") && len(m) > 1 {
		if cond, ok := condSuffixes[m[1:]]; ok {
			return ir.OpBCond, cond, true
		}
	}
	if m == "b" {
		return ir.OpB, ir.CondNone, true
	}
	return 0, ir.CondNone, false
}

func parseOperand(text string) (ir.Operand, error) {
	switch {
	case strings.HasPrefix(text, "#"):
		n, err := strconv.ParseInt(text[1:], 0, 64)
		if err != nil {
			return ir.Operand{}, &ParseError{Text: text, Msg: "bad immediate"}
		}
		return ir.Imm(n), nil

	case strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}"):
		inner := text[1 : len(text)-1]
		var list []ir.Operand
		for _, f := range splitTopLevel(inner, ',') {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			o, err := parseOperand(f)
			if err != nil {
				return ir.Operand{}, err
			}
			list = append(list, o)
		}
		return ir.List(list...), nil

	case strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]"):
		return parseAddress(text[1 : len(text)-1])

	case strings.HasSuffix(text, ":"):
		return ir.LabelDef(text[:len(text)-1]), nil

	case isVarToken(text):
		return parseVar(text)

	case isPhysReg(text):
		return ir.PhysReg(text), nil

	default:
		// bare identifier: a label reference or a func_def/func_call name.
		return ir.Label(text), nil
	}
}

func parseAddress(inner string) (ir.Operand, error) {
	parts := splitTopLevel(inner, ',')
	if len(parts) < 1 {
		return ir.Operand{}, &ParseError{Text: inner, Msg: "empty address"}
	}
	base, err := parseOperand(strings.TrimSpace(parts[0]))
	if err != nil {
		return ir.Operand{}, err
	}
	addr := ir.Address{Base: base, Offset: ir.Imm(0)}
	if len(parts) >= 2 {
		off, err := parseOperand(strings.TrimSpace(parts[1]))
		if err != nil {
			return ir.Operand{}, err
		}
		addr.Offset = off
	}
	if len(parts) >= 3 {
		shiftText := strings.TrimSpace(parts[2])
		shiftText = strings.TrimPrefix(shiftText, "#")
		n, err := strconv.Atoi(shiftText)
		if err != nil {
			return ir.Operand{}, &ParseError{Text: inner, Msg: "bad shift"}
		}
		addr.Shift, addr.HasShift = n, true
	}
	return ir.AddressOperand(addr), nil
}

func isPhysReg(text string) bool {
	switch text {
	case "sp", "lr", "pc":
		return true
	}
	if len(text) < 2 || text[0] != 'r' {
		return false
	}
	for _, c := range text[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isVarToken(text string) bool {
	for _, prefix := range []string{"REGSPILL", "REGF", "REG"} {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

func parseVar(text string) (ir.Operand, error) {
	var class ir.VarClass
	var rest string
	switch {
	case strings.HasPrefix(text, "REGSPILL"):
		class, rest = ir.VarSpill, text[len("REGSPILL"):]
	case strings.HasPrefix(text, "REGF"):
		class, rest = ir.VarFixed, text[len("REGF"):]
	case strings.HasPrefix(text, "REG"):
		class, rest = ir.VarFree, text[len("REG"):]
	default:
		return ir.Operand{}, &ParseError{Text: text, Msg: "not a variable"}
	}

	numText, versionText, hasVersion := strings.Cut(rest, ".")
	num, err := strconv.Atoi(numText)
	if err != nil {
		return ir.Operand{}, &ParseError{Text: text, Msg: "bad variable number"}
	}
	v := ir.Var{Class: class, Num: num, Version: -1}
	if hasVersion {
		ver, err := strconv.Atoi(versionText)
		if err != nil {
			return ir.Operand{}, &ParseError{Text: text, Msg: "bad SSA version"}
		}
		v.Version = ver
	}
	return ir.VarOperand(v), nil
}

// splitTopLevel splits s on sep, ignoring occurrences nested inside
// [], {}, or () — needed since address and list operands use the same
// comma separator as the enclosing instruction's operand list.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '{', '(':
			depth++
		case ']', '}', ')':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}
