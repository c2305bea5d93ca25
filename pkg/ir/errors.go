package ir

import (
	"errors"
	"fmt"
)

// ErrMalformedIR is the sentinel for spec §7's "Malformed IR" error
// class: an instruction whose operand shape the read/write taxonomy
// doesn't recognize, a reference to a non-existent label, or a block
// with multiple terminators.
var ErrMalformedIR = errors.New("malformed IR")

// MalformedIRError reports a specific malformed instruction, naming the
// offending function and instruction per spec §7's policy ("report the
// offending instruction and abort the current function").
type MalformedIRError struct {
	Func  string
	Index int
	Instr Instruction
	Msg   string
}

func (e *MalformedIRError) Error() string {
	return fmt.Sprintf("%s: function %q, instruction %d (%s): %s",
		ErrMalformedIR, e.Func, e.Index, e.Instr, e.Msg)
}

func (e *MalformedIRError) Unwrap() error { return ErrMalformedIR }
