// Package ir defines the middle-end's instruction model: opcodes, the
// tagged Operand variant, Instruction, and the read/write taxonomy that
// drives liveness, SSA construction, and register allocation.
package ir

import "fmt"

// VarClass classifies a virtual variable by its name pattern (spec §3).
type VarClass int

const (
	// VarFree variables (REG<n>) are freely colorable by the allocator.
	VarFree VarClass = iota
	// VarFixed variables (REGF<n>) are pre-colored to physical r<n>.
	VarFixed
	// VarSpill variables (REGSPILL<n>) are synthesized spill temporaries.
	VarSpill
)

func (c VarClass) String() string {
	switch c {
	case VarFree:
		return "REG"
	case VarFixed:
		return "REGF"
	case VarSpill:
		return "REGSPILL"
	default:
		return "REG?"
	}
}

// Var identifies a virtual variable: a class, its number, and an SSA
// version suffix. Version is -1 before renaming; renaming assigns a
// non-negative version (spec §4.4's "v.k" naming).
//
// Var is a small comparable value type, usable directly as a map key —
// it plays the role of an interned variable id (spec.md §9 "Graphs by
// index, not by reference") without any string-prefix parsing at use
// sites.
type Var struct {
	Class   VarClass
	Num     int
	Version int
}

// NewFree returns an unversioned free variable REG<n>.
func NewFree(n int) Var { return Var{Class: VarFree, Num: n, Version: -1} }

// NewFixed returns a pre-colored variable REGF<n>.
func NewFixed(n int) Var { return Var{Class: VarFixed, Num: n, Version: -1} }

// NewSpill returns a spill temporary REGSPILL<n>.
func NewSpill(n int) Var { return Var{Class: VarSpill, Num: n, Version: -1} }

// Versioned returns a copy of v with the given SSA version.
func (v Var) Versioned(version int) Var {
	v.Version = version
	return v
}

// Base returns v with its SSA version stripped, i.e. the variable's
// pre-renaming identity (used to key defsites/counters/stacks).
func (v Var) Base() Var {
	v.Version = -1
	return v
}

// IsFixed reports whether v is pre-colored to a physical register.
func (v Var) IsFixed() bool { return v.Class == VarFixed }

// FixedReg returns the physical register name for a fixed variable,
// e.g. REGF0 -> "r0".
func (v Var) FixedReg() string {
	return fmt.Sprintf("r%d", v.Num)
}

// String renders the canonical textual form, e.g. "REG4", "REG4.2",
// "REGF0", "REGSPILL3".
func (v Var) String() string {
	if v.Version < 0 {
		return fmt.Sprintf("%s%d", v.Class, v.Num)
	}
	return fmt.Sprintf("%s%d.%d", v.Class, v.Num, v.Version)
}

// VarSet is a set of variables.
type VarSet map[Var]struct{}

// NewVarSet builds a VarSet from a slice, deduplicating.
func NewVarSet(vs ...Var) VarSet {
	s := make(VarSet, len(vs))
	for _, v := range vs {
		s[v] = struct{}{}
	}
	return s
}

// Clone returns a shallow copy of s.
func (s VarSet) Clone() VarSet {
	out := make(VarSet, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// Add inserts v into s.
func (s VarSet) Add(v Var) { s[v] = struct{}{} }

// Remove deletes v from s.
func (s VarSet) Remove(v Var) { delete(s, v) }

// Has reports whether v is a member of s.
func (s VarSet) Has(v Var) bool {
	_, ok := s[v]
	return ok
}

// Equal reports whether s and o contain exactly the same variables.
func (s VarSet) Equal(o VarSet) bool {
	if len(s) != len(o) {
		return false
	}
	for v := range s {
		if !o.Has(v) {
			return false
		}
	}
	return true
}

// Union returns a new set containing every variable in s or o.
func (s VarSet) Union(o VarSet) VarSet {
	out := s.Clone()
	for v := range o {
		out.Add(v)
	}
	return out
}

// Sub returns a new set containing variables in s but not in o.
func (s VarSet) Sub(o VarSet) VarSet {
	out := make(VarSet, len(s))
	for v := range s {
		if !o.Has(v) {
			out.Add(v)
		}
	}
	return out
}

// Intersect returns a new set containing variables present in both s and o.
func (s VarSet) Intersect(o VarSet) VarSet {
	out := make(VarSet, len(s))
	for v := range s {
		if o.Has(v) {
			out.Add(v)
		}
	}
	return out
}

// Slice returns the set's members as a slice, order unspecified.
func (s VarSet) Slice() []Var {
	out := make([]Var, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	return out
}
