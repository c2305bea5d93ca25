package ir

import "testing"

func TestVarStringForms(t *testing.T) {
	cases := []struct {
		v    Var
		want string
	}{
		{NewFree(4), "REG4"},
		{NewFree(4).Versioned(2), "REG4.2"},
		{NewFixed(0), "REGF0"},
		{NewSpill(3), "REGSPILL3"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("Var.String() = %q, want %q", got, c.want)
		}
	}
}

func TestVarBaseStripsVersion(t *testing.T) {
	v := NewFree(4).Versioned(7)
	base := v.Base()
	if base.Version != -1 {
		t.Errorf("Base() left version %d, want -1", base.Version)
	}
	if base.Num != 4 || base.Class != VarFree {
		t.Errorf("Base() changed identity: %v", base)
	}
}

func TestVarIsFixedAndFixedReg(t *testing.T) {
	f := NewFixed(3)
	if !f.IsFixed() {
		t.Errorf("NewFixed(3).IsFixed() = false, want true")
	}
	if got := f.FixedReg(); got != "r3" {
		t.Errorf("FixedReg() = %q, want %q", got, "r3")
	}
	if NewFree(3).IsFixed() {
		t.Errorf("NewFree(3).IsFixed() = true, want false")
	}
}

func TestVarSetOps(t *testing.T) {
	a, b, c := NewFree(1), NewFree(2), NewFree(3)
	s1 := NewVarSet(a, b)
	s2 := NewVarSet(b, c)

	u := s1.Union(s2)
	if !u.Has(a) || !u.Has(b) || !u.Has(c) {
		t.Fatalf("Union missing members: %v", u)
	}

	sub := s1.Sub(s2)
	if !sub.Has(a) || sub.Has(b) {
		t.Fatalf("Sub wrong result: %v", sub)
	}

	if s1.Equal(s2) {
		t.Fatalf("Equal reported true for distinct sets")
	}
	if !s1.Equal(s1.Clone()) {
		t.Fatalf("Equal reported false for a set and its clone")
	}

	s1.Remove(a)
	if s1.Has(a) {
		t.Fatalf("Remove did not delete member")
	}
}
