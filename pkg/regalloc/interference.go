// Package regalloc builds the interference graph, coalesces redundant
// copies, colors variables onto physical registers via Chaitin's
// simplify/select algorithm with pre-colored nodes, and rewrites
// uncolorable variables to stack spills. Grounded on
// orig:drak/middle_end/coloring.go (color, spillvars, spillcosts,
// regalloc) and orig:drak/middle_end/liveness.py (coalesce,
// interference_graph).
package regalloc

import "github.com/29jm/drak-lang/pkg/ir"

// Graph is an interference graph: an edge between two variables means
// they are live at the same program point and cannot share a register.
type Graph map[ir.Var]ir.VarSet

// neighbors returns g[v], creating an empty set on first access so
// callers never see a nil map entry.
func (g Graph) neighbors(v ir.Var) ir.VarSet {
	if s, ok := g[v]; ok {
		return s
	}
	s := ir.NewVarSet()
	g[v] = s
	return s
}

func (g Graph) addEdge(a, b ir.Var) {
	if a == b {
		return
	}
	g.neighbors(a).Add(b)
	g.neighbors(b).Add(a)
}

// removeNode deletes v from g and from every neighbor's adjacency set,
// returning the degree v had just before removal.
func (g Graph) removeNode(v ir.Var) int {
	deg := len(g[v])
	for n := range g[v] {
		delete(g[n], v)
	}
	delete(g, v)
	return deg
}

// Clone returns a deep copy of g.
func (g Graph) Clone() Graph {
	out := make(Graph, len(g))
	for v, s := range g {
		out[v] = s.Clone()
	}
	return out
}

// Build constructs the interference graph from a function's
// per-instruction live-before sets (liveness.Result.PerInstr): any two
// variables present in the same live set interfere. Mirrors
// orig:drak/middle_end/liveness.py's interference_graph/make_graph,
// consuming the combined global+local liveness solution directly rather
// than recomputing it.
func Build(perInstr [][]ir.VarSet) Graph {
	g := make(Graph)
	for _, block := range perInstr {
		for _, alive := range block {
			for v := range alive {
				g.neighbors(v) // ensure every live variable has a node
			}
			for v := range alive {
				for w := range alive {
					g.addEdge(v, w)
				}
			}
		}
	}
	return g
}
