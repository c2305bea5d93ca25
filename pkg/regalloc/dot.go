package regalloc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/29jm/drak-lang/pkg/ir"
)

// DOT renders g as an undirected Graphviz graph, one node per variable.
// When coloring is non-nil each node is labeled by its assigned register;
// otherwise nodes carry only their variable name. Grounded on
// orig:drak/middle_end/graph_ops.py's print_igraph.
func (g Graph) DOT(coloring Coloring) string {
	vars := make([]ir.Var, 0, len(g))
	for v := range g {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].String() < vars[j].String() })

	var sb strings.Builder
	sb.WriteString("strict graph G {\n")
	for _, v := range vars {
		name := v.String()
		neighbors := g[v].Slice()
		if len(neighbors) == 0 {
			continue
		}
		nnames := make([]string, len(neighbors))
		for i, n := range neighbors {
			nnames[i] = n.String()
		}
		sort.Strings(nnames)
		links := make([]string, len(nnames))
		for i, n := range nnames {
			links[i] = fmt.Sprintf("%q", n)
		}

		if c, ok := coloring[v]; ok {
			fmt.Fprintf(&sb, "\t%q [label=%q]\n", name, regName(c))
		}
		fmt.Fprintf(&sb, "\t%q -- {%s}\n", name, strings.Join(links, ", "))
	}
	sb.WriteString("}\n")
	return sb.String()
}
