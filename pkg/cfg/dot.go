package cfg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/29jm/drak-lang/pkg/ir"
)

// DOT renders g as a Graphviz digraph, one box per block listing its
// instructions and, when liveIn is non-nil, the block's live-in variables
// as an xlabel. Grounded on orig:drak/middle_end/graph_ops.py's
// print_cfg_as_dot.
func (g *Graph) DOT(liveIn map[int]ir.VarSet) string {
	var sb strings.Builder
	sb.WriteString("digraph G {\n")
	for i, b := range g.Blocks {
		lines := make([]string, len(b.Instrs))
		for j, in := range b.Instrs {
			lines[j] = in.String()
		}
		label := strings.Join(lines, "\\l") + "\\l"
		fmt.Fprintf(&sb, "\t%d [label=\"%s\"", i, label)
		if liveIn != nil {
			vars := liveIn[i].Slice()
			names := make([]string, len(vars))
			for k, v := range vars {
				names[k] = v.String()
			}
			sort.Strings(names)
			fmt.Fprintf(&sb, ",xlabel=\"%d: %s\"", i, strings.Join(names, ", "))
		}
		sb.WriteString(",shape=box]\n")
		if len(g.Succ[i]) > 0 {
			parts := make([]string, len(g.Succ[i]))
			for k, s := range g.Succ[i] {
				parts[k] = fmt.Sprintf("%d", s)
			}
			fmt.Fprintf(&sb, "\t%d -> %s\n", i, strings.Join(parts, ", "))
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
