package autograd

// Edge connects an input to the Value computed from it.
type Edge struct {
	From *Value
	To   *Value
}

// Trace collects the graph below root for inspection. Nodes come in
// topological order. Edges are listed per consumer in input order, with a
// repeated input (x*x) reported once.
func Trace(root *Value) (nodes []*Value, edges []Edge) {
	nodes = Topo(root)
	for _, n := range nodes {
		seen := make(map[*Value]bool, len(n.inputs))
		for _, in := range n.inputs {
			if seen[in] {
				continue
			}
			seen[in] = true
			edges = append(edges, Edge{From: in, To: n})
		}
	}
	return nodes, edges
}
