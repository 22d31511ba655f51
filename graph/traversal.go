package graph

// TraversalOptions controls Traverse.
type TraversalOptions struct {
	// MaxDepth is the number of hops to follow. Zero returns only the seeds.
	MaxDepth int
	// Types restricts traversal to these edge types. Empty means every
	// structural type.
	Types []EdgeType
}

// Traverse walks outgoing and incoming edges from the seeds using BFS up to
// MaxDepth hops. Seeds missing from the graph are ignored. The result lists
// visited nodes in discovery order, seeds first.
func Traverse(g *Graph, seeds []NodeID, opts TraversalOptions) []NodeID {
	if opts.MaxDepth < 0 {
		return nil
	}

	allowed := make(map[EdgeType]bool, len(opts.Types))
	for _, t := range opts.Types {
		allowed[t] = true
	}
	follow := func(t EdgeType) bool {
		if len(allowed) == 0 {
			return t.Structural()
		}
		return allowed[t]
	}

	visited := make(map[NodeID]bool)
	var order []NodeID
	queue := make([]NodeID, 0, len(seeds))
	for _, id := range seeds {
		if g.HasNode(id) && !visited[id] {
			visited[id] = true
			order = append(order, id)
			queue = append(queue, id)
		}
	}

	for depth := 0; depth < opts.MaxDepth && len(queue) > 0; depth++ {
		var next []NodeID
		for _, id := range queue {
			for _, e := range g.Incident(id) {
				if !follow(e.Type) {
					continue
				}
				other := e.Target
				if other == id {
					other = e.Source
				}
				if !visited[other] {
					visited[other] = true
					order = append(order, other)
					next = append(next, other)
				}
			}
		}
		queue = next
	}

	return order
}

// Neighborhood returns the nodes reachable from the seeds within maxDepth
// structural hops, excluding the seeds themselves.
func Neighborhood(g *Graph, seeds []NodeID, maxDepth int) []NodeID {
	all := Traverse(g, seeds, TraversalOptions{MaxDepth: maxDepth})
	seedSet := make(map[NodeID]bool, len(seeds))
	for _, id := range seeds {
		seedSet[id] = true
	}
	out := make([]NodeID, 0, len(all))
	for _, id := range all {
		if !seedSet[id] {
			out = append(out, id)
		}
	}
	return out
}
