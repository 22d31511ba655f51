package graph

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var (
	// ErrUnknownNode is returned when an edge endpoint is not in the graph.
	ErrUnknownNode = errors.New("graph: edge endpoint does not exist")

	// ErrUnknownEdgeType is returned for edge types outside the closed set.
	ErrUnknownEdgeType = errors.New("graph: unknown edge type")
)

// Graph holds deduplicated rule nodes and typed, weighted, directed edges.
// It is built by a single writer and is read-only once the build finishes;
// it is not safe for concurrent mutation.
type Graph struct {
	nodes    map[NodeID]*Node
	order    []NodeID
	edges    []Edge
	index    map[EdgeKey]int
	incident map[NodeID][]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[NodeID]*Node),
		index:    make(map[EdgeKey]int),
		incident: make(map[NodeID][]int),
	}
}

// AddNode inserts n. A node whose id already exists is ignored and false
// is returned.
func (g *Graph) AddNode(n *Node) bool {
	if n == nil {
		return false
	}
	if _, ok := g.nodes[n.ID]; ok {
		return false
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return true
}

// Node looks up a node by id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether id exists.
func (g *Graph) HasNode(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Nodes returns all nodes ordered by system, then sort key.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	SortNodes(out)
	return out
}

// NodesBySystem returns the nodes of one system in sort-key order.
func (g *Graph) NodesBySystem(s System) []*Node {
	var out []*Node
	for _, id := range g.order {
		if id.System == s {
			out = append(out, g.nodes[id])
		}
	}
	SortNodes(out)
	return out
}

// NodesByCategory partitions nodes by category; each slice is sorted.
func (g *Graph) NodesByCategory() map[string][]*Node {
	out := make(map[string][]*Node)
	for _, id := range g.order {
		n := g.nodes[id]
		out[n.Category] = append(out[n.Category], n)
	}
	for _, ns := range out {
		SortNodes(ns)
	}
	return out
}

// Categories returns the distinct categories in name order.
func (g *Graph) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range g.nodes {
		if !seen[n.Category] {
			seen[n.Category] = true
			out = append(out, n.Category)
		}
	}
	sort.Strings(out)
	return out
}

// AddEdge inserts e. It returns false without error when the triple already
// exists or the edge is a self-loop. Missing endpoints are an error.
func (g *Graph) AddEdge(e Edge) (bool, error) {
	if !e.Type.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownEdgeType, e.Type)
	}
	if !g.HasNode(e.Source) {
		return false, fmt.Errorf("%w: %s", ErrUnknownNode, e.Source)
	}
	if !g.HasNode(e.Target) {
		return false, fmt.Errorf("%w: %s", ErrUnknownNode, e.Target)
	}
	if e.Source == e.Target {
		return false, nil
	}
	key := e.Key()
	if _, ok := g.index[key]; ok {
		return false, nil
	}
	i := len(g.edges)
	g.edges = append(g.edges, e)
	g.index[key] = i
	g.incident[e.Source] = append(g.incident[e.Source], i)
	g.incident[e.Target] = append(g.incident[e.Target], i)
	return true, nil
}

// Connect is shorthand for AddEdge with a type and description.
func (g *Graph) Connect(source, target NodeID, t EdgeType, description string) (bool, error) {
	return g.AddEdge(Edge{Source: source, Target: target, Type: t, Description: description})
}

// HasEdge reports whether the triple exists.
func (g *Graph) HasEdge(k EdgeKey) bool {
	_, ok := g.index[k]
	return ok
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Incident returns the edges touching id in either direction.
func (g *Graph) Incident(id NodeID) []Edge {
	idx := g.incident[id]
	out := make([]Edge, len(idx))
	for i, j := range idx {
		out[i] = g.edges[j]
	}
	return out
}

// Degree counts incident edges in both directions.
func (g *Graph) Degree(id NodeID) int {
	return len(g.incident[id])
}

// Linked reports whether id has at least one structural edge.
func (g *Graph) Linked(id NodeID) bool {
	for _, j := range g.incident[id] {
		if g.edges[j].Type.Structural() {
			return true
		}
	}
	return false
}

// SortNodes orders nodes by system, then sort key.
func SortNodes(ns []*Node) {
	sort.SliceStable(ns, func(i, j int) bool {
		return Less(ns[i].ID, ns[i].SortKey, ns[j].ID, ns[j].SortKey)
	})
}

// Less orders two nodes by system rank, then sort key.
func Less(a NodeID, ak SortKey, b NodeID, bk SortKey) bool {
	if ra, rb := systemRank(a.System), systemRank(b.System); ra != rb {
		return ra < rb
	}
	return ak.Less(bk)
}

func systemRank(s System) int {
	for i, sys := range Systems {
		if sys == s {
			return i
		}
	}
	return len(Systems)
}
