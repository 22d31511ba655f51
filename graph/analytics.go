package graph

import "sort"

// DefaultTopN is the number of central nodes reported by default.
const DefaultTopN = 10

// CentralNode is one entry of the degree-centrality ranking.
type CentralNode struct {
	ID       string `json:"id"`
	Section  string `json:"section"`
	Label    string `json:"label"`
	Degree   int    `json:"degree"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// CategoryStats describes how cohesive one category is.
type CategoryStats struct {
	Name          string   `json:"name"`
	NodeCount     int      `json:"nodeCount"`
	InternalEdges int      `json:"internalEdges"`
	ExternalEdges int      `json:"externalEdges"`
	InternalRatio float64  `json:"internalRatio"`
	Sections      []string `json:"sections"`
}

// Stats is the machine-readable statistics object mirrored into every
// output format.
type Stats struct {
	NodeCount      int             `json:"nodeCount"`
	EdgeCount      int             `json:"edgeCount"`
	Density        float64         `json:"density"`
	AverageDegree  float64         `json:"averageDegree"`
	IsolatedNodes  int             `json:"isolatedNodes"`
	Components     int             `json:"components"`
	LargestCluster int             `json:"largestComponent"`
	NodesBySystem  map[string]int  `json:"nodesBySystem"`
	EdgesByType    map[string]int  `json:"edgesByType"`
	CentralNodes   []CentralNode   `json:"centralNodes"`
	Categories     []CategoryStats `json:"categories"`
	Communities    []Community     `json:"communities,omitempty"`
}

// Density returns |E| / (|V|(|V|-1)/2) clamped to [0,1]. Graphs with at
// most one node have density 0.
func Density(nodes, edges int) float64 {
	if nodes <= 1 {
		return 0
	}
	possible := float64(nodes) * float64(nodes-1) / 2
	d := float64(edges) / possible
	if d > 1 {
		return 1
	}
	return d
}

// AverageDegree returns 2|E|/|V|, or 0 for an empty graph.
func AverageDegree(nodes, edges int) float64 {
	if nodes == 0 {
		return 0
	}
	return 2 * float64(edges) / float64(nodes)
}

// DegreeCentrality returns the topN nodes by incident edge count. Ties are
// broken by node order.
func DegreeCentrality(g *Graph, topN int) []CentralNode {
	nodes := g.Nodes()
	sort.SliceStable(nodes, func(i, j int) bool {
		return g.Degree(nodes[i].ID) > g.Degree(nodes[j].ID)
	})
	if topN > 0 && len(nodes) > topN {
		nodes = nodes[:topN]
	}
	out := make([]CentralNode, len(nodes))
	for i, n := range nodes {
		out[i] = CentralNode{
			ID:       n.ID.String(),
			Section:  n.ID.Rule,
			Label:    n.Label,
			Degree:   g.Degree(n.ID),
			Title:    n.Title,
			Category: n.Category,
		}
	}
	return out
}

// CategoryCohesion computes internal and external edge counts per category.
// An edge is internal when both endpoints share the category and external
// when exactly one does.
func CategoryCohesion(g *Graph) []CategoryStats {
	byCat := g.NodesByCategory()
	stats := make(map[string]*CategoryStats, len(byCat))
	for name, ns := range byCat {
		cs := &CategoryStats{Name: name, NodeCount: len(ns)}
		for _, n := range ns {
			cs.Sections = append(cs.Sections, n.Label)
		}
		stats[name] = cs
	}

	for _, e := range g.edges {
		src, _ := g.Node(e.Source)
		dst, _ := g.Node(e.Target)
		if src.Category == dst.Category {
			stats[src.Category].InternalEdges++
			continue
		}
		stats[src.Category].ExternalEdges++
		stats[dst.Category].ExternalEdges++
	}

	out := make([]CategoryStats, 0, len(stats))
	for _, cs := range stats {
		if total := cs.InternalEdges + cs.ExternalEdges; total > 0 {
			cs.InternalRatio = float64(cs.InternalEdges) / float64(total)
		}
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeCount != out[j].NodeCount {
			return out[i].NodeCount > out[j].NodeCount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Analyze computes all statistics over a finished graph. It does not
// modify g.
func Analyze(g *Graph, topN int) *Stats {
	if topN <= 0 {
		topN = DefaultTopN
	}
	s := &Stats{
		NodeCount:     g.NodeCount(),
		EdgeCount:     g.EdgeCount(),
		Density:       Density(g.NodeCount(), g.EdgeCount()),
		AverageDegree: AverageDegree(g.NodeCount(), g.EdgeCount()),
		NodesBySystem: make(map[string]int),
		EdgesByType:   make(map[string]int),
		CentralNodes:  DegreeCentrality(g, topN),
		Categories:    CategoryCohesion(g),
	}

	for _, n := range g.nodes {
		s.NodesBySystem[string(n.ID.System)]++
		if g.Degree(n.ID) == 0 {
			s.IsolatedNodes++
		}
	}
	for _, e := range g.edges {
		s.EdgesByType[string(e.Type)]++
	}

	s.Communities = DetectCommunities(g)
	for _, c := range s.Communities {
		if c.Level != 0 {
			continue
		}
		s.Components++
		if c.Size > s.LargestCluster {
			s.LargestCluster = c.Size
		}
	}
	return s
}
