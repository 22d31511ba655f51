package graph

import (
	"log/slog"
	"sort"
)

// minComponentSplit is the minimum component size eligible for further
// modularity-based splitting.
const minComponentSplit = 6

// maxModularityNodes caps the node count for the modularity optimisation.
// Components larger than this are kept as level-0 only.
const maxModularityNodes = 200

// edge represents a weighted edge in the in-memory adjacency list.
type edge struct {
	to     int
	weight float64
}

// Community is a group of rules. Level 0 is a connected component, level 1
// a modularity-based split of a larger component.
type Community struct {
	ID      int      `json:"id"`
	Level   int      `json:"level"`
	Members []NodeID `json:"-"`
	Size    int      `json:"size"`
	Labels  []string `json:"members"`
}

// adjacency builds the undirected weighted adjacency list over the sorted
// node order.
func adjacency(g *Graph) ([]*Node, [][]edge, float64) {
	nodes := g.Nodes()
	idIndex := make(map[NodeID]int, len(nodes))
	for i, n := range nodes {
		idIndex[n.ID] = i
	}

	adj := make([][]edge, len(nodes))
	totalWeight := 0.0
	for _, e := range g.edges {
		si, okS := idIndex[e.Source]
		ti, okT := idIndex[e.Target]
		if !okS || !okT {
			continue
		}
		w := float64(e.Weight())
		adj[si] = append(adj[si], edge{to: ti, weight: w})
		adj[ti] = append(adj[ti], edge{to: si, weight: w})
		totalWeight += w
	}
	return nodes, adj, totalWeight
}

// components returns connected components as index slices via BFS.
func components(adj [][]edge) [][]int {
	visited := make([]bool, len(adj))
	var comps [][]int

	for i := range adj {
		if visited[i] {
			continue
		}
		var comp []int
		queue := []int{i}
		visited[i] = true
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			comp = append(comp, node)
			for _, e := range adj[node] {
				if !visited[e.to] {
					visited[e.to] = true
					queue = append(queue, e.to)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}

// Components returns the connected components of g, treating edges as
// undirected. Components are ordered by size descending.
func Components(g *Graph) [][]NodeID {
	nodes, adj, _ := adjacency(g)
	comps := components(adj)
	out := make([][]NodeID, len(comps))
	for i, c := range comps {
		out[i] = memberIDs(c, nodes)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// DetectCommunities runs community detection over the rule graph.
// Level-0 communities are connected components. Components of at least
// minComponentSplit nodes are further split using greedy modularity
// optimisation and reported as level-1 communities.
func DetectCommunities(g *Graph) []Community {
	if g.NodeCount() == 0 {
		return nil
	}
	nodes, adj, totalWeight := adjacency(g)
	comps := components(adj)

	slog.Debug("community: BFS found components",
		"components", len(comps), "largest", largestComp(comps))

	sort.SliceStable(comps, func(i, j int) bool { return len(comps[i]) > len(comps[j]) })

	var out []Community
	add := func(level int, members []int) {
		ids := memberIDs(members, nodes)
		labels := make([]string, len(members))
		for i, idx := range members {
			labels[i] = nodes[idx].Label
		}
		out = append(out, Community{
			ID:      len(out),
			Level:   level,
			Members: ids,
			Size:    len(ids),
			Labels:  labels,
		})
	}

	for _, comp := range comps {
		add(0, comp)
		// Skip if too large (O(n²) algorithm would be too slow).
		if len(comp) >= minComponentSplit && len(comp) <= maxModularityNodes && totalWeight > 0 {
			subs := modularitySplit(comp, adj, totalWeight)
			if len(subs) <= 1 {
				continue
			}
			for _, sub := range subs {
				add(1, sub)
			}
		}
	}

	slog.Debug("community: detection complete", "communities", len(out))
	return out
}

func largestComp(comps [][]int) int {
	max := 0
	for _, c := range comps {
		if len(c) > max {
			max = len(c)
		}
	}
	return max
}

func memberIDs(comp []int, nodes []*Node) []NodeID {
	ids := make([]NodeID, len(comp))
	for i, idx := range comp {
		ids[i] = nodes[idx].ID
	}
	return ids
}

// modularitySplit applies a greedy modularity optimisation (simplified Louvain)
// to split a connected component into two or more sub-communities. If the
// split does not improve modularity the original component is returned as-is.
func modularitySplit(comp []int, adj [][]edge, totalWeight float64) [][]int {
	n := len(comp)
	if n < minComponentSplit {
		return [][]int{comp}
	}

	localIdx := make(map[int]int, n)
	for i, node := range comp {
		localIdx[node] = i
	}

	// community[i] is the community label for local node i.
	community := make([]int, n)
	for i := range community {
		community[i] = i
	}

	strength := make([]float64, n)
	for i, node := range comp {
		for _, e := range adj[node] {
			if _, ok := localIdx[e.to]; ok {
				strength[i] += e.weight
			}
		}
	}

	m2 := 2.0 * totalWeight
	if m2 == 0 {
		return [][]int{comp}
	}

	commStrength := make(map[int]float64, n)
	for i := range comp {
		commStrength[community[i]] += strength[i]
	}

	maxPasses := 20
	for pass := 0; pass < maxPasses; pass++ {
		moved := false
		for i, node := range comp {
			commWeights := make(map[int]float64)
			for _, e := range adj[node] {
				li, ok := localIdx[e.to]
				if !ok {
					continue
				}
				commWeights[community[li]] += e.weight
			}

			currentComm := community[i]
			bestComm := currentComm
			bestGain := 0.0

			kiIn := commWeights[currentComm]
			ki := strength[i]
			sigmaCurrent := commStrength[currentComm]
			removeDelta := kiIn/m2 - (sigmaCurrent*ki)/(m2*m2)

			// Iterate candidate labels in order so ties resolve the same
			// way on every run.
			candidates := make([]int, 0, len(commWeights))
			for c := range commWeights {
				candidates = append(candidates, c)
			}
			sort.Ints(candidates)

			for _, c := range candidates {
				if c == currentComm {
					continue
				}
				sigmaC := commStrength[c]
				gain := (commWeights[c]/m2 - (sigmaC*ki)/(m2*m2)) - removeDelta
				if gain > bestGain {
					bestGain = gain
					bestComm = c
				}
			}

			if bestComm != currentComm {
				commStrength[currentComm] -= ki
				commStrength[bestComm] += ki
				community[i] = bestComm
				moved = true
			}
		}
		if !moved {
			break
		}
	}

	groups := make(map[int][]int)
	var labels []int
	for i, node := range comp {
		c := community[i]
		if _, ok := groups[c]; !ok {
			labels = append(labels, c)
		}
		groups[c] = append(groups[c], node)
	}

	result := make([][]int, 0, len(groups))
	for _, c := range labels {
		result = append(result, groups[c])
	}

	if len(result) <= 1 {
		return [][]int{comp}
	}
	return result
}
