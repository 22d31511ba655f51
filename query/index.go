package query

import (
	"strings"

	"github.com/brunobiangulo/rulegraph/graph"
	"github.com/brunobiangulo/rulegraph/taxonomy"
)

// Index maps lookup keys to node ids. Keys are category names,
// "<system>_rule", "county_<name>" and "judge_<name>".
type Index map[string][]string

// BuildIndex indexes every node of g by category, system, county and
// judge. Ids within a key follow graph order.
func BuildIndex(g *graph.Graph) Index {
	idx := make(Index)
	add := func(key, id string) {
		idx[key] = append(idx[key], id)
	}
	for _, n := range g.Nodes() {
		id := n.ID.String()
		if n.Category != "" {
			add(n.Category, id)
		}
		add(string(n.ID.System)+"_rule", id)
		if n.County != "" {
			add("county_"+strings.ToLower(n.County), id)
		}
		if n.Judge != "" {
			add("judge_"+strings.Join(strings.Fields(strings.ToLower(n.Judge)), "_"), id)
		}
	}
	return idx
}

// MotionRequirements lists the rules a motion type requires and which of
// them exist in the graph.
type MotionRequirements struct {
	Description     string              `json:"description"`
	RequiredRules   map[string][]string `json:"required_rules"`
	CountySpecific  []string            `json:"county_specific,omitempty"`
	ApplicableNodes []string            `json:"applicable_nodes"`
}

// RequirementsMap builds the filing-requirements map for every motion type
// in the hierarchy of tx.
func RequirementsMap(g *graph.Graph, tx *taxonomy.Taxonomy) map[string]MotionRequirements {
	out := make(map[string]MotionRequirements)
	for _, motion := range tx.Motions() {
		entry, _ := tx.Hierarchy(motion)
		desc := entry.Description
		if desc == "" {
			desc = titleCase(strings.ReplaceAll(motion, "_", " "))
		}
		mr := MotionRequirements{
			Description:     desc,
			RequiredRules:   entry.Rules,
			CountySpecific:  entry.CountySpecific,
			ApplicableNodes: []string{},
		}
		for _, id := range entry.HierarchyRules() {
			if g.HasNode(id) {
				mr.ApplicableNodes = append(mr.ApplicableNodes, id.String())
			}
		}
		out[motion] = mr
	}
	return out
}
