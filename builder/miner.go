package builder

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/brunobiangulo/rulegraph/graph"
)

// Miner discovers same-system edges from node text and category
// membership.
type Miner struct {
	opts Options
}

// NewMiner returns a miner with the given options.
func NewMiner(opts Options) *Miner {
	return &Miner{opts: opts.withDefaults()}
}

// Mine adds cross_reference, procedural_dependency, timing_relationship,
// category_similarity and (when enabled) content_similarity edges to g.
// Tokens that do not resolve to a node are dropped.
func (m *Miner) Mine(g *graph.Graph) Counts {
	counts := make(Counts)
	idx := newRuleIndex(g)

	for _, n := range g.Nodes() {
		add := func(tok string, t graph.EdgeType, desc func(target *graph.Node) string) {
			target, ok := idx.lookup(n.ID.System, tok)
			if !ok {
				return
			}
			tn, _ := g.Node(target)
			counts.add(g, graph.Edge{Source: n.ID, Target: target, Type: t, Description: desc(tn)})
		}
		refDesc := func(target *graph.Node) string {
			return fmt.Sprintf("%s references %s", n.Label, target.Label)
		}

		for _, tok := range ExtractRuleTokens(n.Title) {
			add(tok, graph.EdgeCrossReference, refDesc)
		}
		for _, entry := range n.CrossRefs {
			for _, tok := range BucketTokens(entry, ExtractRuleTokens) {
				add(tok, graph.EdgeCrossReference, refDesc)
			}
		}
		for _, req := range n.Requirements {
			desc := fmt.Sprintf("Procedural dependency: %q", excerpt(req, 100))
			for _, tok := range ExtractRuleTokens(req) {
				add(tok, graph.EdgeProceduralDependency, func(*graph.Node) string { return desc })
			}
		}
		for _, timing := range n.Deadlines {
			desc := fmt.Sprintf("Timing relationship: %q", excerpt(timing, 100))
			for _, tok := range ExtractRuleTokens(timing) {
				add(tok, graph.EdgeTimingRelationship, func(*graph.Node) string { return desc })
			}
		}
	}

	m.mineCategories(g, counts)

	slog.Info("builder: mining complete",
		"cross_reference", counts[graph.EdgeCrossReference],
		"procedural_dependency", counts[graph.EdgeProceduralDependency],
		"timing_relationship", counts[graph.EdgeTimingRelationship],
		"category_similarity", counts[graph.EdgeCategorySimilarity],
		"content_similarity", counts[graph.EdgeContentSimilarity])
	return counts
}

// mineCategories pairs nodes within each category. With MaxCategoryFanout
// K > 0, each node is paired only with its next K nodes in category order.
func (m *Miner) mineCategories(g *graph.Graph, counts Counts) {
	byCat := g.NodesByCategory()
	names := make([]string, 0, len(byCat))
	for name := range byCat {
		names = append(names, name)
	}
	sort.Strings(names)

	k := m.opts.MaxCategoryFanout
	for _, name := range names {
		ns := byCat[name]
		if k <= 0 && m.opts.CategoryWarnSize > 0 && len(ns) > m.opts.CategoryWarnSize {
			slog.Warn("builder: large category paired without fan-out cap",
				"category", name, "nodes", len(ns), "pairs", len(ns)*(len(ns)-1)/2)
		}

		var words []map[string]bool
		if m.opts.ContentSimilarityThreshold > 0 {
			words = make([]map[string]bool, len(ns))
			for i, n := range ns {
				words[i] = wordSet(n.KeyProvisions)
			}
		}

		desc := "Both sections belong to category: " + name
		for i := 0; i < len(ns); i++ {
			end := len(ns)
			if k > 0 && i+1+k < end {
				end = i + 1 + k
			}
			for j := i + 1; j < end; j++ {
				counts.add(g, graph.Edge{Source: ns[i].ID, Target: ns[j].ID, Type: graph.EdgeCategorySimilarity, Description: desc})
				if words == nil {
					continue
				}
				if sim := jaccard(words[i], words[j]); sim >= m.opts.ContentSimilarityThreshold && sim > 0 {
					counts.add(g, graph.Edge{
						Source:      ns[i].ID,
						Target:      ns[j].ID,
						Type:        graph.EdgeContentSimilarity,
						Description: fmt.Sprintf("Similar key provisions (%.2f)", sim),
					})
				}
			}
		}
	}
}

// wordSet collects the distinct lower-cased words longer than three
// letters.
func wordSet(texts []string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range texts {
		for _, w := range strings.FieldsFunc(strings.ToLower(t), func(r rune) bool {
			return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
		}) {
			if len(w) > 3 {
				set[w] = true
			}
		}
	}
	return set
}

// jaccard returns |a∩b| / |a∪b|, or 0 when both are empty.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// ruleIndex resolves lower-cased rule tokens to node ids per system.
type ruleIndex map[graph.System]map[string]graph.NodeID

func newRuleIndex(g *graph.Graph) ruleIndex {
	idx := make(ruleIndex)
	for _, n := range g.Nodes() {
		if idx[n.ID.System] == nil {
			idx[n.ID.System] = make(map[string]graph.NodeID)
		}
		key := strings.ToLower(n.ID.Rule)
		if _, ok := idx[n.ID.System][key]; !ok {
			idx[n.ID.System][key] = n.ID
		}
	}
	return idx
}

func (idx ruleIndex) lookup(sys graph.System, tok string) (graph.NodeID, bool) {
	id, ok := idx[sys][strings.ToLower(tok)]
	return id, ok
}
