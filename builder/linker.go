package builder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/brunobiangulo/rulegraph/graph"
	"github.com/brunobiangulo/rulegraph/taxonomy"
)

// Linker connects rules across systems and gives otherwise isolated rules
// at least one structural edge.
type Linker struct {
	tx   *taxonomy.Taxonomy
	opts Options
}

// NewLinker returns a linker using tx for correspondences and themes.
func NewLinker(tx *taxonomy.Taxonomy, opts Options) *Linker {
	return &Linker{tx: tx, opts: opts.withDefaults()}
}

// Link runs the curated, explicit, sequential and thematic passes in that
// order.
func (l *Linker) Link(g *graph.Graph) Counts {
	counts := make(Counts)
	l.curated(g, counts)
	l.explicit(g, counts)
	l.sequential(g, counts)
	l.thematic(g, counts)

	slog.Info("builder: linking complete",
		"cross_system", counts[graph.EdgeCrossSystem],
		"sequential", counts[graph.EdgeSequential],
		"thematic", counts[graph.EdgeThematic])
	return counts
}

// curated applies the correspondence table regardless of connectivity.
// Entries naming a missing rule are skipped.
func (l *Linker) curated(g *graph.Graph, counts Counts) {
	skipped := 0
	for _, c := range l.tx.Links() {
		if !g.HasNode(c.From) || !g.HasNode(c.To) {
			slog.Debug("builder: skipping correspondence with missing rule",
				"from", c.From.String(), "to", c.To.String())
			skipped++
			continue
		}
		counts.add(g, graph.Edge{
			Source:      c.From,
			Target:      c.To,
			Type:        graph.EdgeCrossSystem,
			Description: fmt.Sprintf("%s %s %s", c.From.Label(), strings.ReplaceAll(c.Relation, "_", " "), c.To.Label()),
			Strength:    c.Strength,
			Relation:    c.Relation,
		})
	}
	if skipped > 0 {
		slog.Info("builder: correspondences skipped", "count", skipped)
	}
}

// explicit resolves citations in titles and text buckets against the
// other systems' rules.
func (l *Linker) explicit(g *graph.Graph, counts Counts) {
	idx := newRuleIndex(g)
	for _, n := range g.Nodes() {
		var toks []string
		toks = append(toks, ExtractCrossSystemTokens(n.Title)...)
		for _, entry := range n.CrossRefs {
			toks = append(toks, BucketTokens(entry, ExtractCrossSystemTokens)...)
		}
		for _, bucket := range [][]string{n.Requirements, n.Deadlines, n.KeyProvisions} {
			for _, s := range bucket {
				toks = append(toks, ExtractCrossSystemTokens(s)...)
			}
		}

		for _, tok := range toks {
			for _, sys := range graph.Systems {
				if sys == n.ID.System {
					continue
				}
				target, ok := idx.lookup(sys, tok)
				if !ok {
					continue
				}
				counts.add(g, graph.Edge{
					Source:      n.ID,
					Target:      target,
					Type:        graph.EdgeCrossSystem,
					Description: fmt.Sprintf("%s cites %s", n.Label, target.Label()),
					Relation:    "explicit_reference",
				})
			}
		}
	}
}

// sequential connects each rule to its successor within the same section
// family when the sub-section gap is small and at least one of the two was
// unlinked when the pass started.
func (l *Linker) sequential(g *graph.Graph, counts Counts) {
	unlinked := l.unlinked(g)
	if len(unlinked) == 0 {
		return
	}

	for _, sys := range graph.Systems {
		families := make(map[int][]*graph.Node)
		var order []int
		for _, n := range g.NodesBySystem(sys) {
			fam, ok := n.SortKey.Family()
			if !ok {
				continue
			}
			if _, seen := families[fam]; !seen {
				order = append(order, fam)
			}
			families[fam] = append(families[fam], n)
		}

		for _, fam := range order {
			ns := families[fam]
			for i := 0; i+1 < len(ns); i++ {
				a, b := ns[i], ns[i+1]
				if a.SortKey.CompareParts(b.SortKey) >= 0 {
					continue
				}
				if gap := b.SortKey.Minor() - a.SortKey.Minor(); gap >= l.opts.SequentialGapThreshold {
					continue
				}
				if !unlinked[a.ID] && !unlinked[b.ID] {
					continue
				}
				counts.add(g, graph.Edge{
					Source:      a.ID,
					Target:      b.ID,
					Type:        graph.EdgeSequential,
					Description: fmt.Sprintf("%s follows %s", b.Label, a.Label),
				})
			}
		}
	}
}

// thematic groups the rules still unlinked by title theme and chains each
// group, closing it first to last when it has more than two members. Rules
// left without a thematic partner join the fallback group.
func (l *Linker) thematic(g *graph.Graph, counts Counts) {
	unlinked := l.unlinked(g)
	if len(unlinked) == 0 {
		return
	}

	var pending []*graph.Node
	for _, n := range g.Nodes() {
		if unlinked[n.ID] {
			pending = append(pending, n)
		}
	}

	groups := make(map[string][]*graph.Node)
	var themes []string
	join := func(theme string, n *graph.Node) {
		if _, ok := groups[theme]; !ok {
			themes = append(themes, theme)
		}
		groups[theme] = append(groups[theme], n)
	}
	tagged := make(map[graph.NodeID][]string)
	for _, n := range pending {
		tags := l.tx.Themes(n.Title)
		tagged[n.ID] = tags
		for _, tag := range tags {
			join(tag, n)
		}
	}

	// A rule whose every group is a singleton would stay isolated.
	fallback := l.tx.ThemeFallback()
	if fallback != "" {
		for _, n := range pending {
			tags := tagged[n.ID]
			if len(tags) == 0 || hasPartner(groups, tags) {
				continue
			}
			if !containsString(tags, fallback) {
				join(fallback, n)
			}
		}
	}

	for _, theme := range themes {
		members := groups[theme]
		graph.SortNodes(members)
		desc := "Shared theme: " + theme
		for i := 0; i+1 < len(members); i++ {
			counts.add(g, graph.Edge{Source: members[i].ID, Target: members[i+1].ID, Type: graph.EdgeThematic, Description: desc})
		}
		if len(members) > 2 {
			counts.add(g, graph.Edge{Source: members[0].ID, Target: members[len(members)-1].ID, Type: graph.EdgeThematic, Description: desc})
		}
	}

	// A lone fallback member attaches to its nearest rule.
	if fallback != "" && len(groups[fallback]) == 1 {
		n := groups[fallback][0]
		if !g.Linked(n.ID) {
			if near, ok := nearest(g, n); ok {
				counts.add(g, graph.Edge{Source: near.ID, Target: n.ID, Type: graph.EdgeThematic, Description: "Shared theme: " + fallback})
			}
		}
	}
}

// unlinked returns the rules with no structural edge.
func (l *Linker) unlinked(g *graph.Graph) map[graph.NodeID]bool {
	out := make(map[graph.NodeID]bool)
	for _, n := range g.Nodes() {
		if !g.Linked(n.ID) {
			out[n.ID] = true
		}
	}
	return out
}

func hasPartner(groups map[string][]*graph.Node, tags []string) bool {
	for _, t := range tags {
		if len(groups[t]) > 1 {
			return true
		}
	}
	return false
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// nearest returns the preceding rule of the same system, else the
// following one, else the first rule of any other system.
func nearest(g *graph.Graph, n *graph.Node) (*graph.Node, bool) {
	same := g.NodesBySystem(n.ID.System)
	for i, m := range same {
		if m.ID != n.ID {
			continue
		}
		if i > 0 {
			return same[i-1], true
		}
		if i+1 < len(same) {
			return same[i+1], true
		}
	}
	for _, m := range g.Nodes() {
		if m.ID != n.ID {
			return m, true
		}
	}
	return nil, false
}
