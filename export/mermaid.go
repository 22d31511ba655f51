package export

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/brunobiangulo/rulegraph/graph"
)

// mermaidTypes are the edge types worth drawing.
var mermaidTypes = map[graph.EdgeType]bool{
	graph.EdgeCrossSystem:          true,
	graph.EdgeProceduralDependency: true,
	graph.EdgeCrossReference:       true,
}

// mermaidPalette colours categories in name order, cycling.
var mermaidPalette = []string{
	"#ff9999", "#99ff99", "#9999ff", "#ffff99",
	"#ff99ff", "#99ffff", "#ffcc99", "#ccff99",
	"#c9b3ff", "#b3e0ff",
}

var mermaidUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

func mermaidID(id graph.NodeID) string {
	return mermaidUnsafe.ReplaceAllString(id.String(), "_")
}

func mermaidText(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

// MermaidEdges returns the edges drawn in the diagram: the allowed types,
// heaviest first, capped at limit when limit is positive.
func MermaidEdges(g *graph.Graph, limit int) []graph.Edge {
	var out []graph.Edge
	for _, e := range g.Edges() {
		if mermaidTypes[e.Type] {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight() > out[j].Weight()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RenderMermaid renders the flowchart text.
func RenderMermaid(g *graph.Graph, meta *Metadata, limit int) string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	if meta != nil && meta.Statistics != nil {
		s := meta.Statistics
		fmt.Fprintf(&b, "%%%% build=%s nodes=%d edges=%d density=%.4f averageDegree=%.2f components=%d\n",
			meta.BuildID, s.NodeCount, s.EdgeCount, s.Density, s.AverageDegree, s.Components)
	}

	edges := MermaidEdges(g, limit)
	declared := make(map[graph.NodeID]bool)
	var used []*graph.Node
	declare := func(id graph.NodeID) {
		if declared[id] {
			return
		}
		declared[id] = true
		n, ok := g.Node(id)
		if !ok {
			return
		}
		used = append(used, n)
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", mermaidID(id), mermaidText(n.Label))
	}
	for _, e := range edges {
		declare(e.Source)
		declare(e.Target)
	}
	if len(edges) > 0 {
		b.WriteString("\n")
	}
	for _, e := range edges {
		fmt.Fprintf(&b, "    %s -->|%s| %s\n", mermaidID(e.Source), e.Label(), mermaidID(e.Target))
	}

	if len(used) == 0 {
		return b.String()
	}

	classes := make(map[string]int)
	for i, c := range g.Categories() {
		classes[c] = i
	}
	members := make(map[int][]string)
	for _, n := range used {
		idx := classes[n.Category]
		members[idx] = append(members[idx], mermaidID(n.ID))
	}
	idxs := make([]int, 0, len(members))
	for idx := range members {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)

	b.WriteString("\n")
	for _, idx := range idxs {
		fmt.Fprintf(&b, "    classDef cat%d fill:%s\n", idx, mermaidPalette[idx%len(mermaidPalette)])
	}
	for _, idx := range idxs {
		fmt.Fprintf(&b, "    class %s cat%d\n", strings.Join(members[idx], ","), idx)
	}
	return b.String()
}

func writeMermaid(_ context.Context, w *Writer, g *graph.Graph, meta *Metadata) ([]string, error) {
	p := w.path(".mmd")
	if err := writeFile(p, []byte(RenderMermaid(g, meta, w.opts.MermaidEdgeLimit))); err != nil {
		return nil, err
	}
	return []string{p}, nil
}
