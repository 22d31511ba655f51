package graph

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustID(t *testing.T, s string) NodeID {
	t.Helper()
	id, err := ParseNodeID(s)
	require.NoError(t, err, "parsing %q", s)
	return id
}

func newTestGraph(t *testing.T, ids ...string) *Graph {
	t.Helper()
	g := New()
	for _, s := range ids {
		n := NewNode(mustID(t, s), "")
		n.Category = "General"
		require.True(t, g.AddNode(n), "adding %s: duplicate", s)
	}
	return g
}

func connect(t *testing.T, g *Graph, src, dst string, typ EdgeType) {
	t.Helper()
	_, err := g.Connect(mustID(t, src), mustID(t, dst), typ, "")
	require.NoError(t, err, "connecting %s -> %s", src, dst)
}

func ids(t *testing.T, ns []NodeID) []string {
	t.Helper()
	out := make([]string, len(ns))
	for i, id := range ns {
		out[i] = id.String()
	}
	return out
}

// ---------------------------------------------------------------------------
// Identity and ordering
// ---------------------------------------------------------------------------

func TestParseNodeID(t *testing.T) {
	id := mustID(t, "CRC_3.1350")
	assert.Equal(t, NodeID{System: SystemCRC, Rule: "3.1350"}, id)
	assert.Equal(t, "crc_3.1350", id.String())
	assert.Equal(t, "CRC 3.1350", id.Label())

	id = mustID(t, "county_local_rule_7")
	assert.Equal(t, "local_rule_7", id.Rule)

	for _, bad := range []string{"", "ccp", "ccp_", "frcp_12"} {
		_, err := ParseNodeID(bad)
		assert.Error(t, err, "ParseNodeID(%q)", bad)
	}
}

func TestSortKeyOrder(t *testing.T) {
	rules := []string{"2025.480", "437c", "abc", "1005", "437", "2025", "410.10", "410.2"}
	keys := make([]SortKey, len(rules))
	for i, r := range rules {
		keys[i] = ParseSortKey(r)
	}
	slices.SortFunc(keys, SortKey.Compare)

	var got []string
	for _, k := range keys {
		got = append(got, k.Raw)
	}
	assert.Equal(t, []string{"abc", "410.2", "410.10", "437", "437c", "1005", "2025", "2025.480"}, got)

	k := ParseSortKey("583.5a")
	fam, ok := k.Family()
	assert.True(t, ok)
	assert.Equal(t, 583, fam)
	assert.Equal(t, 5, k.Minor())
	assert.Equal(t, "a", k.Suffix)
	assert.Equal(t, 583.5, k.Value())
	assert.Equal(t, 2030.3, ParseSortKey("2030.300").Value())
	assert.False(t, ParseSortKey("abc").Valid(), "abc has no numeric head")
	assert.Equal(t, 0.0, ParseSortKey("Unknown").Value())
}

func TestNodesOrderedBySystem(t *testing.T) {
	g := newTestGraph(t, "county_3.4", "crc_2.100", "ccp_1005", "ccp_437c", "crc_1.1")

	var got []string
	for _, n := range g.Nodes() {
		got = append(got, n.ID.String())
	}
	assert.Equal(t, []string{"ccp_437c", "ccp_1005", "crc_1.1", "crc_2.100", "county_3.4"}, got)
	assert.Len(t, g.NodesBySystem(SystemCRC), 2)
	assert.False(t, g.AddNode(NewNode(mustID(t, "ccp_437c"), "again")), "duplicate node was added")
}

// ---------------------------------------------------------------------------
// Edges
// ---------------------------------------------------------------------------

func TestAddEdge(t *testing.T) {
	g := newTestGraph(t, "ccp_1", "ccp_2")
	a, b := mustID(t, "ccp_1"), mustID(t, "ccp_2")

	ok, err := g.Connect(a, b, EdgeCrossReference, "")
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = g.Connect(a, b, EdgeCrossReference, "again")
	assert.False(t, ok, "duplicate triple was added")
	ok, _ = g.Connect(b, a, EdgeCrossReference, "")
	assert.True(t, ok, "reverse direction is a distinct triple")
	ok, _ = g.Connect(a, b, EdgeSequential, "")
	assert.True(t, ok, "different type is a distinct triple")

	ok, err = g.Connect(a, a, EdgeThematic, "")
	assert.False(t, ok, "self-loop")
	assert.NoError(t, err)

	_, err = g.Connect(a, mustID(t, "ccp_3"), EdgeThematic, "")
	assert.ErrorIs(t, err, ErrUnknownNode)
	_, err = g.Connect(a, b, EdgeType("cites"), "")
	assert.ErrorIs(t, err, ErrUnknownEdgeType)

	assert.Equal(t, 3, g.EdgeCount())
	assert.True(t, g.HasEdge(EdgeKey{Source: b, Target: a, Type: EdgeCrossReference}))
	assert.Equal(t, 3, g.Degree(a))
}

func TestEdgeTypeTable(t *testing.T) {
	want := map[EdgeType]int{
		EdgeCrossReference:       3,
		EdgeProceduralDependency: 5,
		EdgeTimingRelationship:   4,
		EdgeCategorySimilarity:   2,
		EdgeContentSimilarity:    1,
		EdgeSequential:           8,
		EdgeThematic:             3,
		EdgeCrossSystem:          9,
	}
	require.Len(t, EdgeTypes, len(want))
	for typ, w := range want {
		assert.Equal(t, w, typ.Weight(), "%s weight", typ)
		assert.NotEmpty(t, typ.Label(), "%s label", typ)
	}
	assert.False(t, EdgeCategorySimilarity.Structural())
	assert.False(t, EdgeContentSimilarity.Structural())

	_, err := ParseEdgeType("cites")
	assert.ErrorIs(t, err, ErrUnknownEdgeType)
}

func TestLinkedIgnoresSimilarity(t *testing.T) {
	g := newTestGraph(t, "ccp_1", "ccp_2", "ccp_3")
	connect(t, g, "ccp_1", "ccp_2", EdgeCategorySimilarity)
	connect(t, g, "ccp_2", "ccp_3", EdgeCrossReference)

	assert.False(t, g.Linked(mustID(t, "ccp_1")), "ccp_1 has only a similarity edge")
	assert.True(t, g.Linked(mustID(t, "ccp_3")), "ccp_3 has a structural edge")
}

// ---------------------------------------------------------------------------
// Traversal and analytics
// ---------------------------------------------------------------------------

func TestTraverseAndNeighborhood(t *testing.T) {
	g := newTestGraph(t, "ccp_1", "ccp_2", "ccp_3", "ccp_4", "crc_1")
	connect(t, g, "ccp_1", "ccp_2", EdgeCrossReference)
	connect(t, g, "ccp_3", "ccp_2", EdgeProceduralDependency)
	connect(t, g, "ccp_3", "ccp_4", EdgeSequential)
	connect(t, g, "ccp_1", "crc_1", EdgeContentSimilarity)

	seeds := []NodeID{mustID(t, "ccp_1")}

	assert.Equal(t, []string{"ccp_1"}, ids(t, Traverse(g, seeds, TraversalOptions{MaxDepth: 0})))
	assert.Equal(t, []string{"ccp_1", "ccp_2", "ccp_3"}, ids(t, Traverse(g, seeds, TraversalOptions{MaxDepth: 2})))
	assert.Equal(t, []string{"ccp_1", "crc_1"},
		ids(t, Traverse(g, seeds, TraversalOptions{MaxDepth: 1, Types: []EdgeType{EdgeContentSimilarity}})))
	assert.Equal(t, []string{"ccp_2", "ccp_3", "ccp_4"}, ids(t, Neighborhood(g, seeds, 3)))

	assert.Empty(t, Traverse(g, []NodeID{mustID(t, "ccp_99")}, TraversalOptions{MaxDepth: 2}))
}

func TestComponents(t *testing.T) {
	g := newTestGraph(t, "ccp_1", "ccp_2", "ccp_3", "crc_1", "crc_2", "county_1")
	connect(t, g, "ccp_1", "ccp_2", EdgeCrossReference)
	connect(t, g, "ccp_2", "ccp_3", EdgeSequential)
	connect(t, g, "crc_1", "crc_2", EdgeSequential)

	comps := Components(g)
	require.Len(t, comps, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{len(comps[0]), len(comps[1]), len(comps[2])})
}

func TestAnalyze(t *testing.T) {
	g := newTestGraph(t, "ccp_1", "ccp_2", "crc_1", "crc_2", "county_1")
	for _, n := range g.Nodes() {
		if n.ID.System == SystemCRC {
			n.Category = "Format"
		}
	}
	connect(t, g, "ccp_1", "ccp_2", EdgeSequential)
	connect(t, g, "ccp_1", "crc_1", EdgeCrossSystem)
	connect(t, g, "crc_1", "crc_2", EdgeSequential)
	connect(t, g, "ccp_2", "crc_1", EdgeCrossSystem)

	s := Analyze(g, 2)
	assert.Equal(t, 5, s.NodeCount)
	assert.Equal(t, 4, s.EdgeCount)
	assert.Equal(t, 0.4, s.Density)
	assert.Equal(t, 1.6, s.AverageDegree)
	assert.Equal(t, 1, s.IsolatedNodes)
	assert.Equal(t, 2, s.Components)
	assert.Equal(t, 4, s.LargestCluster)
	assert.Equal(t, 2, s.NodesBySystem["ccp"])
	assert.Equal(t, 1, s.NodesBySystem["county"])
	assert.Equal(t, 2, s.EdgesByType["cross_system"])
	assert.Equal(t, 2, s.EdgesByType["sequential"])

	require.Len(t, s.CentralNodes, 2)
	assert.Equal(t, "crc_1", s.CentralNodes[0].ID)
	assert.Equal(t, 3, s.CentralNodes[0].Degree)

	byName := make(map[string]CategoryStats)
	for _, c := range s.Categories {
		byName[c.Name] = c
	}
	general, format := byName["General"], byName["Format"]
	assert.Equal(t, 3, general.NodeCount)
	assert.Equal(t, 1, general.InternalEdges)
	assert.Equal(t, 2, general.ExternalEdges)
	assert.Equal(t, 1, format.InternalEdges)
	assert.Equal(t, 2, format.ExternalEdges)
	assert.Equal(t, "General", s.Categories[0].Name, "categories ordered by size")
}

func TestDensityBounds(t *testing.T) {
	assert.Equal(t, 0.0, Density(0, 0))
	assert.Equal(t, 0.0, Density(1, 0))
	assert.Equal(t, 1.0, Density(3, 10), "density is clamped to 1")
	assert.Equal(t, 0.0, AverageDegree(0, 0))
}

func TestDetectCommunities(t *testing.T) {
	g := newTestGraph(t, "ccp_1", "ccp_2", "ccp_3", "ccp_4", "ccp_5", "ccp_6", "crc_1")
	// Two triangles joined by one weak edge.
	connect(t, g, "ccp_1", "ccp_2", EdgeSequential)
	connect(t, g, "ccp_2", "ccp_3", EdgeSequential)
	connect(t, g, "ccp_1", "ccp_3", EdgeSequential)
	connect(t, g, "ccp_4", "ccp_5", EdgeSequential)
	connect(t, g, "ccp_5", "ccp_6", EdgeSequential)
	connect(t, g, "ccp_4", "ccp_6", EdgeSequential)
	connect(t, g, "ccp_3", "ccp_4", EdgeContentSimilarity)

	comms := DetectCommunities(g)
	var level0 []Community
	level1 := 0
	covered := make(map[NodeID]bool)
	for _, c := range comms {
		assert.Len(t, c.Members, c.Size, "community %d", c.ID)
		assert.Len(t, c.Labels, c.Size, "community %d", c.ID)
		switch c.Level {
		case 0:
			level0 = append(level0, c)
		case 1:
			level1++
			for _, id := range c.Members {
				assert.False(t, covered[id], "%s in two level-1 communities", id)
				covered[id] = true
			}
		}
	}
	require.Len(t, level0, 2)
	assert.Equal(t, 6, level0[0].Size)
	assert.Equal(t, 1, level0[1].Size)
	if level1 > 0 {
		assert.Len(t, covered, 6)
	}

	assert.Nil(t, DetectCommunities(New()), "empty graph has no communities")
}
