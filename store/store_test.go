//go:build cgo

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/rulegraph/graph"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	require.NoError(t, err, "creating store")
	t.Cleanup(func() { s.Close() })
	return s
}

func mustID(t *testing.T, s string) graph.NodeID {
	t.Helper()
	id, err := graph.ParseNodeID(s)
	require.NoError(t, err, "parsing %q", s)
	return id
}

// sampleGraph returns three rules across two systems with one mined and one
// curated edge.
func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()

	a := graph.NewNode(mustID(t, "ccp_437c"), "Summary judgment")
	a.Category = "Motions"
	a.WordCount = 420
	a.Requirements = []string{"must file a separate statement"}
	a.CrossRefs = []string{"Section 1005"}

	b := graph.NewNode(mustID(t, "ccp_1005"), "Notice of motion")
	b.Category = "Motions"
	b.FilingRelevance = 7.5

	c := graph.NewNode(mustID(t, "county_3.4"), "Ex Parte Procedures")
	c.Category = "Ex Parte Procedures"
	c.County = "Los Angeles"
	c.Judge = "Hon. Smith"
	c.JudgeSpecific = true

	for _, n := range []*graph.Node{a, b, c} {
		g.AddNode(n)
	}
	_, err := g.AddEdge(graph.Edge{Source: a.ID, Target: b.ID, Type: graph.EdgeCrossReference, Description: "CCP 437c references CCP 1005"})
	require.NoError(t, err)
	_, err = g.AddEdge(graph.Edge{Source: a.ID, Target: c.ID, Type: graph.EdgeCrossSystem, Description: "CCP 437c implements COUNTY 3.4", Strength: 6, Relation: "implements"})
	require.NoError(t, err)
	return g
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	require.NotNil(t, s.DB())

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	s, err := New(filepath.Join(dir, "test.db"))
	require.NoError(t, err, "creating store in nested dir")
	s.Close()
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx), "second migrate")

	var n int
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&n))
	assert.Equal(t, len(migrations), n)
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

func TestSaveAndLoadGraph(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := sampleGraph(t)

	stats := graph.Analyze(g, 5)
	require.NoError(t, s.SaveGraph(ctx, Build{ID: "b1", Stats: stats, Metadata: map[string]string{"source": "test"}}, g))

	loaded, b, err := s.LoadGraph(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, 3, loaded.NodeCount())
	require.Equal(t, 2, loaded.EdgeCount())
	assert.Equal(t, 3, b.NodeCount)
	assert.Equal(t, 2, b.EdgeCount)
	assert.Equal(t, "test", b.Metadata["source"])
	require.NotNil(t, b.Stats, "statistics not restored")
	assert.Equal(t, 3, b.Stats.NodeCount)
	assert.Equal(t, Fingerprint(g), b.Fingerprint)

	n, ok := loaded.Node(mustID(t, "ccp_437c"))
	require.True(t, ok, "ccp_437c missing")
	assert.Equal(t, "CCP 437c", n.Label)
	assert.Equal(t, "Motions", n.Category)
	assert.Equal(t, 420, n.WordCount)
	assert.Equal(t, []string{"must file a separate statement"}, n.Requirements)
	assert.Nil(t, n.Deadlines, "empty bucket loads as nil")
	assert.True(t, n.SortKey.Valid(), "sort key not derived")

	county, ok := loaded.Node(mustID(t, "county_3.4"))
	require.True(t, ok)
	assert.Equal(t, "Los Angeles", county.County)
	assert.True(t, county.JudgeSpecific)
	assert.False(t, county.DepartmentSpecific)

	key := graph.EdgeKey{Source: mustID(t, "ccp_437c"), Target: mustID(t, "county_3.4"), Type: graph.EdgeCrossSystem}
	require.True(t, loaded.HasEdge(key), "cross_system edge missing")
	for _, e := range loaded.Edges() {
		if e.Type == graph.EdgeCrossSystem {
			assert.Equal(t, 6, e.Strength)
			assert.Equal(t, "implements", e.Relation)
		}
	}
}

func TestSaveGraphReplacesBuild(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveGraph(ctx, Build{ID: "same"}, sampleGraph(t)))
	small := graph.New()
	small.AddNode(graph.NewNode(mustID(t, "crc_2.100"), "Form of papers"))
	require.NoError(t, s.SaveGraph(ctx, Build{ID: "same"}, small))

	g, _, err := s.LoadGraph(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestSaveGraphRequiresID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.SaveGraph(context.Background(), Build{}, sampleGraph(t)))
}

func TestLoadLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.LoadGraph(ctx, "")
	require.ErrorIs(t, err, ErrBuildNotFound)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.SaveGraph(ctx, Build{ID: "old", CreatedAt: base}, sampleGraph(t)))
	small := graph.New()
	small.AddNode(graph.NewNode(mustID(t, "crc_2.100"), "Form of papers"))
	require.NoError(t, s.SaveGraph(ctx, Build{ID: "new", CreatedAt: base.Add(time.Minute)}, small))

	g, b, err := s.LoadGraph(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "new", b.ID)
	assert.Equal(t, 1, g.NodeCount())
	assert.True(t, b.CreatedAt.Equal(base.Add(time.Minute)), "created_at = %v", b.CreatedAt)
}

func TestListDeletePrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveGraph(ctx, Build{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second)}, sampleGraph(t)))
	}

	builds, err := s.ListBuilds(ctx)
	require.NoError(t, err)
	require.Len(t, builds, 3)
	assert.Equal(t, "c", builds[0].ID)
	assert.Equal(t, "a", builds[2].ID)
	assert.Nil(t, builds[0].Stats, "list omits statistics")

	require.NoError(t, s.DeleteBuild(ctx, "b"))
	assert.ErrorIs(t, s.DeleteBuild(ctx, "b"), ErrBuildNotFound)

	var rules int
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM rules WHERE build_id = 'b'").Scan(&rules))
	assert.Zero(t, rules, "rules not cascaded")

	removed, err := s.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = s.GetBuild(ctx, "c")
	assert.NoError(t, err, "newest build pruned")
}

func TestFingerprintStable(t *testing.T) {
	a, b := sampleGraph(t), sampleGraph(t)
	require.Equal(t, Fingerprint(a), Fingerprint(b), "identical graphs share a fingerprint")
	b.AddNode(graph.NewNode(mustID(t, "crc_2.100"), "Form of papers"))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b), "fingerprint changes with structure")
}
