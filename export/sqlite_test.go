//go:build cgo

package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/rulegraph/store"
)

func TestSQLiteSnapshot(t *testing.T) {
	ctx := context.Background()
	g := testGraph(t)
	opts := testOptions(t, FormatSQLite)

	// Writing twice replaces the snapshot instead of appending a build.
	for range 2 {
		_, err := WriteAll(ctx, g, opts)
		require.NoError(t, err)
	}

	s, err := store.New(filepath.Join(opts.Dir, "rulegraph.db"))
	require.NoError(t, err)
	defer s.Close()

	builds, err := s.ListBuilds(ctx)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "build-1", builds[0].ID)
	assert.Equal(t, "ccp,crc,county", builds[0].Metadata["systems"])

	back, b, err := s.LoadGraph(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "build-1", b.ID)
	assert.Equal(t, g.NodeCount(), back.NodeCount())
	assert.Equal(t, g.EdgeCount(), back.EdgeCount())
	assert.Equal(t, triples(g), triples(back))
	require.NotNil(t, b.Stats)
	assert.Equal(t, 4, b.Stats.EdgeCount)
}
