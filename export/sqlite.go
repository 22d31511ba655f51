package export

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/brunobiangulo/rulegraph/graph"
	"github.com/brunobiangulo/rulegraph/query"
	"github.com/brunobiangulo/rulegraph/store"
	"github.com/brunobiangulo/rulegraph/taxonomy"
)

// writeSQLite stores g as a single-build snapshot database. An existing
// file is replaced.
func writeSQLite(ctx context.Context, w *Writer, g *graph.Graph, meta *Metadata) ([]string, error) {
	p := w.path(".db")
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(p + suffix); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing old snapshot: %w", err)
		}
	}

	s, err := store.New(p)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	id := meta.BuildID
	if id == "" {
		id = uuid.NewString()
	}
	b := store.Build{
		ID:        id,
		CreatedAt: meta.GeneratedAt,
		Stats:     meta.Statistics,
		Metadata: map[string]string{
			"systems":   strings.Join(meta.Systems, ","),
			"base_name": w.opts.BaseName,
		},
	}
	if err := s.SaveGraph(ctx, b, g); err != nil {
		return nil, fmt.Errorf("saving snapshot: %w", err)
	}
	return []string{p}, nil
}

// writeIndex writes the query index and the filing-requirements map.
func writeIndex(_ context.Context, w *Writer, g *graph.Graph, meta *Metadata) ([]string, error) {
	tx := w.opts.Taxonomy
	if tx == nil {
		var err error
		if tx, err = taxonomy.Default(); err != nil {
			return nil, err
		}
	}

	indexPath := w.path("_query_index.json")
	if err := writeJSON(indexPath, struct {
		Metadata *Metadata   `json:"metadata"`
		Index    query.Index `json:"index"`
	}{meta, query.BuildIndex(g)}); err != nil {
		return nil, err
	}

	reqPath := w.path("_filing_requirements.json")
	if err := writeJSON(reqPath, struct {
		Metadata     *Metadata                           `json:"metadata"`
		Requirements map[string]query.MotionRequirements `json:"requirements"`
	}{meta, query.RequirementsMap(g, tx)}); err != nil {
		return []string{indexPath}, err
	}
	return []string{indexPath, reqPath}, nil
}
