// Package rulegraph builds a typed, weighted relationship graph over the
// California civil procedure rules (CCP, CRC and county local rules) and
// answers natural-language filing queries against it.
package rulegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/rulegraph/builder"
	"github.com/brunobiangulo/rulegraph/corpus"
	"github.com/brunobiangulo/rulegraph/export"
	"github.com/brunobiangulo/rulegraph/graph"
	"github.com/brunobiangulo/rulegraph/query"
	"github.com/brunobiangulo/rulegraph/store"
	"github.com/brunobiangulo/rulegraph/taxonomy"
)

// Engine is the main entry point for building and querying rule graphs.
type Engine interface {
	// Build loads every configured source, builds a fresh graph and makes
	// it current. A configured snapshot database receives a copy.
	Build(ctx context.Context) (*Build, error)

	// Current returns the build queries run against.
	Current() (*Build, error)

	// Query parses q and resolves it against the current graph.
	Query(ctx context.Context, q string) (*query.Answer, error)

	// Rule returns one rule of the current graph with its edges.
	Rule(id string) (*RuleDetail, error)

	// Export serializes the current graph. Zero option fields fall back to
	// the configured output settings.
	Export(ctx context.Context, opts export.Options) (*export.Result, error)

	// Snapshot saves the current build to the snapshot database.
	Snapshot(ctx context.Context) error

	// Load makes a stored build current. An empty id loads the latest.
	Load(ctx context.Context, id string) (*Build, error)

	// Builds lists the stored snapshots, newest first.
	Builds(ctx context.Context) ([]store.Build, error)

	// Taxonomy returns the tables the engine categorizes and links with.
	Taxonomy() *taxonomy.Taxonomy

	// Close releases the snapshot database.
	Close() error
}

// Build is one finished graph and its statistics.
type Build struct {
	ID          string           `json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	Fingerprint string           `json:"fingerprint"`
	Graph       *graph.Graph     `json:"-"`
	Stats       *graph.Stats     `json:"statistics"`
	EdgesAdded  builder.Counts   `json:"edges_added,omitempty"`
	Failures    []corpus.Failure `json:"failures,omitempty"`
	Skipped     int              `json:"skipped"`
	Source      string           `json:"source"`
}

// Build sources.
const (
	SourceCorpus   = "corpus"
	SourceSnapshot = "snapshot"
)

// RuleDetail is a rule with its incident edges.
type RuleDetail struct {
	Rule   export.NodeData   `json:"rule"`
	Degree int               `json:"degree"`
	Edges  []export.EdgeData `json:"edges"`
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg     Config
	tx      *taxonomy.Taxonomy
	loader  *corpus.Loader
	builder *builder.Builder
	store   *store.Store

	mu      sync.Mutex // serializes builds and loads
	current atomic.Pointer[Build]
	closed  atomic.Bool
}

// New creates an engine with the given configuration. No graph exists
// until Build or Load succeeds.
func New(cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tx, err := cfg.taxonomy()
	if err != nil {
		return nil, err
	}

	e := &engine{
		cfg:     cfg,
		tx:      tx,
		loader:  corpus.NewLoader(tx.Categorizer()),
		builder: builder.New(tx, cfg.Builder),
	}

	if cfg.DBPath != "" {
		s, err := store.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		e.store = s
	}
	return e, nil
}

func (e *engine) Build(ctx context.Context) (*Build, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if len(e.cfg.Sources) == 0 {
		return nil, ErrNoSources
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	c, err := e.loader.Load(e.cfg.Sources)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, counts, err := e.builder.Build(c.Nodes)
	if err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}

	b := &Build{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Fingerprint: store.Fingerprint(g),
		Graph:       g,
		Stats:       graph.Analyze(g, e.cfg.TopN),
		EdgesAdded:  counts,
		Failures:    c.Failures,
		Skipped:     c.Skipped,
		Source:      SourceCorpus,
	}

	if e.store != nil {
		// A failed save leaves the new graph usable.
		if err := e.save(ctx, b); err != nil {
			slog.Warn("rulegraph: snapshot failed", "build", b.ID, "error", err)
		}
	}

	e.current.Store(b)
	slog.Info("rulegraph: build complete",
		"build", b.ID,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"failures", len(c.Failures),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return b, nil
}

func (e *engine) Current() (*Build, error) {
	b := e.current.Load()
	if b == nil {
		return nil, ErrNoBuild
	}
	return b, nil
}

func (e *engine) Query(ctx context.Context, q string) (*query.Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := e.Current()
	if err != nil {
		return nil, err
	}
	return query.New(b.Graph, e.tx).Answer(q), nil
}

func (e *engine) Rule(id string) (*RuleDetail, error) {
	b, err := e.Current()
	if err != nil {
		return nil, err
	}
	nid, err := graph.ParseNodeID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuleNotFound, err)
	}
	n, ok := b.Graph.Node(nid)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	incident := b.Graph.Incident(nid)
	d := &RuleDetail{
		Rule:   export.NewNodeData(n),
		Degree: len(incident),
		Edges:  make([]export.EdgeData, len(incident)),
	}
	for i, edge := range incident {
		d.Edges[i] = export.NewEdgeData(i, edge)
	}
	return d, nil
}

func (e *engine) Export(ctx context.Context, opts export.Options) (*export.Result, error) {
	b, err := e.Current()
	if err != nil {
		return nil, err
	}
	defaults, err := e.cfg.ExportOptions()
	if err != nil {
		return nil, err
	}
	if opts.Dir == "" {
		opts.Dir = defaults.Dir
	}
	if opts.BaseName == "" {
		opts.BaseName = defaults.BaseName
	}
	if len(opts.Formats) == 0 {
		opts.Formats = defaults.Formats
	}
	if opts.MermaidEdgeLimit == 0 {
		opts.MermaidEdgeLimit = defaults.MermaidEdgeLimit
	}
	opts.BuildID = b.ID
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = b.CreatedAt
	}
	if opts.Stats == nil {
		opts.Stats = b.Stats
	}
	if opts.Taxonomy == nil {
		opts.Taxonomy = e.tx
	}
	return export.WriteAll(ctx, b.Graph, opts)
}

func (e *engine) Snapshot(ctx context.Context) error {
	if e.store == nil {
		return ErrNoStore
	}
	b, err := e.Current()
	if err != nil {
		return err
	}
	return e.save(ctx, b)
}

func (e *engine) save(ctx context.Context, b *Build) error {
	err := e.store.SaveGraph(ctx, store.Build{
		ID:        b.ID,
		CreatedAt: b.CreatedAt,
		Stats:     b.Stats,
		Metadata:  map[string]string{"source": b.Source},
	}, b.Graph)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	if e.cfg.KeepBuilds > 0 {
		if _, err := e.store.Prune(ctx, e.cfg.KeepBuilds); err != nil {
			return fmt.Errorf("pruning snapshots: %w", err)
		}
	}
	slog.Debug("rulegraph: snapshot saved", "build", b.ID)
	return nil
}

func (e *engine) Load(ctx context.Context, id string) (*Build, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	g, sb, err := e.store.LoadGraph(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	stats := sb.Stats
	if stats == nil {
		stats = graph.Analyze(g, e.cfg.TopN)
	}
	b := &Build{
		ID:          sb.ID,
		CreatedAt:   sb.CreatedAt,
		Fingerprint: store.Fingerprint(g),
		Graph:       g,
		Stats:       stats,
		Source:      SourceSnapshot,
	}
	e.current.Store(b)
	slog.Info("rulegraph: snapshot loaded", "build", b.ID, "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return b, nil
}

func (e *engine) Builds(ctx context.Context) ([]store.Build, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	return e.store.ListBuilds(ctx)
}

func (e *engine) Taxonomy() *taxonomy.Taxonomy { return e.tx }

func (e *engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// IsNotFound reports whether err means a missing rule or snapshot.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound) || errors.Is(err, store.ErrBuildNotFound)
}
