// Package builder turns loaded rule nodes into a relationship graph: the
// miner adds same-system edges from text, the linker adds cross-system and
// connectivity edges.
package builder

import (
	"errors"
	"log/slog"
	"time"

	"github.com/brunobiangulo/rulegraph/graph"
	"github.com/brunobiangulo/rulegraph/taxonomy"
)

// Default tunables.
const (
	DefaultSequentialGapThreshold = 25
	DefaultCategoryWarnSize       = 200
)

// Options tunes the miner and linker.
type Options struct {
	// MaxCategoryFanout caps category_similarity pairing to each node's
	// next K nodes in category order. Zero pairs every node.
	MaxCategoryFanout int `json:"max_category_fanout" yaml:"max_category_fanout" validate:"min=0"`

	// CategoryWarnSize logs a warning when an uncapped category is larger.
	CategoryWarnSize int `json:"category_warn_size" yaml:"category_warn_size" validate:"min=0"`

	// ContentSimilarityThreshold enables content_similarity edges for
	// same-category pairs whose key provisions overlap at least this much
	// (Jaccard). Zero disables.
	ContentSimilarityThreshold float64 `json:"content_similarity_threshold" yaml:"content_similarity_threshold" validate:"min=0,max=1"`

	// SequentialGapThreshold is the exclusive upper bound on the
	// sub-section gap between sequential neighbours.
	SequentialGapThreshold int `json:"sequential_gap_threshold" yaml:"sequential_gap_threshold" validate:"min=0"`
}

// DefaultOptions returns the default tunables.
func DefaultOptions() Options {
	return Options{
		CategoryWarnSize:       DefaultCategoryWarnSize,
		SequentialGapThreshold: DefaultSequentialGapThreshold,
	}
}

func (o Options) withDefaults() Options {
	if o.SequentialGapThreshold <= 0 {
		o.SequentialGapThreshold = DefaultSequentialGapThreshold
	}
	return o
}

// Counts tallies the edges actually added, by type.
type Counts map[graph.EdgeType]int

// add inserts e and counts it when new. Insertion errors cannot occur for
// edges built from existing nodes and are logged.
func (c Counts) add(g *graph.Graph, e graph.Edge) {
	added, err := g.AddEdge(e)
	if err != nil {
		slog.Debug("builder: edge rejected", "source", e.Source.String(), "target", e.Target.String(), "error", err)
		return
	}
	if added {
		c[e.Type]++
	}
}

// Merge adds other into c.
func (c Counts) Merge(other Counts) {
	for t, n := range other {
		c[t] += n
	}
}

// Total returns the number of edges counted.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// ErrEmptyCorpus is returned when Build receives no nodes.
var ErrEmptyCorpus = errors.New("builder: no rules to build from")

// Builder runs the mining and linking stages over a node set.
type Builder struct {
	miner  *Miner
	linker *Linker
}

// New returns a builder using tx for correspondences and themes.
func New(tx *taxonomy.Taxonomy, opts Options) *Builder {
	return &Builder{
		miner:  NewMiner(opts),
		linker: NewLinker(tx, opts),
	}
}

// Build constructs a fresh graph from nodes. Duplicate ids keep the first
// node.
func (b *Builder) Build(nodes []*graph.Node) (*graph.Graph, Counts, error) {
	if len(nodes) == 0 {
		return nil, nil, ErrEmptyCorpus
	}
	start := time.Now()

	g := graph.New()
	for _, n := range nodes {
		if !g.AddNode(n) {
			slog.Debug("builder: duplicate rule ignored", "id", n.ID.String())
		}
	}

	counts := b.miner.Mine(g)
	counts.Merge(b.linker.Link(g))

	slog.Info("builder: graph built",
		"nodes", g.NodeCount(), "edges", g.EdgeCount(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return g, counts, nil
}
