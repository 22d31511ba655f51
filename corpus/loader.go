// Package corpus normalizes extraction results from the three rule systems
// into categorized graph nodes.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/brunobiangulo/rulegraph/graph"
	"github.com/brunobiangulo/rulegraph/taxonomy"
)

var (
	// ErrNoInput is returned when no source could be loaded.
	ErrNoInput = errors.New("corpus: no source could be loaded")

	// ErrBadEnvelope is returned for JSON that is neither a record array
	// nor an extracted_documents envelope.
	ErrBadEnvelope = errors.New("corpus: missing extracted_documents array")
)

// Source names one input for a system: a JSON extraction file or a
// directory of rule PDFs.
type Source struct {
	System graph.System `json:"system" yaml:"system" validate:"required,oneof=ccp crc county"`
	Path   string       `json:"path" yaml:"path" validate:"required"`
}

// Failure records a source that could not be loaded.
type Failure struct {
	System graph.System `json:"system"`
	Path   string       `json:"path"`
	Err    error        `json:"-"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s (%s): %v", f.System, f.Path, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// MarshalJSON includes the error text.
func (f Failure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		System graph.System `json:"system"`
		Path   string       `json:"path"`
		Error  string       `json:"error"`
	}{f.System, f.Path, msg})
}

// Corpus is the loaded node set.
type Corpus struct {
	Nodes    []*graph.Node `json:"-"`
	Failures []Failure     `json:"failures,omitempty"`
	// Skipped counts records dropped for status, schema or duplicate id.
	Skipped int `json:"skipped"`
}

// Systems returns how many nodes each system contributed.
func (c *Corpus) Systems() map[graph.System]int {
	out := make(map[graph.System]int)
	for _, n := range c.Nodes {
		out[n.ID.System]++
	}
	return out
}

// Loader reads extraction results and categorizes each rule.
type Loader struct {
	categorizer *taxonomy.Categorizer
	readPDF     func(path string) (*pdfText, error)
}

// NewLoader returns a loader that categorizes with c.
func NewLoader(c *taxonomy.Categorizer) *Loader {
	return &Loader{categorizer: c, readPDF: readPDF}
}

// Load reads every source. A source that fails is recorded and the rest
// still load; ErrNoInput is returned only when all sources failed.
// Duplicate node ids keep their first occurrence.
func (l *Loader) Load(sources []Source) (*Corpus, error) {
	c := &Corpus{}
	seen := make(map[graph.NodeID]bool)
	loaded := 0

	for _, src := range sources {
		nodes, skipped, err := l.loadSource(src)
		if err != nil {
			slog.Warn("corpus: source failed", "system", src.System, "path", src.Path, "error", err)
			c.Failures = append(c.Failures, Failure{System: src.System, Path: src.Path, Err: err})
			continue
		}
		loaded++
		c.Skipped += skipped
		for _, n := range nodes {
			if seen[n.ID] {
				c.Skipped++
				continue
			}
			seen[n.ID] = true
			c.Nodes = append(c.Nodes, n)
		}
	}

	if loaded == 0 {
		return c, ErrNoInput
	}
	slog.Info("corpus: load complete",
		"nodes", len(c.Nodes), "skipped", c.Skipped, "failures", len(c.Failures))
	return c, nil
}

func (l *Loader) loadSource(src Source) ([]*graph.Node, int, error) {
	if !src.System.Valid() {
		return nil, 0, fmt.Errorf("unknown system %q", src.System)
	}
	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", src.Path, err)
	}
	if info.IsDir() {
		nodes, err := l.LoadPDFDir(src.System, src.Path)
		return nodes, 0, err
	}
	return l.loadFile(src.System, src.Path)
}

// LoadFile reads one JSON extraction document for a system. A missing or
// unparseable file is an error; individual bad records are skipped.
func (l *Loader) LoadFile(sys graph.System, path string) ([]*graph.Node, error) {
	nodes, _, err := l.loadFile(sys, path)
	return nodes, err
}

func (l *Loader) loadFile(sys graph.System, path string) ([]*graph.Node, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	raw, err := decodeRecords(data)
	if err != nil {
		return nil, 0, fmt.Errorf("parsing %s: %w", path, err)
	}

	var nodes []*graph.Node
	skipped := 0
	for i, msg := range raw {
		var rec Record
		if err := json.Unmarshal(msg, &rec); err != nil {
			slog.Warn("corpus: skipped record", "path", path, "index", i, "error", err)
			skipped++
			continue
		}
		if !rec.Succeeded() {
			skipped++
			continue
		}
		n := l.FromRecord(sys, &rec)
		if n.ID.Rule == UnknownRule {
			slog.Debug("corpus: record without id", "path", path, "index", i)
		}
		nodes = append(nodes, n)
	}

	slog.Info("corpus: loaded file", "system", sys, "path", path, "rules", len(nodes), "skipped", skipped)
	return nodes, skipped, nil
}

// FromRecord converts one record. A record with no rule id becomes
// UnknownRule; when several do, Load keeps the first.
func (l *Loader) FromRecord(sys graph.System, rec *Record) *graph.Node {
	rule := rec.RuleID()
	if rule == "" && sys == graph.SystemCounty {
		rule = rec.MentionedRule()
	}
	if rule == "" {
		rule = UnknownRule
	}

	buckets := rec.Buckets()
	n := l.newNode(graph.NodeID{System: sys, Rule: rule}, rec.RuleTitle(), buckets, rec.Content.Text)

	n.WordCount = rec.Content.WordCount
	if rec.Metadata != nil && rec.Metadata.WordCount > 0 {
		n.WordCount = rec.Metadata.WordCount
	}
	n.PageCount = rec.Content.PageCount
	n.URL = rec.URL
	if ri := rec.ruleInfo(); ri.URL != "" {
		n.URL = ri.URL
	}

	n.FilingRelevance = float64(rec.FilingRelevance)
	if ri := rec.ruleInfo(); ri.FilingRelevance != 0 {
		n.FilingRelevance = float64(ri.FilingRelevance)
	}

	if rec.Classification != nil {
		n.Classification = rec.Classification.DocumentType
	}
	if sys == graph.SystemCounty {
		n.County = strings.TrimSpace(rec.County)
		if rec.JudgeInfo != nil {
			n.Judge = strings.TrimSpace(rec.JudgeInfo.JudgeName)
			n.Department = strings.TrimSpace(rec.JudgeInfo.Department)
			n.JudgeSpecific = true
			n.DepartmentSpecific = n.Department != ""
		}
		if n.FilingRelevance == 0 {
			n.FilingRelevance = FilingRelevance(n.Title, rec.Content.Text, n.Judge != "", n.Department != "")
		}
	}
	return n
}

func (l *Loader) newNode(id graph.NodeID, title string, a Analysis, text string) *graph.Node {
	n := graph.NewNode(id, title)
	n.Requirements = a.ProceduralRequirements
	n.Deadlines = a.DeadlinesAndTiming
	n.CrossRefs = a.CrossReferences
	n.KeyProvisions = a.KeyProvisions

	sections := [][]string{n.Requirements, n.Deadlines, n.KeyProvisions}
	if text != "" {
		sections = append(sections, []string{text})
	}
	n.Category = l.categorizer.Categorize(id, title, sections...)
	return n
}
