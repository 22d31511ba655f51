// Package export serializes a finished rule graph into the supported output
// formats. Every format is derived from the same graph and carries the
// same statistics object.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunobiangulo/rulegraph/graph"
	"github.com/brunobiangulo/rulegraph/taxonomy"
)

// Format names one output format.
type Format string

const (
	FormatCytoscape Format = "cytoscape"
	FormatD3        Format = "d3"
	FormatGraphML   Format = "graphml"
	FormatMermaid   Format = "mermaid"
	FormatHTML      Format = "html"
	FormatXLSX      Format = "xlsx"
	FormatSQLite    Format = "sqlite"
	FormatIndex     Format = "index"
	FormatReport    Format = "report"
)

// AllFormats lists every format in write order. The report comes last so
// it can list the files written before it.
var AllFormats = []Format{
	FormatCytoscape,
	FormatD3,
	FormatGraphML,
	FormatMermaid,
	FormatHTML,
	FormatXLSX,
	FormatSQLite,
	FormatIndex,
	FormatReport,
}

// Defaults.
const (
	DefaultBaseName         = "rulegraph"
	DefaultMermaidEdgeLimit = 50
)

// ErrUnknownFormat is returned by ParseFormats for unsupported names.
var ErrUnknownFormat = errors.New("export: unknown format")

// ParseFormats converts format names. "all" or an empty list selects every
// format.
func ParseFormats(names []string) ([]Format, error) {
	if len(names) == 0 {
		return AllFormats, nil
	}
	want := make(map[Format]bool)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if name == "all" {
			return AllFormats, nil
		}
		f := Format(name)
		if !f.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
		}
		want[f] = true
	}
	var out []Format
	for _, f := range AllFormats {
		if want[f] {
			out = append(out, f)
		}
	}
	return out, nil
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	_, ok := formatters[f]
	return ok
}

// Options controls a serialization run.
type Options struct {
	// Dir is the output directory. It is created when missing.
	Dir string
	// BaseName prefixes every output file.
	BaseName string
	// Formats selects the outputs. Empty means all.
	Formats []Format
	// BuildID identifies the build in every format's metadata.
	BuildID string
	// GeneratedAt stamps the metadata. Zero means now.
	GeneratedAt time.Time
	// MermaidEdgeLimit caps the diagram edge count. Zero uses the default,
	// negative disables the cap.
	MermaidEdgeLimit int
	// TopN is the number of central rules reported when Stats is nil.
	TopN int
	// Stats is the statistics object to mirror. Nil computes it.
	Stats *graph.Stats
	// Taxonomy supplies the filing hierarchy for the index format. Nil uses
	// the embedded defaults.
	Taxonomy *taxonomy.Taxonomy
}

func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.BaseName == "" {
		o.BaseName = DefaultBaseName
	}
	if len(o.Formats) == 0 {
		o.Formats = AllFormats
	}
	if o.GeneratedAt.IsZero() {
		o.GeneratedAt = time.Now().UTC()
	}
	if o.MermaidEdgeLimit == 0 {
		o.MermaidEdgeLimit = DefaultMermaidEdgeLimit
	}
	return o
}

// Metadata is embedded in every format.
type Metadata struct {
	BuildID     string       `json:"buildId,omitempty"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Systems     []string     `json:"systems"`
	NodeCount   int          `json:"nodeCount"`
	EdgeCount   int          `json:"edgeCount"`
	Statistics  *graph.Stats `json:"statistics"`
}

// Result reports what a run wrote. A failing format does not stop the
// others.
type Result struct {
	Files  []string
	Errors map[Format]error
}

// Err joins the per-format errors in format order, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, f := range AllFormats {
		if err, ok := r.Errors[f]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
		}
	}
	return errors.Join(errs...)
}

// formatter writes one format and returns the files it created.
type formatter func(ctx context.Context, w *Writer, g *graph.Graph, meta *Metadata) ([]string, error)

var formatters = map[Format]formatter{
	FormatCytoscape: writeCytoscape,
	FormatD3:        writeD3,
	FormatGraphML:   writeGraphML,
	FormatMermaid:   writeMermaid,
	FormatHTML:      writeHTML,
	FormatXLSX:      writeXLSX,
	FormatSQLite:    writeSQLite,
	FormatIndex:     writeIndex,
	FormatReport:    writeReport,
}

// Writer serializes graphs with fixed options.
type Writer struct {
	opts    Options
	written []string
}

// NewWriter returns a writer for opts.
func NewWriter(opts Options) *Writer {
	return &Writer{opts: opts.withDefaults()}
}

// Write serializes g into every selected format.
func (w *Writer) Write(ctx context.Context, g *graph.Graph) *Result {
	w.written = nil
	res := &Result{Errors: make(map[Format]error)}

	if err := os.MkdirAll(w.opts.Dir, 0755); err != nil {
		for _, f := range w.opts.Formats {
			res.Errors[f] = fmt.Errorf("creating output directory: %w", err)
		}
		return res
	}

	meta := w.metadata(g)
	selected := make(map[Format]bool, len(w.opts.Formats))
	for _, f := range w.opts.Formats {
		selected[f] = true
	}

	for _, f := range AllFormats {
		if !selected[f] {
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Errors[f] = err
			continue
		}
		files, err := formatters[f](ctx, w, g, meta)
		if err != nil {
			slog.Warn("export: format failed", "format", string(f), "error", err)
			res.Errors[f] = err
			continue
		}
		w.written = append(w.written, files...)
		res.Files = append(res.Files, files...)
		slog.Debug("export: format written", "format", string(f), "files", len(files))
	}

	slog.Info("export: complete", "dir", w.opts.Dir, "files", len(res.Files), "failed", len(res.Errors))
	return res
}

// WriteAll serializes g with opts and returns the joined format errors.
func WriteAll(ctx context.Context, g *graph.Graph, opts Options) (*Result, error) {
	res := NewWriter(opts).Write(ctx, g)
	return res, res.Err()
}

// Describe returns the metadata block WriteAll would embed for g.
func Describe(g *graph.Graph, opts Options) *Metadata {
	return NewWriter(opts).metadata(g)
}

func (w *Writer) metadata(g *graph.Graph) *Metadata {
	stats := w.opts.Stats
	if stats == nil {
		stats = graph.Analyze(g, w.opts.TopN)
	}
	var systems []string
	for _, sys := range graph.Systems {
		if len(g.NodesBySystem(sys)) > 0 {
			systems = append(systems, string(sys))
		}
	}
	return &Metadata{
		BuildID:     w.opts.BuildID,
		GeneratedAt: w.opts.GeneratedAt,
		Systems:     systems,
		NodeCount:   g.NodeCount(),
		EdgeCount:   g.EdgeCount(),
		Statistics:  stats,
	}
}

// path returns the output path for a base-name suffix such as
// "_cytoscape.json" or ".graphml".
func (w *Writer) path(suffix string) string {
	return filepath.Join(w.opts.Dir, w.opts.BaseName+suffix)
}

// FileName returns the file name a format writes first, without the
// directory.
func FileName(base string, f Format) string {
	if base == "" {
		base = DefaultBaseName
	}
	switch f {
	case FormatCytoscape:
		return base + "_cytoscape.json"
	case FormatD3:
		return base + "_d3.json"
	case FormatGraphML:
		return base + ".graphml"
	case FormatMermaid:
		return base + ".mmd"
	case FormatHTML:
		return base + ".html"
	case FormatXLSX:
		return base + ".xlsx"
	case FormatSQLite:
		return base + ".db"
	case FormatIndex:
		return base + "_query_index.json"
	case FormatReport:
		return base + "_analysis.md"
	}
	return ""
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
