package export

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/brunobiangulo/rulegraph/graph"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templateFuncs = map[string]any{
	"inc":   func(i int) int { return i + 1 },
	"upper": strings.ToUpper,
	"join":  strings.Join,
	"pct": func(f float64, prec int) string {
		return fmt.Sprintf("%.*f%%", prec, f*100)
	},
	"head": func(items []string, n int) string {
		if len(items) <= n {
			return strings.Join(items, ", ")
		}
		return strings.Join(items[:n], ", ") + "..."
	},
}

var (
	reportTemplate = template.Must(template.New("report.md.tmpl").
			Funcs(template.FuncMap(templateFuncs)).
			ParseFS(templateFS, "templates/report.md.tmpl"))
	viewerTemplate = htmltemplate.Must(htmltemplate.New("viewer.html.tmpl").
			Funcs(htmltemplate.FuncMap(templateFuncs)).
			ParseFS(templateFS, "templates/viewer.html.tmpl"))
)

// EdgeTypeCount is one row of the edge-type table.
type EdgeTypeCount struct {
	Type   string `json:"type"`
	Label  string `json:"label"`
	Weight int    `json:"weight"`
	Count  int    `json:"count"`
}

// EdgeTypeCounts lists every edge type with its count from stats.
func EdgeTypeCounts(stats *graph.Stats) []EdgeTypeCount {
	out := make([]EdgeTypeCount, 0, len(graph.EdgeTypes))
	for _, t := range graph.EdgeTypes {
		c := 0
		if stats != nil {
			c = stats.EdgesByType[string(t)]
		}
		out = append(out, EdgeTypeCount{Type: string(t), Label: t.Label(), Weight: t.Weight(), Count: c})
	}
	return out
}

type reportData struct {
	Meta      *Metadata
	Stats     *graph.Stats
	EdgeTypes []EdgeTypeCount
	Clusters  []graph.Community
	Files     []string
}

// RenderReport renders the Markdown analysis report. files lists the
// generated file names shown at the end.
func RenderReport(meta *Metadata, files []string) (string, error) {
	stats := meta.Statistics
	if stats == nil {
		stats = &graph.Stats{}
	}
	data := reportData{
		Meta:      meta,
		Stats:     stats,
		EdgeTypes: EdgeTypeCounts(stats),
		Clusters:  stats.Communities,
		Files:     files,
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return buf.String(), nil
}

func writeReport(_ context.Context, w *Writer, g *graph.Graph, meta *Metadata) ([]string, error) {
	mdPath := w.path("_analysis.md")
	statsPath := w.path("_stats.json")

	var files []string
	for _, p := range w.written {
		files = append(files, filepath.Base(p))
	}
	files = append(files, filepath.Base(mdPath), filepath.Base(statsPath))

	report, err := RenderReport(meta, files)
	if err != nil {
		return nil, err
	}
	if err := writeFile(mdPath, []byte(report)); err != nil {
		return nil, err
	}
	if err := writeJSON(statsPath, meta); err != nil {
		return []string{mdPath}, err
	}
	return []string{mdPath, statsPath}, nil
}

type viewerData struct {
	Title     string
	DataFile  string
	Stats     *graph.Stats
	Systems   []string
	EdgeTypes []string
}

// RenderViewer renders the interactive HTML page. It loads dataFile, the
// Cytoscape document, at view time.
func RenderViewer(meta *Metadata, dataFile string) (string, error) {
	stats := meta.Statistics
	if stats == nil {
		stats = &graph.Stats{}
	}
	types := make([]string, len(graph.EdgeTypes))
	for i, t := range graph.EdgeTypes {
		types[i] = string(t)
	}
	var buf bytes.Buffer
	err := viewerTemplate.Execute(&buf, viewerData{
		Title:     "Rule Relationship Graph",
		DataFile:  dataFile,
		Stats:     stats,
		Systems:   meta.Systems,
		EdgeTypes: types,
	})
	if err != nil {
		return "", fmt.Errorf("rendering viewer: %w", err)
	}
	return buf.String(), nil
}

func writeHTML(_ context.Context, w *Writer, g *graph.Graph, meta *Metadata) ([]string, error) {
	page, err := RenderViewer(meta, FileName(w.opts.BaseName, FormatCytoscape))
	if err != nil {
		return nil, err
	}
	p := w.path(".html")
	if err := writeFile(p, []byte(page)); err != nil {
		return nil, err
	}
	return []string{p}, nil
}
