package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/rulegraph/graph"
)

// Workbook sheet names.
const (
	SheetRules         = "Rules"
	SheetRelationships = "Relationships"
	SheetCategories    = "Categories"
	SheetCentral       = "Central Rules"
	SheetStatistics    = "Statistics"
)

// BuildWorkbook lays g out as a workbook with one sheet per view. The
// caller must close the returned file.
func BuildWorkbook(g *graph.Graph, meta *Metadata) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetRules); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetRelationships, SheetCategories, SheetCentral, SheetStatistics} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DCE3F5"}},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	stats := meta.Statistics
	if stats == nil {
		stats = &graph.Stats{}
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{SheetRules, ruleRows(g)},
		{SheetRelationships, relationshipRows(g)},
		{SheetCategories, categoryRows(stats)},
		{SheetCentral, centralRows(stats)},
		{SheetStatistics, statisticRows(meta, stats)},
	}
	for _, s := range sheets {
		if err := fillSheet(f, s.name, s.rows, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("filling sheet %s: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func fillSheet(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func ruleRows(g *graph.Graph) [][]any {
	rows := [][]any{{
		"ID", "System", "Rule", "Label", "Title", "Category", "Word Count", "Page Count",
		"Filing Relevance", "Degree", "Requirements", "Deadlines", "Cross References",
		"Key Provisions", "County", "Judge", "Department", "URL",
	}}
	for _, n := range g.Nodes() {
		rows = append(rows, []any{
			n.ID.String(), string(n.ID.System), n.ID.Rule, n.Label, n.Title, n.Category,
			n.WordCount, n.PageCount, n.FilingRelevance, g.Degree(n.ID),
			strings.Join(n.Requirements, "\n"), strings.Join(n.Deadlines, "\n"),
			strings.Join(n.CrossRefs, "\n"), strings.Join(n.KeyProvisions, "\n"),
			n.County, n.Judge, n.Department, n.URL,
		})
	}
	return rows
}

func relationshipRows(g *graph.Graph) [][]any {
	rows := [][]any{{"Source", "Target", "Type", "Label", "Weight", "Strength", "Relation", "Description"}}
	for _, e := range g.Edges() {
		rows = append(rows, []any{
			e.Source.String(), e.Target.String(), string(e.Type), e.Label(), e.Weight(),
			e.Strength, e.Relation, e.Description,
		})
	}
	return rows
}

func categoryRows(stats *graph.Stats) [][]any {
	rows := [][]any{{"Category", "Rules", "Internal Edges", "External Edges", "Internal Ratio"}}
	for _, c := range stats.Categories {
		rows = append(rows, []any{c.Name, c.NodeCount, c.InternalEdges, c.ExternalEdges, c.InternalRatio})
	}
	return rows
}

func centralRows(stats *graph.Stats) [][]any {
	rows := [][]any{{"Rank", "ID", "Label", "Degree", "Title", "Category"}}
	for i, c := range stats.CentralNodes {
		rows = append(rows, []any{i + 1, c.ID, c.Label, c.Degree, c.Title, c.Category})
	}
	return rows
}

func statisticRows(meta *Metadata, stats *graph.Stats) [][]any {
	rows := [][]any{
		{"Metric", "Value"},
		{"Build ID", meta.BuildID},
		{"Generated At", meta.GeneratedAt.Format(time.RFC3339)},
		{"Systems", strings.Join(meta.Systems, ", ")},
		{"Rules", stats.NodeCount},
		{"Relationships", stats.EdgeCount},
		{"Density", stats.Density},
		{"Average Degree", stats.AverageDegree},
		{"Isolated Rules", stats.IsolatedNodes},
		{"Components", stats.Components},
		{"Largest Component", stats.LargestCluster},
	}
	for _, sys := range graph.Systems {
		rows = append(rows, []any{"Rules: " + string(sys), stats.NodesBySystem[string(sys)]})
	}
	for _, t := range graph.EdgeTypes {
		rows = append(rows, []any{"Edges: " + string(t), stats.EdgesByType[string(t)]})
	}
	return rows
}

func writeXLSX(_ context.Context, w *Writer, g *graph.Graph, meta *Metadata) ([]string, error) {
	f, err := BuildWorkbook(g, meta)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := w.path(".xlsx")
	if err := f.SaveAs(p); err != nil {
		return nil, fmt.Errorf("saving workbook: %w", err)
	}
	return []string{p}, nil
}
