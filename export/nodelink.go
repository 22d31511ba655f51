package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/brunobiangulo/rulegraph/graph"
)

// NodeData is the node record shared by the node-link formats. Field names
// are part of the viewer contract.
type NodeData struct {
	ID                 string   `json:"id"`
	Label              string   `json:"label"`
	Title              string   `json:"title"`
	System             string   `json:"system"`
	Section            string   `json:"section"`
	Category           string   `json:"category"`
	WordCount          int      `json:"wordCount"`
	PageCount          int      `json:"pageCount,omitempty"`
	FilingRelevance    float64  `json:"filingRelevance"`
	URL                string   `json:"url,omitempty"`
	Classification     string   `json:"classification,omitempty"`
	Requirements       []string `json:"proceduralRequirements,omitempty"`
	Deadlines          []string `json:"deadlinesAndTiming,omitempty"`
	CrossReferences    []string `json:"crossReferences,omitempty"`
	KeyProvisions      []string `json:"keyProvisions,omitempty"`
	County             string   `json:"county,omitempty"`
	Judge              string   `json:"judge,omitempty"`
	Department         string   `json:"department,omitempty"`
	JudgeSpecific      bool     `json:"judgeSpecific,omitempty"`
	DepartmentSpecific bool     `json:"departmentSpecific,omitempty"`
}

// EdgeData is the edge record shared by the node-link formats.
type EdgeData struct {
	ID          string `json:"id,omitempty"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	Type        string `json:"type"`
	Label       string `json:"label"`
	Weight      int    `json:"weight"`
	Description string `json:"description"`
	Strength    int    `json:"strength,omitempty"`
	Relation    string `json:"relation,omitempty"`
}

// Cytoscape is the Cytoscape.js elements document.
type Cytoscape struct {
	Nodes    []CytoscapeNode `json:"nodes"`
	Edges    []CytoscapeEdge `json:"edges"`
	Metadata *Metadata       `json:"metadata"`
}

// CytoscapeNode wraps a node record.
type CytoscapeNode struct {
	Data NodeData `json:"data"`
}

// CytoscapeEdge wraps an edge record.
type CytoscapeEdge struct {
	Data EdgeData `json:"data"`
}

// D3 is the D3 force-layout document.
type D3 struct {
	Nodes    []D3Node   `json:"nodes"`
	Links    []EdgeData `json:"links"`
	Metadata *Metadata  `json:"metadata"`
}

// D3Node adds a category group and a display size to the node record.
type D3Node struct {
	NodeData
	Group int     `json:"group"`
	Size  float64 `json:"size"`
}

// NewNodeData converts a node into its serialized record.
func NewNodeData(n *graph.Node) NodeData {
	return NodeData{
		ID:                 n.ID.String(),
		Label:              n.Label,
		Title:              n.Title,
		System:             string(n.ID.System),
		Section:            n.ID.Rule,
		Category:           n.Category,
		WordCount:          n.WordCount,
		PageCount:          n.PageCount,
		FilingRelevance:    n.FilingRelevance,
		URL:                n.URL,
		Classification:     n.Classification,
		Requirements:       n.Requirements,
		Deadlines:          n.Deadlines,
		CrossReferences:    n.CrossRefs,
		KeyProvisions:      n.KeyProvisions,
		County:             n.County,
		Judge:              n.Judge,
		Department:         n.Department,
		JudgeSpecific:      n.JudgeSpecific,
		DepartmentSpecific: n.DepartmentSpecific,
	}
}

// NewEdgeData converts the i-th edge into its serialized record.
func NewEdgeData(i int, e graph.Edge) EdgeData {
	return EdgeData{
		ID:          fmt.Sprintf("e%d", i),
		Source:      e.Source.String(),
		Target:      e.Target.String(),
		Type:        string(e.Type),
		Label:       e.Label(),
		Weight:      e.Weight(),
		Description: e.Description,
		Strength:    e.Strength,
		Relation:    e.Relation,
	}
}

// BuildCytoscape converts g into the Cytoscape document.
func BuildCytoscape(g *graph.Graph, meta *Metadata) *Cytoscape {
	doc := &Cytoscape{
		Nodes:    make([]CytoscapeNode, 0, g.NodeCount()),
		Edges:    make([]CytoscapeEdge, 0, g.EdgeCount()),
		Metadata: meta,
	}
	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, CytoscapeNode{Data: NewNodeData(n)})
	}
	for i, e := range g.Edges() {
		doc.Edges = append(doc.Edges, CytoscapeEdge{Data: NewEdgeData(i, e)})
	}
	return doc
}

// BuildD3 converts g into the D3 document. Groups number the categories
// from 1 in name order.
func BuildD3(g *graph.Graph, meta *Metadata) *D3 {
	groups := make(map[string]int)
	for i, c := range g.Categories() {
		groups[c] = i + 1
	}
	doc := &D3{
		Nodes:    make([]D3Node, 0, g.NodeCount()),
		Links:    make([]EdgeData, 0, g.EdgeCount()),
		Metadata: meta,
	}
	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, D3Node{
			NodeData: NewNodeData(n),
			Group:    groups[n.Category],
			Size:     math.Max(5, float64(n.WordCount)/100),
		})
	}
	for i, e := range g.Edges() {
		doc.Links = append(doc.Links, NewEdgeData(i, e))
	}
	return doc
}

func writeCytoscape(_ context.Context, w *Writer, g *graph.Graph, meta *Metadata) ([]string, error) {
	p := w.path("_cytoscape.json")
	if err := writeJSON(p, BuildCytoscape(g, meta)); err != nil {
		return nil, err
	}
	return []string{p}, nil
}

func writeD3(_ context.Context, w *Writer, g *graph.Graph, meta *Metadata) ([]string, error) {
	p := w.path("_d3.json")
	if err := writeJSON(p, BuildD3(g, meta)); err != nil {
		return nil, err
	}
	return []string{p}, nil
}

// ReadCytoscape reloads a Cytoscape document into a graph. Node records
// with an unparseable id and edges with an unknown type or endpoint are
// errors.
func ReadCytoscape(r io.Reader) (*graph.Graph, *Metadata, error) {
	var doc Cytoscape
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("export: decoding cytoscape document: %w", err)
	}

	g := graph.New()
	for _, cn := range doc.Nodes {
		d := cn.Data
		id, err := graph.ParseNodeID(d.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("export: %w", err)
		}
		n := graph.NewNode(id, d.Title)
		if d.Label != "" {
			n.Label = d.Label
		}
		n.Category = d.Category
		n.WordCount = d.WordCount
		n.PageCount = d.PageCount
		n.FilingRelevance = d.FilingRelevance
		n.URL = d.URL
		n.Classification = d.Classification
		n.Requirements = d.Requirements
		n.Deadlines = d.Deadlines
		n.CrossRefs = d.CrossReferences
		n.KeyProvisions = d.KeyProvisions
		n.County = d.County
		n.Judge = d.Judge
		n.Department = d.Department
		n.JudgeSpecific = d.JudgeSpecific
		n.DepartmentSpecific = d.DepartmentSpecific
		g.AddNode(n)
	}

	for _, ce := range doc.Edges {
		d := ce.Data
		e := graph.Edge{Description: d.Description, Strength: d.Strength, Relation: d.Relation}
		var err error
		if e.Source, err = graph.ParseNodeID(d.Source); err != nil {
			return nil, nil, fmt.Errorf("export: edge %s: %w", d.ID, err)
		}
		if e.Target, err = graph.ParseNodeID(d.Target); err != nil {
			return nil, nil, fmt.Errorf("export: edge %s: %w", d.ID, err)
		}
		if e.Type, err = graph.ParseEdgeType(d.Type); err != nil {
			return nil, nil, fmt.Errorf("export: edge %s: %w", d.ID, err)
		}
		if _, err := g.AddEdge(e); err != nil {
			return nil, nil, fmt.Errorf("export: edge %s: %w", d.ID, err)
		}
	}
	return g, doc.Metadata, nil
}

// ReadCytoscapeFile reloads a Cytoscape document from disk.
func ReadCytoscapeFile(path string) (*graph.Graph, *Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadCytoscape(f)
}
