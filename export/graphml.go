package export

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/brunobiangulo/rulegraph/graph"
)

const graphMLNamespace = "http://graphml.graphdrawing.org/xmlns"

// GraphML is the document root.
type GraphML struct {
	XMLName xml.Name     `xml:"graphml"`
	XMLNS   string       `xml:"xmlns,attr"`
	Keys    []GraphMLKey `xml:"key"`
	Graph   GraphMLGraph `xml:"graph"`
}

// GraphMLKey declares one attribute.
type GraphMLKey struct {
	ID   string `xml:"id,attr"`
	For  string `xml:"for,attr"`
	Name string `xml:"attr.name,attr"`
	Type string `xml:"attr.type,attr"`
}

// GraphMLGraph holds graph-level data, nodes and edges.
type GraphMLGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Data        []GraphMLData `xml:"data"`
	Nodes       []GraphMLNode `xml:"node"`
	Edges       []GraphMLEdge `xml:"edge"`
}

// GraphMLData is one attribute value. Character data is escaped by the
// encoder.
type GraphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// GraphMLNode is one rule.
type GraphMLNode struct {
	ID   string        `xml:"id,attr"`
	Data []GraphMLData `xml:"data"`
}

// GraphMLEdge is one relationship.
type GraphMLEdge struct {
	ID     string        `xml:"id,attr"`
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []GraphMLData `xml:"data"`
}

var graphMLKeys = []GraphMLKey{
	{ID: "label", For: "node", Name: "label", Type: "string"},
	{ID: "title", For: "node", Name: "title", Type: "string"},
	{ID: "category", For: "node", Name: "category", Type: "string"},
	{ID: "system", For: "node", Name: "system", Type: "string"},
	{ID: "wordCount", For: "node", Name: "wordCount", Type: "int"},
	{ID: "filingRelevance", For: "node", Name: "filingRelevance", Type: "double"},
	{ID: "type", For: "edge", Name: "type", Type: "string"},
	{ID: "weight", For: "edge", Name: "weight", Type: "double"},
	{ID: "description", For: "edge", Name: "description", Type: "string"},
	{ID: "buildId", For: "graph", Name: "buildId", Type: "string"},
	{ID: "generatedAt", For: "graph", Name: "generatedAt", Type: "string"},
	{ID: "nodeCount", For: "graph", Name: "nodeCount", Type: "int"},
	{ID: "edgeCount", For: "graph", Name: "edgeCount", Type: "int"},
	{ID: "density", For: "graph", Name: "density", Type: "double"},
	{ID: "averageDegree", For: "graph", Name: "averageDegree", Type: "double"},
	{ID: "isolatedNodes", For: "graph", Name: "isolatedNodes", Type: "int"},
	{ID: "components", For: "graph", Name: "components", Type: "int"},
}

// BuildGraphML converts g into a GraphML document.
func BuildGraphML(g *graph.Graph, meta *Metadata) *GraphML {
	doc := &GraphML{
		XMLNS: graphMLNamespace,
		Keys:  graphMLKeys,
		Graph: GraphMLGraph{ID: "rulegraph", EdgeDefault: "directed"},
	}

	if meta != nil {
		doc.Graph.Data = append(doc.Graph.Data,
			GraphMLData{Key: "buildId", Value: meta.BuildID},
			GraphMLData{Key: "generatedAt", Value: meta.GeneratedAt.Format(time.RFC3339)},
			GraphMLData{Key: "nodeCount", Value: strconv.Itoa(meta.NodeCount)},
			GraphMLData{Key: "edgeCount", Value: strconv.Itoa(meta.EdgeCount)},
		)
		if s := meta.Statistics; s != nil {
			doc.Graph.Data = append(doc.Graph.Data,
				GraphMLData{Key: "density", Value: formatFloat(s.Density)},
				GraphMLData{Key: "averageDegree", Value: formatFloat(s.AverageDegree)},
				GraphMLData{Key: "isolatedNodes", Value: strconv.Itoa(s.IsolatedNodes)},
				GraphMLData{Key: "components", Value: strconv.Itoa(s.Components)},
			)
		}
	}

	for _, n := range g.Nodes() {
		doc.Graph.Nodes = append(doc.Graph.Nodes, GraphMLNode{
			ID: n.ID.String(),
			Data: []GraphMLData{
				{Key: "label", Value: n.Label},
				{Key: "title", Value: n.Title},
				{Key: "category", Value: n.Category},
				{Key: "system", Value: string(n.ID.System)},
				{Key: "wordCount", Value: strconv.Itoa(n.WordCount)},
				{Key: "filingRelevance", Value: formatFloat(n.FilingRelevance)},
			},
		})
	}
	for i, e := range g.Edges() {
		doc.Graph.Edges = append(doc.Graph.Edges, GraphMLEdge{
			ID:     fmt.Sprintf("e%d", i),
			Source: e.Source.String(),
			Target: e.Target.String(),
			Data: []GraphMLData{
				{Key: "type", Value: string(e.Type)},
				{Key: "weight", Value: strconv.Itoa(e.Weight())},
				{Key: "description", Value: e.Description},
			},
		})
	}
	return doc
}

// MarshalGraphML renders the document with an XML declaration.
func MarshalGraphML(doc *GraphML) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding graphml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeGraphML(_ context.Context, w *Writer, g *graph.Graph, meta *Metadata) ([]string, error) {
	data, err := MarshalGraphML(BuildGraphML(g, meta))
	if err != nil {
		return nil, err
	}
	p := w.path(".graphml")
	if err := writeFile(p, data); err != nil {
		return nil, err
	}
	return []string{p}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
