package graph

import "fmt"

// EdgeType is the closed set of relationship kinds.
type EdgeType string

const (
	EdgeCrossReference       EdgeType = "cross_reference"
	EdgeProceduralDependency EdgeType = "procedural_dependency"
	EdgeTimingRelationship   EdgeType = "timing_relationship"
	EdgeCategorySimilarity   EdgeType = "category_similarity"
	EdgeContentSimilarity    EdgeType = "content_similarity"
	EdgeSequential           EdgeType = "sequential"
	EdgeThematic             EdgeType = "thematic"
	EdgeCrossSystem          EdgeType = "cross_system"
)

// edgeDef is the static definition of an edge type.
type edgeDef struct {
	weight     int
	label      string
	structural bool
}

var edgeDefs = map[EdgeType]edgeDef{
	EdgeCrossReference:       {weight: 3, label: "References", structural: true},
	EdgeProceduralDependency: {weight: 5, label: "Depends On", structural: true},
	EdgeTimingRelationship:   {weight: 4, label: "Timing Relation", structural: true},
	EdgeCategorySimilarity:   {weight: 2, label: "Similar Category"},
	EdgeContentSimilarity:    {weight: 1, label: "Similar Content"},
	EdgeSequential:           {weight: 8, label: "Sequential", structural: true},
	EdgeThematic:             {weight: 3, label: "Shared Theme", structural: true},
	EdgeCrossSystem:          {weight: 9, label: "Cross-System", structural: true},
}

// EdgeTypes lists every edge type in a stable order.
var EdgeTypes = []EdgeType{
	EdgeCrossReference,
	EdgeProceduralDependency,
	EdgeTimingRelationship,
	EdgeCategorySimilarity,
	EdgeContentSimilarity,
	EdgeSequential,
	EdgeThematic,
	EdgeCrossSystem,
}

// Valid reports whether t is a known edge type.
func (t EdgeType) Valid() bool {
	_, ok := edgeDefs[t]
	return ok
}

// Weight returns the fixed weight for t, or 0 for unknown types.
func (t EdgeType) Weight() int { return edgeDefs[t].weight }

// Label returns the human-readable label for t.
func (t EdgeType) Label() string { return edgeDefs[t].label }

// Structural reports whether an edge of this type counts as linking a node.
// Similarity edges are pervasive and do not.
func (t EdgeType) Structural() bool { return edgeDefs[t].structural }

// ParseEdgeType validates a serialized edge type.
func ParseEdgeType(s string) (EdgeType, error) {
	t := EdgeType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEdgeType, s)
	}
	return t, nil
}

// Edge is a directed, typed relationship between two rule nodes.
type Edge struct {
	Source      NodeID
	Target      NodeID
	Type        EdgeType
	Description string

	// Strength carries the confidence of a curated correspondence. It is
	// zero for mined edges and never replaces the type weight.
	Strength int
	// Relation names the curated relationship, e.g. "format_requirement".
	Relation string
}

// Weight returns the type weight.
func (e Edge) Weight() int { return e.Type.Weight() }

// Label returns the type label.
func (e Edge) Label() string { return e.Type.Label() }

// Key returns the deduplication triple.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Type: e.Type}
}

// EdgeKey is the identity of an edge.
type EdgeKey struct {
	Source NodeID
	Target NodeID
	Type   EdgeType
}
