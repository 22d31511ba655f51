package graph

import (
	"fmt"
	"strings"
)

// System identifies one of the independent rule corpora. Rule ids are
// unique only within a system.
type System string

const (
	SystemCCP    System = "ccp"
	SystemCRC    System = "crc"
	SystemCounty System = "county"
)

// Systems lists every known system in display order.
var Systems = []System{SystemCCP, SystemCRC, SystemCounty}

// Valid reports whether s is a known system.
func (s System) Valid() bool {
	switch s {
	case SystemCCP, SystemCRC, SystemCounty:
		return true
	}
	return false
}

// Prefix returns the upper-case label prefix, e.g. "CCP".
func (s System) Prefix() string {
	return strings.ToUpper(string(s))
}

// ParseSystem converts a case-insensitive system name.
func ParseSystem(name string) (System, error) {
	s := System(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("graph: unknown rule system %q", name)
	}
	return s, nil
}

// NodeID is the composite identity of a rule node.
type NodeID struct {
	System System
	Rule   string
}

// String renders the id as "<system>_<rule>".
func (id NodeID) String() string {
	return string(id.System) + "_" + id.Rule
}

// Label renders the human-readable form, e.g. "CRC 3.1350".
func (id NodeID) Label() string {
	return id.System.Prefix() + " " + id.Rule
}

// ParseNodeID parses the String form. Only the first underscore separates
// the system, so rule ids may contain underscores.
func ParseNodeID(s string) (NodeID, error) {
	sys, rule, ok := strings.Cut(s, "_")
	if !ok || rule == "" {
		return NodeID{}, fmt.Errorf("graph: malformed node id %q", s)
	}
	system, err := ParseSystem(sys)
	if err != nil {
		return NodeID{}, err
	}
	return NodeID{System: system, Rule: rule}, nil
}

// Node is a single rule in the relationship graph.
type Node struct {
	ID              NodeID
	Label           string
	Title           string
	Category        string
	SortKey         SortKey
	WordCount       int
	PageCount       int
	FilingRelevance float64
	URL             string
	Classification  string

	// Extracted text buckets.
	Requirements  []string
	Deadlines     []string
	CrossRefs     []string
	KeyProvisions []string

	// Local-rule attributes, set only for county nodes.
	County             string
	Judge              string
	Department         string
	JudgeSpecific      bool
	DepartmentSpecific bool
}

// NewNode returns a node with its label and sort key derived from id.
func NewNode(id NodeID, title string) *Node {
	return &Node{
		ID:      id,
		Label:   id.Label(),
		Title:   title,
		SortKey: ParseSortKey(id.Rule),
	}
}
