// Package taxonomy holds the immutable classification data the pipeline is
// built from: per-system category rules, theme tags, curated cross-system
// correspondences and the filing hierarchy.
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/rulegraph/graph"
)

//go:embed defaults.yaml
var defaultTables []byte

var validate = validator.New()

// Tables is the serialized form of a taxonomy.
type Tables struct {
	Systems         []SystemTable    `yaml:"systems" json:"systems" validate:"required,dive"`
	Themes          []Theme          `yaml:"themes" json:"themes" validate:"dive"`
	ThemeFallback   string           `yaml:"theme_fallback" json:"theme_fallback"`
	Correspondences []Correspondence `yaml:"correspondences" json:"correspondences" validate:"dive"`
	Hierarchy       []HierarchyEntry `yaml:"filing_hierarchy" json:"filing_hierarchy" validate:"dive"`
}

// SystemTable holds the category rules for one rule system.
type SystemTable struct {
	System   string        `yaml:"system" json:"system" validate:"required,oneof=ccp crc county"`
	Default  string        `yaml:"default" json:"default" validate:"required"`
	Ranges   []Range       `yaml:"ranges" json:"ranges" validate:"dive"`
	Keywords []KeywordRule `yaml:"keywords" json:"keywords" validate:"dive"`
}

// Range maps an interval of leading rule values to a category. Bounds are
// read as decimals, so "2030.1" ends below "2030.300". The interval is
// closed unless Exclusive drops its upper bound.
type Range struct {
	From      string `yaml:"from" json:"from" validate:"required"`
	To        string `yaml:"to" json:"to" validate:"required"`
	Exclusive bool   `yaml:"exclusive,omitempty" json:"exclusive,omitempty"`
	Category  string `yaml:"category" json:"category" validate:"required"`
}

// KeywordRule maps any of its keywords, found in the lower-cased title, to
// a category. ScanSections extends the search to the extracted text.
type KeywordRule struct {
	Any          []string `yaml:"any" json:"any" validate:"required,min=1"`
	Category     string   `yaml:"category" json:"category" validate:"required"`
	ScanSections bool     `yaml:"scan_sections" json:"scan_sections"`
}

// Theme is a named title pattern used for thematic clustering.
type Theme struct {
	Name    string `yaml:"name" json:"name" validate:"required"`
	Pattern string `yaml:"pattern" json:"pattern" validate:"required"`
}

// Correspondence is a hand-validated link between rules of two systems.
type Correspondence struct {
	From     string `yaml:"from" json:"from" validate:"required"`
	To       string `yaml:"to" json:"to" validate:"required"`
	Relation string `yaml:"relation" json:"relation" validate:"required"`
	Strength int    `yaml:"strength" json:"strength" validate:"min=0,max=10"`
}

// HierarchyEntry maps a motion or document type to the rules governing it
// and the fixed deadline and step scripts rendered in answers.
type HierarchyEntry struct {
	Motion         string              `yaml:"motion" json:"motion" validate:"required"`
	Description    string              `yaml:"description" json:"description"`
	Rules          map[string][]string `yaml:"rules" json:"rules"`
	CountySpecific []string            `yaml:"county_specific" json:"county_specific"`
	Deadlines      []string            `yaml:"deadlines" json:"deadlines"`
	Steps          []string            `yaml:"steps" json:"steps"`
}

// Link is a compiled correspondence.
type Link struct {
	From     graph.NodeID
	To       graph.NodeID
	Relation string
	Strength int
}

type compiledRange struct {
	from, to  float64
	exclusive bool
	category  string
}

// contains reports whether v falls inside the compiled range.
func (r compiledRange) contains(v float64) bool {
	if v < r.from {
		return false
	}
	if r.exclusive {
		return v < r.to
	}
	return v <= r.to
}

type compiledTheme struct {
	name    string
	pattern *regexp.Regexp
}

// Taxonomy is the compiled, read-only form of Tables. It is safe for
// concurrent use.
type Taxonomy struct {
	tables     Tables
	ranges     map[graph.System][]compiledRange
	keywords   map[graph.System][]KeywordRule
	defaults   map[graph.System]string
	themes     []compiledTheme
	links      []Link
	hierarchy  map[string]HierarchyEntry
	categories map[graph.System][]string
}

// Default returns the taxonomy compiled from the embedded tables.
func Default() (*Taxonomy, error) {
	return Parse(defaultTables)
}

// MustDefault is like Default but panics on error.
func MustDefault() *Taxonomy {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads and compiles a YAML tables file.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML tables and compiles them.
func Parse(data []byte) (*Taxonomy, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing taxonomy: %w", err)
	}
	return Compile(t)
}

// Compile validates t and builds the lookup structures.
func Compile(t Tables) (*Taxonomy, error) {
	if err := validate.Struct(t); err != nil {
		return nil, fmt.Errorf("validating taxonomy: %w", err)
	}

	tx := &Taxonomy{
		tables:     t,
		ranges:     make(map[graph.System][]compiledRange),
		keywords:   make(map[graph.System][]KeywordRule),
		defaults:   make(map[graph.System]string),
		hierarchy:  make(map[string]HierarchyEntry),
		categories: make(map[graph.System][]string),
	}

	for _, st := range t.Systems {
		sys := graph.System(st.System)
		if _, dup := tx.defaults[sys]; dup {
			return nil, fmt.Errorf("taxonomy: system %q declared twice", sys)
		}
		tx.defaults[sys] = st.Default
		seen := make(map[string]bool)
		addCat := func(c string) {
			if !seen[c] {
				seen[c] = true
				tx.categories[sys] = append(tx.categories[sys], c)
			}
		}
		for _, r := range st.Ranges {
			from, errFrom := strconv.ParseFloat(strings.TrimSpace(r.From), 64)
			to, errTo := strconv.ParseFloat(strings.TrimSpace(r.To), 64)
			if errFrom != nil || errTo != nil || to < from {
				return nil, fmt.Errorf("taxonomy: invalid %s range %s-%s", sys, r.From, r.To)
			}
			tx.ranges[sys] = append(tx.ranges[sys], compiledRange{
				from: from, to: to, exclusive: r.Exclusive, category: r.Category,
			})
			addCat(r.Category)
		}
		for _, k := range st.Keywords {
			lower := make([]string, len(k.Any))
			for i, w := range k.Any {
				lower[i] = strings.ToLower(w)
			}
			k.Any = lower
			tx.keywords[sys] = append(tx.keywords[sys], k)
			addCat(k.Category)
		}
		addCat(st.Default)
	}

	for _, th := range t.Themes {
		re, err := regexp.Compile("(?i)" + th.Pattern)
		if err != nil {
			return nil, fmt.Errorf("taxonomy: theme %q: %w", th.Name, err)
		}
		tx.themes = append(tx.themes, compiledTheme{name: th.Name, pattern: re})
	}

	for _, c := range t.Correspondences {
		from, err := graph.ParseNodeID(c.From)
		if err != nil {
			return nil, fmt.Errorf("taxonomy: correspondence: %w", err)
		}
		to, err := graph.ParseNodeID(c.To)
		if err != nil {
			return nil, fmt.Errorf("taxonomy: correspondence: %w", err)
		}
		if from.System == to.System {
			return nil, fmt.Errorf("taxonomy: correspondence %s -> %s stays within one system", c.From, c.To)
		}
		tx.links = append(tx.links, Link{From: from, To: to, Relation: c.Relation, Strength: c.Strength})
	}

	for _, h := range t.Hierarchy {
		for sys := range h.Rules {
			if !graph.System(sys).Valid() {
				return nil, fmt.Errorf("taxonomy: hierarchy %q: unknown system %q", h.Motion, sys)
			}
		}
		tx.hierarchy[h.Motion] = h
	}

	return tx, nil
}

// Tables returns a copy of the source tables.
func (t *Taxonomy) Tables() Tables {
	out := t.tables
	out.Systems = slices.Clone(t.tables.Systems)
	out.Themes = slices.Clone(t.tables.Themes)
	out.Correspondences = slices.Clone(t.tables.Correspondences)
	out.Hierarchy = slices.Clone(t.tables.Hierarchy)
	return out
}

// Categories lists the categories a system can produce, in rule order.
func (t *Taxonomy) Categories(sys graph.System) []string {
	return slices.Clone(t.categories[sys])
}

// Links returns the compiled curated correspondences.
func (t *Taxonomy) Links() []Link {
	return slices.Clone(t.links)
}

// Hierarchy returns the filing-hierarchy entry for a motion type.
func (t *Taxonomy) Hierarchy(motion string) (HierarchyEntry, bool) {
	h, ok := t.hierarchy[motion]
	return h, ok
}

// Motions lists the motion types in declaration order.
func (t *Taxonomy) Motions() []string {
	out := make([]string, 0, len(t.tables.Hierarchy))
	for _, h := range t.tables.Hierarchy {
		out = append(out, h.Motion)
	}
	return out
}

// HierarchyRules returns the node ids an entry names, system by system.
func (h HierarchyEntry) HierarchyRules() []graph.NodeID {
	var out []graph.NodeID
	for _, sys := range graph.Systems {
		for _, r := range h.Rules[string(sys)] {
			out = append(out, graph.NodeID{System: sys, Rule: r})
		}
	}
	return out
}
