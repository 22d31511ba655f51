package taxonomy

import (
	"strings"

	"github.com/brunobiangulo/rulegraph/graph"
)

// Categorizer assigns categories from a compiled taxonomy.
type Categorizer struct {
	tx *Taxonomy
}

// Categorizer returns a categorizer backed by t.
func (t *Taxonomy) Categorizer() *Categorizer {
	return &Categorizer{tx: t}
}

// Categorize returns the category for a rule. Numeric ranges are tried
// first against the id's leading decimal value, letters ignored, then
// keyword rules against the lower-cased title, then the system catch-all.
// A range hit is never overridden by a keyword.
func (c *Categorizer) Categorize(id graph.NodeID, title string, sections ...[]string) string {
	if key := graph.ParseSortKey(id.Rule); key.Valid() {
		v := key.Value()
		for _, r := range c.tx.ranges[id.System] {
			if r.contains(v) {
				return r.category
			}
		}
	}

	lowerTitle := strings.ToLower(title)
	var sectionText string
	for _, k := range c.tx.keywords[id.System] {
		if containsAny(lowerTitle, k.Any) {
			return k.Category
		}
		if !k.ScanSections || len(sections) == 0 {
			continue
		}
		if sectionText == "" {
			sectionText = joinSections(sections)
		}
		if containsAny(sectionText, k.Any) {
			return k.Category
		}
	}

	if d, ok := c.tx.defaults[id.System]; ok {
		return d
	}
	return "General"
}

// Themes returns the theme tags whose pattern matches title, in table
// order. A title matching nothing gets the fallback tag, if one is set.
func (t *Taxonomy) Themes(title string) []string {
	var out []string
	for _, th := range t.themes {
		if th.pattern.MatchString(title) {
			out = append(out, th.name)
		}
	}
	if len(out) == 0 && t.tables.ThemeFallback != "" {
		out = append(out, t.tables.ThemeFallback)
	}
	return out
}

// ThemeFallback returns the tag given to titles matching no theme.
func (t *Taxonomy) ThemeFallback() string {
	return t.tables.ThemeFallback
}

// WithThemeFallback returns a copy of t whose fallback tag is name. An empty
// name disables the fallback.
func (t *Taxonomy) WithThemeFallback(name string) *Taxonomy {
	cp := *t
	cp.tables.ThemeFallback = name
	return &cp
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func joinSections(sections [][]string) string {
	var b strings.Builder
	for _, sec := range sections {
		for _, s := range sec {
			b.WriteString(strings.ToLower(s))
			b.WriteByte(' ')
		}
	}
	return b.String()
}
