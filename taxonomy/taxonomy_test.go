package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/rulegraph/graph"
)

func id(s string) graph.NodeID {
	n, err := graph.ParseNodeID(s)
	if err != nil {
		panic(err)
	}
	return n
}

// ---------------------------------------------------------------------------
// Categorizer
// ---------------------------------------------------------------------------

func TestCategorizeRanges(t *testing.T) {
	c := MustDefault().Categorizer()

	tests := []struct {
		id    string
		title string
		want  string
	}{
		// Pleadings 420-475 is listed before Summary Judgment 437-439.
		{"ccp_437c", "Motion for summary judgment", "Pleadings"},
		{"ccp_438", "Motion for judgment on the pleadings", "Pleadings"},
		{"ccp_430.10", "Grounds for objection", "Pleadings"},
		{"ccp_583.5", "Definitions", "Dismissal Procedures"},
		{"ccp_2025.480", "Deposition motions", "Depositions"},
		{"ccp_2030.010", "Interrogatories", "Interrogatories"},
		{"ccp_1094.5", "Administrative mandamus", "Mandates"},
		{"crc_3.1350", "Motion for summary judgment", "Civil Procedures"},
		{"crc_2.251", "Electronic service", "Document Format"},
		{"crc_1.10", "Computing time", "General Rules"},
		{"crc_4.420", "Sentencing", "Criminal Procedures"},
		{"crc_5.83", "Family centered case resolution", "Family Law"},
		{"crc_8.485", "Writ petitions", "Appeals"},
		{"crc_10.603", "Presiding judges", "Judicial Administration"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Categorize(id(tt.id), tt.title))
		})
	}
}

func TestCategorizeDecimalBounds(t *testing.T) {
	c := MustDefault().Categorizer()

	// Sub-sections read as decimals: 2030.300 is 2030.3, past the
	// Interrogatories range ending at 2030.1.
	assert.Equal(t, "Motion Practice", c.Categorize(id("ccp_2030.300"), "Motion to compel further responses"))
	assert.Equal(t, "General Procedures", c.Categorize(id("ccp_418.10"), "Special appearance"))
	assert.Equal(t, "Jurisdiction & Service", c.Categorize(id("ccp_418"), "Special appearance"))
	assert.Equal(t, "General Procedures", c.Categorize(id("ccp_583.8"), "Trial within three years"))

	// CRC divisions exclude their upper bound.
	assert.Equal(t, "Document Format", c.Categorize(id("crc_2"), ""))
	assert.Equal(t, "Other Procedures", c.Categorize(id("crc_11"), ""))
}

func TestCategorizeRangeBeatsKeyword(t *testing.T) {
	c := MustDefault().Categorizer()
	// "discovery" in the title must not override the Depositions range.
	assert.Equal(t, "Depositions", c.Categorize(id("ccp_2025.010"), "Discovery by oral deposition"))
}

func TestCategorizeKeywordsAndDefault(t *testing.T) {
	c := MustDefault().Categorizer()

	assert.Equal(t, "Motion Practice", c.Categorize(id("ccp_9999"), "Motion calendar"))
	assert.Equal(t, "Filing & Service", c.Categorize(id("ccp_9999"), "Filing of papers"))
	assert.Equal(t, "General Procedures", c.Categorize(id("ccp_9999"), "Miscellaneous"))
	assert.Equal(t, "General Procedures", c.Categorize(id("ccp_abc"), ""))
	assert.Equal(t, "Other Procedures", c.Categorize(id("crc_99.1"), "Courtroom decorum"))
	assert.Equal(t, "Other Procedures", c.Categorize(id("crc_7.1"), "Motion calendar"), "crc has no keyword rules")
}

func TestCategorizeCountySections(t *testing.T) {
	c := MustDefault().Categorizer()

	assert.Equal(t, "Ex Parte Procedures", c.Categorize(id("county_3.4"), "Ex Parte Hearings"))
	assert.Equal(t, "General Civil", c.Categorize(id("county_3.4"), "Rule 3.4"))
	assert.Equal(t, "Tentative Rulings", c.Categorize(id("county_3.4"), "Rule 3.4",
		[]string{"The court posts a tentative ruling by 2 p.m."}))
	// Keyword rules without scan_sections ignore section text.
	assert.Equal(t, "General Civil", c.Categorize(id("county_9"), "Rule 9",
		[]string{"see judge"}))
}

// ---------------------------------------------------------------------------
// Themes
// ---------------------------------------------------------------------------

func TestThemes(t *testing.T) {
	tx := MustDefault()

	assert.Equal(t, []string{"appeals"}, tx.Themes("Appellate briefs"))
	assert.Contains(t, tx.Themes("Motion to compel discovery"), "discovery")
	assert.Contains(t, tx.Themes("Motion to compel discovery"), "motion")
	assert.Equal(t, []string{"general"}, tx.Themes("Miscellaneous"))

	none := tx.WithThemeFallback("")
	assert.Empty(t, none.Themes("Miscellaneous"))
	assert.Equal(t, "general", tx.ThemeFallback(), "original is unchanged")
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

func TestDefaultTables(t *testing.T) {
	tx, err := Default()
	require.NoError(t, err)

	links := tx.Links()
	require.NotEmpty(t, links)
	assert.Equal(t, Link{From: id("ccp_437c"), To: id("crc_3.1350"), Relation: "format_requirement", Strength: 10}, links[0])

	h, ok := tx.Hierarchy("motion_for_summary_judgment")
	require.True(t, ok)
	assert.Contains(t, h.HierarchyRules(), id("ccp_437c"))
	assert.Contains(t, h.HierarchyRules(), id("crc_3.1350"))
	assert.NotEmpty(t, h.Deadlines)
	assert.NotEmpty(t, h.Steps)

	_, ok = tx.Hierarchy("nonexistent")
	assert.False(t, ok)

	assert.Contains(t, tx.Motions(), "complex_civil_litigation")
	assert.Contains(t, tx.Categories(graph.SystemCRC), "Document Format")
	assert.Contains(t, tx.Categories(graph.SystemCCP), "General Procedures")
}

func TestParseRejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no systems", "themes: []\n"},
		{"unknown system", "systems:\n  - {system: tax, default: X}\n"},
		{"inverted range", "systems:\n  - system: ccp\n    default: X\n    ranges:\n      - {from: '10', to: '2', category: Y}\n"},
		{"non-numeric range", "systems:\n  - system: ccp\n    default: X\n    ranges:\n      - {from: 'a', to: '2', category: Y}\n"},
		{"bad theme", "systems:\n  - {system: ccp, default: X}\nthemes:\n  - {name: a, pattern: '('}\n"},
		{"same-system link", "systems:\n  - {system: ccp, default: X}\ncorrespondences:\n  - {from: ccp_1, to: ccp_2, relation: r, strength: 1}\n"},
		{"malformed link", "systems:\n  - {system: ccp, default: X}\ncorrespondences:\n  - {from: nope, to: crc_2, relation: r, strength: 1}\n"},
		{"strength out of range", "systems:\n  - {system: ccp, default: X}\ncorrespondences:\n  - {from: ccp_1, to: crc_2, relation: r, strength: 11}\n"},
		{"duplicate system", "systems:\n  - {system: ccp, default: X}\n  - {system: ccp, default: Y}\n"},
		{"not yaml", "systems: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	data := `
systems:
  - system: ccp
    default: Other
    ranges:
      - {from: "1", to: "9.999", category: Low}
      - {from: "10", to: "11", exclusive: true, category: Ten}
theme_fallback: misc
themes:
  - {name: service, pattern: "serv"}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	tx, err := Load(path)
	require.NoError(t, err)
	c := tx.Categorizer()
	assert.Equal(t, "Low", c.Categorize(id("ccp_9.5"), ""))
	assert.Equal(t, "Ten", c.Categorize(id("ccp_10.5a"), ""))
	assert.Equal(t, "Other", c.Categorize(id("ccp_11"), ""))
	assert.Equal(t, "General", c.Categorize(id("crc_1"), ""), "undeclared system")
	assert.Equal(t, []string{"misc"}, tx.Themes("nothing"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
