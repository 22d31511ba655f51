package query

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/brunobiangulo/rulegraph/graph"
	"github.com/brunobiangulo/rulegraph/taxonomy"
)

// ClassificationForm marks a rule node that is a court form.
const ClassificationForm = "FORM"

// Engine answers queries against one finished graph. It only reads the
// graph and is safe for concurrent use.
type Engine struct {
	g  *graph.Graph
	tx *taxonomy.Taxonomy
}

// New returns an engine over g using the filing hierarchy of tx.
func New(g *graph.Graph, tx *taxonomy.Taxonomy) *Engine {
	return &Engine{g: g, tx: tx}
}

// Resolution is the set of nodes a parsed query matched.
type Resolution struct {
	// Hierarchy holds the filing-hierarchy matches, in hierarchy order.
	Hierarchy []*graph.Node
	// Local holds county nodes matched by county, judge or department.
	Local []*graph.Node
	// Related holds the structural neighbours of the hierarchy matches.
	Related []*graph.Node
	// Entries are the hierarchy entries that applied.
	Entries []taxonomy.HierarchyEntry
}

// RuleSummary is one applicable rule in an answer.
type RuleSummary struct {
	ID               string  `json:"id"`
	Rule             string  `json:"rule"`
	Title            string  `json:"title"`
	Category         string  `json:"category"`
	FilingRelevance  float64 `json:"filing_relevance"`
	RequirementCount int     `json:"procedural_requirements"`
	County           string  `json:"county,omitempty"`
	Judge            string  `json:"judge,omitempty"`
	Department       string  `json:"department,omitempty"`
}

// ApplicableRules groups rule summaries by system.
type ApplicableRules struct {
	CCP    []RuleSummary `json:"ccp"`
	CRC    []RuleSummary `json:"crc"`
	County []RuleSummary `json:"county"`
}

// FilingRequirement is one rule carrying procedural requirements.
type FilingRequirement struct {
	Rule             string  `json:"rule"`
	Source           string  `json:"source"`
	RequirementCount int     `json:"requirement_count"`
	FilingRelevance  float64 `json:"filing_relevance"`
}

// RelatedRule is a structural neighbour of a hierarchy match.
type RelatedRule struct {
	ID       string `json:"id"`
	Rule     string `json:"rule"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// Answer is the structured response to a query. Every list is non-nil so
// an unmatched query still encodes as empty arrays.
type Answer struct {
	Components         Components          `json:"components"`
	Summary            string              `json:"query_summary"`
	ApplicableRules    ApplicableRules     `json:"applicable_rules"`
	FilingRequirements []FilingRequirement `json:"filing_requirements"`
	ProceduralSteps    []string            `json:"procedural_steps"`
	Deadlines          []string            `json:"deadlines"`
	FormsRequired      []string            `json:"forms_required"`
	LocalVariations    []string            `json:"local_variations"`
	RelatedRules       []RelatedRule       `json:"related_rules"`
}

// Matched returns the number of applicable rules in the answer.
func (a *Answer) Matched() int {
	return len(a.ApplicableRules.CCP) + len(a.ApplicableRules.CRC) + len(a.ApplicableRules.County)
}

// Answer parses, resolves and renders q.
func (e *Engine) Answer(q string) *Answer {
	p := Parse(q)
	res := e.Resolve(p)
	a := e.Render(p, res)
	slog.Debug("query: answered",
		"motion", p.MotionType, "county", p.County, "judge", p.Judge,
		"hierarchy", len(res.Hierarchy), "local", len(res.Local))
	return a
}

// Resolve fetches the nodes the query components refer to.
func (e *Engine) Resolve(p Components) Resolution {
	var res Resolution
	if e.g == nil {
		return res
	}

	var motions []string
	if p.MotionType != "" {
		motions = append(motions, p.MotionType)
	}
	if p.CaseType == CaseComplexCivil {
		motions = append(motions, ComplexCivil)
	}

	seen := make(map[graph.NodeID]bool)
	for _, m := range motions {
		entry, ok := e.tx.Hierarchy(m)
		if !ok {
			continue
		}
		res.Entries = append(res.Entries, entry)
		for _, id := range entry.HierarchyRules() {
			n, ok := e.g.Node(id)
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			res.Hierarchy = append(res.Hierarchy, n)
		}
	}

	if p.County != "" || p.Judge != "" || p.Department != "" {
		for _, n := range e.g.NodesBySystem(graph.SystemCounty) {
			if seen[n.ID] {
				continue
			}
			if matchAttr(n.County, p.County) || matchAttr(n.Judge, p.Judge) || matchAttr(n.Department, p.Department) {
				seen[n.ID] = true
				res.Local = append(res.Local, n)
			}
		}
	}

	if len(res.Hierarchy) > 0 {
		seeds := make([]graph.NodeID, len(res.Hierarchy))
		for i, n := range res.Hierarchy {
			seeds[i] = n.ID
		}
		for _, id := range graph.Neighborhood(e.g, seeds, 1) {
			if seen[id] {
				continue
			}
			if n, ok := e.g.Node(id); ok {
				res.Related = append(res.Related, n)
			}
		}
		graph.SortNodes(res.Related)
	}
	return res
}

// matchAttr reports a case-insensitive substring match. An empty query
// value never matches.
func matchAttr(attr, want string) bool {
	if want == "" || attr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(attr), strings.ToLower(want))
}

// Render assembles the answer for a resolution.
func (e *Engine) Render(p Components, res Resolution) *Answer {
	a := &Answer{
		Components: p,
		Summary:    p.Summary(),
		ApplicableRules: ApplicableRules{
			CCP:    []RuleSummary{},
			CRC:    []RuleSummary{},
			County: []RuleSummary{},
		},
		FilingRequirements: []FilingRequirement{},
		ProceduralSteps:    []string{},
		Deadlines:          []string{},
		FormsRequired:      []string{},
		LocalVariations:    []string{},
		RelatedRules:       []RelatedRule{},
	}

	all := append(append([]*graph.Node{}, res.Hierarchy...), res.Local...)
	for _, n := range all {
		s := summarize(n)
		switch n.ID.System {
		case graph.SystemCCP:
			a.ApplicableRules.CCP = append(a.ApplicableRules.CCP, s)
		case graph.SystemCRC:
			a.ApplicableRules.CRC = append(a.ApplicableRules.CRC, s)
		case graph.SystemCounty:
			a.ApplicableRules.County = append(a.ApplicableRules.County, s)
		}

		if len(n.Requirements) > 0 {
			a.FilingRequirements = append(a.FilingRequirements, FilingRequirement{
				Rule:             n.Label,
				Source:           string(n.ID.System),
				RequirementCount: len(n.Requirements),
				FilingRelevance:  n.FilingRelevance,
			})
		}
		if strings.EqualFold(n.Classification, ClassificationForm) {
			a.FormsRequired = append(a.FormsRequired, n.Label)
		}
		if n.ID.System == graph.SystemCounty {
			if n.JudgeSpecific {
				a.LocalVariations = append(a.LocalVariations, "Judge-specific procedures: "+n.Label)
			}
			if n.DepartmentSpecific {
				a.LocalVariations = append(a.LocalVariations, "Department-specific rules: "+n.Label)
			}
		}
	}
	sort.SliceStable(a.FilingRequirements, func(i, j int) bool {
		return a.FilingRequirements[i].FilingRelevance > a.FilingRequirements[j].FilingRelevance
	})

	seenDeadline := make(map[string]bool)
	for _, entry := range res.Entries {
		a.ProceduralSteps = append(a.ProceduralSteps, entry.Steps...)
		for _, d := range entry.Deadlines {
			if !seenDeadline[d] {
				seenDeadline[d] = true
				a.Deadlines = append(a.Deadlines, d)
			}
		}
	}

	for _, n := range res.Related {
		a.RelatedRules = append(a.RelatedRules, RelatedRule{
			ID:       n.ID.String(),
			Rule:     n.Label,
			Title:    n.Title,
			Category: n.Category,
		})
	}
	return a
}

func summarize(n *graph.Node) RuleSummary {
	return RuleSummary{
		ID:               n.ID.String(),
		Rule:             n.Label,
		Title:            n.Title,
		Category:         n.Category,
		FilingRelevance:  n.FilingRelevance,
		RequirementCount: len(n.Requirements),
		County:           n.County,
		Judge:            n.Judge,
		Department:       n.Department,
	}
}
