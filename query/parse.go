// Package query answers free-text filing questions against a built rule
// graph. Each query is parsed, resolved against the graph and the filing
// hierarchy, then rendered into a structured answer.
package query

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Motion types recognised by Parse.
const (
	MotionSummaryJudgment = "motion_for_summary_judgment"
	MotionExParte         = "ex_parte_motion"
	MotionDiscovery       = "discovery_motion"
	MotionDemurrer        = "demurrer"
	MotionElectronic      = "electronic_filing"

	// ComplexCivil is the hierarchy entry added for complex civil cases.
	ComplexCivil = "complex_civil_litigation"
)

// Case types recognised by Parse.
const (
	CaseComplexCivil = "complex_civil"
	CaseGeneralCivil = "general_civil"
)

// ---------------------------------------------------------------------------
// Patterns
// ---------------------------------------------------------------------------

var (
	countyPattern     = regexp.MustCompile(`(\w+\s*\w*)\s+county`)
	judgePattern      = regexp.MustCompile(`judge\s+([a-z.\s]+)`)
	departmentPattern = regexp.MustCompile(`(?:dept\.?|department)\s+(\w+)`)
)

// motionPhrases maps query phrases to motion types, checked in order.
var motionPhrases = []struct {
	phrases []string
	motion  string
}{
	{[]string{"motion for summary judgment", "summary judgment"}, MotionSummaryJudgment},
	{[]string{"ex parte"}, MotionExParte},
	{[]string{"demurrer"}, MotionDemurrer},
	{[]string{"discovery"}, MotionDiscovery},
	{[]string{"electronic filing", "e-filing", "efiling", "e-file"}, MotionElectronic},
}

// leadingStopWords are dropped from the front of a captured county name.
var leadingStopWords = map[string]bool{
	"in": true, "for": true, "of": true, "the": true, "at": true, "on": true,
}

// judgeStops end a captured judge name.
var judgeStops = []string{" in ", " for ", " on ", " at ", " with ", " regarding "}

// Components holds the parts extracted from a query. Empty fields were not
// found.
type Components struct {
	Raw        string `json:"raw"`
	State      string `json:"state,omitempty"`
	County     string `json:"county,omitempty"`
	Judge      string `json:"judge,omitempty"`
	Department string `json:"department,omitempty"`
	CaseType   string `json:"case_type,omitempty"`
	MotionType string `json:"motion_type,omitempty"`
}

// Parse extracts jurisdiction, judge, department, case type and motion type
// from free text. It never fails; unrecognised text leaves fields empty.
func Parse(q string) Components {
	p := Components{Raw: q}
	lower := strings.ToLower(q)

	if strings.Contains(lower, "california") {
		p.State = "California"
	}

	if m := countyPattern.FindStringSubmatch(lower); m != nil {
		words := strings.Fields(m[1])
		for len(words) > 1 && leadingStopWords[words[0]] {
			words = words[1:]
		}
		p.County = strings.Join(words, " ")
	}

	if m := judgePattern.FindStringSubmatch(lower); m != nil {
		name := m[1]
		if i := strings.IndexByte(name, ','); i >= 0 {
			name = name[:i]
		}
		name = " " + name + " "
		for _, stop := range judgeStops {
			if i := strings.Index(name, stop); i >= 0 {
				name = name[:i]
			}
		}
		p.Judge = strings.Trim(strings.TrimSpace(name), ".")
	}

	if m := departmentPattern.FindStringSubmatch(lower); m != nil {
		p.Department = m[1]
	}

	switch {
	case strings.Contains(lower, "complex civil"):
		p.CaseType = CaseComplexCivil
	case strings.Contains(lower, "general civil"):
		p.CaseType = CaseGeneralCivil
	}

	for _, mp := range motionPhrases {
		if containsAny(lower, mp.phrases) {
			p.MotionType = mp.motion
			break
		}
	}
	return p
}

// Summary renders the recognised parts, title-cased and comma separated.
func (p Components) Summary() string {
	var parts []string
	if p.State != "" {
		parts = append(parts, p.State)
	}
	if p.County != "" {
		parts = append(parts, titleCase(p.County)+" County")
	}
	if p.CaseType != "" {
		parts = append(parts, titleCase(strings.ReplaceAll(p.CaseType, "_", " ")))
	}
	if p.Judge != "" {
		parts = append(parts, "Judge "+titleCase(p.Judge))
	}
	if p.Department != "" {
		parts = append(parts, "Department "+strings.ToUpper(p.Department))
	}
	if p.MotionType != "" {
		parts = append(parts, titleCase(strings.ReplaceAll(p.MotionType, "_", " ")))
	}
	return strings.Join(parts, ", ")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
