package corpus

import (
	"regexp"
	"strings"
)

// Patterns used to sort raw rule text into the four buckets.
var (
	requirementPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:shall|must)\s+(?:be\s+)?(?:filed?|served?)\s+[^.]{10,100}`),
		regexp.MustCompile(`(?i)(?:filing|service)\s+(?:shall|must)\s+[^.]{10,100}`),
		regexp.MustCompile(`(?i)(?:document|paper|pleading)\s+(?:shall|must)\s+[^.]{10,100}`),
		regexp.MustCompile(`(?i)[^.]*\b(?:is|are)\s+required\b[^.]*`),
	}

	timingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)within\s+\d+\s+(?:calendar\s+days?|court\s+days?|business\s+days?|days?)`),
		regexp.MustCompile(`(?i)\d+\s+(?:calendar\s+days?|court\s+days?|business\s+days?|days?)\s+(?:before|after|from)[^.]{0,60}`),
		regexp.MustCompile(`(?i)(?:no|not)\s+later\s+than\s+[^.]{5,50}`),
		regexp.MustCompile(`(?i)(?:deadline|due\s+date|time\s+limit|hearing\s+date)\s+[^.]{5,50}`),
	}

	refTokenPattern = regexp.MustCompile(`(?i)(?:Section|Rule|Code)\s+(\d+(?:\.\d+)*[a-z]?)`)

	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
)

var filingTerms = []string{"filing", "service", "pleading", "summons", "complaint", "procedure", "deadline", "format"}

const (
	maxRequirementLen = 200
	maxTimingLen      = 150
	maxProvisionLen   = 300
	maxProvisions     = 5
)

// AnalyzeText extracts the four text buckets from raw rule text.
func AnalyzeText(text string) Analysis {
	var a Analysis
	if len(strings.TrimSpace(text)) < 50 {
		return a
	}

	seen := make(map[string]bool)
	for _, re := range requirementPatterns {
		for _, m := range re.FindAllString(text, -1) {
			m = clip(strings.TrimSpace(m), maxRequirementLen)
			if len(m) > 15 && !seen[m] {
				seen[m] = true
				a.ProceduralRequirements = append(a.ProceduralRequirements, m)
			}
		}
	}

	for _, re := range timingPatterns {
		for _, m := range re.FindAllString(text, -1) {
			m = clip(strings.TrimSpace(m), maxTimingLen)
			if !seen[m] {
				seen[m] = true
				a.DeadlinesAndTiming = append(a.DeadlinesAndTiming, m)
			}
		}
	}

	for _, m := range refTokenPattern.FindAllStringSubmatch(text, -1) {
		if !seen["ref:"+m[1]] {
			seen["ref:"+m[1]] = true
			a.CrossReferences = append(a.CrossReferences, m[1])
		}
	}

	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if len(para) <= 50 || !containsAny(strings.ToLower(para), filingTerms) {
			continue
		}
		a.KeyProvisions = append(a.KeyProvisions, clip(para, maxProvisionLen))
		if len(a.KeyProvisions) >= maxProvisions {
			break
		}
	}
	return a
}

// FilingRelevance scores how relevant a document is to filing work, from 0
// to 10.
func FilingRelevance(title, text string, judge, department bool) float64 {
	content := strings.ToLower(text)
	lowerTitle := strings.ToLower(title)

	score := 0
	if containsAny(content, []string{"must file", "required to file"}) {
		score += 3
	}
	if containsAny(content, []string{"deadline", "time limit"}) {
		score += 2
	}
	if containsAny(content, []string{"e-filing", "electronic filing"}) {
		score += 2
	}
	if containsAny(content, []string{"motion", "petition"}) {
		score += 2
	}
	if containsAny(lowerTitle, []string{"rule", "procedure"}) {
		score++
	}
	if judge {
		score++
	}
	if department {
		score++
	}
	return float64(min(score, 10))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
