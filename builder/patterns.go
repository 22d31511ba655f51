package builder

import (
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Rule reference detection
// ---------------------------------------------------------------------------

// refPatterns match statute and court-rule citations. The first group is
// the rule token.
var refPatterns = []*regexp.Regexp{
	// "Section 437c", "Rule 3.1350", "CCP 1005", "CRC 2.100"
	regexp.MustCompile(`(?i)\b(?:Section|Rule|CCP|CRC)\s+(\d+(?:\.\d+)*[a-z]?)`),
	// "2025.480 of this Code", "1005 of Title"
	regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)*[a-z]?)\s*of\s+(?:this\s+)?(?:Code|Chapter|Title)`),
	// "Code of Civil Procedure section 1010.6"
	regexp.MustCompile(`(?i)Code\s+of\s+Civil\s+Procedure\s+[Ss]ection\s+(\d+(?:\.\d+)*[a-z]?)`),
}

// courtRulePatterns are the extra citation styles used when resolving
// references across systems.
var courtRulePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brules?\s+(\d+\.\d+)`),
	regexp.MustCompile(`(?i)(?:pursuant\s+to|under|as\s+required\s+by|in\s+accordance\s+with|see)\s+rule\s+(\d+(?:\.\d+)*[a-z]?)`),
}

// bareTokenPattern matches a cross-reference bucket entry that is itself
// a rule number.
var bareTokenPattern = regexp.MustCompile(`^(\d+(?:\.\d+)*[a-z]?)$`)

// ExtractRuleTokens returns the distinct rule tokens cited in text, in
// order of first appearance per pattern. Tokens are lower-cased.
func ExtractRuleTokens(text string) []string {
	return extractTokens(text, refPatterns)
}

// ExtractCrossSystemTokens is ExtractRuleTokens extended with court-rule
// phrasing.
func ExtractCrossSystemTokens(text string) []string {
	return extractTokens(text, append(refPatterns[:len(refPatterns):len(refPatterns)], courtRulePatterns...))
}

// BucketTokens returns the tokens of a cross-reference bucket entry. An
// entry that is just a rule number is its own token.
func BucketTokens(entry string, patterns func(string) []string) []string {
	trimmed := strings.ToLower(strings.TrimSpace(entry))
	if bareTokenPattern.MatchString(trimmed) {
		return []string{trimmed}
	}
	return patterns(entry)
}

func extractTokens(text string, patterns []*regexp.Regexp) []string {
	if text == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			tok := strings.ToLower(m[1])
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}

// excerpt returns the first n characters of s with an ellipsis.
func excerpt(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > n {
		r = r[:n]
	}
	return string(r) + "..."
}
