package graph

import (
	"regexp"
	"strconv"
	"strings"
)

// sortKeyPattern matches a rule id's dotted numeric head and an optional
// letter suffix: "437c", "2025.480", "3.1350", "583.5a".
var sortKeyPattern = regexp.MustCompile(`^(\d+(?:\.\d+)*)([A-Za-z]*)`)

// valuePattern is the prefix a float parse would consume.
var valuePattern = regexp.MustCompile(`^\d+(?:\.\d+)?`)

// SortKey orders rule ids structurally. Parts hold the dotted integer
// components, so "410.10" sorts after "410.2". Ids with no numeric head
// have no parts and sort before everything else.
type SortKey struct {
	Parts  []int
	Suffix string
	Raw    string
}

// ParseSortKey derives the key for a rule id. It never fails.
func ParseSortKey(rule string) SortKey {
	raw := strings.TrimSpace(rule)
	k := SortKey{Raw: raw}
	m := sortKeyPattern.FindStringSubmatch(raw)
	if m == nil {
		return k
	}
	for _, p := range strings.Split(m[1], ".") {
		n, err := strconv.Atoi(p)
		if err != nil {
			// Overflowing components are treated as malformed.
			return SortKey{Raw: raw}
		}
		k.Parts = append(k.Parts, n)
	}
	k.Suffix = strings.ToLower(m[2])
	return k
}

// Valid reports whether the id had a numeric head.
func (k SortKey) Valid() bool { return len(k.Parts) > 0 }

// Family returns the integer section family ("2" for "2.100").
func (k SortKey) Family() (int, bool) {
	if len(k.Parts) == 0 {
		return 0, false
	}
	return k.Parts[0], true
}

// Minor returns the first sub-section component, or 0 when absent.
func (k SortKey) Minor() int {
	if len(k.Parts) < 2 {
		return 0
	}
	return k.Parts[1]
}

// Value returns the leading numeric value the way a float parse of the id
// would read it, ignoring letters. Malformed ids yield 0.
func (k SortKey) Value() float64 {
	if len(k.Parts) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(valuePattern.FindString(k.Raw), 64)
	if err != nil {
		return 0
	}
	return v
}

// CompareParts compares only the numeric components. A shorter prefix
// sorts first, so "2025" < "2025.480".
func (k SortKey) CompareParts(o SortKey) int {
	for i := 0; i < len(k.Parts) && i < len(o.Parts); i++ {
		switch {
		case k.Parts[i] < o.Parts[i]:
			return -1
		case k.Parts[i] > o.Parts[i]:
			return 1
		}
	}
	switch {
	case len(k.Parts) < len(o.Parts):
		return -1
	case len(k.Parts) > len(o.Parts):
		return 1
	}
	return 0
}

// Compare is a total order: parts, then suffix, then the raw id.
func (k SortKey) Compare(o SortKey) int {
	if c := k.CompareParts(o); c != 0 {
		return c
	}
	if c := strings.Compare(k.Suffix, o.Suffix); c != 0 {
		return c
	}
	return strings.Compare(k.Raw, o.Raw)
}

// Less reports whether k sorts before o.
func (k SortKey) Less(o SortKey) bool { return k.Compare(o) < 0 }
