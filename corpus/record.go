package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// envelope is the document produced by the extraction scrapers.
type envelope struct {
	Documents []json.RawMessage `json:"extracted_documents"`
}

// Record is one extracted rule document. Field names follow the scraper
// output; several spellings are accepted because the three systems were
// extracted by different tools.
type Record struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	FileInfo *FileInfo `json:"file_info"`
	RuleInfo *RuleInfo `json:"rule_info"`
	Content  Content   `json:"content"`
	Metadata *struct {
		WordCount int `json:"word_count"`
	} `json:"metadata"`

	Analysis       *Analysis `json:"analysis"`
	CCPAnalysis    *Analysis `json:"ccp_analysis"`
	CRCAnalysis    *Analysis `json:"crc_analysis"`
	CountyAnalysis *Analysis `json:"county_analysis"`

	FilingRelevance Relevance `json:"filing_relevance_score"`

	// County-only fields.
	County         string          `json:"county"`
	Classification *Classification `json:"classification"`
	JudgeInfo      *JudgeInfo      `json:"judge_specific_info"`
}

// FileInfo carries the extraction status of a record.
type FileInfo struct {
	Status string `json:"status"`
}

// RuleInfo is the scraper's description of the rule itself.
type RuleInfo struct {
	RuleNumber      string    `json:"ruleNumber"`
	RuleNumberSnake string    `json:"rule_number"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	FilingRelevance Relevance `json:"filingRelevance"`
}

// Analysis holds the four extracted text buckets.
type Analysis struct {
	ProceduralRequirements TextList `json:"procedural_requirements"`
	DeadlinesAndTiming     TextList `json:"deadlines_and_timing"`
	CrossReferences        TextList `json:"cross_references"`
	KeyProvisions          TextList `json:"key_provisions"`
}

// Classification is the county document classifier output.
type Classification struct {
	DocumentType    string   `json:"document_type"`
	CrossReferences TextList `json:"cross_references"`
}

// JudgeInfo carries judge- and department-specific attributes.
type JudgeInfo struct {
	JudgeName  string `json:"judge_name"`
	Department string `json:"department"`
}

// Content is either the extracted text (county scrapers) or an object with
// the text under full_text or text plus counts (statute scrapers).
type Content struct {
	Text      string
	WordCount int
	PageCount int
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		if err := json.Unmarshal(data, &c.Text); err != nil {
			return err
		}
		c.WordCount = len(strings.Fields(c.Text))
		return nil
	}
	var obj struct {
		FullText  string `json:"full_text"`
		Text      string `json:"text"`
		WordCount int    `json:"word_count"`
		PageCount int    `json:"page_count"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	c.Text = obj.FullText
	if c.Text == "" {
		c.Text = obj.Text
	}
	c.WordCount, c.PageCount = obj.WordCount, obj.PageCount
	if c.WordCount == 0 && c.Text != "" {
		c.WordCount = len(strings.Fields(c.Text))
	}
	return nil
}

// Relevance is a filing-relevance score given either as a number or as an
// object with a score field.
type Relevance float64

func (r *Relevance) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '{' {
		var obj struct {
			Score float64 `json:"score"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("relevance: %w", err)
		}
		*r = Relevance(obj.Score)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("relevance: %w", err)
	}
	*r = Relevance(f)
	return nil
}

// TextList is a list of strings. Non-string entries are rendered as
// compact JSON so that odd scraper output still yields searchable text.
type TextList []string

func (l *TextList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("text list: %w", err)
	}
	out := make(TextList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, item); err == nil {
			out = append(out, buf.String())
		}
	}
	*l = out
	return nil
}

var countyRulePattern = regexp.MustCompile(`(?i)rule\s+(\d+(?:\.\d+)?)`)

// UnknownRule is the rule id given to records that carry none.
const UnknownRule = "Unknown"

// RuleID returns the explicit rule id from the record or its rule info,
// or "" when none is present.
func (r *Record) RuleID() string {
	for _, s := range []string{r.ID, r.ruleInfo().RuleNumber, r.ruleInfo().RuleNumberSnake} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// MentionedRule returns the number of the first "Rule N" mention in the
// title or text. County documents rarely carry an explicit id.
func (r *Record) MentionedRule() string {
	for _, s := range []string{r.Title, r.Content.Text} {
		if m := countyRulePattern.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}

// RuleTitle returns the title, or "Unknown Title".
func (r *Record) RuleTitle() string {
	for _, s := range []string{r.ruleInfo().Title, r.Title} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return "Unknown Title"
}

// Buckets returns the first analysis bucket present.
func (r *Record) Buckets() Analysis {
	for _, a := range []*Analysis{r.Analysis, r.CCPAnalysis, r.CRCAnalysis, r.CountyAnalysis} {
		if a != nil {
			return *a
		}
	}
	var a Analysis
	if r.Classification != nil {
		a.CrossReferences = r.Classification.CrossReferences
	}
	return a
}

// Succeeded reports whether the extraction succeeded. Records without a
// status are accepted.
func (r *Record) Succeeded() bool {
	return r.FileInfo == nil || r.FileInfo.Status == "" || r.FileInfo.Status == "success"
}

func (r *Record) ruleInfo() RuleInfo {
	if r.RuleInfo == nil {
		return RuleInfo{}
	}
	return *r.RuleInfo
}

// decodeRecords accepts either the envelope or a bare array.
func decodeRecords(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Documents == nil {
		return nil, ErrBadEnvelope
	}
	return env.Documents, nil
}
