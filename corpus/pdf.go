package corpus

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/brunobiangulo/rulegraph/graph"
)

// pdfNamePattern accepts "437c.pdf", "ccp_437c.pdf" and "CRC-3.1350.pdf".
var pdfNamePattern = regexp.MustCompile(`(?i)^(?:(ccp|crc|county)[_\-\s]*)?(\d+(?:\.\d+)*[a-z]?)$`)

// pdfText holds the plain text of a PDF and its page count.
type pdfText struct {
	Text  string
	Pages int
}

// readPDF extracts plain text page by page. Pages that fail to extract are
// skipped.
func readPDF(path string) (*pdfText, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	var b strings.Builder
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("corpus: skipping unreadable page", "path", path, "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return &pdfText{Text: b.String(), Pages: totalPages}, nil
}

// pdfRuleID derives the rule id from a PDF file name. The optional system
// prefix must match sys.
func pdfRuleID(sys graph.System, name string) (string, bool) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	m := pdfNamePattern.FindStringSubmatch(strings.TrimSpace(base))
	if m == nil {
		return "", false
	}
	if m[1] != "" && !strings.EqualFold(m[1], string(sys)) {
		return "", false
	}
	return m[2], true
}

// firstLine returns the first non-empty line of text, used as the title
// when a PDF carries no metadata.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return clip(line, 200)
		}
	}
	return ""
}

// LoadPDFDir turns every rule PDF in dir into a node. Files whose names are
// not rule ids are ignored; unreadable PDFs are logged and skipped.
func (l *Loader) LoadPDFDir(sys graph.System, dir string) ([]*graph.Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var nodes []*graph.Node
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		rule, ok := pdfRuleID(sys, e.Name())
		if !ok {
			slog.Debug("corpus: ignoring pdf without rule id", "file", e.Name())
			continue
		}
		path := filepath.Join(dir, e.Name())
		doc, err := l.readPDF(path)
		if err != nil {
			slog.Warn("corpus: skipping pdf", "path", path, "error", err)
			continue
		}

		buckets := AnalyzeText(doc.Text)
		title := firstLine(doc.Text)
		if title == "" {
			title = "Unknown Title"
		}
		n := l.newNode(graph.NodeID{System: sys, Rule: rule}, title, buckets, doc.Text)
		n.PageCount = doc.Pages
		n.WordCount = len(strings.Fields(doc.Text))
		n.FilingRelevance = FilingRelevance(title, doc.Text, false, false)
		nodes = append(nodes, n)
	}

	slog.Info("corpus: loaded pdf directory", "system", sys, "dir", dir, "rules", len(nodes))
	return nodes, nil
}
