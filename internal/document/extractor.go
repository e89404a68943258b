// -----------------------------------------------------------------------
// Document Extractor - structural extraction of SEC filing HTML
// -----------------------------------------------------------------------

package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
)

// Format classifies raw filing bytes
type Format string

const (
	FormatHTML Format = "html"
	FormatXBRL Format = "xbrl"
	FormatPDF  Format = "pdf"
)

// ErrPDFUnsupported marks PDF filings, whose content extraction is out of
// scope. Wraps ErrPermanent so a job failing with it dead-letters without
// burning retries.
var ErrPDFUnsupported = fmt.Errorf("%w: PDF content extraction is not supported", interfaces.ErrPermanent)

// DetectFormat sniffs the payload. PDF is detected but not extractable.
func DetectFormat(data []byte) (Format, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("%PDF-")) {
		return FormatPDF, ErrPDFUnsupported
	}
	if bytes.HasPrefix(trimmed, []byte("<?xml")) && bytes.Contains(data, []byte("xbrl")) {
		return FormatXBRL, nil
	}
	return FormatHTML, nil
}

// SectionType identifies a structural element of a filing
type SectionType string

const (
	SectionTitle   SectionType = "TITLE"
	SectionHeading SectionType = "SECTION"
	SectionTable   SectionType = "TABLE"
	SectionList    SectionType = "LIST"
)

// Section is one typed structural element, in document order
type Section struct {
	Type    SectionType `json:"type"`
	Level   int         `json:"level,omitempty"` // Heading level for SECTION
	Heading string      `json:"heading,omitempty"`
	Text    string      `json:"text,omitempty"`
	Caption string      `json:"caption,omitempty"`
	Header  []string    `json:"header,omitempty"`
	Rows    [][]string  `json:"rows,omitempty"`
	Items   []string    `json:"items,omitempty"`
}

// ExtractOptions toggles table and list extraction independently of the
// section walk. A disabled mode omits that section type entirely.
type ExtractOptions struct {
	Tables bool
	Lists  bool
}

// DefaultExtractOptions enables everything
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{Tables: true, Lists: true}
}

// Parse extracts an ordered sequence of typed sections from filing HTML
func Parse(html []byte, opts ExtractOptions) ([]Section, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse filing HTML: %w", err)
	}

	var sections []Section

	if title := cleanText(doc.Find("title").First().Text()); title != "" {
		sections = append(sections, Section{Type: SectionTitle, Text: title})
	}

	// Walk headings, prose, tables, and lists in document order. Text inside
	// tables and list items is owned by those sections, not the prose walk.
	var current *Section
	closeCurrent := func() {
		if current != nil {
			current.Text = strings.TrimSpace(current.Text)
			sections = append(sections, *current)
			current = nil
		}
	}

	doc.Find("h1, h2, h3, h4, h5, h6, p, table, ul, ol").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("table, ul, ol").Length() > 0 {
			return
		}

		tag := goquery.NodeName(s)
		switch tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			closeCurrent()
			heading := cleanText(s.Text())
			if heading == "" {
				return
			}
			current = &Section{
				Type:    SectionHeading,
				Level:   int(tag[1] - '0'),
				Heading: heading,
			}
		case "p":
			text := cleanText(s.Text())
			if text == "" {
				return
			}
			if current == nil {
				current = &Section{Type: SectionHeading}
			}
			if current.Text != "" {
				current.Text += "\n\n"
			}
			current.Text += text
		case "table":
			if !opts.Tables {
				return
			}
			closeCurrent()
			if table := extractTable(s); table != nil {
				sections = append(sections, *table)
			}
		case "ul", "ol":
			if !opts.Lists {
				return
			}
			closeCurrent()
			if list := extractList(s); list != nil {
				sections = append(sections, *list)
			}
		}
	})
	closeCurrent()

	return sections, nil
}

func extractTable(s *goquery.Selection) *Section {
	section := &Section{
		Type:    SectionTable,
		Caption: cleanText(s.Find("caption").First().Text()),
	}

	s.Find("tr").Each(func(_ int, row *goquery.Selection) {
		headers := cellTexts(row.Find("th"))
		if len(headers) > 0 && section.Header == nil {
			section.Header = headers
			return
		}
		if cells := cellTexts(row.Find("td")); len(cells) > 0 {
			section.Rows = append(section.Rows, cells)
		}
	})

	if section.Caption == "" && section.Header == nil && len(section.Rows) == 0 {
		return nil
	}
	return section
}

func extractList(s *goquery.Selection) *Section {
	section := &Section{Type: SectionList}
	s.Find("li").Each(func(_ int, item *goquery.Selection) {
		if text := cleanText(item.Text()); text != "" {
			section.Items = append(section.Items, text)
		}
	})
	if len(section.Items) == 0 {
		return nil
	}
	return section
}

func cellTexts(cells *goquery.Selection) []string {
	var texts []string
	cells.Each(func(_ int, cell *goquery.Selection) {
		texts = append(texts, cleanText(cell.Text()))
	})
	return texts
}

var whitespaceReplacer = strings.NewReplacer(" ", " ", "\r", " ", "\n", " ", "\t", " ")

func cleanText(text string) string {
	return strings.Join(strings.Fields(whitespaceReplacer.Replace(text)), " ")
}

// FullText renders the extracted sections as plain text, the input to the
// chunker and the summarizer
func FullText(sections []Section) string {
	var sb strings.Builder
	for _, section := range sections {
		part := sectionText(section)
		if part == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func sectionText(section Section) string {
	switch section.Type {
	case SectionTitle:
		return section.Text
	case SectionHeading:
		if section.Heading != "" && section.Text != "" {
			return section.Heading + "\n\n" + section.Text
		}
		if section.Heading != "" {
			return section.Heading
		}
		return section.Text
	case SectionTable:
		var lines []string
		if section.Caption != "" {
			lines = append(lines, section.Caption)
		}
		if section.Header != nil {
			lines = append(lines, strings.Join(section.Header, " | "))
		}
		for _, row := range section.Rows {
			lines = append(lines, strings.Join(row, " | "))
		}
		return strings.Join(lines, "\n")
	case SectionList:
		var lines []string
		for _, item := range section.Items {
			lines = append(lines, "- "+item)
		}
		return strings.Join(lines, "\n")
	}
	return ""
}

// DocumentTitle returns the TITLE section text when present
func DocumentTitle(sections []Section) string {
	for _, section := range sections {
		if section.Type == SectionTitle {
			return section.Text
		}
	}
	return ""
}
