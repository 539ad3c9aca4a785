package docx

import (
	"regexp"
	"strings"
)

// Table-of-contents entries are machine-maintained: translating them breaks
// the page references and Word regenerates them anyway. They are detected by
// paragraph style or by the dot-leader-and-page-number shape of the text.

var dotLeaderRE = regexp.MustCompile(`\.{5,}\s*\d+\s*$`)

// IsTOCBlock reports whether a paragraph belongs to a table of contents.
func IsTOCBlock(styleName, text string) bool {
	lower := strings.ToLower(styleName)
	if strings.HasPrefix(lower, "toc") || lower == "tableofcontents" ||
		strings.HasPrefix(lower, "verzeichnis") {
		return true
	}
	return dotLeaderRE.MatchString(strings.TrimSpace(text))
}

func paragraphStyle(p *Paragraph) string {
	if p.Properties != nil && p.Properties.Style != nil {
		return p.Properties.Style.Val
	}
	return ""
}

func paragraphText(p *Paragraph) string {
	var sb strings.Builder
	for i := range p.Runs {
		if p.Runs[i].Text != nil {
			sb.WriteString(p.Runs[i].Text.Text)
		}
	}
	return sb.String()
}

// tocEntryText strips the dot leader and page number from a contents entry,
// leaving the bare heading text.
func tocEntryText(text string) string {
	return strings.TrimSpace(dotLeaderRE.ReplaceAllString(strings.TrimSpace(text), ""))
}

func isHeadingParagraph(style string) bool {
	lower := strings.ToLower(style)
	return strings.HasPrefix(lower, "heading") || strings.HasPrefix(lower, "überschrift")
}

// tocSearchLimit bounds how deep into the body a hand-typed contents region
// is looked for.
const tocSearchLimit = 60

// tocMinEntries is the smallest dot-leader run treated as a contents region;
// shorter runs are more likely stray leader-dot paragraphs.
const tocMinEntries = 3

// NormalizeTOC handles documents whose table of contents was typed by hand
// instead of generated as a field. The first contiguous run of dot-leader
// entries near the document start is removed, and every later body paragraph
// whose text matches an entry but carries no heading style is promoted to
// Heading2. Word rebuilds the contents from the headings after translation.
// Returns the number of promoted paragraphs.
func (f *File) NormalizeTOC() int {
	body := &f.doc.Body

	start, end := -1, -1
	for i := range body.Paragraphs {
		if start < 0 && i >= tocSearchLimit {
			break
		}
		text := strings.TrimSpace(paragraphText(&body.Paragraphs[i]))
		if dotLeaderRE.MatchString(text) {
			if start < 0 {
				start = i
			}
			end = i + 1
			continue
		}
		if start >= 0 && text != "" {
			break
		}
	}
	if start < 0 || end-start < tocMinEntries {
		return 0
	}

	entries := make(map[string]bool, end-start)
	for i := start; i < end; i++ {
		if t := tocEntryText(paragraphText(&body.Paragraphs[i])); t != "" {
			entries[strings.ToLower(t)] = true
		}
	}

	promoted := 0
	for i := end; i < len(body.Paragraphs); i++ {
		p := &body.Paragraphs[i]
		if isHeadingParagraph(paragraphStyle(p)) {
			continue
		}
		if entries[strings.ToLower(strings.TrimSpace(paragraphText(p)))] {
			if p.Properties == nil {
				p.Properties = &ParagraphProps{}
			}
			p.Properties.Style = &ValAttr{Val: "Heading2"}
			promoted++
		}
	}

	body.Paragraphs = append(body.Paragraphs[:start:start], body.Paragraphs[end:]...)
	return promoted
}
