package transformer

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// Segment framing delimiters. Each input text travels inside an indexed
// frame so the response can be realigned even when the model reorders or
// pads its output.
const (
	segStartFmt = "<<<SEG_%d_START>>>"
	segEndFmt   = "<<<SEG_%d_END>>>"
)

// segmentRE requires matching indices on both frame ends.
var segmentRE = regexp2.MustCompile(`(?s)<<<SEG_(\d+)_START>>>\s*(.*?)\s*<<<SEG_\1_END>>>`, 0)

const systemPromptFmt = `You are a professional translator. Translate the following text segments into %s.

Rules:
1. Translate segment by segment. Reproduce each segment inside its original <<<SEG_n_START>>> and <<<SEG_n_END>>> delimiters, with the same n.
2. Some segments contain formatting markers of the form ««Un:attrs»»text««/Un»». Translate only the text between marker pairs. Copy every marker exactly as given: same ids, same attributes, same order. Never translate, add, remove, or reorder markers.
3. Preserve line breaks inside segments.
4. Output nothing except the delimited translated segments.`

// BuildPrompt frames the texts for one transformer call and returns the
// system and user messages.
func BuildPrompt(texts []string, targetLanguage string) (system, user string) {
	var sb strings.Builder
	for i, text := range texts {
		fmt.Fprintf(&sb, segStartFmt, i)
		sb.WriteString("\n")
		sb.WriteString(text)
		sb.WriteString("\n")
		fmt.Fprintf(&sb, segEndFmt, i)
		sb.WriteString("\n\n")
	}
	return fmt.Sprintf(systemPromptFmt, targetLanguage), strings.TrimRight(sb.String(), "\n")
}

// ParseSegments extracts the indexed segments from a response. Slots the
// response dropped come back empty; indices out of range are discarded.
// Duplicate indices keep the first occurrence.
func ParseSegments(response string, count int) []string {
	out := make([]string, count)
	m, _ := segmentRE.FindStringMatch(response)
	for m != nil {
		groups := m.Groups()
		if len(groups) >= 3 {
			var idx int
			if _, err := fmt.Sscanf(groups[1].String(), "%d", &idx); err == nil {
				if idx >= 0 && idx < count && out[idx] == "" {
					out[idx] = groups[2].String()
				}
			}
		}
		m, _ = segmentRE.FindNextMatch(m)
	}
	return out
}
