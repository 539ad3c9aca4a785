package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Marker delimiters. Double guillemets never appear in natural prose, which
// keeps the encoded stream unambiguous; VerifyDelimiterSafety enforces that
// assumption on the source document before any encoding happens.
const (
	markerOpen  = "««"
	markerClose = "»»"
)

// Decode regexes. The close tag must repeat the open tag's id, which needs a
// backreference the standard regexp package cannot express.
var (
	strictMarkerRE   = regexp2.MustCompile(`(?s)««U(\d+):[^»]*»»(.*?)««/U\1»»`, 0)
	looseMarkerRE    = regexp2.MustCompile(`(?s)««U(\d+)[:\s»]?[^»]*»»(.*?)««/?[^»]*»»`, 0)
	unclosedMarkerRE = regexp2.MustCompile(`(?s)««U(\d+)[^»]*»»(.*?)(?=««U\d|\z)`, 0)
	anyMarkerRE    = regexp2.MustCompile(`««[^»]*»»`, 0)
	thinkBlockRE   = regexp2.MustCompile(`(?s)<think>.*?</think>`, regexp2.IgnoreCase)
	frameMarkerRE  = regexp2.MustCompile(`<<<[^>]*?>>>|<<<\S*`, 0)
)

// Codec encodes merged units into marker-annotated strings and decodes the
// transformer's output back, repairing what it can. A Codec holds the id
// counter for one translation request; create one per request.
type Codec struct {
	nextID int
	// signatures indexed by unit id, for rebinding decoded text to styles.
	signatures map[int]StyleSignature
}

func NewCodec() *Codec {
	return &Codec{nextID: 1, signatures: make(map[int]StyleSignature)}
}

// attrTokens renders a signature as the marker attribute list. Token order
// is fixed so encodes are deterministic.
func attrTokens(sig StyleSignature) string {
	var tokens []string
	add := func(on bool, tok string) {
		if on {
			tokens = append(tokens, tok)
		}
	}
	add(sig.Bold, "B")
	add(sig.Italic, "I")
	add(sig.Underline, "U")
	add(sig.Strike, "S")
	add(sig.DoubleStrike, "DS")
	add(sig.Subscript, "SUB")
	add(sig.Superscript, "SUP")
	add(sig.AllCaps, "AC")
	add(sig.SmallCaps, "SC")
	add(sig.Shadow, "SH")
	add(sig.Emboss, "EM")
	add(sig.Imprint, "IM")
	add(sig.Outline, "OL")
	if sig.FontName != "" {
		tokens = append(tokens, "F:"+sig.FontName)
	}
	if sig.FontSize > 0 {
		tokens = append(tokens, "SZ:"+strconv.Itoa(sig.FontSize))
	}
	if sig.Color >= 0 {
		tokens = append(tokens, "C:"+strconv.Itoa(int(sig.Color)))
	}
	if sig.Highlight != "" {
		tokens = append(tokens, "H:"+sig.Highlight)
	}
	if len(tokens) == 0 {
		return "PLAIN"
	}
	return strings.Join(tokens, ",")
}

// EncodeBlock assigns ids to the block's units and builds the flat string to
// send. Fine mode wraps each unit in markers; coarse mode sends the bare
// concatenation and leaves formatting to the reconstructor.
func (c *Codec) EncodeBlock(blockID int, units []Unit, mode FidelityMode, attrs BlockAttributes) BlockEncoding {
	enc := BlockEncoding{
		BlockID: blockID,
		Mode:    mode,
		Attrs:   attrs,
	}
	var original strings.Builder
	var marked strings.Builder
	for _, u := range units {
		u.ID = c.nextID
		c.nextID++
		c.signatures[u.ID] = u.Style
		enc.Units = append(enc.Units, u)
		original.WriteString(u.Text)
		if mode == FidelityFine {
			fmt.Fprintf(&marked, "%sU%d:%s%s%s%s/U%d%s",
				markerOpen, u.ID, attrTokens(u.Style), markerClose,
				u.Text,
				markerOpen, u.ID, markerClose)
		}
	}
	enc.OriginalText = original.String()
	if mode == FidelityFine {
		enc.Marked = marked.String()
	} else {
		enc.Marked = enc.OriginalText
	}
	return enc
}

// VerifyDelimiterSafety fails loudly when the source document already
// contains the marker delimiters; encoding such a document would produce an
// ambiguous stream.
func VerifyDelimiterSafety(doc Document) error {
	for i, block := range doc.Blocks() {
		text := block.Text()
		if strings.Contains(text, markerOpen) || strings.Contains(text, markerClose) {
			return WrapError(ErrDelimiterCollision,
				"CODEC_COLLISION",
				fmt.Sprintf("block %d contains a guillemet pair reserved for markers", i),
				"encode")
		}
	}
	return nil
}

// Sanitize removes transformer chatter from a response: reasoning blocks,
// batch framing delimiters (intact or truncated), and leading/trailing
// whitespace. Unit markers are left alone.
func Sanitize(response string) string {
	out, _ := thinkBlockRE.Replace(response, "", -1, -1)
	out, _ = frameMarkerRE.Replace(out, "", -1, -1)
	return strings.TrimSpace(out)
}

// StripMarkers removes every marker token from the text, returning bare
// prose. Used for nested-marker cleanup and the verbatim degrade path.
func StripMarkers(text string) string {
	out, _ := anyMarkerRE.Replace(text, "", -1, -1)
	return out
}

// DecodedUnit pairs a translated unit with how it was recovered.
type DecodedUnit struct {
	Unit     Unit
	Degraded bool
	Repaired bool
}

// DecodeResult is the per-block outcome of decoding one response.
// Extraneous is the length of response text that sat outside every
// recognized marker pair and was discarded.
type DecodeResult struct {
	Units      []DecodedUnit
	Degraded   int
	Repaired   int
	Extraneous int
}

// DecodeBlock parses the transformer's output for one fine-mode block and
// rebinds each unit's translated text to its stored signature. Recovery runs
// as a ladder per unit: exact id-tagged match, then a loose match tolerating
// a garbled close tag, then an open tag whose close never arrived (content
// runs to the next open marker or the end), then, when the block has a
// single unit and the response carries no markers at all, the whole
// response. Units that fall through every rung degrade to their original
// text.
func (c *Codec) DecodeBlock(enc BlockEncoding, response string) DecodeResult {
	response = Sanitize(response)

	exact := collectMatches(strictMarkerRE, response)
	loose := collectMatches(looseMarkerRE, response)
	unclosed := collectMatches(unclosedMarkerRE, response)

	bareResponse := StripMarkers(response)
	responseHasMarkers := strings.TrimSpace(bareResponse) != strings.TrimSpace(response)

	var res DecodeResult
	for _, u := range enc.Units {
		sig := c.signatures[u.ID]
		du := DecodedUnit{Unit: Unit{ID: u.ID, Style: sig}}
		switch {
		case exact[u.ID] != "":
			du.Unit.Text = StripMarkers(exact[u.ID])
		case loose[u.ID] != "":
			du.Unit.Text = StripMarkers(loose[u.ID])
			du.Repaired = true
			res.Repaired++
		case strings.TrimSpace(StripMarkers(unclosed[u.ID])) != "":
			du.Unit.Text = strings.TrimSpace(StripMarkers(unclosed[u.ID]))
			du.Repaired = true
			res.Repaired++
		case len(enc.Units) == 1 && !responseHasMarkers && strings.TrimSpace(response) != "":
			du.Unit.Text = strings.TrimSpace(response)
			du.Repaired = true
			res.Repaired++
		default:
			du.Unit.Text = u.Text
			du.Degraded = true
			res.Degraded++
		}
		res.Units = append(res.Units, du)
	}

	// Text outside any recognized marker pair is discarded, never merged
	// into a neighboring unit; the caller logs the loss.
	if responseHasMarkers {
		leftover, _ := strictMarkerRE.Replace(response, "", -1, -1)
		leftover, _ = looseMarkerRE.Replace(leftover, "", -1, -1)
		leftover, _ = unclosedMarkerRE.Replace(leftover, "", -1, -1)
		res.Extraneous = len(strings.TrimSpace(StripMarkers(leftover)))
	}
	return res
}

// collectMatches gathers id-keyed capture pairs, keeping the first
// occurrence of each id.
func collectMatches(re *regexp2.Regexp, text string) map[int]string {
	out := make(map[int]string)
	m, _ := re.FindStringMatch(text)
	for m != nil {
		groups := m.Groups()
		if len(groups) >= 3 {
			id, err := strconv.Atoi(groups[1].String())
			if err == nil {
				if _, seen := out[id]; !seen {
					out[id] = groups[2].String()
				}
			}
		}
		m, _ = re.FindNextMatch(m)
	}
	return out
}

// markerCount counts unit markers in the text, the similarity signal the
// batch repairer scores candidate segments with.
func markerCount(text string) int {
	n := 0
	m, _ := anyMarkerRE.FindStringMatch(text)
	for m != nil {
		n++
		m, _ = re2Next(m)
	}
	return n
}

func re2Next(m *regexp2.Match) (*regexp2.Match, error) {
	return anyMarkerRE.FindNextMatch(m)
}

// RepairBatch fills the gaps in a transformer result. Segments the
// transformer returned in place are kept; for each missing slot the raw
// response is split on blank lines and the unconsumed candidate whose marker
// count best matches the expectation is taken, earlier candidates winning
// ties. Slots with no plausible candidate stay empty and degrade at decode.
func RepairBatch(encs []BlockEncoding, result *TransformResult) []string {
	out := make([]string, len(encs))
	copy(out, result.Results)
	for len(out) < len(encs) {
		out = append(out, "")
	}

	missing := false
	for _, s := range out {
		if strings.TrimSpace(s) == "" {
			missing = true
			break
		}
	}
	if !missing || strings.TrimSpace(result.Raw) == "" {
		return out
	}

	raw := Sanitize(result.Raw)
	candidates := strings.Split(raw, "\n\n")
	used := make([]bool, len(candidates))
	// Candidates already claimed by exact results must not be consumed twice.
	for _, s := range out {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		for i, cand := range candidates {
			if !used[i] && strings.TrimSpace(cand) == s {
				used[i] = true
				break
			}
		}
	}

	for slot := range out {
		if strings.TrimSpace(out[slot]) != "" {
			continue
		}
		want := 0
		if encs[slot].Mode == FidelityFine {
			want = len(encs[slot].Units) * 2
		}
		best := -1
		bestScore := -1
		bestDist := -1
		for i, cand := range candidates {
			if used[i] || strings.TrimSpace(cand) == "" {
				continue
			}
			got := markerCount(cand)
			var score int
			switch {
			case want > 0 && got == want:
				score = 3
			case want > 0 && got > 0:
				score = 2
			case want == 0 && got == 0:
				score = 1
			default:
				continue
			}
			if score > bestScore {
				bestScore = score
				best = i
				bestDist = -1
			} else if score == bestScore && want == 0 {
				// Marker-free slots have no structural signal; prefer the
				// candidate closest in shape to the original text.
				if bestDist < 0 {
					bestDist = fuzzy.LevenshteinDistance(strings.TrimSpace(candidates[best]), encs[slot].OriginalText)
				}
				dist := fuzzy.LevenshteinDistance(strings.TrimSpace(cand), encs[slot].OriginalText)
				if dist < bestDist {
					bestDist = dist
					best = i
				}
			}
		}
		if best >= 0 {
			out[slot] = strings.TrimSpace(candidates[best])
			used[best] = true
		}
	}
	return out
}
