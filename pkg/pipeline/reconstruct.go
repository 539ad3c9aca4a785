package pipeline

import "strings"

// Reconstructor writes translated text back into document blocks, reusing
// run slots where it can and synthesizing plausible formatting where the
// fine-grained mapping is gone.
type Reconstructor struct {
	doc Document
}

func NewReconstructor(doc Document) *Reconstructor {
	return &Reconstructor{doc: doc}
}

// quarantine wrapping keeps failed source text visible and greppable in the
// output document.
const (
	quarantineOpen  = "<untranslated>"
	quarantineClose = "</untranslated>"
)

// ApplyFine writes decoded units into the block. Existing run slots are
// reused in order with both text and signature overwritten, extra units get
// appended slots, and leftover slots are deleted. Overwriting the whole
// signature resets boolean toggles a reused slot carried before.
func (r *Reconstructor) ApplyFine(block Block, decoded DecodeResult) {
	runs := block.Runs()
	for i, du := range decoded.Units {
		if i < len(runs) {
			runs[i].SetText(du.Unit.Text)
			runs[i].SetStyle(du.Unit.Style)
		} else {
			block.AppendRun(du.Unit.Text, du.Unit.Style)
		}
	}
	block.TruncateRuns(len(decoded.Units))
	r.normalizeBlock(block)
}

// ApplyCoarse distributes a bare translated string over the block's original
// run structure. The ladder mirrors how much signal survives: a case
// boundary in both texts maps case segments onto the original styles, two
// runs split proportionally by original length, up to four runs share words
// proportionally, and anything denser collapses into the first run.
func (r *Reconstructor) ApplyCoarse(block Block, translated string) {
	runs := block.Runs()
	switch {
	case len(runs) == 0:
		block.AppendRun(translated, PlainSignature())
	case len(runs) == 1:
		runs[0].SetText(translated)
	case HasCaseBoundary(block.Text()) && HasCaseBoundary(translated):
		r.applyByCase(block, translated)
	case len(runs) == 2:
		r.applyProportional(block, translated)
	case len(runs) <= 4:
		r.applyByWords(block, translated)
	default:
		runs[0].SetText(translated)
		for _, run := range runs[1:] {
			run.SetText("")
		}
		block.TruncateRuns(1)
	}
	r.normalizeBlock(block)
}

// applyByCase lines translated case segments up with the original runs'
// styles. Segment counts rarely match run counts exactly; extras fold into
// the last run.
func (r *Reconstructor) applyByCase(block Block, translated string) {
	runs := block.Runs()
	segments := SplitByCase(translated)
	for i, run := range runs {
		switch {
		case i < len(segments) && i < len(runs)-1:
			run.SetText(segments[i])
		case i == len(runs)-1 && i < len(segments):
			run.SetText(strings.Join(segments[i:], ""))
		default:
			run.SetText("")
		}
	}
}

// applyProportional splits the translated text between two runs at the same
// length ratio the originals had, snapping the cut to a space.
func (r *Reconstructor) applyProportional(block Block, translated string) {
	runs := block.Runs()
	first := len(runs[0].Text())
	total := first + len(runs[1].Text())
	if total == 0 {
		runs[0].SetText(translated)
		runs[1].SetText("")
		return
	}
	cut := len(translated) * first / total
	if cut > len(translated) {
		cut = len(translated)
	}
	// Snap forward to the nearest word boundary.
	for cut < len(translated) && translated[cut] != ' ' {
		cut++
	}
	runs[0].SetText(translated[:cut])
	runs[1].SetText(translated[cut:])
}

// applyByWords spreads whole words across the runs in proportion to each
// run's share of the original text.
func (r *Reconstructor) applyByWords(block Block, translated string) {
	runs := block.Runs()
	words := strings.Fields(translated)
	total := 0
	for _, run := range runs {
		total += len(run.Text())
	}
	if total == 0 || len(words) == 0 {
		runs[0].SetText(translated)
		for _, run := range runs[1:] {
			run.SetText("")
		}
		return
	}
	idx := 0
	for i, run := range runs {
		if i == len(runs)-1 {
			run.SetText(strings.Join(words[idx:], " "))
			break
		}
		share := len(words) * len(run.Text()) / total
		if share < 1 && idx < len(words) {
			share = 1
		}
		end := idx + share
		if end > len(words) {
			end = len(words)
		}
		run.SetText(strings.Join(words[idx:end], " "))
		idx = end
	}
	// Rejoin with single spaces between non-empty runs.
	rebalanceSpaces(runs)
}

func rebalanceSpaces(runs []Run) {
	prevNonEmpty := false
	for _, run := range runs {
		t := run.Text()
		if t == "" {
			continue
		}
		if prevNonEmpty && !strings.HasPrefix(t, " ") {
			run.SetText(" " + t)
		}
		prevNonEmpty = true
	}
}

// Quarantine replaces the block's content with the wrapped original text,
// losing no characters. Quarantine is terminal for the block.
func (r *Reconstructor) Quarantine(block Block, originalText string) {
	runs := block.Runs()
	wrapped := quarantineOpen + originalText + quarantineClose
	if len(runs) == 0 {
		block.AppendRun(wrapped, PlainSignature())
		return
	}
	runs[0].SetText(wrapped)
	block.TruncateRuns(1)
}

// normalizeBlock applies the paragraph-level fixups that run after any
// reapplication: unknown style names fall back to the default style, and
// heading blocks get bold forced onto every run so a translation that came
// back unstyled still reads as a heading.
func (r *Reconstructor) normalizeBlock(block Block) {
	attrs := block.Attributes()
	if attrs.StyleName != "" && r.doc != nil && !r.doc.HasStyle(attrs.StyleName) {
		attrs.StyleName = ""
		block.SetAttributes(attrs)
	}
	if isHeadingStyle(attrs.StyleName) {
		for _, run := range block.Runs() {
			sig := run.Style()
			if !sig.Bold {
				sig.Bold = true
				run.SetStyle(sig)
			}
		}
	}
}

func isHeadingStyle(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "heading") ||
		strings.HasPrefix(name, "berschrift") || strings.HasPrefix(name, "Überschrift")
}
