package pipeline

import (
	"strings"
	"unicode"
)

// Merger folds a block's runs into style-homogeneous units and splits units
// back apart along letter-case boundaries so that all-caps spans can keep
// distinct formatting through a coarse round trip.
type Merger struct{}

func NewMerger() *Merger {
	return &Merger{}
}

// transparentRun reports whether the text carries no style-sensitive
// content: whitespace and punctuation render identically under any
// signature, so such runs can be absorbed by a neighboring unit.
func transparentRun(text string) bool {
	if text == "" {
		return true
	}
	for _, r := range text {
		if !unicode.IsSpace(r) && !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

// MergeBlock folds the block's runs into units. Adjacent runs with equal
// signatures merge. A transparent run is absorbed into the current unit when
// the next non-transparent run continues that unit's signature; otherwise it
// starts a boundary like any other run. The concatenation of unit texts
// always equals the block text.
func (m *Merger) MergeBlock(block Block) []Unit {
	runs := block.Runs()
	if len(runs) == 0 {
		return nil
	}

	var units []Unit

	push := func(text string, sig StyleSignature) {
		if len(units) > 0 && units[len(units)-1].Style == sig {
			units[len(units)-1].Text += text
			return
		}
		units = append(units, Unit{Text: text, Style: sig})
	}

	type span struct {
		text string
		sig  StyleSignature
	}
	var pending []span

	for _, run := range runs {
		text := run.Text()
		if text == "" {
			continue
		}
		if transparentRun(text) {
			pending = append(pending, span{text, run.Style()})
			continue
		}
		if len(pending) > 0 {
			if len(units) > 0 && units[len(units)-1].Style == run.Style() {
				// The group continues across the transparent stretch.
				for _, p := range pending {
					units[len(units)-1].Text += p.text
				}
			} else {
				for _, p := range pending {
					push(p.text, p.sig)
				}
			}
			pending = pending[:0]
		}
		push(text, run.Style())
	}

	// Trailing transparent runs attach to the last unit; a block of nothing
	// but transparent runs keeps its runs' own signatures.
	if len(units) > 0 {
		for _, p := range pending {
			units[len(units)-1].Text += p.text
		}
	} else {
		for _, p := range pending {
			push(p.text, p.sig)
		}
	}
	return units
}

// wordCase classifies individual words for case-boundary splitting.
type wordCase int

const (
	caseNeutral wordCase = iota // no letters, or too short to judge
	caseUpper
	caseMixed
)

func classifyWord(word string) wordCase {
	letters := 0
	uppers := 0
	for _, r := range word {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	if letters == 0 {
		return caseNeutral
	}
	// A lone capital is an initial or the pronoun "I", never an all-caps
	// word on its own.
	if letters == 1 {
		if uppers == 1 {
			return caseNeutral
		}
		return caseMixed
	}
	if uppers == letters {
		return caseUpper
	}
	return caseMixed
}

// HasCaseBoundary reports whether the text mixes all-uppercase words with
// regular words. Texts with fewer than two classifiable words never have a
// boundary.
func HasCaseBoundary(text string) bool {
	var upper, mixed, total int
	for _, w := range strings.Fields(text) {
		switch classifyWord(w) {
		case caseUpper:
			upper++
			total++
		case caseMixed:
			mixed++
			total++
		}
	}
	return total >= 2 && upper > 0 && mixed > 0
}

// SplitByCase partitions the text into consecutive segments of uniform
// letter case, preserving the original whitespace between words. The
// concatenation of the segments equals the input. Texts without a case
// boundary come back as a single segment.
func SplitByCase(text string) []string {
	if !HasCaseBoundary(text) {
		return []string{text}
	}

	type token struct {
		text string
		cls  wordCase
	}
	var tokens []token
	start := 0
	flush := func(end int) {
		if end > start {
			word := text[start:end]
			tokens = append(tokens, token{word, classifyWord(word)})
			start = end
		}
	}
	inSpace := false
	for i, r := range text {
		if unicode.IsSpace(r) != inSpace {
			flush(i)
			inSpace = !inSpace
		}
	}
	flush(len(text))

	var segments []string
	var current strings.Builder
	currentCase := caseNeutral
	for _, t := range tokens {
		if t.cls != caseNeutral && currentCase != caseNeutral && t.cls != currentCase {
			segments = append(segments, current.String())
			current.Reset()
			currentCase = caseNeutral
		}
		current.WriteString(t.text)
		if t.cls != caseNeutral {
			currentCase = t.cls
		}
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}

// SplitUnits applies case-boundary splitting to every unit, so each
// case-uniform segment gets its own marker and the transformer cannot blur
// an all-caps span into its neighbors. Segments inherit the unit's signature
// unchanged; letter case lives in the text, not the formatting.
func (m *Merger) SplitUnits(units []Unit) []Unit {
	out := make([]Unit, 0, len(units))
	for _, u := range units {
		segments := SplitByCase(u.Text)
		if len(segments) == 1 {
			out = append(out, u)
			continue
		}
		for _, seg := range segments {
			out = append(out, Unit{Text: seg, Style: u.Style})
		}
	}
	return out
}
