package docx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/formatkeep/formatkeep/pkg/pipeline"
)

// Adapter exposes an opened DOCX file through the pipeline's document
// interfaces. Body paragraphs come first, then table cell paragraphs, each
// becoming one block; paragraphs the table-of-contents filter catches are
// left out and stay untouched.
type Adapter struct {
	file   *File
	blocks []pipeline.Block
}

// NewAdapter builds the block list over the file's paragraph tree.
func NewAdapter(file *File) *Adapter {
	a := &Adapter{file: file}
	body := &file.doc.Body
	for i := range body.Paragraphs {
		a.addParagraph(&body.Paragraphs[i])
	}
	for ti := range body.Tables {
		table := &body.Tables[ti]
		for ri := range table.Rows {
			for ci := range table.Rows[ri].Cells {
				cell := &table.Rows[ri].Cells[ci]
				for pi := range cell.Paragraphs {
					a.addParagraph(&cell.Paragraphs[pi])
				}
			}
		}
	}
	return a
}

func (a *Adapter) addParagraph(p *Paragraph) {
	b := &paragraphBlock{para: p}
	if IsTOCBlock(b.styleName(), b.Text()) {
		return
	}
	a.blocks = append(a.blocks, b)
}

func (a *Adapter) Blocks() []pipeline.Block {
	return a.blocks
}

func (a *Adapter) HasStyle(name string) bool {
	return a.file.styles[name]
}

// paragraphBlock adapts one w:p element. Only runs carrying a w:t element
// count as text runs; tabs, breaks, and drawings pass through unmodified.
type paragraphBlock struct {
	para *Paragraph
}

func (b *paragraphBlock) styleName() string {
	if b.para.Properties != nil && b.para.Properties.Style != nil {
		return b.para.Properties.Style.Val
	}
	return ""
}

func (b *paragraphBlock) textRunIndices() []int {
	var out []int
	for i := range b.para.Runs {
		if b.para.Runs[i].Text != nil {
			out = append(out, i)
		}
	}
	return out
}

func (b *paragraphBlock) Runs() []pipeline.Run {
	indices := b.textRunIndices()
	out := make([]pipeline.Run, len(indices))
	for i, idx := range indices {
		out[i] = &runAdapter{para: b.para, idx: idx}
	}
	return out
}

func (b *paragraphBlock) AppendRun(text string, sig pipeline.StyleSignature) pipeline.Run {
	run := Run{
		Properties: propsFromSignature(sig),
		Text:       &Text{Text: text, Space: spaceAttr(text)},
	}
	b.para.Runs = append(b.para.Runs, run)
	return &runAdapter{para: b.para, idx: len(b.para.Runs) - 1}
}

func (b *paragraphBlock) TruncateRuns(n int) {
	indices := b.textRunIndices()
	if n >= len(indices) {
		return
	}
	drop := make(map[int]bool, len(indices)-n)
	for _, idx := range indices[n:] {
		drop[idx] = true
	}
	kept := b.para.Runs[:0]
	for i := range b.para.Runs {
		if !drop[i] {
			kept = append(kept, b.para.Runs[i])
		}
	}
	b.para.Runs = kept
}

func (b *paragraphBlock) Text() string {
	var sb strings.Builder
	for i := range b.para.Runs {
		if b.para.Runs[i].Text != nil {
			sb.WriteString(b.para.Runs[i].Text.Text)
		}
	}
	return sb.String()
}

func (b *paragraphBlock) Attributes() pipeline.BlockAttributes {
	attrs := pipeline.BlockAttributes{StyleName: b.styleName()}
	props := b.para.Properties
	if props == nil {
		return attrs
	}
	if props.Align != nil {
		attrs.Alignment = props.Align.Val
	}
	if props.Indent != nil {
		attrs.LeftIndent = props.Indent.Left
		attrs.RightIndent = props.Indent.Right
		attrs.FirstLineIndent = props.Indent.FirstLine
	}
	if props.Spacing != nil {
		attrs.SpaceBefore = props.Spacing.Before
		attrs.SpaceAfter = props.Spacing.After
		attrs.LineSpacing = props.Spacing.Line
	}
	return attrs
}

func (b *paragraphBlock) SetAttributes(attrs pipeline.BlockAttributes) {
	if b.para.Properties == nil {
		if attrs == (pipeline.BlockAttributes{}) {
			return
		}
		b.para.Properties = &ParagraphProps{}
	}
	props := b.para.Properties
	if attrs.StyleName == "" {
		props.Style = nil
	} else {
		props.Style = &ValAttr{Val: attrs.StyleName}
	}
	if attrs.Alignment == "" {
		props.Align = nil
	} else {
		props.Align = &ValAttr{Val: attrs.Alignment}
	}
	if attrs.LeftIndent == "" && attrs.RightIndent == "" && attrs.FirstLineIndent == "" {
		props.Indent = nil
	} else {
		props.Indent = &ParagraphIndent{
			Left:      attrs.LeftIndent,
			Right:     attrs.RightIndent,
			FirstLine: attrs.FirstLineIndent,
		}
	}
	if attrs.SpaceBefore == "" && attrs.SpaceAfter == "" && attrs.LineSpacing == "" {
		props.Spacing = nil
	} else {
		props.Spacing = &ParagraphSpacing{
			Before: attrs.SpaceBefore,
			After:  attrs.SpaceAfter,
			Line:   attrs.LineSpacing,
		}
	}
}

// runAdapter adapts one text run in place.
type runAdapter struct {
	para *Paragraph
	idx  int
}

func (r *runAdapter) run() *Run {
	return &r.para.Runs[r.idx]
}

func (r *runAdapter) Text() string {
	if t := r.run().Text; t != nil {
		return t.Text
	}
	return ""
}

func (r *runAdapter) SetText(text string) {
	run := r.run()
	if run.Text == nil {
		run.Text = &Text{}
	}
	run.Text.Text = text
	run.Text.Space = spaceAttr(text)
}

func (r *runAdapter) Style() pipeline.StyleSignature {
	return signatureFromProps(r.run().Properties)
}

func (r *runAdapter) SetStyle(sig pipeline.StyleSignature) {
	r.run().Properties = propsFromSignature(sig)
}

func spaceAttr(text string) string {
	if text != strings.TrimSpace(text) {
		return "preserve"
	}
	return ""
}

// signatureFromProps reads rPr into the pipeline's signature. Color values
// like "auto" stay unset.
func signatureFromProps(props *RunProps) pipeline.StyleSignature {
	sig := pipeline.PlainSignature()
	if props == nil {
		return sig
	}
	sig.Bold = props.Bold.On()
	sig.Italic = props.Italic.On()
	sig.Strike = props.Strike.On()
	sig.DoubleStrike = props.DoubleStrike.On()
	sig.AllCaps = props.Caps.On()
	sig.SmallCaps = props.SmallCaps.On()
	sig.Shadow = props.Shadow.On()
	sig.Emboss = props.Emboss.On()
	sig.Imprint = props.Imprint.On()
	sig.Outline = props.Outline.On()
	if props.Underline != nil && props.Underline.Val != "none" {
		sig.Underline = true
	}
	if props.VertAlign != nil {
		switch props.VertAlign.Val {
		case "subscript":
			sig.Subscript = true
		case "superscript":
			sig.Superscript = true
		}
	}
	if props.Color != nil {
		if v, err := strconv.ParseInt(props.Color.Val, 16, 32); err == nil {
			sig.Color = int32(v)
		}
	}
	if props.Size != nil {
		// Sizes are stored in half points.
		if v, err := strconv.Atoi(props.Size.Val); err == nil {
			sig.FontSize = v / 2
		}
	}
	if props.Font != nil {
		sig.FontName = props.Font.ASCII
	}
	if props.Highlight != nil {
		sig.Highlight = props.Highlight.Val
	}
	return sig
}

// propsFromSignature writes the signature back as a fresh rPr. A plain
// signature drops the element entirely.
func propsFromSignature(sig pipeline.StyleSignature) *RunProps {
	if sig.IsPlain() {
		return nil
	}
	props := &RunProps{}
	set := func(on bool) *Toggle {
		if on {
			return &Toggle{}
		}
		return nil
	}
	props.Bold = set(sig.Bold)
	props.Italic = set(sig.Italic)
	props.Strike = set(sig.Strike)
	props.DoubleStrike = set(sig.DoubleStrike)
	props.Caps = set(sig.AllCaps)
	props.SmallCaps = set(sig.SmallCaps)
	props.Shadow = set(sig.Shadow)
	props.Emboss = set(sig.Emboss)
	props.Imprint = set(sig.Imprint)
	props.Outline = set(sig.Outline)
	if sig.Underline {
		props.Underline = &ValAttr{Val: "single"}
	}
	if sig.Subscript {
		props.VertAlign = &ValAttr{Val: "subscript"}
	}
	if sig.Superscript {
		props.VertAlign = &ValAttr{Val: "superscript"}
	}
	if sig.Color >= 0 {
		props.Color = &ValAttr{Val: fmt.Sprintf("%06X", sig.Color)}
	}
	if sig.FontSize > 0 {
		props.Size = &ValAttr{Val: strconv.Itoa(sig.FontSize * 2)}
	}
	if sig.FontName != "" {
		props.Font = &RunFont{ASCII: sig.FontName, HAnsi: sig.FontName}
	}
	if sig.Highlight != "" {
		props.Highlight = &ValAttr{Val: sig.Highlight}
	}
	return props
}
