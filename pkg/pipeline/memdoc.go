package pipeline

import "strings"

// MemoryRun, MemoryBlock, and MemoryDocument are a self-contained document
// model. They back plain-text inputs and tests; format adapters implement
// the same interfaces over their native structures.

type MemoryRun struct {
	text string
	sig  StyleSignature
}

func NewMemoryRun(text string, sig StyleSignature) *MemoryRun {
	return &MemoryRun{text: text, sig: sig}
}

func (r *MemoryRun) Text() string                { return r.text }
func (r *MemoryRun) SetText(text string)         { r.text = text }
func (r *MemoryRun) Style() StyleSignature       { return r.sig }
func (r *MemoryRun) SetStyle(sig StyleSignature) { r.sig = sig }

type MemoryBlock struct {
	runs  []*MemoryRun
	attrs BlockAttributes
}

func NewMemoryBlock(attrs BlockAttributes) *MemoryBlock {
	return &MemoryBlock{attrs: attrs}
}

func (b *MemoryBlock) Runs() []Run {
	out := make([]Run, len(b.runs))
	for i, r := range b.runs {
		out[i] = r
	}
	return out
}

func (b *MemoryBlock) AppendRun(text string, sig StyleSignature) Run {
	r := NewMemoryRun(text, sig)
	b.runs = append(b.runs, r)
	return r
}

func (b *MemoryBlock) TruncateRuns(n int) {
	if n < len(b.runs) {
		b.runs = b.runs[:n]
	}
}

func (b *MemoryBlock) Text() string {
	var sb strings.Builder
	for _, r := range b.runs {
		sb.WriteString(r.text)
	}
	return sb.String()
}

func (b *MemoryBlock) Attributes() BlockAttributes         { return b.attrs }
func (b *MemoryBlock) SetAttributes(attrs BlockAttributes) { b.attrs = attrs }

type MemoryDocument struct {
	blocks []*MemoryBlock
	styles map[string]bool
}

func NewMemoryDocument() *MemoryDocument {
	return &MemoryDocument{styles: map[string]bool{}}
}

func (d *MemoryDocument) AddBlock(attrs BlockAttributes) *MemoryBlock {
	b := NewMemoryBlock(attrs)
	d.blocks = append(d.blocks, b)
	return b
}

func (d *MemoryDocument) RegisterStyle(name string) {
	d.styles[name] = true
}

func (d *MemoryDocument) Blocks() []Block {
	out := make([]Block, len(d.blocks))
	for i, b := range d.blocks {
		out[i] = b
	}
	return out
}

func (d *MemoryDocument) HasStyle(name string) bool {
	return d.styles[name]
}
