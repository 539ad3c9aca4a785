package pipeline

import (
	"context"
	"regexp"
	"strings"
	"unicode"
)

// StyleSignature is the fixed set of run-level formatting toggles plus the
// optional font attributes. Signatures are compared for equality only; two
// runs belong to the same merged unit exactly when their signatures are equal.
type StyleSignature struct {
	Bold         bool
	Italic       bool
	Underline    bool
	Strike       bool
	DoubleStrike bool
	Subscript    bool
	Superscript  bool
	AllCaps      bool
	SmallCaps    bool
	Shadow       bool
	Emboss       bool
	Imprint      bool
	Outline      bool

	// FontName is empty when the run inherits the paragraph font.
	FontName string
	// FontSize in points; 0 means inherited.
	FontSize int
	// Color is the packed 0xRRGGBB value; -1 means inherited.
	Color int32
	// Highlight is the OOXML highlight color name; empty means none.
	Highlight string
}

// PlainSignature returns a signature with no explicit formatting.
func PlainSignature() StyleSignature {
	return StyleSignature{Color: -1}
}

// IsPlain reports whether the signature carries no explicit formatting.
func (s StyleSignature) IsPlain() bool {
	return s == PlainSignature() || s == StyleSignature{}
}

// HasToggle reports whether any boolean toggle is set.
func (s StyleSignature) HasToggle() bool {
	return s.Bold || s.Italic || s.Underline || s.Strike || s.DoubleStrike ||
		s.Subscript || s.Superscript || s.AllCaps || s.SmallCaps ||
		s.Shadow || s.Emboss || s.Imprint || s.Outline
}

// BlockAttributes are the paragraph-level attributes captured at encode time
// and reapplied after translation. Values are kept as the document model's
// native strings so the pipeline stays format-agnostic.
type BlockAttributes struct {
	StyleName       string
	Alignment       string
	LeftIndent      string
	RightIndent     string
	FirstLineIndent string
	SpaceBefore     string
	SpaceAfter      string
	LineSpacing     string
}

// Run is one styled text span inside a Block, mutable in place.
type Run interface {
	Text() string
	SetText(text string)
	Style() StyleSignature
	SetStyle(sig StyleSignature)
}

// Block is an ordered, mutable list of Runs plus paragraph attributes.
// Blocks are identified by their position in the Document for the lifetime
// of one translation request.
type Block interface {
	Runs() []Run
	// AppendRun adds a new run slot at the end of the block.
	AppendRun(text string, sig StyleSignature) Run
	// TruncateRuns deletes trailing run slots beyond n.
	TruncateRuns(n int)
	// Text returns the concatenation of all run texts.
	Text() string
	Attributes() BlockAttributes
	SetAttributes(attrs BlockAttributes)
}

// Document is the adapter contract over the underlying document model.
type Document interface {
	Blocks() []Block
	// HasStyle reports whether the document's style catalog knows the name.
	HasStyle(name string) bool
}

// Unit is a style-homogeneous text span, the atom the marker codec operates
// on. IDs are unique and monotonically increasing across the whole document.
type Unit struct {
	ID    int
	Text  string
	Style StyleSignature
}

// FidelityMode is the per-batch choice between whole-block translation and
// the per-run marker protocol.
type FidelityMode int

const (
	// FidelityCoarse sends the block text unmarked and reapplies formatting
	// heuristically.
	FidelityCoarse FidelityMode = iota
	// FidelityFine frames every merged unit in markers and rebinds each one
	// by id after translation.
	FidelityFine
)

func (m FidelityMode) String() string {
	if m == FidelityFine {
		return "fine"
	}
	return "coarse"
}

// BlockEncoding is the per-block result of the encode phase: the merged
// units, the flat marked string handed to the transformer, and everything
// needed to rebuild the block afterwards.
type BlockEncoding struct {
	BlockID      int
	Mode         FidelityMode
	Units        []Unit
	Marked       string
	OriginalText string
	Attrs        BlockAttributes
}

// Batch groups whole blocks for one transformer call. A block belongs to
// exactly one batch and is never split across batches.
type Batch struct {
	ID              int
	BlockIDs        []int
	Mode            FidelityMode
	TokenBudget     int
	EstimatedTokens int
}

// TransformResult is what a Transformer returns for one batch call.
type TransformResult struct {
	// Results is aligned with the input texts; an empty string marks a
	// segment the transformer lost.
	Results []string
	// Raw is the unparsed response, kept for content-based repair.
	Raw string
	// Token usage reported by the transformer, zero when unknown.
	InputTokens  int
	OutputTokens int
}

// Transformer is the opaque external text transformation. Its output may
// reorder, truncate, duplicate, or pollute any of the texts it was given;
// the pipeline defends against all of these.
type Transformer interface {
	Transform(ctx context.Context, texts []string, targetLanguage string) (*TransformResult, error)
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(ctx context.Context, texts []string, targetLanguage string) (*TransformResult, error)

func (f TransformerFunc) Transform(ctx context.Context, texts []string, targetLanguage string) (*TransformResult, error) {
	return f(ctx, texts, targetLanguage)
}

var nonWordRE = regexp.MustCompile(`[\W_]+`)

// MeaningfulText reports whether the text contains content worth sending to
// the transformer. Empty, purely symbolic, and single-capital decorations
// are skipped entirely.
func MeaningfulText(text string) bool {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return false
	}
	if nonWordRE.ReplaceAllString(stripped, "") == "" {
		return false
	}
	if len(stripped) == 1 && unicode.IsUpper(rune(stripped[0])) {
		return false
	}
	// Decorative-only lines: nothing but punctuation and symbols.
	decorative := true
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			decorative = false
			break
		}
	}
	return !decorative
}
