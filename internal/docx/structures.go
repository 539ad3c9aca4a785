package docx

import "encoding/xml"

// WordprocessingML namespaces.
const (
	WordprocessingMLNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	RelationshipsNamespace    = "http://schemas.openxmlformats.org/package/2006/relationships"
)

// WordDocument is the root of word/document.xml.
type WordDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    Body     `xml:"body"`
}

// Body holds the top-level block elements.
type Body struct {
	Paragraphs []Paragraph `xml:"p"`
	Tables     []Table     `xml:"tbl"`
}

// Paragraph is one w:p element.
type Paragraph struct {
	XMLName    xml.Name        `xml:"p"`
	Properties *ParagraphProps `xml:"pPr"`
	Runs       []Run           `xml:"r"`
}

// ParagraphProps is the w:pPr element.
type ParagraphProps struct {
	Style   *ValAttr          `xml:"pStyle"`
	Spacing *ParagraphSpacing `xml:"spacing"`
	Indent  *ParagraphIndent  `xml:"ind"`
	Align   *ValAttr          `xml:"jc"`
}

// ParagraphSpacing is the w:spacing element.
type ParagraphSpacing struct {
	After  string `xml:"after,attr,omitempty"`
	Before string `xml:"before,attr,omitempty"`
	Line   string `xml:"line,attr,omitempty"`
}

// ParagraphIndent is the w:ind element.
type ParagraphIndent struct {
	Left      string `xml:"left,attr,omitempty"`
	Right     string `xml:"right,attr,omitempty"`
	FirstLine string `xml:"firstLine,attr,omitempty"`
	Hanging   string `xml:"hanging,attr,omitempty"`
}

// Run is one w:r element.
type Run struct {
	XMLName    xml.Name  `xml:"r"`
	Properties *RunProps `xml:"rPr"`
	Text       *Text     `xml:"t"`
	Tab        *Tab      `xml:"tab"`
	Break      *Break    `xml:"br"`
	Drawing    *Drawing  `xml:"drawing"`
}

// RunProps is the w:rPr element with the full toggle set the pipeline's
// style signatures cover.
type RunProps struct {
	Bold         *Toggle  `xml:"b"`
	Italic       *Toggle  `xml:"i"`
	Underline    *ValAttr `xml:"u"`
	Strike       *Toggle  `xml:"strike"`
	DoubleStrike *Toggle  `xml:"dstrike"`
	Caps         *Toggle  `xml:"caps"`
	SmallCaps    *Toggle  `xml:"smallCaps"`
	Shadow       *Toggle  `xml:"shadow"`
	Emboss       *Toggle  `xml:"emboss"`
	Imprint      *Toggle  `xml:"imprint"`
	Outline      *Toggle  `xml:"outline"`
	VertAlign    *ValAttr `xml:"vertAlign"`
	Color        *ValAttr `xml:"color"`
	Size         *ValAttr `xml:"sz"`
	Font         *RunFont `xml:"rFonts"`
	Highlight    *ValAttr `xml:"highlight"`
}

// Toggle is an on/off property element. Presence means on unless val says
// otherwise.
type Toggle struct {
	Val string `xml:"val,attr,omitempty"`
}

// On reports whether the toggle element enables its property.
func (t *Toggle) On() bool {
	if t == nil {
		return false
	}
	return t.Val != "0" && t.Val != "false" && t.Val != "none"
}

// ValAttr is the common single-value property element.
type ValAttr struct {
	Val string `xml:"val,attr"`
}

// Text is the w:t element. Space must be preserve whenever the text has
// leading or trailing whitespace.
type Text struct {
	XMLName xml.Name `xml:"t"`
	Space   string   `xml:"http://www.w3.org/XML/1998/namespace space,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Tab is the w:tab element.
type Tab struct {
	XMLName xml.Name `xml:"tab"`
}

// Break is the w:br element.
type Break struct {
	XMLName xml.Name `xml:"br"`
	Type    string   `xml:"type,attr,omitempty"`
}

// Drawing marks an embedded image run; its inner markup passes through
// untouched.
type Drawing struct {
	XMLName xml.Name `xml:"drawing"`
	Inner   string   `xml:",innerxml"`
}

// RunFont is the w:rFonts element.
type RunFont struct {
	ASCII    string `xml:"ascii,attr,omitempty"`
	HAnsi    string `xml:"hAnsi,attr,omitempty"`
	EastAsia string `xml:"eastAsia,attr,omitempty"`
}

// Table is one w:tbl element.
type Table struct {
	XMLName xml.Name   `xml:"tbl"`
	Rows    []TableRow `xml:"tr"`
}

// TableRow is one w:tr element.
type TableRow struct {
	XMLName xml.Name    `xml:"tr"`
	Cells   []TableCell `xml:"tc"`
}

// TableCell is one w:tc element.
type TableCell struct {
	XMLName    xml.Name    `xml:"tc"`
	Paragraphs []Paragraph `xml:"p"`
}

// StyleSheet is the root of word/styles.xml.
type StyleSheet struct {
	XMLName xml.Name    `xml:"styles"`
	Styles  []StyleDecl `xml:"style"`
}

// StyleDecl is one w:style declaration.
type StyleDecl struct {
	Type string   `xml:"type,attr"`
	ID   string   `xml:"styleId,attr"`
	Name *ValAttr `xml:"name"`
}
