package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	documentPath = "word/document.xml"
	stylesPath   = "word/styles.xml"
)

// File is one opened DOCX package. The document part is parsed into a
// mutable tree; every other part is carried through byte for byte.
type File struct {
	doc    WordDocument
	styles map[string]bool
	raw    []byte
	logger *zap.Logger
}

// Open reads a DOCX package from r. The style catalog is optional in the
// package; a missing styles.xml just leaves the catalog empty.
func Open(r io.Reader, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening package: %w", err)
	}

	f := &File{styles: make(map[string]bool), raw: data, logger: logger}

	docXML, err := readZipPart(zipReader, documentPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", documentPath, err)
	}
	if err := xml.Unmarshal(docXML, &f.doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", documentPath, err)
	}

	if stylesXML, err := readZipPart(zipReader, stylesPath); err == nil {
		var sheet StyleSheet
		if err := xml.Unmarshal(stylesXML, &sheet); err != nil {
			logger.Warn("could not parse style catalog", zap.Error(err))
		} else {
			for _, s := range sheet.Styles {
				if s.ID != "" {
					f.styles[s.ID] = true
				}
				if s.Name != nil && s.Name.Val != "" {
					f.styles[s.Name.Val] = true
				}
			}
		}
	}

	f.logger.Debug("document opened",
		zap.Int("paragraphCount", len(f.doc.Body.Paragraphs)),
		zap.Int("tableCount", len(f.doc.Body.Tables)),
		zap.Int("styleCount", len(f.styles)))
	return f, nil
}

// OpenFile opens a DOCX package from disk.
func OpenFile(path string, logger *zap.Logger) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Open(fh, logger)
}

func readZipPart(r *zip.Reader, name string) ([]byte, error) {
	for _, file := range r.File {
		if file.Name == name {
			rc, err := file.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, fmt.Errorf("part %s not found", name)
}

// Write rebuilds the package: the mutated document part is re-marshaled,
// everything else is copied from the original.
func (f *File) Write(w io.Writer) error {
	docXML, err := marshalDocument(&f.doc)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", documentPath, err)
	}

	zipReader, err := zip.NewReader(bytes.NewReader(f.raw), int64(len(f.raw)))
	if err != nil {
		return fmt.Errorf("reopening package: %w", err)
	}

	zipWriter := zip.NewWriter(w)
	for _, file := range zipReader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		out, err := zipWriter.Create(file.Name)
		if err != nil {
			return err
		}
		if file.Name == documentPath {
			if _, err := out.Write(docXML); err != nil {
				return err
			}
			continue
		}
		in, err := file.Open()
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			in.Close()
			return err
		}
		in.Close()
	}
	return zipWriter.Close()
}

// WriteFile writes the package to disk.
func (f *File) WriteFile(path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Write(fh); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// marshalDocument serializes the document tree with the w: prefix restored
// on every element, which encoding/xml does not do on its own.
func marshalDocument(doc *WordDocument) ([]byte, error) {
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	// Unmarshal left the resolved namespace in every XMLName, which the
	// marshaler re-emits as a default xmlns on each element. Strip those and
	// declare the w: prefix once on the root.
	text := strings.ReplaceAll(string(body), fmt.Sprintf(` xmlns=%q`, WordprocessingMLNamespace), "")
	text = prefixElements(text)
	text = strings.Replace(text,
		"<w:document>",
		fmt.Sprintf(`<w:document xmlns:w=%q>`, WordprocessingMLNamespace),
		1)
	header := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
	return []byte(header + text), nil
}

// wmlElements is the element vocabulary of the marshaled tree. Only these
// names get the w: prefix; drawing internals keep their own prefixes.
var wmlElements = map[string]bool{
	"document": true, "body": true, "p": true, "pPr": true, "pStyle": true,
	"spacing": true, "ind": true, "jc": true, "r": true, "rPr": true,
	"b": true, "i": true, "u": true, "strike": true, "dstrike": true,
	"caps": true, "smallCaps": true, "shadow": true, "emboss": true,
	"imprint": true, "outline": true, "vertAlign": true, "color": true,
	"sz": true, "rFonts": true, "highlight": true, "t": true, "tab": true,
	"br": true, "drawing": true, "tbl": true, "tr": true, "tc": true,
}

var elementRE = regexp.MustCompile(`<(/?)([A-Za-z]+)([ >/])`)

// prefixElements rewrites bare element names to the w: prefix. Character
// data is escaped by the marshaler, so element tags are the only unescaped
// angle brackets.
func prefixElements(s string) string {
	return elementRE.ReplaceAllStringFunc(s, func(m string) string {
		sub := elementRE.FindStringSubmatch(m)
		if !wmlElements[sub[2]] {
			return m
		}
		return "<" + sub[1] + "w:" + sub[2] + sub[3]
	})
}
