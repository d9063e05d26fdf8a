// Package docx extracts body paragraphs from an Office Open XML word
// document. Each non-blank paragraph becomes one record {"content": text}.
//
// Only paragraphs that are direct children of the document body are read;
// paragraphs nested in tables, text boxes or headers are skipped. Within a
// paragraph, run text is concatenated, <w:tab/> becomes a tab and
// <w:br/>/<w:cr/> become newlines.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"dynetl/pkg/records"
)

// ErrNoDocument is returned for archives without word/document.xml.
var ErrNoDocument = errors.New("docx: word/document.xml not found")

const documentPart = "word/document.xml"

// Parser reads paragraph documents. The zero value is ready to use.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser { return &Parser{} }

// Parse implements parser.Parser.
func (p *Parser) Parse(data []byte) ([]records.Record, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("docx: open archive: %w", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, ErrNoDocument
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("docx: open %s: %w", documentPart, err)
	}
	defer rc.Close()

	paras, err := paragraphs(rc)
	if err != nil {
		return nil, err
	}
	out := make([]records.Record, 0, len(paras))
	for _, text := range paras {
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, records.Record{records.KeyContent: text})
	}
	return out, nil
}

// paragraphs streams the document part and returns the text of every body
// paragraph, blank ones included.
func paragraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		out   []string
		stack []string
		buf   strings.Builder
		inPar bool
		inRun bool // inside <w:t>
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("docx: %s: %w", documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			stack = append(stack, name)

			switch {
			case name == "p" && parent == "body":
				inPar = true
				buf.Reset()
			case !inPar:
			case name == "t":
				inRun = true
			case name == "tab":
				buf.WriteByte('\t')
			case name == "br", name == "cr":
				buf.WriteByte('\n')
			}
		case xml.CharData:
			if inPar && inRun {
				buf.Write(t)
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				if inPar && len(stack) > 0 && stack[len(stack)-1] == "body" {
					out = append(out, buf.String())
					inPar = false
				}
			}
		}
	}
	return out, nil
}
