// Package xmlparser turns an element tree into records: one record per direct
// child of the document root. A record holds the child's attributes as
// fields plus "_text", the child's own leading text (trimmed), i.e. the
// character data that appears before its first sub-element.
//
// Attributes in a namespace are keyed "{namespace-uri}local". Namespace
// declarations (xmlns, xmlns:*) are not attributes and are skipped.
package xmlparser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"dynetl/pkg/records"
)

// ErrNoRoot is returned when the document contains no element at all.
var ErrNoRoot = errors.New("xml: no element found")

// Parser parses element-tree markup. The zero value is ready to use.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser { return &Parser{} }

// Parse implements parser.Parser. The document's declared encoding is
// honored through an HTML-charset-aware reader.
func (p *Parser) Parse(data []byte) ([]records.Record, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	var (
		out     []records.Record
		depth   int
		rootEnd bool
		cur     records.Record
		text    strings.Builder
		inText  bool // still collecting the current child's leading text
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if isTruncErr(err) {
				return nil, fmt.Errorf("xml: truncated document: %w", err)
			}
			return nil, fmt.Errorf("xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if rootEnd {
				return nil, fmt.Errorf("xml: junk after document element <%s>", t.Name.Local)
			}
			depth++
			switch depth {
			case 2:
				cur = attrsToRecord(t.Attr)
				text.Reset()
				inText = true
			case 3:
				inText = false
			}
		case xml.CharData:
			if depth == 2 && inText {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 2 {
				cur[records.KeyText] = strings.TrimSpace(text.String())
				out = append(out, cur)
				cur = nil
				inText = false
			}
			depth--
			if depth == 0 {
				rootEnd = true
			}
		}
	}

	if !rootEnd {
		return nil, ErrNoRoot
	}
	return out, nil
}

func attrsToRecord(attrs []xml.Attr) records.Record {
	rec := make(records.Record, len(attrs)+1)
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		key := a.Name.Local
		if a.Name.Space != "" {
			key = "{" + a.Name.Space + "}" + a.Name.Local
		}
		rec[key] = a.Value
	}
	return rec
}
