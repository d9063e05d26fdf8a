// Package html turns an HTML document into one record per block of visible
// text, {"content": text}, the shape the text and docx parsers produce.
//
// Block boundaries are block-level elements (p, div, li, headings, table
// rows, br, ...). Inline markup is dropped without separating words, and the
// contents of script, style, noscript and template are skipped.
package html

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"dynetl/pkg/records"
)

var blockElems = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Body: true, atom.Br: true, atom.Caption: true, atom.Dd: true,
	atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Figcaption: true,
	atom.Footer: true, atom.Form: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true,
	atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true,
	atom.Section: true, atom.Table: true, atom.Title: true, atom.Tr: true,
	atom.Ul: true,
}

var skippedElems = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// Parser reads HTML. The zero value is ready to use.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser { return &Parser{} }

// Parse implements parser.Parser. The character set comes from a BOM or a
// <meta> declaration, falling back to UTF-8 when the bytes are valid UTF-8
// and windows-1252 otherwise.
func (p *Parser) Parse(data []byte) ([]records.Record, error) {
	r, err := charset.NewReader(bytes.NewReader(data), "text/html")
	if err != nil {
		return nil, fmt.Errorf("html parser: charset: %w", err)
	}
	blocks, err := textBlocks(r)
	if err != nil {
		return nil, err
	}
	out := make([]records.Record, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, records.Record{records.KeyContent: b})
	}
	return out, nil
}

// textBlocks walks the token stream and returns the non-empty text blocks
// in document order.
func textBlocks(r io.Reader) ([]string, error) {
	var (
		blocks []string
		cur    strings.Builder
		skip   int
	)
	flush := func() {
		if t := CollapseWhitespace(cur.String()); t != "" {
			blocks = append(blocks, t)
		}
		cur.Reset()
	}

	z := xhtml.NewTokenizer(r)
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("html parser: %w", err)
			}
			flush()
			return blocks, nil
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedElems[a] {
				if tt == xhtml.StartTagToken {
					skip++
				}
				continue
			}
			if a == atom.Td || a == atom.Th {
				cur.WriteByte(' ')
			}
			if blockElems[a] {
				flush()
			}
		case xhtml.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedElems[a] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if blockElems[a] {
				flush()
			}
		case xhtml.TextToken:
			if skip == 0 {
				cur.Write(z.Text())
			}
		}
	}
}
