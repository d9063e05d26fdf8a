// Package pdf extracts the plain text of every page of a PDF document. Each
// page becomes one record {"content": text}; missing pages and pages without
// a content stream yield an empty string so page numbering is preserved.
package pdf

import (
	"bytes"
	"fmt"

	lpdf "github.com/ledongthuc/pdf"

	"dynetl/pkg/records"
)

// Parser reads paginated documents. The zero value is ready to use.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser { return &Parser{} }

// Parse implements parser.Parser.
func (p *Parser) Parse(data []byte) ([]records.Record, error) {
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf: open: %w", err)
	}

	n := r.NumPage()
	out := make([]records.Record, 0, n)
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() || page.V.Key("Contents").IsNull() {
			out = append(out, records.Record{records.KeyContent: ""})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("pdf: page %d: %w", i, err)
		}
		out = append(out, records.Record{records.KeyContent: text})
	}
	return out, nil
}
