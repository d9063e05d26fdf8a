// Package text splits line-oriented plain text into one record per non-blank
// line, {"content": line}. Lines are kept verbatim; blank and
// whitespace-only lines are dropped.
package text

import (
	"strings"

	"dynetl/internal/textdecode"
	"dynetl/pkg/records"
)

// Parser reads plain text. The zero value is ready to use.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser { return &Parser{} }

// Parse implements parser.Parser. It never fails: undecodable bytes are
// replaced during decoding.
func (p *Parser) Parse(data []byte) ([]records.Record, error) {
	var out []records.Record
	for _, line := range textdecode.Lines(textdecode.String(data)) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, records.Record{records.KeyContent: line})
	}
	return out, nil
}
