// Package csv parses delimited tabular files into one record per row, keyed
// by the header row. Cell values are typed per column the way a dataframe
// reader would: a column whose non-empty cells are all integers becomes
// int64, all numeric becomes float64, all true/false becomes bool, and
// anything else stays text. Empty cells become nil.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dynetl/internal/config"
	"dynetl/internal/textdecode"
	"dynetl/pkg/records"
)

// ErrNoColumns is returned for input without a header row.
var ErrNoColumns = errors.New("csv: no columns to parse from file")

// Options configures the CSV parser behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each cell before typing.
	TrimSpace bool

	// KeepText disables per-column typing; every non-empty cell stays a string.
	KeepText bool

	// NormalizeHeaders lowercases header names and replaces spaces with
	// underscores.
	NormalizeHeaders bool

	// HeaderMap maps source header names to canonical keys. It is applied
	// after BOM stripping and before NormalizeHeaders.
	HeaderMap map[string]string

	// NullValues lists extra cell spellings read as nil, such as "NA".
	NullValues []string

	// SkipRows drops this many leading lines before the header row.
	SkipRows int
}

// FromConfigOptions constructs CSV Options from a generic config.Options map.
// Recognized keys: comma, trim_space, keep_text, normalize_headers,
// header_map, null_values, skip_rows.
func FromConfigOptions(o config.Options) Options {
	opt := Options{
		Comma:            o.Rune("comma", 0),
		TrimSpace:        o.Bool("trim_space", false),
		KeepText:         o.Bool("keep_text", false),
		NormalizeHeaders: o.Bool("normalize_headers", false),
		NullValues:       o.StringSlice("null_values"),
		SkipRows:         o.Int("skip_rows", 0),
	}
	if m := o.StringMap("header_map"); len(m) > 0 {
		opt.HeaderMap = m
	}
	return opt
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse decodes data as text and returns one record per data row. Rows wider
// than the header are an error; narrower rows get nil for missing cells.
func (p *Parser) Parse(data []byte) ([]records.Record, error) {
	cr := csv.NewReader(strings.NewReader(textdecode.String(data)))
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1

	for i := 0; i < p.opt.SkipRows; i++ {
		if _, err := cr.Read(); err == io.EOF {
			return nil, ErrNoColumns
		} else if err != nil {
			return nil, fmt.Errorf("csv: skip row %d: %w", i, err)
		}
	}

	h, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoColumns
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	headers := normalizeHeaders(StripHeaderBOM(h), p.opt)
	nulls := make(map[string]bool, len(p.opt.NullValues))
	for _, v := range p.opt.NullValues {
		nulls[v] = true
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
		if len(row) > len(headers) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("csv: expected %d fields in line %d, saw %d", len(headers), line, len(row))
		}
		for i := range row {
			if p.opt.TrimSpace {
				row[i] = strings.TrimSpace(row[i])
			}
			if nulls[strings.TrimSpace(row[i])] {
				row[i] = ""
			}
		}
		rows = append(rows, row)
	}

	kinds := make([]columnKind, len(headers))
	if !p.opt.KeepText {
		for i := range headers {
			kinds[i] = inferColumn(rows, i)
		}
	}

	out := make([]records.Record, 0, len(rows))
	for _, row := range rows {
		rec := make(records.Record, len(headers))
		for i, key := range headers {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			rec[key] = convert(cell, kinds[i])
		}
		out = append(out, rec)
	}
	return out, nil
}

// normalizeHeaders produces unique header keys. Blank names become
// "Unnamed: <i>" and repeated names get ".1", ".2", ... suffixes, skipping any
// suffixed name already taken by another column.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	seen := make(map[string]int, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if m, ok := opt.HeaderMap[c]; ok {
			c = m
		}
		if opt.NormalizeHeaders {
			c = strings.ReplaceAll(strings.ToLower(c), " ", "_")
		}
		if c == "" {
			c = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[c]; dup {
			base := c
			for {
				n++
				c = base + "." + strconv.Itoa(n)
				if _, used := seen[c]; !used {
					break
				}
			}
			seen[base] = n
		}
		seen[c] = 0
		res[i] = c
	}
	return res
}
