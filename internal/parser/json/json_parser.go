// Package json implements a JSON parser that turns JSON documents into
// records.Record maps.
//
// Accepted shapes:
//
//   - A single top-level array: one record per element.
//   - A single top-level object: one record.
//   - A top-level scalar: one record {"value": v}.
//   - Several top-level values (NDJSON / JSON Lines): each value is handled
//     by the rules above and the results are concatenated in order.
//
// Array elements and values that are not objects are wrapped as
// {"value": v}, so every record is a map. Numbers are kept as json.Number so
// schema inference can tell integers from decimals.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"dynetl/internal/config"
	"dynetl/internal/textdecode"
	"dynetl/pkg/records"
)

// ErrEmpty is returned when the input holds no JSON value at all.
var ErrEmpty = errors.New("json parser: no JSON value in input")

// Options mirrors the config.Options usage pattern of the other parsers.
//
//   - "flatten" (bool): when true, nested objects and arrays are rewritten
//     into dotted / indexed keys (see records.Flatten).
type Options struct {
	Flatten bool
}

// FromConfigOptions constructs JSON Options from a generic config.Options map.
func FromConfigOptions(o config.Options) Options {
	return Options{
		Flatten: o.Bool("flatten", false),
	}
}

// Parser decodes whole JSON documents.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse implements parser.Parser.
func (p *Parser) Parse(data []byte) ([]records.Record, error) {
	return DecodeAll(bytes.NewReader([]byte(textdecode.String(data))), p.opt)
}

// DecodeAll reads every top-level JSON value from r and returns the records
// they describe.
func DecodeAll(r io.Reader, opt Options) ([]records.Record, error) {
	d := json.NewDecoder(r)
	// UseNumber so callers can decide how to map numeric values.
	d.UseNumber()

	var out []records.Record
	seen := false
	for {
		var root any
		if err := d.Decode(&root); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("json parser: decode: %w", err)
		}
		seen = true

		switch v := root.(type) {
		case []any:
			for _, elem := range v {
				out = append(out, toRecord(elem, opt))
			}
		default:
			out = append(out, toRecord(v, opt))
		}
	}
	if !seen {
		return nil, ErrEmpty
	}
	return out, nil
}

func toRecord(v any, opt Options) records.Record {
	rec, ok := v.(map[string]any)
	if !ok {
		rec = map[string]any{records.KeyValue: v}
	}
	if opt.Flatten {
		return records.Flatten(rec)
	}
	return records.Record(rec)
}
