// Package normalize converts a raw file plus its declared format into an
// ordered sequence of records. It never fails: any per-file problem
// (unsupported extension, malformed content, a parser panic on hostile
// input) is folded into a single record carrying the reserved
// "_ingest_error" field, so downstream stages always receive a record
// sequence.
package normalize

import (
	"fmt"
	"path/filepath"

	"dynetl/internal/config"
	"dynetl/internal/parser"
	pcsv "dynetl/internal/parser/csv"
	"dynetl/internal/parser/docx"
	htmlparser "dynetl/internal/parser/html"
	pjson "dynetl/internal/parser/json"
	"dynetl/internal/parser/pdf"
	"dynetl/internal/parser/text"
	xmlparser "dynetl/internal/parser/xml"
	"dynetl/pkg/records"
)

// Options tunes the individual parsers.
type Options struct {
	CSV  pcsv.Options
	JSON pjson.Options
}

// OptionsFromConfig builds parser options from the ingest section of a config.
func OptionsFromConfig(in config.Ingest) Options {
	return Options{
		CSV:  pcsv.FromConfigOptions(in.CSV),
		JSON: pjson.FromConfigOptions(in.JSON),
	}
}

// Normalizer dispatches to a parser per format.
type Normalizer struct {
	parsers map[Format]parser.Parser
}

// New builds a Normalizer with the built-in parser for every format.
func New(opt Options) *Normalizer {
	tsv := opt.CSV
	tsv.Comma = '\t'

	return &Normalizer{parsers: map[Format]parser.Parser{
		FormatCSV:  pcsv.NewParser(opt.CSV),
		FormatTSV:  pcsv.NewParser(tsv),
		FormatJSON: pjson.NewParser(opt.JSON),
		FormatPDF:  pdf.NewParser(),
		FormatDOCX: docx.NewParser(),
		FormatXML:  xmlparser.NewParser(),
		FormatText: text.NewParser(),
		FormatHTML: htmlparser.NewParser(),
	}}
}

// Register replaces or adds the parser used for format f.
func (n *Normalizer) Register(f Format, p parser.Parser) {
	n.parsers[f] = p
}

// NormalizeFile derives the format from filename and normalizes data.
func (n *Normalizer) NormalizeFile(filename string, data []byte) []records.Record {
	f, ok := FormatFromFilename(filename)
	if !ok {
		return []records.Record{records.ErrorRecord(
			fmt.Sprintf("unsupported file type %q", filepath.Ext(filename)),
		)}
	}
	return n.Normalize(data, f)
}

// Normalize parses data as format f.
func (n *Normalizer) Normalize(data []byte, f Format) (out []records.Record) {
	p, ok := n.parsers[f]
	if !ok {
		return []records.Record{records.ErrorRecord(fmt.Sprintf("unsupported format %q", f))}
	}

	defer func() {
		if r := recover(); r != nil {
			out = []records.Record{records.ErrorRecord(fmt.Sprintf("%s: parser panic: %v", f, r))}
		}
	}()

	recs, err := p.Parse(data)
	if err != nil {
		return []records.Record{records.ErrorRecord(err.Error())}
	}
	if recs == nil {
		recs = []records.Record{}
	}
	return recs
}
