// Package parser defines the contract shared by the per-format parsers under
// internal/parser/*. A parser receives the complete bytes of one uploaded
// file and returns the records it contains, in file order.
package parser

import "dynetl/pkg/records"

// Parser turns the bytes of one file into records. Implementations return an
// error for malformed input; they never return partial results alongside an
// error.
type Parser interface {
	Parse(data []byte) ([]records.Record, error)
}

// Func adapts an ordinary function to the Parser interface.
type Func func(data []byte) ([]records.Record, error)

// Parse implements Parser.
func (f Func) Parse(data []byte) ([]records.Record, error) { return f(data) }
