// Package textdecode turns raw uploaded bytes into UTF-8 text without ever
// failing. Decoding is attempted in three steps:
//
//  1. Strict UTF-8 (a leading BOM is honored and stripped, including the
//     UTF-16 BOMs).
//  2. Heuristic charset detection; the detected name is resolved through the
//     WHATWG and IANA registries of golang.org/x/text.
//  3. Lossy UTF-8, replacing every invalid sequence with U+FFFD.
package textdecode

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Names reported by Decode for the non-detected paths.
const (
	NameUTF8  = "UTF-8"
	NameLossy = "UTF-8 (lossy)"
)

// detect is the detection seam; tests may replace it.
var detect = func(data []byte) string {
	res, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || res == nil {
		return ""
	}
	return res.Charset
}

// String is Decode without the encoding name.
func String(data []byte) string {
	s, _ := Decode(data)
	return s
}

// Decode returns data as UTF-8 together with the name of the encoding that
// was used to read it.
func Decode(data []byte) (string, string) {
	if len(data) == 0 {
		return "", NameUTF8
	}

	switch {
	case bytes.HasPrefix(data, bomUTF8):
		data = data[len(bomUTF8):]
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if out, err := dec.Bytes(data); err == nil {
			return string(out), "UTF-16"
		}
	}

	if utf8.Valid(data) {
		return string(data), NameUTF8
	}

	if name := detect(data); name != "" {
		if enc := lookup(name); enc != nil {
			if out, err := enc.NewDecoder().Bytes(data); err == nil && utf8.Valid(out) {
				return string(out), name
			}
		}
	}

	return strings.ToValidUTF8(string(data), "\uFFFD"), NameLossy
}

// lookup resolves a charset name, returning nil when x/text has no decoder.
func lookup(name string) encoding.Encoding {
	if enc, err := htmlindex.Get(name); err == nil && enc != nil {
		return enc
	}
	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		return enc
	}
	return nil
}

// Lines splits text on \n, \r\n and \r line breaks. A trailing line break
// does not produce an extra empty line.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			out = append(out, text[start:i])
			start = i + 1
		case '\r':
			out = append(out, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
