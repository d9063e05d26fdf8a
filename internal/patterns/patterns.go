// Package patterns scans free text for embedded entities: email addresses,
// phone numbers, dates and numbers. Extraction is best effort and never
// fails; matches are returned in order of appearance with duplicates kept.
package patterns

import (
	"regexp"
	"strings"

	"dynetl/pkg/records"
)

var (
	emailRE  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRE  = regexp.MustCompile(`\+?\d[\d\s\-()]{7,}\d`)
	dateRE   = regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`)
	numberRE = regexp.MustCompile(`-?\d+\.?\d*`)
)

// Result holds the matches for one text. Lists are never nil so the JSON
// form always carries four arrays.
type Result struct {
	Emails  []string `json:"emails"`
	Phones  []string `json:"phones"`
	Dates   []string `json:"dates"`
	Numbers []string `json:"numbers"`
}

// Empty returns a Result with four empty lists.
func Empty() Result {
	return Result{
		Emails:  []string{},
		Phones:  []string{},
		Dates:   []string{},
		Numbers: []string{},
	}
}

// IsEmpty reports whether nothing matched.
func (r Result) IsEmpty() bool {
	return len(r.Emails) == 0 && len(r.Phones) == 0 && len(r.Dates) == 0 && len(r.Numbers) == 0
}

// Extract scans v when it is a non-empty string ([]byte is decoded lossily
// first). Any other input yields Empty().
func Extract(v any) Result {
	var text string
	switch t := v.(type) {
	case string:
		text = t
	case []byte:
		text = strings.ToValidUTF8(string(t), "")
	default:
		return Empty()
	}
	if text == "" {
		return Empty()
	}
	return Result{
		Emails:  findAll(emailRE, text),
		Phones:  findAll(phoneRE, text),
		Dates:   findAll(dateRE, text),
		Numbers: findAll(numberRE, text),
	}
}

// ForRecord extracts from the record's "content" field.
func ForRecord(r records.Record) Result {
	return Extract(r[records.KeyContent])
}

func findAll(re *regexp.Regexp, s string) []string {
	m := re.FindAllString(s, -1)
	if m == nil {
		return []string{}
	}
	return m
}
