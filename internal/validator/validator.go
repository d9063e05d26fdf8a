// Package validator flags records whose field set deviates from a schema.
// Validation never rejects a record; it only describes the deviation.
package validator

import (
	"fmt"

	"dynetl/internal/schema"
	"dynetl/pkg/records"
)

// Validate compares the user fields of r against the top-level properties of
// s. Fields of r that s does not know are reported first, then properties of
// s that r lacks; each group is in sorted field order. The result is nil when
// the two field sets are equal. Only presence is checked, never types.
func Validate(r records.Record, s schema.Schema) []string {
	var issues []string
	for _, k := range records.UserFields(r) {
		if !s.Has(k) {
			issues = append(issues, fmt.Sprintf("Field '%s' not in schema", k))
		}
	}
	for _, k := range s.FieldSet() {
		if records.IsReserved(k) {
			continue
		}
		if _, ok := r[k]; !ok {
			issues = append(issues, fmt.Sprintf("Missing field: '%s'", k))
		}
	}
	return issues
}

// Summary counts records with and without issues.
type Summary struct {
	Valid      int `json:"valid"`
	WithIssues int `json:"with_issues"`
}

// Add records the outcome of one validation.
func (s *Summary) Add(issues []string) {
	if len(issues) == 0 {
		s.Valid++
		return
	}
	s.WithIssues++
}

// Total is Valid + WithIssues.
func (s Summary) Total() int { return s.Valid + s.WithIssues }

// String renders the summary in the form shown to operators.
func (s Summary) String() string {
	return fmt.Sprintf("%d records processed: %d valid, %d with issues", s.Total(), s.Valid, s.WithIssues)
}
