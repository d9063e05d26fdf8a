package schema

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// SameFields reports whether a and b have exactly the same top-level
// property names. Types are not compared.
func SameFields(a, b Schema) bool {
	if len(a.Properties) != len(b.Properties) {
		return false
	}
	for k := range a.Properties {
		if _, ok := b.Properties[k]; !ok {
			return false
		}
	}
	return true
}

// Diff returns the fields present in next but not in prev (added) and those
// present in prev but not in next (removed). Both lists are sorted and never
// nil; they are disjoint by construction.
func Diff(prev, next Schema) (added, removed []string) {
	added = []string{}
	removed = []string{}
	for _, k := range next.FieldSet() {
		if !prev.Has(k) {
			added = append(added, k)
		}
	}
	for _, k := range prev.FieldSet() {
		if !next.Has(k) {
			removed = append(removed, k)
		}
	}
	return added, removed
}

// Fingerprint hashes the sorted field set of s. Schemas with the same fields
// share a fingerprint regardless of property types.
func (s Schema) Fingerprint() string {
	h := xxh3.HashString(strings.Join(s.FieldSet(), "\x00"))
	return fmt.Sprintf("%016x", h)
}
