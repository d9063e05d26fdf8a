package schema

import (
	"encoding/json"
	"sort"

	"dynetl/pkg/records"
)

// Infer builds the schema of a batch. Every user field observed in any record
// becomes a property; a field is required when every record carries it.
// Reserved annotation keys are ignored.
//
// Types widen across records: equal types are kept, integer and number merge
// to number, and any other combination falls back to string. Null values and
// unrecognised Go types are typed as string.
//
// Infer is pure: the same input yields a byte-identical Marshal result.
func Infer(recs []records.Record) Schema {
	s := Empty()
	seen := make(map[string]int)
	for _, r := range recs {
		for k, v := range r {
			if records.IsReserved(k) {
				continue
			}
			s.Properties[k] = merge(s.Properties[k], propertyOf(v))
			seen[k]++
		}
	}
	for k, n := range seen {
		if n == len(recs) {
			s.Required = append(s.Required, k)
		}
	}
	sort.Strings(s.Required)
	return s
}

func propertyOf(v any) *Property {
	switch t := v.(type) {
	case bool:
		return &Property{Type: TypeBoolean}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return &Property{Type: TypeInteger}
	case float32, float64:
		return &Property{Type: TypeNumber}
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return &Property{Type: TypeInteger}
		}
		return &Property{Type: TypeNumber}
	case map[string]any:
		return objectOf(t)
	case records.Record:
		return objectOf(t)
	case []any:
		p := &Property{Type: TypeArray}
		for _, e := range t {
			p.Items = merge(p.Items, propertyOf(e))
		}
		return p
	default:
		// nil, string, []byte and anything else.
		return &Property{Type: TypeString}
	}
}

func objectOf(m map[string]any) *Property {
	p := &Property{
		Type:       TypeObject,
		Properties: make(map[string]*Property, len(m)),
		Required:   make([]string, 0, len(m)),
	}
	for k, v := range m {
		p.Properties[k] = propertyOf(v)
		p.Required = append(p.Required, k)
	}
	sort.Strings(p.Required)
	return p
}

// merge widens a and b into one property. Either side may be nil.
func merge(a, b *Property) *Property {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	if a.Type != b.Type {
		if isNumeric(a.Type) && isNumeric(b.Type) {
			return &Property{Type: TypeNumber}
		}
		return &Property{Type: TypeString}
	}
	switch a.Type {
	case TypeObject:
		out := &Property{
			Type:       TypeObject,
			Properties: make(map[string]*Property, len(a.Properties)+len(b.Properties)),
			Required:   intersect(a.Required, b.Required),
		}
		for k, v := range a.Properties {
			out.Properties[k] = v
		}
		for k, v := range b.Properties {
			out.Properties[k] = merge(out.Properties[k], v)
		}
		return out
	case TypeArray:
		return &Property{Type: TypeArray, Items: merge(a.Items, b.Items)}
	default:
		return &Property{Type: a.Type}
	}
}

func isNumeric(t string) bool {
	return t == TypeInteger || t == TypeNumber
}

// intersect returns the sorted common elements of two sorted slices.
func intersect(a, b []string) []string {
	out := make([]string, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
