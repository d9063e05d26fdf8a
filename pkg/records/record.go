// Package records defines the canonical record shape shared by every stage of
// the ingestion pipeline: a mapping from field name to a scalar or nested
// value, as produced by the parsers and consumed by schema inference,
// validation and storage.
package records

import (
	"sort"
	"strconv"
)

// Record is one normalized unit of ingested data. Values are one of: string,
// int64, float64, json.Number, bool, nil, []byte, map[string]any or []any.
type Record map[string]any

// Reserved annotation keys. They are pipeline metadata, never user fields.
const (
	KeySchemaVersion = "_schema_version"
	KeyIngestedAt    = "_ingested_at"
	KeyPatterns      = "_extracted_patterns"
	KeyQualityIssues = "_quality_issues"
	KeyIngestError   = "_ingest_error"
)

// Well-known user field names produced by document-style parsers.
const (
	KeyContent = "content"
	KeyText    = "_text"
	KeyValue   = "value"
)

var reserved = map[string]struct{}{
	KeySchemaVersion: {},
	KeyIngestedAt:    {},
	KeyPatterns:      {},
	KeyQualityIssues: {},
	KeyIngestError:   {},
}

// IsReserved reports whether key is a pipeline annotation key.
func IsReserved(key string) bool {
	_, ok := reserved[key]
	return ok
}

// UserFields returns the non-reserved keys of r in sorted order.
func UserFields(r Record) []string {
	out := make([]string, 0, len(r))
	for k := range r {
		if IsReserved(k) {
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns a shallow copy of r.
func Clone(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ErrorRecord builds the single placeholder record emitted when a file cannot
// be normalized.
func ErrorRecord(msg string) Record {
	return Record{KeyIngestError: msg}
}

// IngestError returns the diagnostic of an error record, if r is one.
func IngestError(r Record) (string, bool) {
	v, ok := r[KeyIngestError]
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, true
}

// Flatten rewrites nested objects and arrays into dotted / indexed keys, e.g.
//
//	{"user": {"id": 1}, "tags": ["a", "b"]}
//
// becomes
//
//	{"user.id": 1, "tags[0]": "a", "tags[1]": "b"}
//
// Empty objects and arrays disappear, matching a leaf-only walk.
func Flatten(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		flattenValue(k, v, out)
	}
	return out
}

func flattenValue(key string, v any, out Record) {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			flattenValue(joinKey(key, k), vv, out)
		}
	case Record:
		for k, vv := range t {
			flattenValue(joinKey(key, k), vv, out)
		}
	case []any:
		for i, vv := range t {
			flattenValue(key+"["+strconv.Itoa(i)+"]", vv, out)
		}
	default:
		out[key] = v
	}
}

func joinKey(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "." + k
}
