package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dynetl/internal/schema"
)

// TimeLayout is the text form of every persisted timestamp.
const TimeLayout = time.RFC3339Nano

// FormatTime renders t in UTC with TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime is the inverse of FormatTime.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: parse time %q: %w", s, err)
	}
	return t, nil
}

// EncodeList renders a field list as a JSON array; nil becomes [].
func EncodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// DecodeList parses a JSON array of strings.
func DecodeList(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("storage: decode list: %w", err)
	}
	return out, nil
}

// EncodeIssues returns the value bound to quality_issues: NULL for a clean
// record, a JSON array otherwise.
func EncodeIssues(issues []string) sql.NullString {
	if len(issues) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: EncodeList(issues), Valid: true}
}

// DecodeIssues is the inverse of EncodeIssues; NULL decodes to nil.
func DecodeIssues(ns sql.NullString) ([]string, error) {
	if !ns.Valid {
		return nil, nil
	}
	out, err := DecodeList(ns.String)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out, nil
}

// ChangeBetween decides the change-log entry for committing next on top of
// current (whose schema is prev). ok is false when no entry is due: either
// nothing was committed before or the field sets are equal.
func ChangeBetween(current int, prev, next schema.Schema) (added, removed []string, ok bool) {
	if current <= 0 {
		return nil, nil, false
	}
	added, removed = schema.Diff(prev, next)
	if len(added) == 0 && len(removed) == 0 {
		return nil, nil, false
	}
	return added, removed, true
}

// ClampLimit bounds a listing limit to (0, maxLimit]; non-positive means def.
func ClampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
