package csv

import (
	"math"
	"strconv"
	"strings"
)

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindFloat
	kindBool
)

// inferColumn picks the narrowest kind satisfied by every non-empty cell of
// column idx. Columns with no values at all stay text.
func inferColumn(rows [][]string, idx int) columnKind {
	var vals []string
	for _, row := range rows {
		if idx < len(row) && strings.TrimSpace(row[idx]) != "" {
			vals = append(vals, row[idx])
		}
	}
	if len(vals) == 0 {
		return kindText
	}
	switch {
	case allMatch(vals, isInt):
		return kindInt
	case allMatch(vals, isFloat):
		return kindFloat
	case allMatch(vals, isBool):
		return kindBool
	default:
		return kindText
	}
}

func convert(cell string, kind columnKind) any {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	s := strings.TrimSpace(cell)
	switch kind {
	case kindInt:
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	case kindFloat:
		f, _ := strconv.ParseFloat(s, 64)
		return f
	case kindBool:
		return strings.EqualFold(s, "true")
	default:
		return cell
	}
}

// allMatch reports whether every value satisfies fn.
func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

// isInt requires a signed base-10 integer that fits in int64.
func isInt(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil
}

// isFloat accepts finite decimal or scientific notation, integers included.
func isFloat(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// isBool accepts only the literal spellings of true and false.
func isBool(s string) bool {
	switch strings.TrimSpace(s) {
	case "true", "True", "TRUE", "false", "False", "FALSE":
		return true
	default:
		return false
	}
}
