package html

import "strings"

// CollapseWhitespace replaces runs of space, tab, newline and carriage return
// with a single ASCII space and trims both ends.
func CollapseWhitespace(s string) string {
	if s == "" {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	seenSpace := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '\u00a0':
			if !seenSpace {
				b.WriteByte(' ')
				seenSpace = true
			}
		default:
			b.WriteRune(r)
			seenSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}
