package loader

import (
	"strings"
	"unicode"
)

// CleanText normalizes extracted text: newlines become spaces, backslashes
// are dropped, '#' becomes a space, runs of the same punctuation collapse to
// one character and whitespace collapses to single spaces.
func CleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	var prev rune
	for _, r := range text {
		switch {
		case r == '\\':
			continue
		case r == '#' || r == '\n' || r == '\r':
			r = ' '
		case unicode.IsPunct(r) && r == prev:
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
