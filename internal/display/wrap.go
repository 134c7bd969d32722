package display

import (
	"unicode"
	"unicode/utf8"

	"github.com/muesli/reflow/wordwrap"
)

// DefaultWidth is the column limit for player-facing prose. Room
// descriptions and other long lines wrap here; single-line messages are
// emitted as-is.
const DefaultWidth = 80

// Wrap word-wraps text to DefaultWidth. ANSI escape sequences survive
// the wrap without counting toward line width.
func Wrap(text string) string {
	return WrapTo(text, DefaultWidth)
}

// WrapTo word-wraps text to the given column limit.
func WrapTo(text string, width int) string {
	return wordwrap.String(text, width)
}

// Capitalize returns s with its first rune uppercased.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
