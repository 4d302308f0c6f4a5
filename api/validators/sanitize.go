package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input, drops control characters, collapses internal
// whitespace to single spaces and caps the result at maxLen runes.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))

	runes := 0
	space := false
	for _, r := range input {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		need := 1
		if space {
			need = 2
		}
		if maxLen > 0 && runes+need > maxLen {
			break
		}
		if space {
			b.WriteByte(' ')
			runes++
			space = false
		}
		b.WriteRune(r)
		runes++
	}
	return b.String()
}
