package storage

import (
	"fmt"
	"strings"
	"unicode"
)

// SanitizeGuildKey lower-cases name and collapses each run of characters
// outside [a-z0-9] into a single underscore, trimming underscores at the ends.
func SanitizeGuildKey(name string) (string, error) {
	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidGuildKey, name)
	}
	return b.String(), nil
}
