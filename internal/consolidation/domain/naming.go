package consolidation

import (
	"regexp"
	"strings"
	"unicode"
)

var fileSuffix = regexp.MustCompile(`(?i)\.[a-z]+$`)

// NormalizeName derives the group key of a channel identifier: digits and a
// trailing file-type suffix are removed, separators left dangling by the
// removal are trimmed, whitespace is collapsed and the
// result is upper-cased. "Acos 1.LP" and "acos 2.lp" both give "ACOS".
func NormalizeName(channelID string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return -1
		}
		return r
	}, channelID)
	name = strings.TrimSpace(name)
	name = fileSuffix.ReplaceAllString(name, "")
	name = strings.TrimRight(name, " ._-")
	name = strings.Join(strings.Fields(name), " ")
	return strings.ToUpper(name)
}
