package ui

import (
	"strings"
	"unicode/utf8"
)

// DefaultErrorChars bounds error text printed on an issue line. Jira error
// bodies can carry whole JSON documents.
const DefaultErrorChars = 200

// TruncateSimple truncates text to maxLen runes, adding "..." if truncated.
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

// CompactLine collapses runs of whitespace, newlines included, into single
// spaces and truncates the result to maxLen runes.
func CompactLine(text string, maxLen int) string {
	return TruncateSimple(strings.Join(strings.Fields(text), " "), maxLen)
}
