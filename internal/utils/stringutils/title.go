package stringutils

import (
	"regexp"
	"strings"
)

var multiSpacePattern = regexp.MustCompile(`\s+`)

// SanitizeTitleContent collapses runs of whitespace (including newlines from
// pasted content) into single spaces and trims the result.
func SanitizeTitleContent(content string) string {
	content = multiSpacePattern.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

// TruncateTitle cuts a title to at most maxLen characters. Truncation is
// rune-aware so multi-byte input never gets split mid-character.
func TruncateTitle(title string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(title)
	if len(runes) <= maxLen {
		return title
	}
	return string(runes[:maxLen])
}

// GenerateTitle creates a clean, truncated title from content.
func GenerateTitle(content string, maxLen int) string {
	sanitized := SanitizeTitleContent(content)
	if sanitized == "" {
		return ""
	}
	return TruncateTitle(sanitized, maxLen)
}
