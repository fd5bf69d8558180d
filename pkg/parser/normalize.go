package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var whitespaceRun = regexp.MustCompile(`[\s\p{Z}]+`)

// Normalize trims the text and collapses every whitespace run, newlines
// included, to a single space. Nothing else is changed.
func Normalize(text string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(text), " ")
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// isTimeOnly reports whether the whole normalized text is a bare time or date.
func (c *compiled) isTimeOnly(text string) bool {
	for _, re := range c.timeOnly {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// generateNote returns the merchant when known, otherwise the first raw line
// that reads like a description rather than a price.
func generateNote(raw, merchant string) string {
	if merchant != "" {
		return merchant
	}
	for _, line := range strings.Split(raw, "\n") {
		line = Normalize(line)
		n := utf8.RuneCountInString(line)
		if n > 2 && n < 50 && !strings.Contains(line, "¥") && !strings.Contains(line, "元") {
			return line
		}
	}
	return ""
}
