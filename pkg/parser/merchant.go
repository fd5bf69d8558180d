package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var embeddedAmount = regexp.MustCompile(`\d+\.\d{2}`)

// merchantExtractor cleans the selected submatch and rejects stop words and
// names shorter than two runes.
func (c *compiled) merchantExtractor(group int) func([]string) (string, bool) {
	return func(match []string) (string, bool) {
		name := cleanMerchant(match[group])
		if utf8.RuneCountInString(name) < 2 {
			return "", false
		}
		if _, stop := c.merchantStopWords[name]; stop {
			return "", false
		}
		return name, true
	}
}

func cleanMerchant(s string) string {
	s = embeddedAmount.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.TrimSpace(s)
}

func (c *compiled) extractMerchant(text string) string {
	if name, ok := firstMatch(c.merchants, text); ok {
		return name
	}
	for _, k := range c.merchantKeywords {
		if strings.Contains(text, k.Keyword) {
			return k.Name
		}
	}
	return ""
}
