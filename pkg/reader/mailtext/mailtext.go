// Package mailtext turns raw message bodies into plain text the parser can read.
package mailtext

import (
	"fmt"
	"html"
	"io"
	"mime"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/unicode/norm"
)

var (
	invisibleBlocks = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</(script|style|head)>`)
	lineBreakTags   = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|tr|li|h[1-6]|table)>`)
	cellTags        = regexp.MustCompile(`(?i)</t[dh]>`)
	anyTag          = regexp.MustCompile(`(?s)<[^>]*>`)
	blankRun        = regexp.MustCompile(`[ \t\p{Zs}]+`)
)

// Decode converts body from the named charset to UTF-8. An empty name or
// any spelling of UTF-8 returns body unchanged.
func Decode(body []byte, charset string) (string, error) {
	charset = strings.TrimSpace(charset)
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") || strings.EqualFold(charset, "us-ascii") {
		return string(body), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", charset, err)
	}
	return string(out), nil
}

// CharsetReader adapts Decode's charset lookup for mime.WordDecoder.
func CharsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// StripHTML drops markup, keeping block boundaries as newlines.
func StripHTML(s string) string {
	s = invisibleBlocks.ReplaceAllString(s, "")
	s = lineBreakTags.ReplaceAllString(s, "\n")
	s = cellTags.ReplaceAllString(s, " ")
	s = anyTag.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

// Fold applies NFKC so full-width digits, colons, parentheses and the
// full-width yuan sign read like their ASCII forms.
func Fold(s string) string {
	return norm.NFKC.String(s)
}

// Tidy collapses blank runs within lines and drops empty lines.
func Tidy(s string) string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(blankRun.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// Clean decodes body according to contentType and returns tidy plain text.
// An unparseable content type is treated as UTF-8 plain text.
func Clean(body []byte, contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, params = "text/plain", nil
	}

	text, err := Decode(body, params["charset"])
	if err != nil {
		return "", err
	}
	if mediaType == "text/html" {
		text = StripHTML(text)
	}
	return Tidy(Fold(text)), nil
}
