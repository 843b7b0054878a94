package media

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	lineEndPattern  = regexp.MustCompile(`\r\n?`)
	multiNewlinePat = regexp.MustCompile(`\n{3,}`)
)

// SanitizeText normalizes inbound text content before storage:
// strips markup tags, escapes what remains, normalizes line breaks
// and trims surrounding whitespace.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}

	s = tagPattern.ReplaceAllString(s, "")
	s = html.EscapeString(s)
	s = lineEndPattern.ReplaceAllString(s, "\n")
	s = multiNewlinePat.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
