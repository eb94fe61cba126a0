// Package sanitize scrubs outbound chat text: links, bare domains and
// blocklisted brand names never leave the process.
package sanitize

import (
	"regexp"
	"strings"
)

const tlds = `com|org|net|io|co|info|biz|xyz|app|dev|ai|me|us|uk|de|fr|jp|cn|ru|finance|exchange|news|` +
	`crypto|gg|tv|ly|to|cc|sh|link|site|online|tech|blog|market|trade|pro|vip|club|top`

var (
	markdownLink  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	urlPattern    = regexp.MustCompile(`(?i)\b(?:(?:https?|ftp|wss?)://|www\.)\S+`)
	domainPattern = regexp.MustCompile(`(?i)\b(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+(?:` + tlds + `)\b(?:/\S*)?`)
	spaceRun      = regexp.MustCompile(`[ \t]+`)
	spaceBefore   = regexp.MustCompile(` +([,.;:!?)])`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
)

type Sanitizer struct {
	brands      *regexp.Regexp
	replacement string
}

// New builds a sanitizer replacing any of blocklist (case-insensitive, whole
// words) with replacement.
func New(blocklist []string, replacement string) *Sanitizer {
	s := &Sanitizer{replacement: replacement}

	quoted := make([]string, 0, len(blocklist))

	for _, b := range blocklist {
		if b = strings.TrimSpace(b); b != "" {
			quoted = append(quoted, regexp.QuoteMeta(b))
		}
	}

	if len(quoted) > 0 {
		s.brands = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}

	return s
}

// Sanitize returns text without links, domains or blocklisted brands, with
// whitespace collapsed. Line structure is kept.
func (s *Sanitizer) Sanitize(text string) string {
	text = markdownLink.ReplaceAllString(text, "$1")
	text = urlPattern.ReplaceAllString(text, "")
	text = domainPattern.ReplaceAllString(text, "")

	if s.brands != nil {
		text = s.brands.ReplaceAllString(text, s.replacement)
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = spaceRun.ReplaceAllString(line, " ")
		line = spaceBefore.ReplaceAllString(line, "$1")
		lines[i] = strings.TrimSpace(line)
	}

	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// Clean reports whether text already satisfies the sanitizer's guarantees.
func (s *Sanitizer) Clean(text string) bool {
	if urlPattern.MatchString(text) || domainPattern.MatchString(text) {
		return false
	}

	return s.brands == nil || !s.brands.MatchString(text)
}
