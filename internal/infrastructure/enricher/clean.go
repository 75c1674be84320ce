package enricher

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	lineBreakExpr  = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockCloseExpr = regexp.MustCompile(`(?i)</(p|div|li)>`)
	spaceRunExpr   = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankRunExpr   = regexp.MustCompile(`\n\s*\n+`)
)

// Cleaner turns description markup into bounded plain text.
type Cleaner struct {
	policy *bluemonday.Policy
	limit  int
}

// NewCleaner strips every tag and caps the result at limit runes.
func NewCleaner(limit int) *Cleaner {
	return &Cleaner{policy: bluemonday.StrictPolicy(), limit: limit}
}

// Clean converts an HTML fragment to text: line breaks survive, tags do not.
func (c *Cleaner) Clean(fragment string) string {
	fragment = lineBreakExpr.ReplaceAllString(fragment, "\n")
	fragment = blockCloseExpr.ReplaceAllString(fragment, "\n")
	stripped := html.UnescapeString(c.policy.Sanitize(fragment))
	return c.Text(stripped)
}

// Text normalizes already-plain text.
func (c *Cleaner) Text(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRunExpr.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankRunExpr.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	return truncateRunes(s, c.limit)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}
