package formatter

import (
	"regexp"
	"strings"
)

// A literal backslash is escaped too; left bare it would consume the escape after it.
const markdownV2Special = "\\_*[]()~`>#+-=|{}.!"

var (
	invisibleExpr  = regexp.MustCompile(`[\x{00A0}\x{200B}\x{200C}\x{200D}\x{FEFF}]+`)
	whitespaceExpr = regexp.MustCompile(`\s+`)
	blankLinesExpr = regexp.MustCompile(`\n\s*\n`)
)

// Normalize collapses whitespace runs to one space, drops invisible spaces and trims.
func Normalize(s string) string {
	s = invisibleExpr.ReplaceAllString(s, " ")
	s = whitespaceExpr.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// EscapeMarkdownV2 normalizes s and backslash-escapes every MarkdownV2 control character.
func EscapeMarkdownV2(s string) string {
	s = Normalize(s)

	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	for _, r := range s {
		if strings.ContainsRune(markdownV2Special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// collapseBlankLines turns every run of line breaks into a single one.
func collapseBlankLines(s string) string {
	for blankLinesExpr.MatchString(s) {
		s = blankLinesExpr.ReplaceAllString(s, "\n")
	}
	return strings.TrimSpace(s)
}
