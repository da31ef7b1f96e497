package cleaner

import (
	"regexp"
	"strings"
)

var (
	reSpaceBeforeNewline = regexp.MustCompile(`\s+\n`)
	reManyNewlines       = regexp.MustCompile(`\n{3,}`)
	reRepeatedBlanks     = regexp.MustCompile(`[ \t]{2,}`)
)

// CleanText applies light cleanup to freshly extracted text. It keeps line
// structure, which the parser relies on for section boundaries.
//
// Steps, in order: remove NUL bytes, drop invalid UTF-8, remove tabs, strip
// whitespace before newlines, cap newline runs at two, squeeze repeated
// spaces, trim.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\t", "")
	text = reSpaceBeforeNewline.ReplaceAllString(text, "\n")
	text = reManyNewlines.ReplaceAllString(text, "\n\n")
	text = reRepeatedBlanks.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// IsBlank reports whether text has no visible content.
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
