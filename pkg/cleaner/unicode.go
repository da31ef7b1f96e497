package cleaner

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// foldReplacer maps typographic characters that NFKC leaves alone.
var foldReplacer = strings.NewReplacer(
	// quotes
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"«", `"`, "»", `"`, "‹", "'", "›", "'",
	// dashes and minus
	"‐", "-", "‑", "-", "‒", "-", "–", "-",
	"—", "-", "―", "-", "−", "-",
	// zero-width characters
	"\u200b", "", "\u200c", "", "\u200d", "", "\u2060", "", "\ufeff", "",
	// soft hyphen
	"\u00ad", "",
	// ellipsis
	"…", "...",
)

// NormalizeUnicode applies NFKC (which also expands ligatures such as "ﬁ"),
// folds smart quotes and dashes to ASCII, and removes control characters
// other than newline.
func NormalizeUnicode(text string) string {
	text = norm.NFKC.String(text)
	text = foldReplacer.Replace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		case unicode.Is(unicode.Zs, r):
			return ' '
		}
		return r
	}, text)
}
