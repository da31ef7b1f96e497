package cleaner

import (
	"regexp"
	"strings"
)

var (
	// "engi-\nneering" -> "engineering". Requires lowercase on both sides so
	// that ranges like "2019-\n2021" and compound names survive.
	reHyphenBreak = regexp.MustCompile(`(\p{Ll})-\n(\p{Ll})`)

	reBullet = regexp.MustCompile(`(?m)^[ ]*(?:[•●○◦▪▫■□►▸‣⁃∙·*]|-[ ])[ ]*`)

	// "3", "- 3 -", "Page 3", "Page 3 of 5", "3/5"
	rePageNumber = regexp.MustCompile(`(?im)^[ ]*(?:-[ ]*\d{1,3}[ ]*-|page[ ]+\d{1,3}(?:[ ]*(?:of|/)[ ]*\d{1,3})?|\d{1,3}[ ]*/[ ]*\d{1,3}|\d{1,3})[ ]*$`)

	reTrailingSpace = regexp.MustCompile(`(?m)[ ]+$`)
	reBlankRun      = regexp.MustCompile(`\n{3,}`)
)

// RepairLayout fixes line-level artifacts common in text extracted from PDFs:
// words hyphenated across line breaks, assorted bullet glyphs, and standalone
// page-number lines. Blank-line runs are collapsed afterwards.
func RepairLayout(text string) string {
	text = reHyphenBreak.ReplaceAllString(text, "$1$2")
	text = reBullet.ReplaceAllString(text, "- ")
	text = rePageNumber.ReplaceAllString(text, "")
	text = reTrailingSpace.ReplaceAllString(text, "")
	text = reBlankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
