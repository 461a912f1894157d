package textproc

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
	paddedLineRe = regexp.MustCompile(`\n[ \t]+\n`)
)

// CleanText normalizes a document before segmentation: Unicode NFC form,
// collapsed space runs, at most one blank line between paragraphs, no
// leading/trailing whitespace per line.
func CleanText(text string) string {
	text = norm.NFC.String(text)
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = paddedLineRe.ReplaceAllString(text, "\n\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
