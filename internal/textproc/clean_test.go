package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText_CollapsesSpaceRuns(t *testing.T) {
	assert.Equal(t, "one two three", CleanText("one   two\t\tthree"))
}

func TestCleanText_LimitsBlankLines(t *testing.T) {
	out := CleanText("first\n\n\n\n\nsecond")
	assert.Equal(t, "first\n\nsecond", out)
}

func TestCleanText_PaddedBlankLine(t *testing.T) {
	out := CleanText("first\n   \nsecond")
	assert.Equal(t, "first\n\nsecond", out)
}

func TestCleanText_TrimsLineEdges(t *testing.T) {
	out := CleanText("  leading\ntrailing  \n")
	assert.Equal(t, "leading\ntrailing", out)
}

func TestCleanText_NormalizesToNFC(t *testing.T) {
	// "é" as e + combining acute accent vs the precomposed form.
	decomposed := "café"
	assert.Equal(t, "café", CleanText(decomposed))
}

func TestCleanText_Empty(t *testing.T) {
	assert.Equal(t, "", CleanText("   \n\n  "))
}
