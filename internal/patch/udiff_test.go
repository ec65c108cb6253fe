package patch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnifiedDiffBasic(t *testing.T) {
	before := "a\nb\nc\nd\ne\n"
	after := "a\nb\nC\nd\ne\n"

	d := UnifiedDiff("f.txt", before, after)
	assert.True(t, strings.HasPrefix(d, "--- a/f.txt\n+++ b/f.txt\n"))
	assert.Contains(t, d, "-c\n")
	assert.Contains(t, d, "+C\n")
	assert.Contains(t, d, "@@ -1,5 +1,5 @@\n")
}

func TestUnifiedDiffIdentical(t *testing.T) {
	assert.Empty(t, UnifiedDiff("f.txt", "same\n", "same\n"))
}

func TestUnifiedDiffSeparateHunks(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("line\n")
	}
	lines := strings.SplitAfter(b.String(), "\n")[:30]
	before := strings.Join(lines, "")

	changed := append([]string{}, lines...)
	changed[0] = "FIRST\n"
	changed[29] = "LAST\n"
	after := strings.Join(changed, "")

	d := UnifiedDiff("big.txt", before, after)
	// Two edits far apart must not merge into one hunk.
	assert.Equal(t, 2, strings.Count(d, "@@ -"))
	assert.Contains(t, d, "+FIRST\n")
	assert.Contains(t, d, "+LAST\n")
}

func TestUnifiedDiffPureInsert(t *testing.T) {
	d := UnifiedDiff("f.txt", "a\nb\n", "a\nX\nb\n")
	assert.Contains(t, d, "+X\n")
	assert.NotContains(t, d, "-a\n")
}

func TestChangedLineCount(t *testing.T) {
	assert.Equal(t, 0, ChangedLineCount("x\n", "x\n"))
	assert.Equal(t, 2, ChangedLineCount("a\nb\n", "a\nB\n")) // -b +B
	assert.Equal(t, 1, ChangedLineCount("a\n", "a\nnew\n"))
}
