package video

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// runeMeasurer counts 10px per rune, 12px line height.
func runeMeasurer(s string) (float64, float64) {
	var widest int
	for _, line := range strings.Split(s, "\n") {
		if n := len([]rune(line)); n > widest {
			widest = n
		}
	}
	return float64(widest) * 10, 12
}

func TestWrapText_ShortTextUnchanged(t *testing.T) {
	out, h := WrapText("hello", 100, runeMeasurer)
	assert.Equal(t, "hello", out)
	assert.Equal(t, 12.0, h)
}

func TestWrapText_WrapsAtWordBoundaries(t *testing.T) {
	out, h := WrapText("one two three four", 90, runeMeasurer)

	lines := strings.Split(out, "\n")
	assert.Equal(t, []string{"one two", "three", "four"}, lines)
	assert.Equal(t, 36.0, h)
	for _, line := range lines {
		w, _ := runeMeasurer(line)
		assert.LessOrEqual(t, w, 90.0)
	}
}

func TestWrapText_CharFallbackForLongWord(t *testing.T) {
	out, _ := WrapText("abcdefghij", 40, runeMeasurer)

	lines := strings.Split(out, "\n")
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, lines)
	for _, line := range lines {
		w, _ := runeMeasurer(line)
		assert.LessOrEqual(t, w, 40.0, "no line may overflow the limit")
	}
}

func TestWrapText_CharFallbackForCJK(t *testing.T) {
	// No spaces at all, so word wrapping cannot apply.
	out, _ := WrapText("这是一段没有空格的长文本", 50, runeMeasurer)

	for _, line := range strings.Split(out, "\n") {
		w, _ := runeMeasurer(line)
		assert.LessOrEqual(t, w, 50.0)
	}
	assert.Equal(t, "这是一段没有空格的长文本", strings.ReplaceAll(out, "\n", ""))
}

func TestWrapText_SingleRuneWiderThanLimit(t *testing.T) {
	out, _ := WrapText("abc", 5, runeMeasurer)
	// Each rune is 10px wide, nothing fits. Runes go one per line.
	assert.Equal(t, "a\nb\nc", out)
}

func TestApproxMeasurer(t *testing.T) {
	m := approxMeasurer(60)
	w, h := m("ab")
	assert.Equal(t, 72.0, w)
	assert.Equal(t, 72.0, h)

	w, _ = m("ab\nabcd")
	assert.Equal(t, 144.0, w, "widest line wins")
}
