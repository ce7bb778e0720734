package subtitle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:00,000 --> 00:00:02,500
Hello there

2
00:00:02,500 --> 00:00:05,000
General Kenobi
`

func TestParse(t *testing.T) {
	cues := Parse(sampleSRT)
	require.Len(t, cues, 2)

	assert.Equal(t, 0.0, cues[0].Start)
	assert.Equal(t, 2.5, cues[0].End)
	assert.Equal(t, "Hello there", cues[0].Text)
	assert.Equal(t, "General Kenobi", cues[1].Text)
}

func TestParse_SkipsMalformedBlocks(t *testing.T) {
	content := "1\nnot a timecode\nText\n\n2\n00:00:01,000 --> 00:00:02,000\nGood\n"
	cues := Parse(content)
	require.Len(t, cues, 1)
	assert.Equal(t, "Good", cues[0].Text)
	assert.Equal(t, 1, cues[0].Index)
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	in := []Cue{
		{Start: 0, End: 1.25, Text: "first"},
		{Start: 1.25, End: 3.8, Text: "second line"},
	}
	require.NoError(t, WriteFile(path, in))

	out, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Text)
	assert.InDelta(t, 1.25, out[0].End, 0.001)
	assert.InDelta(t, 3.8, out[1].End, 0.001)
}

func TestFormatTimecode(t *testing.T) {
	assert.Equal(t, "00:00:00,000", formatTimecode(0))
	assert.Equal(t, "00:01:01,500", formatTimecode(61.5))
	assert.Equal(t, "01:00:00,000", formatTimecode(3600))
	assert.Equal(t, "00:00:00,000", formatTimecode(-5))
}

func TestSplitSentences(t *testing.T) {
	s := SplitSentences("First one. Second one! Third?")
	assert.Equal(t, []string{"First one", "Second one", "Third"}, s)

	s = SplitSentences("你好。世界！")
	assert.Equal(t, []string{"你好", "世界"}, s)

	assert.Nil(t, SplitSentences("   "))
}

func TestCorrector_ReplacesTextWhenCountsMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub.srt")
	require.NoError(t, WriteFile(path, []Cue{
		{Start: 0, End: 2, Text: "hallo their"},
		{Start: 2, End: 4, Text: "jenner all canopy"},
	}))

	err := Corrector{}.Correct(path, "Hello there. General Kenobi.")
	require.NoError(t, err)

	cues, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.Equal(t, "Hello there", cues[0].Text)
	assert.Equal(t, "General Kenobi", cues[1].Text)
	assert.Equal(t, 2.0, cues[0].End, "timing must survive correction")
}

func TestCorrector_LeavesFileOnCountMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub.srt")
	require.NoError(t, WriteFile(path, []Cue{{Start: 0, End: 2, Text: "only cue"}}))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, Corrector{}.Correct(path, "One. Two. Three."))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
