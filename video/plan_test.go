package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge/task"
)

func totalDuration(segs []segment) float64 {
	var d float64
	for _, s := range segs {
		d += s.duration()
	}
	return d
}

func TestSplitSegments_Random(t *testing.T) {
	sources := []sourceClip{
		{Path: "a.mp4", Duration: 12},
		{Path: "b.mp4", Duration: 4},
	}

	segs := splitSegments(sources, task.ConcatRandom, 5)

	// 12s splits into 5+5+2, 4s stays whole.
	require.Len(t, segs, 4)
	assert.Equal(t, segment{Path: "a.mp4", Start: 0, End: 5}, segs[0])
	assert.Equal(t, segment{Path: "a.mp4", Start: 5, End: 10}, segs[1])
	assert.Equal(t, segment{Path: "a.mp4", Start: 10, End: 12}, segs[2])
	assert.Equal(t, segment{Path: "b.mp4", Start: 0, End: 4}, segs[3])

	for _, s := range segs {
		assert.LessOrEqual(t, s.duration(), 5.0)
	}
}

func TestSplitSegments_SequentialTakesOnePerSource(t *testing.T) {
	sources := []sourceClip{
		{Path: "a.mp4", Duration: 12},
		{Path: "b.mp4", Duration: 9},
	}

	segs := splitSegments(sources, task.ConcatSequential, 5)

	require.Len(t, segs, 2)
	assert.Equal(t, "a.mp4", segs[0].Path)
	assert.Equal(t, "b.mp4", segs[1].Path)
	assert.Equal(t, 5.0, segs[0].duration())
}

func TestSplitSegments_SkipsZeroDuration(t *testing.T) {
	segs := splitSegments([]sourceClip{{Path: "bad.mp4", Duration: 0}}, task.ConcatRandom, 5)
	assert.Empty(t, segs)
}

func TestFillTimeline_CoversAudioExactly(t *testing.T) {
	segs := []segment{
		{Path: "a.mp4", Start: 0, End: 5},
		{Path: "b.mp4", Start: 0, End: 3},
	}

	timeline := fillTimeline(segs, 20)

	assert.InDelta(t, 20.0, totalDuration(timeline), 0.001,
		"timeline must match the narration length")
	for _, s := range timeline {
		assert.Greater(t, s.duration(), 0.0)
	}
}

func TestFillTimeline_RepeatsWhenMaterialIsShort(t *testing.T) {
	segs := []segment{{Path: "a.mp4", Start: 0, End: 2}}

	timeline := fillTimeline(segs, 7)

	require.Len(t, timeline, 4)
	assert.InDelta(t, 7.0, totalDuration(timeline), 0.001)
	// Last pick is truncated to the remainder.
	assert.InDelta(t, 1.0, timeline[3].duration(), 0.001)
}

func TestFillTimeline_AlwaysPlacesOneSegment(t *testing.T) {
	segs := []segment{{Path: "a.mp4", Start: 0, End: 5}}

	timeline := fillTimeline(segs, 0)
	require.Len(t, timeline, 1)
	assert.Equal(t, 5.0, timeline[0].duration())
}

func TestFillTimeline_EmptyInput(t *testing.T) {
	assert.Nil(t, fillTimeline(nil, 10))
}
