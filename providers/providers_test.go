package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge/subtitle"
	"clipforge/task"
)

func TestParseVoiceName(t *testing.T) {
	assert.Equal(t, "en-US-JennyNeural", ParseVoiceName("en-US-JennyNeural-Female"))
	assert.Equal(t, "en-US-GuyNeural", ParseVoiceName("en-US-GuyNeural-Male"))
	assert.Equal(t, "en-US-JennyNeural", ParseVoiceName("  en-US-JennyNeural  "))
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "+0%", formatRate(1.0))
	assert.Equal(t, "+20%", formatRate(1.2))
	assert.Equal(t, "-20%", formatRate(0.8))
	assert.Equal(t, "+0%", formatRate(0), "zero falls back to normal speed")
}

func TestCleanScript(t *testing.T) {
	raw := "**Title**\n\n  First paragraph.  \n\n> Second paragraph."
	assert.Equal(t, "Title\nFirst paragraph.\nSecond paragraph.", cleanScript(raw))
}

func TestParseTermsJSON(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		terms, err := parseTermsJSON(`["cats", "cute cats", "kittens"]`)
		require.NoError(t, err)
		assert.Equal(t, []string{"cats", "cute cats", "kittens"}, terms)
	})

	t.Run("wrapped in prose", func(t *testing.T) {
		terms, err := parseTermsJSON("Here you go:\n```json\n[\"a\", \"b\"]\n```")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, terms)
	})

	t.Run("no array", func(t *testing.T) {
		_, err := parseTermsJSON("I cannot help with that.")
		assert.Error(t, err)
	})
}

func TestAlignFragments(t *testing.T) {
	fragments := []task.TimedFragment{
		{Start: 0.0, End: 0.4, Text: "Hello"},
		{Start: 0.4, End: 0.9, Text: " there"},
		{Start: 1.0, End: 1.5, Text: "General"},
		{Start: 1.5, End: 2.2, Text: " Kenobi"},
	}

	cues := alignFragments(fragments, []string{"Hello there", "General Kenobi"})

	require.Len(t, cues, 2)
	assert.Equal(t, subtitle.Cue{Start: 0.0, End: 0.9, Text: "Hello there"}, cues[0])
	assert.Equal(t, subtitle.Cue{Start: 1.0, End: 2.2, Text: "General Kenobi"}, cues[1])
}

func TestAlignFragments_StopsOnDivergence(t *testing.T) {
	fragments := []task.TimedFragment{
		{Start: 0, End: 0.5, Text: "Hello"},
		{Start: 0.5, End: 1.0, Text: " world"},
	}

	cues := alignFragments(fragments, []string{"Hello there"})
	assert.Empty(t, cues, "narration that diverges from the script cannot be aligned")
}

func TestPexelsSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nature", r.URL.Query().Get("query"))
		assert.Equal(t, "portrait", r.URL.Query().Get("orientation"))
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))

		w.Write([]byte(`{"videos": [
			{"id": 1, "duration": 12, "video_files": [
				{"link": "http://example.com/a.mp4", "width": 1080, "height": 1920, "quality": "hd"}
			]},
			{"id": 2, "duration": 8, "video_files": [
				{"link": "http://example.com/b.mp4", "width": 640, "height": 360, "quality": "sd"}
			]}
		]}`))
	}))
	defer srv.Close()

	p := &PexelsClient{apiKey: "test-key", client: srv.Client()}
	items, err := p.searchAt(context.Background(), srv.URL, "nature", task.AspectPortrait)
	require.NoError(t, err)

	// The SD-only video has no acceptable file.
	require.Len(t, items, 1)
	assert.Equal(t, "http://example.com/a.mp4", items[0].link)
	assert.Equal(t, 12.0, items[0].duration)
}
