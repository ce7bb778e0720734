package task

import (
	"fmt"
	"regexp"
	"strings"
)

// Task states, integer-coded for the state store.
const (
	StateQueued     = 0
	StateProcessing = 1
	StateComplete   = 2
	StateFailed     = 3
)

// Stage names a pipeline step. They run in the fixed order below; StopAt may
// name any of them to end the run early with the artifacts produced so far.
type Stage string

const (
	StageScript    Stage = "script"
	StageTerms     Stage = "terms"
	StageAudio     Stage = "audio"
	StageSubtitle  Stage = "subtitle"
	StageMaterials Stage = "materials"
	StageVideo     Stage = "video"
)

func ValidStage(s Stage) bool {
	switch s {
	case StageScript, StageTerms, StageAudio, StageSubtitle, StageMaterials, StageVideo:
		return true
	}
	return false
}

type VideoAspect string

const (
	AspectPortrait  VideoAspect = "9:16"
	AspectLandscape VideoAspect = "16:9"
	AspectSquare    VideoAspect = "1:1"
)

// Resolution returns the output frame size for the aspect.
func (a VideoAspect) Resolution() (int, int) {
	switch a {
	case AspectLandscape:
		return 1920, 1080
	case AspectSquare:
		return 1080, 1080
	default:
		return 1080, 1920
	}
}

type ConcatMode string

const (
	ConcatSequential ConcatMode = "sequential"
	ConcatRandom     ConcatMode = "random"
)

// MaterialInfo is one footage asset. URL is rewritten in place when an image
// is converted into a short zoom clip.
type MaterialInfo struct {
	Provider string  `json:"provider"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

// VideoParams is the immutable input configuration for one task.
type VideoParams struct {
	Subject         string `json:"video_subject"`
	Language        string `json:"video_language"`
	ParagraphNumber int    `json:"paragraph_number"`

	// Explicit overrides. Terms accepts a comma- (or fullwidth-comma-)
	// separated string, or a list of strings.
	Script string `json:"video_script"`
	Terms  any    `json:"video_terms"`

	VoiceName   string  `json:"voice_name"`
	VoiceRate   float64 `json:"voice_rate"`
	VoiceVolume float64 `json:"voice_volume"`

	SubtitleEnabled  bool    `json:"subtitle_enabled"`
	SubtitleProvider string  `json:"subtitle_provider"`
	SubtitlePosition string  `json:"subtitle_position"` // bottom, top, center, custom
	CustomPosition   float64 `json:"custom_position"`   // percent from top, used with "custom"
	FontName         string  `json:"font_name"`
	FontSize         int     `json:"font_size"`
	TextForeColor    string  `json:"text_fore_color"`
	StrokeColor      string  `json:"stroke_color"`
	StrokeWidth      float64 `json:"stroke_width"`

	BgmType   string  `json:"bgm_type"` // "", "random", or "custom" with BgmFile
	BgmFile   string  `json:"bgm_file"`
	BgmVolume float64 `json:"bgm_volume"`

	VideoSource  string         `json:"video_source"` // "local" or a provider name
	Materials    []MaterialInfo `json:"video_materials"`
	Aspect       VideoAspect    `json:"video_aspect"`
	ConcatMode   ConcatMode     `json:"video_concat_mode"`
	ClipDuration int            `json:"video_clip_duration"` // per-clip cap, seconds
	VideoCount   int            `json:"video_count"`
	Threads      int            `json:"n_threads"`
}

// Normalize fills zero-valued knobs with their defaults.
func (p *VideoParams) Normalize() {
	if p.ParagraphNumber <= 0 {
		p.ParagraphNumber = 1
	}
	if p.VoiceRate == 0 {
		p.VoiceRate = 1.0
	}
	if p.VoiceVolume == 0 {
		p.VoiceVolume = 1.0
	}
	if p.BgmVolume == 0 {
		p.BgmVolume = 0.2
	}
	if p.SubtitlePosition == "" {
		p.SubtitlePosition = "bottom"
	}
	if p.FontSize <= 0 {
		p.FontSize = 60
	}
	if p.TextForeColor == "" {
		p.TextForeColor = "#FFFFFF"
	}
	if p.Aspect == "" {
		p.Aspect = AspectPortrait
	}
	if p.ConcatMode == "" {
		p.ConcatMode = ConcatRandom
	}
	if p.ClipDuration <= 0 {
		p.ClipDuration = 5
	}
	if p.VideoCount <= 0 {
		p.VideoCount = 1
	}
	if p.VideoSource == "" {
		p.VideoSource = "pexels"
	}
}

var termSeparator = regexp.MustCompile(`[,，]`)

// ParseTerms normalizes a caller-supplied terms value. A string is split on
// ASCII or fullwidth commas; a list is accepted element-wise. Anything else
// is an input error.
func ParseTerms(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		var terms []string
		for _, part := range termSeparator.Split(t, -1) {
			terms = append(terms, strings.TrimSpace(part))
		}
		return terms, nil
	case []string:
		terms := make([]string, 0, len(t))
		for _, s := range t {
			terms = append(terms, strings.TrimSpace(s))
		}
		return terms, nil
	case []any:
		terms := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("video terms must be a string or a list of strings")
			}
			terms = append(terms, strings.TrimSpace(s))
		}
		return terms, nil
	default:
		return nil, fmt.Errorf("video terms must be a string or a list of strings")
	}
}

// TimedFragment is one spoken fragment with offsets from the synthesizer's
// timing metadata.
type TimedFragment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TimingMetadata is what a TTS run reports back: per-fragment word timings
// from which both the audio duration and subtitles can be derived.
type TimingMetadata struct {
	Fragments []TimedFragment
}

// Duration reports the end offset of the last fragment.
func (m *TimingMetadata) Duration() float64 {
	var d float64
	for _, f := range m.Fragments {
		if f.End > d {
			d = f.End
		}
	}
	return d
}

// Result accumulates the artifacts of one run. Early stop_at returns carry
// only the fields produced so far.
type Result struct {
	Script         string   `json:"script,omitempty"`
	Terms          []string `json:"terms,omitempty"`
	AudioFile      string   `json:"audio_file,omitempty"`
	AudioDuration  int      `json:"audio_duration,omitempty"`
	SubtitlePath   string   `json:"subtitle_path,omitempty"`
	Materials      []string `json:"materials,omitempty"`
	CombinedVideos []string `json:"combined_videos,omitempty"`
	Videos         []string `json:"videos,omitempty"`
}
