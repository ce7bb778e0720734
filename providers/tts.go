package providers

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"

	"clipforge/config"
	"clipforge/subtitle"
	"clipforge/task"
)

// EdgeSpeech synthesizes narration through the edge-tts command line tool
// and turns its word-level subtitle output into timing metadata.
type EdgeSpeech struct {
	bin string
}

func NewEdgeSpeech(cfg *config.Config) *EdgeSpeech {
	return &EdgeSpeech{bin: cfg.EdgeTTSBin}
}

// ParseVoiceName strips the gender suffix some voice pickers append, e.g.
// "en-US-JennyNeural-Female" becomes "en-US-JennyNeural".
func ParseVoiceName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, "-Male")
	name = strings.TrimSuffix(name, "-Female")
	return strings.TrimSpace(name)
}

// formatRate renders a rate multiplier as the percentage string edge-tts
// expects: 1.0 is "+0%", 1.2 is "+20%", 0.8 is "-20%".
func formatRate(rate float64) string {
	if rate <= 0 {
		rate = 1.0
	}
	pct := int(math.Round((rate - 1.0) * 100))
	return fmt.Sprintf("%+d%%", pct)
}

func (s *EdgeSpeech) Synthesize(ctx context.Context, text, voiceName string, rate float64, audioFile string) (*task.TimingMetadata, error) {
	voice := ParseVoiceName(voiceName)
	if voice == "" {
		voice = "en-US-JennyNeural"
	}
	subFile := audioFile + ".srt"

	cmd := exec.CommandContext(ctx, s.bin,
		"--voice", voice,
		"--rate", formatRate(rate),
		"--text", text,
		"--write-media", audioFile,
		"--write-subtitles", subFile,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("edge-tts: %w: %s", err, strings.TrimSpace(string(out)))
	}
	defer os.Remove(subFile)

	if info, err := os.Stat(audioFile); err != nil || info.Size() == 0 {
		return nil, fmt.Errorf("edge-tts produced no audio for voice %s", voice)
	}

	cues, err := subtitle.ParseFile(subFile)
	if err != nil || len(cues) == 0 {
		return nil, fmt.Errorf("edge-tts produced no timing metadata for voice %s", voice)
	}

	meta := &task.TimingMetadata{}
	for _, c := range cues {
		meta.Fragments = append(meta.Fragments, task.TimedFragment{
			Start: c.Start,
			End:   c.End,
			Text:  c.Text,
		})
	}
	return meta, nil
}

// WriteSubtitle groups word-level timing fragments into one cue per script
// sentence and writes them as SRT. When the fragments cannot be aligned with
// the script no file is written, the caller treats that as a signal to fall
// back to transcription.
func (s *EdgeSpeech) WriteSubtitle(meta *task.TimingMetadata, script, subtitleFile string) error {
	if meta == nil || len(meta.Fragments) == 0 {
		return fmt.Errorf("no timing fragments to build subtitles from")
	}

	sentences := subtitle.SplitSentences(script)
	if len(sentences) == 0 {
		return fmt.Errorf("script has no sentences")
	}

	cues := alignFragments(meta.Fragments, sentences)
	if len(cues) == 0 {
		return fmt.Errorf("could not align %d fragments with %d sentences", len(meta.Fragments), len(sentences))
	}
	if len(cues) != len(sentences) {
		log.Warnf("aligned %d of %d sentences with the narration timing", len(cues), len(sentences))
	}

	return subtitle.WriteFile(subtitleFile, cues)
}

// alignFragments walks the fragments in order, accumulating text until it
// matches the next sentence, then emits a cue spanning the matched run.
func alignFragments(fragments []task.TimedFragment, sentences []string) []subtitle.Cue {
	var cues []subtitle.Cue

	si := 0
	acc := ""
	start := 0.0
	for _, f := range fragments {
		if si >= len(sentences) {
			break
		}
		if acc == "" {
			start = f.Start
		}
		acc += f.Text

		target := subtitle.NormalizeText(sentences[si])
		got := subtitle.NormalizeText(acc)
		if got == target {
			cues = append(cues, subtitle.Cue{
				Start: start,
				End:   f.End,
				Text:  sentences[si],
			})
			si++
			acc = ""
		} else if !strings.HasPrefix(target, got) {
			// The narration diverged from the script, alignment is lost.
			return cues
		}
	}
	return cues
}
