package subtitle

// Corrector reconciles a transcribed subtitle file against the canonical
// script. Transcription mishears words; the script is the ground truth for
// text, the transcript for timing.
type Corrector struct{}

// Correct rewrites the file in place when the cue count matches the script's
// sentence count. A mismatch leaves the file untouched: wrong-but-aligned
// timing beats corrupted timing.
func (Corrector) Correct(subtitlePath, script string) error {
	cues, err := ParseFile(subtitlePath)
	if err != nil {
		return err
	}

	sentences := SplitSentences(script)
	if len(cues) != len(sentences) {
		log.Warnf("subtitle has %d cues but script has %d sentences, keeping transcript text",
			len(cues), len(sentences))
		return nil
	}

	for i := range cues {
		cues[i].Text = sentences[i]
	}
	return WriteFile(subtitlePath, cues)
}
