package providers

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"clipforge/config"
)

// WhisperTranscriber produces subtitles by running the whisper command line
// tool over the narration audio.
type WhisperTranscriber struct {
	bin   string
	model string
}

func NewWhisperTranscriber(cfg *config.Config) *WhisperTranscriber {
	return &WhisperTranscriber{bin: cfg.WhisperBin, model: cfg.WhisperModel}
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioFile, subtitleFile string) error {
	outDir, err := os.MkdirTemp("", "whisper_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(outDir)

	cmd := exec.CommandContext(ctx, t.bin,
		audioFile,
		"--model", t.model,
		"--output_format", "srt",
		"--output_dir", outDir,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("whisper: %w: %s", err, strings.TrimSpace(string(out)))
	}

	// Whisper names the output after the input's base name.
	base := strings.TrimSuffix(filepath.Base(audioFile), filepath.Ext(audioFile))
	produced := filepath.Join(outDir, base+".srt")
	data, err := os.ReadFile(produced)
	if err != nil {
		return fmt.Errorf("whisper produced no subtitle file: %w", err)
	}
	return os.WriteFile(subtitleFile, data, 0o644)
}
