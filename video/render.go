package video

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"clipforge/subtitle"
	"clipforge/task"
)

// Render lays narration, subtitles, and background music over a combined
// video. Subtitle and music problems degrade the output instead of failing
// the task.
func (e *Engine) Render(ctx context.Context, opts task.RenderOptions) error {
	params := opts.Params

	duration, err := e.probeDuration(ctx, opts.VideoPath)
	if err != nil {
		return err
	}

	videoFilter := e.buildSubtitleFilter(opts.SubtitlePath, params)

	bgmFile := e.resolveBgmFile(params)
	if err := e.renderOnce(ctx, opts, duration, videoFilter, bgmFile); err != nil {
		if bgmFile == "" {
			return err
		}
		// Bad music files must not sink the whole render.
		log.Warnf("render with background music failed, retrying without: %v", err)
		return e.renderOnce(ctx, opts, duration, videoFilter, "")
	}
	return nil
}

func (e *Engine) renderOnce(ctx context.Context, opts task.RenderOptions, duration float64, videoFilter, bgmFile string) error {
	return e.runFF(ctx, e.renderArgs(opts, duration, videoFilter, bgmFile)...)
}

func (e *Engine) renderArgs(opts task.RenderOptions, duration float64, videoFilter, bgmFile string) []string {
	params := opts.Params

	args := []string{"-y", "-i", opts.VideoPath, "-i", opts.AudioPath}
	if bgmFile != "" {
		args = append(args, "-stream_loop", "-1", "-i", bgmFile)
	}

	var filters []string
	videoMap := "0:v"
	if videoFilter != "" {
		filters = append(filters, fmt.Sprintf("[0:v]%s[vout]", videoFilter))
		videoMap = "[vout]"
	}

	audioMap := "[voice]"
	filters = append(filters, fmt.Sprintf("[1:a]volume=%.2f[voice]", params.VoiceVolume))
	if bgmFile != "" {
		fadeStart := duration - 3
		if fadeStart < 0 {
			fadeStart = 0
		}
		filters = append(filters,
			fmt.Sprintf("[2:a]volume=%.2f,afade=t=out:st=%.3f:d=3[bgm]", params.BgmVolume, fadeStart),
			"[voice][bgm]amix=inputs=2:duration=first:dropout_transition=0[aout]")
		audioMap = "[aout]"
	}

	threads := params.Threads
	if threads <= 0 {
		threads = 2
	}

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", videoMap,
		"-map", audioMap,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprint(outputFPS),
		"-threads", fmt.Sprint(threads),
		"-c:a", "aac",
		"-t", fmt.Sprintf("%.3f", duration),
	)
	args = append(args, e.extraEncodeArgs()...)
	args = append(args, opts.OutputPath)

	return args
}

// buildSubtitleFilter renders every cue as a timed drawtext. An empty return
// means no overlay.
func (e *Engine) buildSubtitleFilter(subtitlePath string, params *task.VideoParams) string {
	if !params.SubtitleEnabled || subtitlePath == "" {
		return ""
	}

	cues, err := subtitle.ParseFile(subtitlePath)
	if err != nil || len(cues) == 0 {
		log.Warnf("no usable subtitle cues in %s", subtitlePath)
		return ""
	}

	width, height := params.Aspect.Resolution()
	maxTextWidth := float64(width) * 0.9

	fontFile := e.resolveFontFile(params.FontName)
	measure := approxMeasurer(params.FontSize)
	if fontFile != "" {
		if m, err := NewFontMeasurer(fontFile, float64(params.FontSize)); err == nil {
			measure = m
		} else {
			log.Warnf("could not measure with font %s: %v", fontFile, err)
		}
	}

	var parts []string
	for _, cue := range cues {
		wrapped, textHeight := WrapText(cue.Text, maxTextWidth, measure)
		y := subtitleY(params, height, textHeight)

		opts := []string{
			fmt.Sprintf("text='%s'", escapeDrawText(wrapped)),
			fmt.Sprintf("fontsize=%d", params.FontSize),
			fmt.Sprintf("fontcolor=%s", params.TextForeColor),
			"x=(w-text_w)/2",
			fmt.Sprintf("y=%.0f", y),
			fmt.Sprintf("enable='between(t,%.3f,%.3f)'", cue.Start, cue.End),
		}
		if fontFile != "" {
			opts = append(opts, fmt.Sprintf("fontfile='%s'", escapeDrawText(fontFile)))
		}
		if params.StrokeWidth > 0 && params.StrokeColor != "" {
			opts = append(opts,
				fmt.Sprintf("borderw=%.1f", params.StrokeWidth),
				fmt.Sprintf("bordercolor=%s", params.StrokeColor))
		}
		parts = append(parts, "drawtext="+strings.Join(opts, ":"))
	}
	return strings.Join(parts, ",")
}

// subtitleY picks the top edge of the text block for the configured position.
func subtitleY(params *task.VideoParams, videoHeight int, textHeight float64) float64 {
	h := float64(videoHeight)
	switch params.SubtitlePosition {
	case "top":
		return h * 0.05
	case "center":
		return (h - textHeight) / 2
	case "custom":
		// The percentage distributes the free space above and below the
		// text block, not the raw frame height.
		y := (h - textHeight) * params.CustomPosition / 100.0
		if min := 10.0; y < min {
			y = min
		}
		if max := h - textHeight - 10; y > max {
			y = max
		}
		return y
	default: // bottom
		return h*0.95 - textHeight
	}
}

var drawTextEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`:`, `\:`,
	`%`, `\%`,
	`,`, `\,`,
)

func escapeDrawText(s string) string {
	return drawTextEscaper.Replace(s)
}

// resolveFontFile maps a font name to a file under FontDir, falling back to
// the first font found there.
func (e *Engine) resolveFontFile(fontName string) string {
	if fontName != "" {
		p := filepath.Join(e.cfg.FontDir, fontName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		log.Warnf("font %s not found in %s", fontName, e.cfg.FontDir)
	}
	for _, pattern := range []string{"*.ttf", "*.otf", "*.ttc"} {
		matches, _ := filepath.Glob(filepath.Join(e.cfg.FontDir, pattern))
		if len(matches) > 0 {
			return matches[0]
		}
	}
	return ""
}

// resolveBgmFile picks the background music track, or "" for none.
func (e *Engine) resolveBgmFile(params *task.VideoParams) string {
	switch params.BgmType {
	case "":
		return ""
	case "custom":
		if params.BgmFile != "" {
			if _, err := os.Stat(params.BgmFile); err == nil {
				return params.BgmFile
			}
			log.Warnf("custom bgm file %s not found, picking a random song", params.BgmFile)
		}
	}
	songs, _ := filepath.Glob(filepath.Join(e.cfg.SongDir, "*.mp3"))
	if len(songs) == 0 {
		return ""
	}
	return songs[e.rng.Intn(len(songs))]
}
