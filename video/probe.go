package video

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// probeDuration asks ffprobe for the container duration in seconds.
func (e *Engine) probeDuration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, e.cfg.FFProbeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %s: %w", path, err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %s: unparseable output %q", path, out)
	}
	return d, nil
}

// probeDimensions asks ffprobe for the width and height of the first video
// stream. Works for still images too.
func (e *Engine) probeDimensions(ctx context.Context, path string) (int, int, error) {
	out, err := exec.CommandContext(ctx, e.cfg.FFProbeBin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	).Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe dimensions %s: %w", path, err)
	}
	parts := strings.Split(strings.TrimSpace(string(out)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("ffprobe dimensions %s: unparseable output %q", path, out)
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("ffprobe dimensions %s: unparseable output %q", path, out)
	}
	return w, h, nil
}
