// Package video is the media assembly engine. It plans duration-matched clip
// timelines and drives ffmpeg to normalize, concatenate, and overlay them.
package video

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"clipforge/config"
	"clipforge/logging"
	"clipforge/task"
)

var log = logging.GetLogger()

const outputFPS = 30

type Engine struct {
	cfg *config.Config
	rng *rand.Rand
}

func NewEngine(cfg *config.Config) (*Engine, error) {
	if _, err := exec.LookPath(cfg.FFBin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found or not in PATH: %s", cfg.FFBin)
	}
	if _, err := exec.LookPath(cfg.FFProbeBin); err != nil {
		return nil, fmt.Errorf("ffprobe binary not found or not in PATH: %s", cfg.FFProbeBin)
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// checkResources verifies that the system has enough headroom to start an
// encode.
func (e *Engine) checkResources() error {
	p, err := cpu.Percent(time.Second, false)
	if err != nil {
		log.Warnf("could not get CPU usage: %v", err)
	} else if len(p) > 0 && p[0] > (100.0-e.cfg.ThrottleCPU) {
		return fmt.Errorf("not enough idle CPU, current usage: %.2f%%, idle threshold: %.2f%%", p[0], e.cfg.ThrottleCPU)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warnf("could not get memory usage: %v", err)
	} else if vm.Available < uint64(e.cfg.ThrottleFreeMem) {
		return fmt.Errorf("not enough free memory, available: %d, required: %d", vm.Available, e.cfg.ThrottleFreeMem)
	}

	d, err := disk.Usage(e.cfg.TaskDir)
	if err != nil {
		log.Warnf("could not get disk usage for %s: %v", e.cfg.TaskDir, err)
	} else if d.Free < uint64(e.cfg.ThrottleFreeDisk) {
		return fmt.Errorf("not enough free disk space, available: %d, required: %d", d.Free, e.cfg.ThrottleFreeDisk)
	}
	return nil
}

// runFF executes one ffmpeg invocation under the configured timeout. The
// returned error carries the tail of ffmpeg's output.
func (e *Engine) runFF(ctx context.Context, args ...string) error {
	if e.cfg.FFTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.FFTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.cfg.FFBin, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	log.Debugf("executing: %s %s", e.cfg.FFBin, strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tailLines(buf.String(), 5))
	}
	return nil
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// extraEncodeArgs splits the configured extra encoder flags shell-style.
func (e *Engine) extraEncodeArgs() []string {
	if strings.TrimSpace(e.cfg.ExtraEncodeArgs) == "" {
		return nil
	}
	args, err := shlex.Split(e.cfg.ExtraEncodeArgs)
	if err != nil {
		log.Warnf("bad EXTRA_ENCODE_ARGS %q: %v", e.cfg.ExtraEncodeArgs, err)
		return nil
	}
	return args
}

// normalizeFilter scales into the target frame, letterboxing when the source
// aspect differs, and locks the frame rate so the concat demuxer never sees
// mixed streams.
func normalizeFilter(width, height int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,fps=%d",
		width, height, width, height, outputFPS)
}

// Combine builds one silent, duration-matched video from the given materials.
func (e *Engine) Combine(ctx context.Context, opts task.CombineOptions) error {
	if err := e.checkResources(); err != nil {
		return fmt.Errorf("insufficient system resources: %w", err)
	}
	if len(opts.VideoPaths) == 0 {
		return fmt.Errorf("no materials to combine")
	}

	sources := make([]sourceClip, 0, len(opts.VideoPaths))
	for _, path := range opts.VideoPaths {
		d, err := e.probeDuration(ctx, path)
		if err != nil {
			log.Warnf("skipping unreadable material %s: %v", path, err)
			continue
		}
		sources = append(sources, sourceClip{Path: path, Duration: d})
	}
	if len(sources) == 0 {
		return fmt.Errorf("no readable materials to combine")
	}

	segs := splitSegments(sources, opts.ConcatMode, opts.MaxClipDuration)
	if opts.ConcatMode == task.ConcatRandom {
		e.rng.Shuffle(len(segs), func(i, j int) { segs[i], segs[j] = segs[j], segs[i] })
	}
	timeline := fillTimeline(segs, opts.AudioDuration)
	if len(timeline) == 0 {
		return fmt.Errorf("could not build a timeline from the materials")
	}

	workDir, err := os.MkdirTemp(filepath.Dir(opts.OutputPath), "combine_")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	width, height := opts.Aspect.Resolution()
	filter := normalizeFilter(width, height)

	var listEntries []string
	for i, seg := range timeline {
		segPath := filepath.Join(workDir, fmt.Sprintf("seg-%03d.mp4", i))
		args := []string{
			"-y",
			"-ss", fmt.Sprintf("%.3f", seg.Start),
			"-t", fmt.Sprintf("%.3f", seg.duration()),
			"-i", seg.Path,
			"-vf", filter,
			"-an",
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-pix_fmt", "yuv420p",
			segPath,
		}
		if err := e.runFF(ctx, args...); err != nil {
			return fmt.Errorf("normalize segment %d (%s): %w", i, seg.Path, err)
		}
		listEntries = append(listEntries, fmt.Sprintf("file '%s'", segPath))
	}

	listPath := filepath.Join(workDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(strings.Join(listEntries, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = 2
	}
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-threads", fmt.Sprint(threads),
		"-an",
	}
	args = append(args, e.extraEncodeArgs()...)
	args = append(args, opts.OutputPath)
	if err := e.runFF(ctx, args...); err != nil {
		return fmt.Errorf("concatenate segments: %w", err)
	}

	// Intermediate segments are only removed on success so a failed run can
	// be inspected.
	if err := os.RemoveAll(workDir); err != nil {
		log.Warnf("could not remove work dir %s: %v", workDir, err)
	}
	return nil
}
