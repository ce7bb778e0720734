package video

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"clipforge/task"
)

const (
	minMaterialSize = 480
	// Zoom gain per second for still-image clips.
	zoomPerSecond = 0.03
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}

func meetsSizeFloor(width, height int) bool {
	return width >= minMaterialSize && height >= minMaterialSize
}

func isImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// PreprocessMaterials validates local materials and converts still images
// into short zooming clips. The returned slice holds only the materials that
// survived validation; image entries come back with their URL pointing at
// the generated clip.
func (e *Engine) PreprocessMaterials(ctx context.Context, materials []task.MaterialInfo, clipDuration int) ([]task.MaterialInfo, error) {
	var out []task.MaterialInfo
	for _, m := range materials {
		w, h, err := e.probeDimensions(ctx, m.URL)
		if err != nil {
			log.Warnf("skipping unreadable material %s: %v", m.URL, err)
			continue
		}
		if !meetsSizeFloor(w, h) {
			log.Warnf("skipping low resolution material %s: %dx%d", m.URL, w, h)
			continue
		}

		if isImage(m.URL) {
			clipPath := m.URL + ".mp4"
			if err := e.imageToClip(ctx, m.URL, clipPath, clipDuration, w, h); err != nil {
				log.Warnf("skipping image material %s: %v", m.URL, err)
				continue
			}
			m.URL = clipPath
			m.Duration = float64(clipDuration)
		}
		out = append(out, m)
	}
	return out, nil
}

// imageToClip renders a still image as a clip with a slow zoom-in, starting
// at scale 1.0 and gaining zoomPerSecond over the clip.
func (e *Engine) imageToClip(ctx context.Context, imagePath, outPath string, clipDuration, width, height int) error {
	frames := clipDuration * outputFPS
	maxZoom := 1.0 + zoomPerSecond*float64(clipDuration)
	zoomStep := zoomPerSecond / float64(outputFPS)

	// Even dimensions, libx264 rejects odd sizes.
	width -= width % 2
	height -= height % 2

	filter := fmt.Sprintf(
		"zoompan=z='min(1+%f*on,%f)':d=%d:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':s=%dx%d:fps=%d",
		zoomStep, maxZoom, frames, width, height, outputFPS)

	return e.runFF(ctx,
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-vf", filter,
		"-t", fmt.Sprint(clipDuration),
		"-frames:v", fmt.Sprint(frames),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-an",
		outPath,
	)
}
