package video

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// MeasureFunc reports the rendered width and line height of a string, in
// pixels, for one font at one size.
type MeasureFunc func(s string) (width, height float64)

// WrapText breaks text into lines no wider than maxWidth. It wraps at word
// boundaries first; when a single word alone is wider than maxWidth it falls
// back to breaking between characters, always before the character that
// would overflow, so every emitted line fits. It returns the wrapped text
// and its total height.
func WrapText(text string, maxWidth float64, measure MeasureFunc) (string, float64) {
	text = strings.TrimSpace(text)
	if w, h := measure(text); w <= maxWidth {
		return text, h
	}

	lines, ok := wrapWords(text, maxWidth, measure)
	if !ok {
		lines = wrapChars(text, maxWidth, measure)
	}

	var height float64
	for _, line := range lines {
		_, h := measure(line)
		height += h
	}
	return strings.Join(lines, "\n"), height
}

func wrapWords(text string, maxWidth float64, measure MeasureFunc) ([]string, bool) {
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if w, _ := measure(candidate); w <= maxWidth {
			current = candidate
			continue
		}
		if current == "" {
			// The word alone does not fit, word wrapping cannot work.
			return nil, false
		}
		if w, _ := measure(word); w > maxWidth {
			return nil, false
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines, true
}

func wrapChars(text string, maxWidth float64, measure MeasureFunc) []string {
	var lines []string
	current := ""
	for _, r := range strings.ReplaceAll(text, "\n", " ") {
		candidate := current + string(r)
		if w, _ := measure(candidate); w <= maxWidth || current == "" {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = string(r)
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// NewFontMeasurer builds a MeasureFunc from a TrueType/OpenType font file.
func NewFontMeasurer(fontPath string, size float64) (MeasureFunc, error) {
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", fontPath, err)
	}
	ft, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", fontPath, err)
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("build face for %s: %w", fontPath, err)
	}

	metrics := face.Metrics()
	lineHeight := fixedToFloat(metrics.Ascent + metrics.Descent)

	return func(s string) (float64, float64) {
		var widest fixed.Int26_6
		for _, line := range strings.Split(s, "\n") {
			if w := font.MeasureString(face, line); w > widest {
				widest = w
			}
		}
		return fixedToFloat(widest), lineHeight
	}, nil
}

// approxMeasurer estimates text extents from the font size alone. It is the
// fallback when no usable font file is available for real measurement.
func approxMeasurer(fontSize int) MeasureFunc {
	charWidth := float64(fontSize) * 0.6
	lineHeight := float64(fontSize) * 1.2
	return func(s string) (float64, float64) {
		var widest int
		for _, line := range strings.Split(s, "\n") {
			if n := len([]rune(line)); n > widest {
				widest = n
			}
		}
		return float64(widest) * charWidth, lineHeight
	}
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64.0
}
