// Package subtitle reads and writes SRT files and builds them from speech
// timing metadata.
package subtitle

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"clipforge/logging"
)

var log = logging.GetLogger()

// Cue is one SRT entry. Start and End are seconds from the beginning of the
// audio track.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

var timecodeRe = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})$`)

// ParseFile reads an SRT file into cues. Blocks with malformed timecodes are
// skipped rather than failing the whole file.
func ParseFile(path string) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data)), nil
}

func Parse(content string) []Cue {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(content), "\n\n")

	var cues []Cue
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}

		// Index line is optional in the wild.
		i := 0
		if _, err := strconv.Atoi(strings.TrimSpace(lines[i])); err == nil {
			i++
		}
		if i >= len(lines) {
			continue
		}

		parts := strings.Split(lines[i], "-->")
		if len(parts) != 2 {
			continue
		}
		start, err1 := parseTimecode(strings.TrimSpace(parts[0]))
		end, err2 := parseTimecode(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			continue
		}

		text := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		if text == "" {
			continue
		}

		cues = append(cues, Cue{Index: len(cues) + 1, Start: start, End: end, Text: text})
	}
	return cues
}

// WriteFile renders cues as SRT.
func WriteFile(path string, cues []Cue) error {
	var sb strings.Builder
	for i, c := range cues {
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString("\n")
		sb.WriteString(formatTimecode(c.Start))
		sb.WriteString(" --> ")
		sb.WriteString(formatTimecode(c.End))
		sb.WriteString("\n")
		sb.WriteString(c.Text)
		sb.WriteString("\n\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

func parseTimecode(s string) (float64, error) {
	m := timecodeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("bad timecode: %q", s)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	ms, _ := strconv.Atoi(m[4])
	return float64(h*3600+min*60+sec) + float64(ms)/1000.0, nil
}

func formatTimecode(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(seconds*1000 + 0.5)
	h := ms / 3600000
	ms -= h * 3600000
	min := ms / 60000
	ms -= min * 60000
	sec := ms / 1000
	ms -= sec * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, min, sec, ms)
}

// sentenceSplitRe covers ASCII and CJK sentence punctuation.
var sentenceSplitRe = regexp.MustCompile(`[.。!！?？;；:：,，\n]+`)

// SplitSentences breaks a script into the sentences subtitles are grouped by.
func SplitSentences(script string) []string {
	var out []string
	for _, s := range sentenceSplitRe.Split(script, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

var normalizeRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// NormalizeText strips punctuation and case so spoken fragments can be
// matched against script sentences.
func NormalizeText(s string) string {
	return strings.ToLower(normalizeRe.ReplaceAllString(s, ""))
}
