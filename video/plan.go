package video

import "clipforge/task"

// sourceClip is one downloaded or local asset with its probed duration.
type sourceClip struct {
	Path     string
	Duration float64
}

// segment is a window into a source clip, in seconds.
type segment struct {
	Path  string
	Start float64
	End   float64
}

func (s segment) duration() float64 {
	return s.End - s.Start
}

// splitSegments carves each source into consecutive windows of at most
// maxClip seconds. Sequential mode keeps only the first window per source so
// the output follows the material order; random mode keeps them all and the
// caller shuffles.
func splitSegments(sources []sourceClip, mode task.ConcatMode, maxClip int) []segment {
	max := float64(maxClip)
	var segs []segment
	for _, src := range sources {
		if src.Duration <= 0 {
			continue
		}
		for start := 0.0; start < src.Duration; start += max {
			end := start + max
			if end > src.Duration {
				end = src.Duration
			}
			segs = append(segs, segment{Path: src.Path, Start: start, End: end})
			if mode == task.ConcatSequential {
				break
			}
		}
	}
	return segs
}

// fillTimeline cycles over segs until the accumulated duration covers
// audioDuration, truncating the last pick to the exact remainder. At least
// one segment is always placed so the result is never an empty video.
func fillTimeline(segs []segment, audioDuration float64) []segment {
	if len(segs) == 0 {
		return nil
	}

	var timeline []segment
	total := 0.0
	for i := 0; ; i = (i + 1) % len(segs) {
		if total >= audioDuration && len(timeline) > 0 {
			break
		}
		seg := segs[i]
		if remaining := audioDuration - total; remaining > 0 && seg.duration() > remaining {
			seg.End = seg.Start + remaining
		}
		timeline = append(timeline, seg)
		total += seg.duration()
	}
	return timeline
}
