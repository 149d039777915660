// Package stitch merges per-chunk transcripts into one ordered timeline,
// resolving the duplication introduced by chunk overlap.
package stitch

import (
	"strings"

	"github.com/skillsenselab/scribe/internal/chunk"
	"github.com/skillsenselab/scribe/internal/transcription"
)

// DefaultTrimRunes is the character window trimmed at a flat-text seam.
const DefaultTrimRunes = 80

// Segments merges structured chunk results into one ordered, non-overlapping
// segment sequence. Chunks are processed in ascending index order; for each
// chunk after the first, segments whose midpoint falls at or before
// chunkStart + overlap/2 are discarded as duplicates of content the previous
// chunk already contributed. At the exact cut the earlier chunk's version
// wins, since earlier chunks carry more leading context. All timestamps are
// shifted by the chunk's start offset onto the single job timeline.
func Segments(results []chunk.Result) []transcription.Segment {
	var out []transcription.Segment

	for _, res := range results {
		cut := res.Span.Start + res.Span.Overlap/2

		for _, seg := range res.Segments {
			abs := transcription.Segment{
				Speaker: seg.Speaker,
				Start:   res.Span.Start + seg.Start,
				End:     res.Span.Start + seg.End,
				Text:    seg.Text,
			}
			if res.Span.Index > 0 && res.Span.Overlap > 0 {
				mid := (abs.Start + abs.End) / 2
				if mid <= cut {
					continue
				}
			}
			out = appendOrdered(out, abs)
		}
	}
	return out
}

// appendOrdered appends seg while enforcing the stitched invariant that no
// two segments overlap: a segment starting before the previous end is
// clamped forward.
func appendOrdered(out []transcription.Segment, seg transcription.Segment) []transcription.Segment {
	if n := len(out); n > 0 && seg.Start < out[n-1].End {
		seg.Start = out[n-1].End
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
	}
	return append(out, seg)
}

// FlatText joins flat (non-timestamped) chunk texts with an overlap-trim
// heuristic: a fixed trailing character window is dropped from each chunk's
// tail and a leading window from the next chunk's head before concatenation.
// Without timestamps there is no exact cut; this is approximate by design
// and trimRunes should roughly cover the text spoken during the overlap.
func FlatText(parts []string, trimRunes int) string {
	if trimRunes <= 0 {
		trimRunes = DefaultTrimRunes
	}

	joined := make([]string, 0, len(parts))
	for i, part := range parts {
		runes := []rune(strings.TrimSpace(part))
		if len(parts) > 1 {
			if i > 0 {
				runes = trimLeading(runes, trimRunes)
			}
			if i < len(parts)-1 {
				runes = trimTrailing(runes, trimRunes)
			}
		}
		if len(runes) > 0 {
			joined = append(joined, string(runes))
		}
	}
	return strings.Join(joined, " ")
}

func trimLeading(runes []rune, n int) []rune {
	if n >= len(runes) {
		return nil
	}
	return runes[n:]
}

func trimTrailing(runes []rune, n int) []rune {
	if n >= len(runes) {
		return nil
	}
	return runes[:len(runes)-n]
}

// Structured reports whether every chunk produced structured segments, in
// which case segment stitching applies; otherwise the run falls back to the
// flat-text heuristic.
func Structured(results []chunk.Result) bool {
	for _, res := range results {
		if !res.Structured {
			return false
		}
	}
	return len(results) > 0
}

// Texts extracts the flat text of each chunk, flattening structured chunks
// so a mixed run can still be stitched textually.
func Texts(results []chunk.Result) []string {
	out := make([]string, len(results))
	for i, res := range results {
		if res.Structured && res.Text == "" {
			out[i] = transcription.FlattenSegments(res.Segments)
		} else {
			out[i] = res.Text
		}
	}
	return out
}
