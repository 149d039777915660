// Package chunk decides whether a job must be split and executes the
// per-chunk pipeline with bounded concurrency.
package chunk

// Default chunking policy values, in seconds.
const (
	DefaultThresholdSeconds = 1800
	DefaultChunkSeconds     = 1800
	DefaultOverlapSeconds   = 10
)

// Policy holds the chunking decision parameters.
type Policy struct {
	// ThresholdSeconds is the duration above which chunking activates.
	ThresholdSeconds float64 `json:"threshold_seconds" mapstructure:"threshold_seconds"`
	// ChunkSeconds is the nominal window size.
	ChunkSeconds float64 `json:"chunk_seconds" mapstructure:"chunk_seconds"`
	// OverlapSeconds is duplicated audio between consecutive chunks.
	OverlapSeconds float64 `json:"overlap_seconds" mapstructure:"overlap_seconds"`
}

// ApplyDefaults applies default values to the chunking policy.
func (p *Policy) ApplyDefaults() {
	if p.ThresholdSeconds <= 0 {
		p.ThresholdSeconds = DefaultThresholdSeconds
	}
	if p.ChunkSeconds <= 0 {
		p.ChunkSeconds = DefaultChunkSeconds
	}
	if p.OverlapSeconds <= 0 {
		p.OverlapSeconds = DefaultOverlapSeconds
	}
}

// Span is one planned chunk boundary.
type Span struct {
	// Index is the chunk ordinal.
	Index int `json:"index"`
	// Start is the absolute start offset in seconds.
	Start float64 `json:"start"`
	// End is the absolute end offset in seconds.
	End float64 `json:"end"`
	// Overlap is the seconds this span duplicates from the previous chunk.
	// Zero for the first span.
	Overlap float64 `json:"overlap"`
}

// Plan partitions [0, duration) into fixed-size windows with a fixed leading
// overlap. Each span after the first begins Overlap seconds before the
// previous span's nominal end; the final span is clipped to the true end of
// the media, never padded. Plan is pure: identical inputs always yield an
// identical boundary list.
func Plan(duration float64, p Policy) []Span {
	p.ApplyDefaults()

	if duration <= 0 {
		return nil
	}
	if duration <= p.ThresholdSeconds {
		return []Span{{Index: 0, Start: 0, End: duration}}
	}

	var spans []Span
	for base := 0.0; base < duration; base += p.ChunkSeconds {
		start := base
		overlap := 0.0
		if len(spans) > 0 {
			start = base - p.OverlapSeconds
			overlap = p.OverlapSeconds
		}
		end := base + p.ChunkSeconds
		if end > duration {
			end = duration
		}
		spans = append(spans, Span{
			Index:   len(spans),
			Start:   start,
			End:     end,
			Overlap: overlap,
		})
	}
	return spans
}
