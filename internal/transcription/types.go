package transcription

import "strings"

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	// Speaker is the identified speaker label, if available.
	Speaker string `json:"speaker,omitempty"`
	// Start is the segment start time in seconds.
	Start float64 `json:"start"`
	// End is the segment end time in seconds.
	End float64 `json:"end"`
	// Text is the transcribed text for this segment.
	Text string `json:"text"`
}

// JobConfig is the immutable per-job configuration. One instance is shared
// read-only across all chunks of a job.
type JobConfig struct {
	// Language is the expected language of the audio (e.g. "ko", "en").
	Language string `json:"language,omitempty"`
	// SpeakerLabels enables speaker identification where supported.
	SpeakerLabels bool `json:"speaker_labels"`
	// Timestamps requests time-aligned segment output where supported.
	Timestamps bool `json:"timestamps"`
	// Keyterms enables vocabulary-hint extraction before transcription.
	Keyterms bool `json:"keyterms"`
	// Correction enables the text-only correction pass.
	Correction bool `json:"correction"`
	// Verification upgrades correction to the audio-grounded pass. Roughly
	// doubles external API cost and latency; off unless explicitly enabled.
	Verification bool `json:"verification"`
	// DurationOverride is a known duration in seconds, skipping detection.
	DurationOverride float64 `json:"duration_override,omitempty"`
}

// Request holds the parameters for a single Transcribe call.
type Request struct {
	// Language is the expected language of the audio.
	Language string
	// SpeakerLabels requests speaker identification.
	SpeakerLabels bool
	// Structured requests time-aligned segment output.
	Structured bool
	// Keyterms biases recognition toward the given vocabulary. Only adapters
	// whose capabilities include vocabulary hints consume it.
	Keyterms []string
}

// Result is the outcome of one engine run. Immutable once produced.
type Result struct {
	// Text is the full transcription text.
	Text string `json:"text"`
	// Provider identifies the engine that produced the result.
	Provider string `json:"provider"`
	// Segments contains time-aligned transcript segments, when the engine
	// produced structured output.
	Segments []Segment `json:"segments,omitempty"`
	// Metadata carries per-run statistics.
	Metadata Metadata `json:"metadata"`
}

// Metadata carries statistics attached to a Result.
type Metadata struct {
	WordCount        int   `json:"word_count"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
	Truncated        bool  `json:"truncated,omitempty"`
	ChunkCount       int   `json:"chunk_count,omitempty"`
	CorrectionCount  int   `json:"correction_count,omitempty"`
	KeytermCount     int   `json:"keyterm_count,omitempty"`
}

// CountWords returns the whitespace-separated word count of text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// FlattenSegments renders segments as "[speaker] text" lines, the textual
// form used when a caller wants flat output from structured segments.
func FlattenSegments(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		if seg.Speaker != "" {
			b.WriteString("[" + seg.Speaker + "] ")
		}
		b.WriteString(strings.TrimSpace(seg.Text))
	}
	return b.String()
}
