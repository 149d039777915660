// Package correct revises a transcript in place. Two mutually exclusive
// modes per run: text-only, and audio-grounded where the corrector also
// hears the source audio to verify disputed words. Failure is always
// non-fatal to the job: callers keep the uncorrected transcript.
package correct

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/skillsenselab/scribe/internal/llm"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/transcription"
)

// Options configures a correction run.
type Options struct {
	// Language is the transcript language.
	Language string
	// PreserveTimestamps keeps timestamp markup verbatim.
	PreserveTimestamps bool
	// PreserveSpeakers keeps speaker markup verbatim.
	PreserveSpeakers bool
	// Audio, when set, upgrades the run to audio-grounded verification.
	// Roughly doubles external cost and latency versus text-only.
	Audio *media.Input
	// Keyterms informs the rewrite about known vocabulary.
	Keyterms []string
}

// Outcome is the result of a correction run.
type Outcome struct {
	// Text is the corrected transcript.
	Text string
	// Corrections counts lines that changed.
	Corrections int
	// ProcessingTime is the wall-clock duration of the run.
	ProcessingTime time.Duration
}

// Corrector revises transcripts via an LLM pass.
type Corrector struct {
	client llm.Client
}

// NewCorrector creates a corrector backed by the given LLM client.
func NewCorrector(client llm.Client) *Corrector {
	return &Corrector{client: client}
}

// Correct revises the transcript text. When opts.Audio is set the model also
// receives the source audio and verifies disputed words against it.
func (c *Corrector) Correct(ctx context.Context, text string, opts Options) (*Outcome, error) {
	start := time.Now()

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(opts),
		Messages:     []llm.Message{{Role: "user", Content: text}},
	}
	if opts.Audio != nil {
		req.Audio = &llm.AudioInput{MIME: opts.Audio.MIME, Data: opts.Audio.Data}
	}

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("correction: %w", err)
	}

	corrected := strings.TrimSpace(resp.Content)
	if corrected == "" {
		return nil, fmt.Errorf("correction: empty response")
	}

	return &Outcome{
		Text:           corrected,
		Corrections:    countChangedLines(text, corrected),
		ProcessingTime: time.Since(start),
	}, nil
}

// CorrectSegments corrects segment texts while holding speaker labels and
// timestamps back from the rewrite entirely, so that markup survives
// verbatim. Returns the corrected segments and the correction count. A line
// count mismatch in the model's answer is an error; callers fall back to the
// uncorrected segments.
func (c *Corrector) CorrectSegments(ctx context.Context, segments []transcription.Segment, opts Options) ([]transcription.Segment, int, error) {
	if len(segments) == 0 {
		return segments, 0, nil
	}

	lines := make([]string, len(segments))
	for i, seg := range segments {
		lines[i] = strings.ReplaceAll(strings.TrimSpace(seg.Text), "\n", " ")
	}

	lineOpts := opts
	lineOpts.PreserveTimestamps = false
	lineOpts.PreserveSpeakers = false

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(lineOpts) +
			" The input is one transcript line per row. Answer with exactly the same " +
			"number of lines, in the same order, correcting each line independently.",
		Messages: []llm.Message{{Role: "user", Content: strings.Join(lines, "\n")}},
	}
	if opts.Audio != nil {
		req.Audio = &llm.AudioInput{MIME: opts.Audio.MIME, Data: opts.Audio.Data}
	}

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("correction: %w", err)
	}

	correctedLines := splitNonEmptyLines(resp.Content)
	if len(correctedLines) != len(segments) {
		return nil, 0, fmt.Errorf("correction: line count mismatch (want %d, got %d)",
			len(segments), len(correctedLines))
	}

	out := make([]transcription.Segment, len(segments))
	corrections := 0
	for i, seg := range segments {
		out[i] = seg
		if correctedLines[i] != lines[i] {
			out[i].Text = correctedLines[i]
			corrections++
		}
	}
	return out, corrections, nil
}

func buildSystemPrompt(opts Options) string {
	var b strings.Builder
	b.WriteString("You correct speech-to-text transcripts: fix misrecognized words, " +
		"spacing, and punctuation without paraphrasing or dropping content.")
	if opts.Language != "" {
		fmt.Fprintf(&b, " The transcript language is %q.", opts.Language)
	}
	if opts.Audio != nil {
		b.WriteString(" The source audio is attached; verify disputed words against what is actually said.")
	}
	if opts.PreserveTimestamps {
		b.WriteString(" Keep every timestamp marker exactly as written.")
	}
	if opts.PreserveSpeakers {
		b.WriteString(" Keep every speaker label exactly as written.")
	}
	if len(opts.Keyterms) > 0 {
		fmt.Fprintf(&b, " Known vocabulary likely to appear: %s.", strings.Join(opts.Keyterms, ", "))
	}
	b.WriteString(" Answer with the corrected transcript only.")
	return b.String()
}

func countChangedLines(before, after string) int {
	beforeLines := splitNonEmptyLines(before)
	afterLines := splitNonEmptyLines(after)

	n := len(beforeLines)
	if len(afterLines) < n {
		n = len(afterLines)
	}
	changed := 0
	for i := 0; i < n; i++ {
		if beforeLines[i] != afterLines[i] {
			changed++
		}
	}
	if len(afterLines) != len(beforeLines) {
		changed += diffAbs(len(afterLines), len(beforeLines))
	}
	return changed
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func diffAbs(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
