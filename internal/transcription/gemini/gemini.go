// Package gemini implements transcription.Provider over a multimodal LLM:
// the audio is attached inline and the model is prompted for either flat text
// or structured JSON segments with speaker and timestamp fields.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/skillsenselab/scribe/internal/errors"
	"github.com/skillsenselab/scribe/internal/llm"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/transcription"
)

const (
	// ProviderName is the registered name for the Gemini provider.
	ProviderName = "gemini"

	// Inline audio upload limit.
	defaultMaxPayloadSize = 20 << 20 // 20 MiB
)

// Provider implements transcription.Provider using a multimodal LLM client.
type Provider struct {
	client llm.Client
}

// NewProvider creates a Gemini transcription provider.
func NewProvider(client llm.Client) *Provider {
	return &Provider{client: client}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// Capabilities returns the static capability descriptor.
func (p *Provider) Capabilities() transcription.Capabilities {
	return transcription.Capabilities{
		MIMETypes: []string{
			"audio/mpeg", "audio/wav", "audio/mp4", "audio/aac", "audio/flac", "audio/ogg",
		},
		MaxPayloadBytes:    defaultMaxPayloadSize,
		SpeakerLabels:      true,
		VocabularyHints:    true,
		StructuredSegments: true,
	}
}

// Validate checks the input against the capability set before any network call.
func (p *Provider) Validate(in *media.Input) error {
	return transcription.ValidateInput(ProviderName, p.Capabilities(), in)
}

// Transcribe attaches the audio and prompts for a transcript.
func (p *Provider) Transcribe(ctx context.Context, in *media.Input, req transcription.Request) (*transcription.Result, error) {
	if err := p.Validate(in); err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := p.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(req),
		Messages:     []llm.Message{{Role: "user", Content: "Transcribe this audio."}},
		Audio:        &llm.AudioInput{MIME: in.MIME, Data: in.Data},
		JSONResponse: req.Structured,
	})
	if err != nil {
		return nil, err
	}

	result := &transcription.Result{
		Provider: ProviderName,
		Metadata: transcription.Metadata{
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}

	if req.Structured {
		segments, err := parseSegments(resp.Content)
		if err != nil {
			return nil, apperrors.ProviderRejected(ProviderName,
				fmt.Sprintf("malformed structured output: %v", err))
		}
		result.Segments = segments
		result.Text = transcription.FlattenSegments(segments)
	} else {
		result.Text = strings.TrimSpace(resp.Content)
	}

	result.Metadata.WordCount = transcription.CountWords(result.Text)
	return result, nil
}

func buildSystemPrompt(req transcription.Request) string {
	var b strings.Builder
	b.WriteString("You are a verbatim speech transcriber.")
	if req.Language != "" {
		fmt.Fprintf(&b, " The audio is in language %q.", req.Language)
	}
	if req.Structured {
		b.WriteString(` Answer with a JSON array of segments: [{"speaker": "A", "start": 0.0, "end": 2.5, "text": "..."}]. Times are seconds from the start of the audio.`)
		if !req.SpeakerLabels {
			b.WriteString(" Use an empty speaker field.")
		}
	} else {
		b.WriteString(" Answer with the transcript text only.")
	}
	if len(req.Keyterms) > 0 {
		fmt.Fprintf(&b, " Vocabulary likely to appear: %s.", strings.Join(req.Keyterms, ", "))
	}
	return b.String()
}

// parseSegments decodes the model's JSON answer, tolerating a ```json fence.
func parseSegments(content string) ([]transcription.Segment, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var segments []transcription.Segment
	if err := json.Unmarshal([]byte(content), &segments); err != nil {
		return nil, err
	}
	for i, seg := range segments {
		if seg.End < seg.Start {
			return nil, fmt.Errorf("segment %d has end before start", i)
		}
	}
	return segments, nil
}
