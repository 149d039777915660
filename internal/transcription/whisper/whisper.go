// Package whisper implements transcription.Provider as a two-stage pipeline:
// a faster-whisper HTTP sidecar performs speech-to-text, then an LLM refine
// pass cleans up the raw transcript. Refine failure is non-fatal; the raw
// STT text is kept.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/skillsenselab/scribe/internal/errors"
	"github.com/skillsenselab/scribe/internal/llm"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/transcription"
)

const (
	// ProviderName is the registered name for the Whisper provider.
	ProviderName = "whisper"

	defaultWhisperURL     = "http://localhost:8387"
	defaultWhisperModel   = "large-v3"
	defaultWhisperTimeout = 600 * time.Second
	defaultMaxPayloadSize = 500 << 20 // 500 MiB
)

// Config holds configuration for the Whisper transcription provider.
type Config struct {
	URL     string        `json:"url" mapstructure:"url"`
	Model   string        `json:"model" mapstructure:"model"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// Refine enables the second-stage LLM cleanup pass.
	Refine bool `json:"refine" mapstructure:"refine"`
}

// Provider implements transcription.Provider using a faster-whisper HTTP
// sidecar plus an optional LLM refine stage.
type Provider struct {
	cfg     Config
	client  *http.Client
	refiner llm.Client
	log     *logger.Logger
}

// NewProvider creates a Whisper transcription provider. refiner may be nil
// to disable the refine stage.
func NewProvider(cfg Config, refiner llm.Client, log *logger.Logger) *Provider {
	if cfg.URL == "" {
		cfg.URL = defaultWhisperURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultWhisperModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultWhisperTimeout
	}
	return &Provider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		refiner: refiner,
		log:     log.WithComponent("whisper"),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// Capabilities returns the static capability descriptor.
func (p *Provider) Capabilities() transcription.Capabilities {
	return transcription.Capabilities{
		MIMETypes: []string{
			"audio/mpeg", "audio/wav", "audio/mp4", "audio/flac", "audio/ogg",
			"video/mp4", "video/webm",
		},
		MaxPayloadBytes:    defaultMaxPayloadSize,
		VocabularyHints:    true,
		StructuredSegments: true,
	}
}

// Validate checks the input against the capability set before any network call.
func (p *Provider) Validate(in *media.Input) error {
	return transcription.ValidateInput(ProviderName, p.Capabilities(), in)
}

// Transcribe runs STT against the sidecar, then the refine pass.
func (p *Provider) Transcribe(ctx context.Context, in *media.Input, req transcription.Request) (*transcription.Result, error) {
	if err := p.Validate(in); err != nil {
		return nil, err
	}

	start := time.Now()

	raw, err := p.recognize(ctx, in, req)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(raw.Text)
	if p.cfg.Refine && p.refiner != nil && text != "" {
		refined, err := p.refine(ctx, text, req.Language)
		if err != nil {
			// The refine stage is an enhancement; keep the raw STT text.
			p.log.Warn("refine pass failed, keeping raw transcript", logger.Fields(
				logger.FieldError, err.Error()))
		} else {
			text = refined
		}
	}

	segments := make([]transcription.Segment, len(raw.Segments))
	for i, seg := range raw.Segments {
		segments[i] = transcription.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
	}

	result := &transcription.Result{
		Text:     text,
		Provider: ProviderName,
		Metadata: transcription.Metadata{
			WordCount:        transcription.CountWords(text),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}
	if req.Structured {
		result.Segments = segments
	}
	return result, nil
}

// recognize posts the media to the sidecar's /transcribe endpoint.
func (p *Provider) recognize(ctx context.Context, in *media.Input, req transcription.Request) (*whisperResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", in.Name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(in.Data); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}

	_ = writer.WriteField("model", p.cfg.Model)
	if req.Language != "" {
		_ = writer.WriteField("language", req.Language)
	}
	if len(req.Keyterms) > 0 {
		// faster-whisper biases recognition via the initial prompt.
		_ = writer.WriteField("initial_prompt", strings.Join(req.Keyterms, ", "))
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+"/transcribe", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.ExternalService(ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.ProviderRejected(ProviderName,
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}
	return &result, nil
}

// refine asks the LLM to clean up the raw STT text.
func (p *Provider) refine(ctx context.Context, text, language string) (string, error) {
	system := "You clean up raw speech-to-text output: fix casing, punctuation, and " +
		"obvious misrecognitions without paraphrasing. Answer with the cleaned text only."
	if language != "" {
		system += fmt.Sprintf(" The text is in language %q.", language)
	}

	resp, err := p.refiner.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: text}},
	})
	if err != nil {
		return "", err
	}
	refined := strings.TrimSpace(resp.Content)
	if refined == "" {
		return "", fmt.Errorf("refine returned empty text")
	}
	return refined, nil
}

// --- internal Whisper API response types ---

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
}

type whisperSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
