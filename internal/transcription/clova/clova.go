// Package clova implements transcription.Provider against a Clova-style
// long-recognition API that completes work via an out-of-band callback. A
// Transcribe call submits the media, receives an external token, and blocks
// on the correlator until the matching callback resolves or the wait window
// expires.
package clova

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/skillsenselab/scribe/internal/correlate"
	apperrors "github.com/skillsenselab/scribe/internal/errors"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/transcription"
)

const (
	// ProviderName is the registered name for the Clova provider.
	ProviderName = "clova"

	defaultTimeout        = 60 * time.Second
	defaultMaxPayloadSize = 1 << 30 // 1 GiB
)

// Correlator is the slice of the async completion correlator the adapter
// needs: register a pending slot, then block until it resolves.
type Correlator interface {
	Register(externalID string) *correlate.Pending
	Await(ctx context.Context, p *correlate.Pending) (correlate.Payload, error)
}

// Config holds configuration for the Clova provider.
type Config struct {
	InvokeURL   string        `json:"invoke_url" mapstructure:"invoke_url"`
	SecretKey   string        `json:"secret_key" mapstructure:"secret_key"`
	CallbackURL string        `json:"callback_url" mapstructure:"callback_url"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

// Provider implements transcription.Provider for the Clova engine.
type Provider struct {
	cfg        Config
	client     *http.Client
	correlator Correlator
}

// NewProvider creates a Clova provider bound to the given correlator.
func NewProvider(cfg Config, correlator Correlator) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Provider{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		correlator: correlator,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// Capabilities returns the static capability descriptor.
func (p *Provider) Capabilities() transcription.Capabilities {
	return transcription.Capabilities{
		MIMETypes: []string{
			"audio/mpeg", "audio/wav", "audio/mp4", "audio/aac", "audio/flac", "audio/ogg",
			"video/mp4", "video/quicktime", "video/x-matroska",
		},
		MaxPayloadBytes:    defaultMaxPayloadSize,
		SpeakerLabels:      true,
		VocabularyHints:    true,
		StructuredSegments: true,
		CallbackCompletion: true,
	}
}

// Validate checks the input against the capability set before any network call.
func (p *Provider) Validate(in *media.Input) error {
	return transcription.ValidateInput(ProviderName, p.Capabilities(), in)
}

// Transcribe submits the media for async recognition and waits for the
// correlated callback.
func (p *Provider) Transcribe(ctx context.Context, in *media.Input, req transcription.Request) (*transcription.Result, error) {
	if err := p.Validate(in); err != nil {
		return nil, err
	}

	start := time.Now()

	token, err := p.submit(ctx, in, req)
	if err != nil {
		return nil, err
	}

	pending := p.correlator.Register(token)
	payload, err := p.correlator.Await(ctx, pending)
	if err != nil {
		return nil, err
	}

	result := &transcription.Result{
		Text:     payload.Text,
		Provider: ProviderName,
		Segments: payload.Segments,
		Metadata: transcription.Metadata{
			WordCount:        transcription.CountWords(payload.Text),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		},
	}
	if result.Text == "" && len(result.Segments) > 0 {
		result.Text = transcription.FlattenSegments(result.Segments)
	}
	return result, nil
}

// submit uploads the media and returns the engine's request token.
func (p *Provider) submit(ctx context.Context, in *media.Input, req transcription.Request) (string, error) {
	params := recognitionParams{
		Language:      languageOrDefault(req.Language),
		Completion:    "async",
		Callback:      p.cfg.CallbackURL,
		WordAlignment: true,
		FullText:      true,
	}
	if req.SpeakerLabels {
		params.Diarization = &diarizationParams{Enable: true}
	}
	for _, term := range req.Keyterms {
		params.Boostings = append(params.Boostings, boosting{Words: term})
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("media", in.Name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(in.Data); err != nil {
		return "", fmt.Errorf("write media data: %w", err)
	}
	if err := writer.WriteField("params", string(paramsJSON)); err != nil {
		return "", fmt.Errorf("write params field: %w", err)
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.InvokeURL+"/recognizer/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("X-CLOVASPEECH-API-KEY", p.cfg.SecretKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", apperrors.ExternalService(ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", apperrors.ProviderRejected(ProviderName,
			fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
	}

	var submitted submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if submitted.Token == "" {
		return "", apperrors.ProviderRejected(ProviderName, "submit response carried no token")
	}
	return submitted.Token, nil
}

func languageOrDefault(lang string) string {
	if lang == "" {
		return "ko-KR"
	}
	return lang
}

// --- internal Clova API types ---

type recognitionParams struct {
	Language      string             `json:"language"`
	Completion    string             `json:"completion"`
	Callback      string             `json:"callback,omitempty"`
	WordAlignment bool               `json:"wordAlignment"`
	FullText      bool               `json:"fullText"`
	Diarization   *diarizationParams `json:"diarization,omitempty"`
	Boostings     []boosting         `json:"boostings,omitempty"`
}

type diarizationParams struct {
	Enable bool `json:"enable"`
}

type boosting struct {
	Words string `json:"words"`
}

type submitResponse struct {
	Token string `json:"token"`
}
