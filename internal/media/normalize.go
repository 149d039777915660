package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	apperrors "github.com/skillsenselab/scribe/internal/errors"
)

const defaultNormalizerTimeout = 300 * time.Second

// Normalizer prepares raw media for transcription. The resampling and
// loudness work itself is an external black box: bytes + MIME in, bytes +
// MIME out, or an error.
type Normalizer interface {
	Normalize(ctx context.Context, in *Input) (*Input, error)
}

// NopNormalizer passes media through untouched. Used when no normalization
// sidecar is configured.
type NopNormalizer struct{}

// Normalize returns the input unchanged.
func (NopNormalizer) Normalize(_ context.Context, in *Input) (*Input, error) {
	return in, nil
}

// SidecarNormalizerConfig holds configuration for the normalization sidecar.
type SidecarNormalizerConfig struct {
	BaseURL string        `json:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// SidecarNormalizer implements Normalizer against an HTTP sidecar.
type SidecarNormalizer struct {
	cfg    SidecarNormalizerConfig
	client *http.Client
}

// NewSidecarNormalizer creates a normalizer backed by an HTTP sidecar.
func NewSidecarNormalizer(cfg SidecarNormalizerConfig) *SidecarNormalizer {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultNormalizerTimeout
	}
	return &SidecarNormalizer{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Normalize uploads the media and returns the normalized buffer. The caller
// owns both buffers; the original is not released here.
func (n *SidecarNormalizer) Normalize(ctx context.Context, in *Input) (*Input, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("media", in.Name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(in.Data); err != nil {
		return nil, fmt.Errorf("write media data: %w", err)
	}
	_ = writer.WriteField("mime", in.MIME)
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.BaseURL+"/normalize", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, apperrors.ExternalService("normalizer", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperrors.ExternalService("normalizer",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ExternalService("normalizer", err)
	}

	mime := normalizeMIME(resp.Header.Get("Content-Type"))
	if mime == "" {
		mime = in.MIME
	}

	out := NewInput(data, mime, in.Name)
	out.Duration = in.Duration
	return out, nil
}
