package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	apperrors "github.com/skillsenselab/scribe/internal/errors"
)

const defaultFetchTimeout = 5 * time.Minute

// Fetcher materializes a remote media reference into an Input.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a fetcher with a payload size cap.
func NewFetcher(maxBytes int64) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: defaultFetchTimeout},
		maxBytes: maxBytes,
	}
}

// Fetch downloads the media at rawURL into memory. The resulting buffer is a
// temporary derived buffer and must be released by the caller on every exit
// path of the job.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Input, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, apperrors.InvalidInput("url", "must be a valid http(s) URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.ExternalService("media fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.ExternalService("media fetch",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	// Read one byte past the cap so an oversized payload is detectable.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, apperrors.ExternalService("media fetch", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, apperrors.PayloadTooLarge("media fetch", int64(len(data)), f.maxBytes)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		name = "remote-media"
	}

	mime := DetectMIME(resp.Header.Get("Content-Type"), name, data)
	return NewInput(data, mime, name), nil
}
