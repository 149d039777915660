// Package keyterms derives a bounded vocabulary list from media to bias
// recognition toward proper nouns and domain terms. Extraction is an accuracy
// optimization, never a hard dependency: callers must treat failure as a
// logged degradation and proceed without hints.
package keyterms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/skillsenselab/scribe/internal/llm"
	"github.com/skillsenselab/scribe/internal/media"
)

const (
	// DefaultMaxTerms bounds the vocabulary list size.
	DefaultMaxTerms = 50
	// DefaultMinLength drops terms shorter than this many runes.
	DefaultMinLength = 2
)

// Options configures an extraction run.
type Options struct {
	MaxTerms  int
	MinLength int
	Language  string
}

// Extractor derives keyterms from media using a multimodal LLM pass.
type Extractor struct {
	client llm.Client
}

// NewExtractor creates a keyterm extractor backed by the given LLM client.
func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract returns an ordered, deduplicated vocabulary list for the media.
func (e *Extractor) Extract(ctx context.Context, in *media.Input, opts Options) ([]string, error) {
	if opts.MaxTerms <= 0 {
		opts.MaxTerms = DefaultMaxTerms
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}

	resp, err := e.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: extractionSystemPrompt,
		Messages: []llm.Message{{
			Role:    "user",
			Content: extractionPrompt(opts),
		}},
		Audio:        &llm.AudioInput{MIME: in.MIME, Data: in.Data},
		JSONResponse: true,
	})
	if err != nil {
		return nil, fmt.Errorf("keyterm extraction: %w", err)
	}

	terms, err := parseTerms(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("keyterm extraction: %w", err)
	}

	return Normalize(terms, opts), nil
}

// Normalize deduplicates terms preserving first-seen order, drops terms
// shorter than MinLength, and caps the list at MaxTerms.
func Normalize(terms []string, opts Options) []string {
	if opts.MaxTerms <= 0 {
		opts.MaxTerms = DefaultMaxTerms
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}

	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if len([]rune(term)) < opts.MinLength {
			continue
		}
		key := strings.ToLower(term)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, term)
		if len(out) == opts.MaxTerms {
			break
		}
	}
	return out
}

const extractionSystemPrompt = "You extract recognition-bias vocabulary from audio. " +
	"Return only a JSON array of strings: proper nouns, technical terms, product " +
	"and organization names that a speech recognizer is likely to misspell."

func extractionPrompt(opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "List up to %d keyterms heard in this audio.", opts.MaxTerms)
	if opts.Language != "" {
		fmt.Fprintf(&b, " The audio is in language %q; keep terms in their spoken form.", opts.Language)
	}
	return b.String()
}

// parseTerms accepts either a bare JSON array or line-separated plain text,
// since smaller models occasionally ignore the JSON instruction.
func parseTerms(content string) ([]string, error) {
	content = strings.TrimSpace(content)

	var terms []string
	if err := json.Unmarshal([]byte(content), &terms); err == nil {
		return terms, nil
	}

	// Fallback: one term per line, tolerating list markers.
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line != "" {
			terms = append(terms, line)
		}
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("no terms in response")
	}
	return terms, nil
}
