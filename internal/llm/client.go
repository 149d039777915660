// Package llm provides a minimal completion client used by the keyterm
// extractor, the correction stage, and the whisper refine pass.
package llm

import "context"

// Client is the interface that LLM backends must implement.
type Client interface {
	// Name returns the client's unique name.
	Name() string

	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
