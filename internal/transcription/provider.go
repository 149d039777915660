package transcription

import (
	"context"

	"github.com/skillsenselab/scribe/internal/errors"
	"github.com/skillsenselab/scribe/internal/media"
)

// Capabilities is the static descriptor of what an engine accepts and emits.
// The dispatcher consults it before any network call is issued.
type Capabilities struct {
	// MIMETypes lists accepted media MIME types.
	MIMETypes []string
	// MaxPayloadBytes is the largest accepted payload. 0 means no limit.
	MaxPayloadBytes int64
	// SpeakerLabels reports whether speaker identification is supported.
	SpeakerLabels bool
	// VocabularyHints reports whether keyterm biasing is supported.
	VocabularyHints bool
	// StructuredSegments reports whether time-aligned segment output is supported.
	StructuredSegments bool
	// CallbackCompletion reports whether results arrive via an out-of-band
	// callback rather than the transcribe response itself.
	CallbackCompletion bool
}

// Accepts reports whether the capability set accepts the given MIME type.
func (c Capabilities) Accepts(mime string) bool {
	for _, m := range c.MIMETypes {
		if m == mime {
			return true
		}
	}
	return false
}

// Provider is the interface that transcription engines must implement.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string

	// Capabilities returns the static capability descriptor.
	Capabilities() Capabilities

	// Validate checks the input against the capability set. It must run
	// before any network call so invalid input never costs a remote round trip.
	Validate(in *media.Input) error

	// Transcribe sends media for transcription and returns the result. For a
	// callback-completion engine the call returns only once the matching
	// callback has been correlated, or the wait window expires.
	Transcribe(ctx context.Context, in *media.Input, req Request) (*Result, error)
}

// ValidateInput is the shared capability check used by adapters.
func ValidateInput(name string, caps Capabilities, in *media.Input) error {
	if !caps.Accepts(in.MIME) {
		return errors.UnsupportedMime(name, in.MIME)
	}
	if caps.MaxPayloadBytes > 0 && in.Size() > caps.MaxPayloadBytes {
		return errors.PayloadTooLarge(name, in.Size(), caps.MaxPayloadBytes)
	}
	return nil
}
