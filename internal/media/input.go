// Package media holds the immutable media value type handed through the
// pipeline, plus the helpers that materialize, normalize, and slice media.
package media

import (
	"sync"
)

// Input is an immutable media value: a byte buffer plus its MIME type,
// display name, and (when known) duration in seconds. It is created once at
// job start and passed by reference; only chunk carving copies bytes out.
type Input struct {
	Data     []byte
	MIME     string
	Name     string
	Duration float64

	releaseOnce sync.Once
	onRelease   func()
}

// NewInput creates a media input value.
func NewInput(data []byte, mime, name string) *Input {
	return &Input{Data: data, MIME: mime, Name: name}
}

// WithDuration returns the input with a known duration set.
func (in *Input) WithDuration(seconds float64) *Input {
	in.Duration = seconds
	return in
}

// WithReleaseHook registers a hook invoked exactly once when the buffer is
// released. Tests use this to verify the release discipline.
func (in *Input) WithReleaseHook(fn func()) *Input {
	in.onRelease = fn
	return in
}

// Size returns the payload size in bytes.
func (in *Input) Size() int64 {
	return int64(len(in.Data))
}

// Release drops the byte buffer. Safe to call multiple times; only the first
// call has any effect. Every derived buffer in the pipeline must be released
// on every exit path.
func (in *Input) Release() {
	in.releaseOnce.Do(func() {
		in.Data = nil
		if in.onRelease != nil {
			in.onRelease()
		}
	})
}
