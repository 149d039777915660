package gemini

import (
	"context"
	"strings"
	"testing"

	apperrors "github.com/skillsenselab/scribe/internal/errors"
	"github.com/skillsenselab/scribe/internal/llm"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/transcription"
)

type fakeLLM struct {
	lastReq llm.CompletionRequest
	answer  string
}

func (f *fakeLLM) Name() string { return "fake-llm" }

func (f *fakeLLM) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.lastReq = req
	return &llm.CompletionResponse{Content: f.answer}, nil
}

func TestTranscribe_FlatText(t *testing.T) {
	client := &fakeLLM{answer: " the transcript \n"}
	p := NewProvider(client)

	in := media.NewInput([]byte("audio"), "audio/mpeg", "a.mp3")
	result, err := p.Transcribe(context.Background(), in, transcription.Request{Language: "en"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Text != "the transcript" {
		t.Errorf("expected trimmed text, got %q", result.Text)
	}
	if client.lastReq.Audio == nil || client.lastReq.Audio.MIME != "audio/mpeg" {
		t.Error("expected the audio attached inline")
	}
	if client.lastReq.JSONResponse {
		t.Error("flat requests must not ask for JSON")
	}
	if !strings.Contains(client.lastReq.SystemPrompt, `"en"`) {
		t.Errorf("expected language in prompt, got %q", client.lastReq.SystemPrompt)
	}
}

func TestTranscribe_StructuredSegments(t *testing.T) {
	client := &fakeLLM{answer: "```json\n[{\"speaker\":\"A\",\"start\":0,\"end\":2.5,\"text\":\"hi\"}]\n```"}
	p := NewProvider(client)

	in := media.NewInput([]byte("audio"), "audio/wav", "a.wav")
	result, err := p.Transcribe(context.Background(), in, transcription.Request{Structured: true, SpeakerLabels: true})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(result.Segments))
	}
	seg := result.Segments[0]
	if seg.Speaker != "A" || seg.End != 2.5 || seg.Text != "hi" {
		t.Errorf("unexpected segment %+v", seg)
	}
	if result.Text != "[A] hi" {
		t.Errorf("expected flattened text, got %q", result.Text)
	}
	if !client.lastReq.JSONResponse {
		t.Error("structured requests must ask for JSON")
	}
}

func TestTranscribe_MalformedStructuredOutput(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{"not json", "sorry, I cannot do that"},
		{"end before start", `[{"start": 5, "end": 2, "text": "x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvider(&fakeLLM{answer: tt.answer})
			in := media.NewInput([]byte("audio"), "audio/mpeg", "a.mp3")

			_, err := p.Transcribe(context.Background(), in, transcription.Request{Structured: true})
			appErr, ok := apperrors.AsAppError(err)
			if !ok {
				t.Fatalf("expected an AppError, got %v", err)
			}
			if appErr.Code != apperrors.ErrCodeProviderRejected {
				t.Errorf("expected code %s, got %s", apperrors.ErrCodeProviderRejected, appErr.Code)
			}
		})
	}
}

func TestTranscribe_InlineSizeLimit(t *testing.T) {
	p := NewProvider(&fakeLLM{answer: "x"})
	in := media.NewInput(make([]byte, defaultMaxPayloadSize+1), "audio/mpeg", "huge.mp3")

	_, err := p.Transcribe(context.Background(), in, transcription.Request{})
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected an AppError, got %v", err)
	}
	if appErr.Code != apperrors.ErrCodePayloadTooLarge {
		t.Errorf("expected code %s, got %s", apperrors.ErrCodePayloadTooLarge, appErr.Code)
	}
}

func TestTranscribe_VideoRejected(t *testing.T) {
	p := NewProvider(&fakeLLM{answer: "x"})
	in := media.NewInput([]byte("video"), "video/mp4", "clip.mp4")

	if _, err := p.Transcribe(context.Background(), in, transcription.Request{}); err == nil {
		t.Error("expected audio-only capability to reject video")
	}
}
