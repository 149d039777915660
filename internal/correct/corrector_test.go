package correct

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skillsenselab/scribe/internal/llm"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/transcription"
)

type fakeLLM struct {
	lastReq llm.CompletionRequest
	answer  string
	err     error
}

func (f *fakeLLM) Name() string { return "fake-llm" }

func (f *fakeLLM) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.answer}, nil
}

func TestCorrect_ReturnsCorrectedText(t *testing.T) {
	client := &fakeLLM{answer: "fixed line one\nline two"}
	c := NewCorrector(client)

	outcome, err := c.Correct(context.Background(), "broken line one\nline two", Options{Language: "ko"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if outcome.Text != "fixed line one\nline two" {
		t.Errorf("unexpected corrected text %q", outcome.Text)
	}
	if outcome.Corrections != 1 {
		t.Errorf("expected 1 changed line, got %d", outcome.Corrections)
	}
	if !strings.Contains(client.lastReq.SystemPrompt, `"ko"`) {
		t.Errorf("expected language in system prompt, got %q", client.lastReq.SystemPrompt)
	}
}

func TestCorrect_AudioAttachedForVerification(t *testing.T) {
	client := &fakeLLM{answer: "checked"}
	c := NewCorrector(client)

	audio := media.NewInput([]byte("pcm"), "audio/wav", "a.wav")
	if _, err := c.Correct(context.Background(), "raw", Options{Audio: audio}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client.lastReq.Audio == nil {
		t.Fatal("expected audio attached to the request")
	}
	if client.lastReq.Audio.MIME != "audio/wav" {
		t.Errorf("expected audio MIME forwarded, got %q", client.lastReq.Audio.MIME)
	}
	if !strings.Contains(client.lastReq.SystemPrompt, "audio is attached") {
		t.Errorf("expected audio instructions in prompt, got %q", client.lastReq.SystemPrompt)
	}
}

func TestCorrect_EmptyResponse(t *testing.T) {
	c := NewCorrector(&fakeLLM{answer: "   "})

	if _, err := c.Correct(context.Background(), "text", Options{}); err == nil {
		t.Error("expected an error for an empty model response")
	}
}

func TestCorrectSegments_PreservesMarkup(t *testing.T) {
	client := &fakeLLM{answer: "hello there\nsecond line"}
	c := NewCorrector(client)

	segments := []transcription.Segment{
		{Speaker: "A", Start: 0, End: 2, Text: "helo there"},
		{Speaker: "B", Start: 2, End: 4, Text: "second line"},
	}

	out, corrections, err := c.CorrectSegments(context.Background(), segments, Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if corrections != 1 {
		t.Errorf("expected 1 correction, got %d", corrections)
	}
	if out[0].Text != "hello there" {
		t.Errorf("expected corrected text, got %q", out[0].Text)
	}
	// Speaker and timestamps never pass through the model.
	if out[0].Speaker != "A" || out[0].Start != 0 || out[0].End != 2 {
		t.Errorf("markup not preserved: %+v", out[0])
	}
	if out[1].Text != "second line" {
		t.Errorf("unchanged line altered: %q", out[1].Text)
	}
}

func TestCorrectSegments_LineCountMismatch(t *testing.T) {
	client := &fakeLLM{answer: "only one line back"}
	c := NewCorrector(client)

	segments := []transcription.Segment{
		{Text: "one"},
		{Text: "two"},
	}

	if _, _, err := c.CorrectSegments(context.Background(), segments, Options{}); err == nil {
		t.Error("expected a line count mismatch error")
	}
}

func TestCorrectSegments_Empty(t *testing.T) {
	c := NewCorrector(&fakeLLM{})

	out, corrections, err := c.CorrectSegments(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != nil || corrections != 0 {
		t.Errorf("expected no-op for empty segments, got %v / %d", out, corrections)
	}
}

func TestCorrectSegments_ClientError(t *testing.T) {
	c := NewCorrector(&fakeLLM{err: errors.New("model down")})

	_, _, err := c.CorrectSegments(context.Background(), []transcription.Segment{{Text: "x"}}, Options{})
	if err == nil {
		t.Error("expected the client error to surface")
	}
}
