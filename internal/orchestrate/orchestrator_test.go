package orchestrate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/skillsenselab/scribe/internal/chunk"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/resilience"
	"github.com/skillsenselab/scribe/internal/transcription"
)

type stubProvider struct {
	name string
	err  error
	text string

	mu       sync.Mutex
	inFlight int
	peak     int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Capabilities() transcription.Capabilities {
	return transcription.Capabilities{
		MIMETypes:          []string{"audio/mpeg"},
		StructuredSegments: true,
		SpeakerLabels:      true,
	}
}

func (s *stubProvider) Validate(*media.Input) error { return nil }

func (s *stubProvider) Transcribe(context.Context, *media.Input, transcription.Request) (*transcription.Result, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.err != nil {
		return nil, s.err
	}
	return &transcription.Result{Text: s.text, Provider: s.name}, nil
}

func testPipeline(p transcription.Provider) *Pipeline {
	cfg := PipelineConfig{
		Dispatch: chunk.DispatcherConfig{
			MaxConcurrent: 1,
			Retry:         resilience.RetryConfig{MaxAttempts: 1},
		},
	}
	return NewPipeline(p, nil, nil, nil, nil, cfg, logger.NewDefault("test"))
}

func TestOrchestrator_OneFailureDoesNotAbortBatch(t *testing.T) {
	pipelines := []*Pipeline{
		testPipeline(&stubProvider{name: "first", text: "alpha"}),
		testPipeline(&stubProvider{name: "second", err: errors.New("engine down")}),
		testPipeline(&stubProvider{name: "third", text: "gamma"}),
	}
	o := NewOrchestrator(pipelines, logger.NewDefault("test"))

	in := media.NewInput([]byte("audio"), "audio/mpeg", "talk.mp3").WithDuration(60)
	batch := o.Run(context.Background(), in, transcription.JobConfig{})

	if len(batch.Results) != 3 {
		t.Fatalf("expected 3 result entries, got %d", len(batch.Results))
	}
	if batch.SuccessCount != 2 {
		t.Errorf("expected 2 successes, got %d", batch.SuccessCount)
	}
	if batch.FailureCount != 1 {
		t.Errorf("expected 1 failure, got %d", batch.FailureCount)
	}

	failed := batch.Results[1]
	if failed.Success {
		t.Error("expected the second engine to be marked failed")
	}
	if failed.Error == "" {
		t.Error("expected the failed entry to carry an error message")
	}
	if failed.EngineLabel != "second" {
		t.Errorf("expected engine label 'second', got %q", failed.EngineLabel)
	}

	for _, entry := range batch.Results {
		if entry.FileName != "talk.mp3" {
			t.Errorf("expected file name on every entry, got %q", entry.FileName)
		}
	}
}

func TestOrchestrator_ResultsInConfiguredOrder(t *testing.T) {
	pipelines := []*Pipeline{
		testPipeline(&stubProvider{name: "clova", text: "a"}),
		testPipeline(&stubProvider{name: "gemini", text: "b"}),
	}
	o := NewOrchestrator(pipelines, logger.NewDefault("test"))

	in := media.NewInput([]byte("audio"), "audio/mpeg", "x.mp3").WithDuration(60)
	batch := o.Run(context.Background(), in, transcription.JobConfig{})

	if batch.Results[0].EngineLabel != "clova" || batch.Results[1].EngineLabel != "gemini" {
		t.Errorf("expected configured engine order, got %q then %q",
			batch.Results[0].EngineLabel, batch.Results[1].EngineLabel)
	}
	if batch.TotalProcessingTimeMs < 0 {
		t.Errorf("expected non-negative total time, got %d", batch.TotalProcessingTimeMs)
	}
}

func TestOrchestrator_Engines(t *testing.T) {
	pipelines := []*Pipeline{
		testPipeline(&stubProvider{name: "clova"}),
		testPipeline(&stubProvider{name: "whisper"}),
	}
	o := NewOrchestrator(pipelines, logger.NewDefault("test"))

	engines := o.Engines()
	if len(engines) != 2 || engines[0] != "clova" || engines[1] != "whisper" {
		t.Errorf("unexpected engine list %v", engines)
	}
}

type panicProvider struct{ stubProvider }

func (p *panicProvider) Transcribe(context.Context, *media.Input, transcription.Request) (*transcription.Result, error) {
	panic("adapter bug")
}

func TestOrchestrator_EnginePanicIsolated(t *testing.T) {
	pipelines := []*Pipeline{
		testPipeline(&panicProvider{stubProvider{name: "broken"}}),
		testPipeline(&stubProvider{name: "healthy", text: "fine"}),
	}
	o := NewOrchestrator(pipelines, logger.NewDefault("test"))

	in := media.NewInput([]byte("audio"), "audio/mpeg", "x.mp3").WithDuration(60)
	batch := o.Run(context.Background(), in, transcription.JobConfig{})

	if batch.FailureCount != 1 || batch.SuccessCount != 1 {
		t.Fatalf("expected 1 failure and 1 success, got %d/%d",
			batch.FailureCount, batch.SuccessCount)
	}
	if batch.Results[0].Error == "" {
		t.Error("expected the panicking engine's entry to carry an error")
	}
}
