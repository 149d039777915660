package orchestrate

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/observability"
	"github.com/skillsenselab/scribe/internal/transcription"
)

// EngineResult is the outcome of one engine's pipeline run.
type EngineResult struct {
	EngineLabel string                  `json:"engineLabel"`
	ProviderID  string                  `json:"providerId"`
	FileName    string                  `json:"fileName"`
	Text        string                  `json:"text"`
	Segments    []transcription.Segment `json:"segments,omitempty"`
	Metadata    transcription.Metadata  `json:"metadata"`
	Success     bool                    `json:"success"`
	Error       string                  `json:"error,omitempty"`
}

// BatchResult aggregates per-engine results for one job.
type BatchResult struct {
	Results               []EngineResult `json:"results"`
	SuccessCount          int            `json:"successCount"`
	FailureCount          int            `json:"failureCount"`
	TotalProcessingTimeMs int64          `json:"totalProcessingTimeMs"`
}

// Orchestrator runs the full single-engine pipeline once per configured
// engine, strictly sequentially, isolating failures per engine. Running
// engines one at a time bounds the total concurrent load on the chunk
// dispatcher and keeps rate limits from compounding across engines.
type Orchestrator struct {
	pipelines []*Pipeline
	log       *logger.Logger
}

// NewOrchestrator creates an orchestrator over the given engine pipelines.
func NewOrchestrator(pipelines []*Pipeline, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		pipelines: pipelines,
		log:       log.WithComponent("orchestrator"),
	}
}

// Engines returns the names of the configured engines.
func (o *Orchestrator) Engines() []string {
	names := make([]string, len(o.pipelines))
	for i, p := range o.pipelines {
		names[i] = p.Provider().Name()
	}
	return names
}

// Run executes every engine's pipeline against the input. One engine's
// failure is recorded as a failed result entry and never aborts the batch;
// the caller always learns which engines succeeded and why the rest failed.
func (o *Orchestrator) Run(ctx context.Context, in *media.Input, job transcription.JobConfig) *BatchResult {
	ctx, span := observability.StartSpan(ctx, "orchestrate.run",
		attribute.Int("engines", len(o.pipelines)))
	defer span.End()

	start := time.Now()
	batch := &BatchResult{Results: make([]EngineResult, 0, len(o.pipelines))}

	for _, pipeline := range o.pipelines {
		entry := o.runEngine(ctx, pipeline, in, job)
		entry.FileName = in.Name
		batch.Results = append(batch.Results, entry)
		if entry.Success {
			batch.SuccessCount++
		} else {
			batch.FailureCount++
		}
	}

	batch.TotalProcessingTimeMs = time.Since(start).Milliseconds()

	o.log.Info("batch finished", logger.Fields(
		"engines", len(o.pipelines),
		"succeeded", batch.SuccessCount,
		"failed", batch.FailureCount,
		logger.FieldDuration, batch.TotalProcessingTimeMs,
	))
	return batch
}

// runEngine isolates one engine's run, converting errors and panics into a
// failed result entry.
func (o *Orchestrator) runEngine(ctx context.Context, pipeline *Pipeline, in *media.Input, job transcription.JobConfig) (entry EngineResult) {
	name := pipeline.Provider().Name()
	entry = EngineResult{EngineLabel: name, ProviderID: name}

	defer func() {
		if r := recover(); r != nil {
			entry.Success = false
			entry.Error = fmt.Sprintf("engine panicked: %v", r)
			o.log.Error("engine panicked", logger.Fields(
				logger.FieldEngine, name,
				logger.FieldError, entry.Error,
			))
		}
	}()

	result, err := pipeline.Run(ctx, in, job)
	if err != nil {
		entry.Error = err.Error()
		o.log.Error("engine failed", logger.Fields(
			logger.FieldEngine, name,
			logger.FieldError, err.Error(),
		))
		return entry
	}

	entry.Success = true
	entry.Text = result.Text
	entry.Segments = result.Segments
	entry.Metadata = result.Metadata
	return entry
}
