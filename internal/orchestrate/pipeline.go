// Package orchestrate coordinates the full transcription pipeline: chunk
// planning, dispatch, stitching, and the multi-engine batch run.
package orchestrate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/skillsenselab/scribe/internal/chunk"
	"github.com/skillsenselab/scribe/internal/correct"
	apperrors "github.com/skillsenselab/scribe/internal/errors"
	"github.com/skillsenselab/scribe/internal/keyterms"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/observability"
	"github.com/skillsenselab/scribe/internal/stitch"
	"github.com/skillsenselab/scribe/internal/transcription"
)

// PipelineConfig holds the per-engine pipeline knobs. An immutable snapshot
// is taken per job; pipeline components never read ambient globals.
type PipelineConfig struct {
	Chunking      chunk.Policy
	Dispatch      chunk.DispatcherConfig
	FlatTrimRunes int
}

// Pipeline runs the single-engine flow: validate → plan → dispatch → stitch
// → result assembly.
type Pipeline struct {
	provider  transcription.Provider
	slicer    media.Slicer
	prober    media.Prober
	extractor *keyterms.Extractor
	corrector *correct.Corrector
	cfg       PipelineConfig
	log       *logger.Logger
}

// NewPipeline assembles a pipeline for one provider. prober, extractor, and
// corrector may be nil to disable duration detection, keyterm hints, and
// correction respectively.
func NewPipeline(provider transcription.Provider, slicer media.Slicer, prober media.Prober,
	extractor *keyterms.Extractor, corrector *correct.Corrector,
	cfg PipelineConfig, log *logger.Logger) *Pipeline {
	return &Pipeline{
		provider:  provider,
		slicer:    slicer,
		prober:    prober,
		extractor: extractor,
		corrector: corrector,
		cfg:       cfg,
		log:       log.WithComponent("pipeline"),
	}
}

// Provider returns the engine this pipeline drives.
func (p *Pipeline) Provider() transcription.Provider { return p.provider }

// Run executes the pipeline for one job.
func (p *Pipeline) Run(ctx context.Context, in *media.Input, job transcription.JobConfig) (*transcription.Result, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.run",
		attribute.String("engine", p.provider.Name()))
	defer span.End()

	start := time.Now()

	// Input errors are rejected before any remote call.
	if !p.provider.Capabilities().Accepts(in.MIME) {
		err := apperrors.UnsupportedMime(p.provider.Name(), in.MIME)
		observability.RecordError(span, err)
		return nil, err
	}

	duration := p.resolveDuration(ctx, in, job)
	spans := chunk.Plan(duration, p.cfg.Chunking)
	if len(spans) == 0 {
		// Unknown duration: send the whole media as one chunk.
		spans = []chunk.Span{{Index: 0, Start: 0, End: duration}}
	}

	p.log.Info("job planned", logger.Fields(
		logger.FieldEngine, p.provider.Name(),
		"duration_seconds", duration,
		"chunks", len(spans),
	))

	dispatcher := chunk.NewDispatcher(p.provider, p.slicer, p.optionalExtractor(job),
		p.optionalCorrector(job), p.cfg.Dispatch, p.log)

	results, err := dispatcher.Run(ctx, in, job, spans)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	result := p.assemble(results, job)
	result.Metadata.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// resolveDuration prefers the job override, then the input's known duration,
// then probing. An unknown duration disables chunking rather than failing
// the job.
func (p *Pipeline) resolveDuration(ctx context.Context, in *media.Input, job transcription.JobConfig) float64 {
	if job.DurationOverride > 0 {
		return job.DurationOverride
	}
	if in.Duration > 0 {
		return in.Duration
	}
	if p.prober != nil {
		detected, err := p.prober.Probe(ctx, in)
		if err != nil {
			p.log.Warn("duration probe failed, treating media as a single chunk", logger.Fields(
				logger.FieldError, err.Error()))
			return 0
		}
		return detected
	}
	return 0
}

func (p *Pipeline) optionalExtractor(job transcription.JobConfig) *keyterms.Extractor {
	if !job.Keyterms {
		return nil
	}
	return p.extractor
}

func (p *Pipeline) optionalCorrector(job transcription.JobConfig) *correct.Corrector {
	if !job.Correction {
		return nil
	}
	return p.corrector
}

// assemble stitches chunk results into the final Result.
func (p *Pipeline) assemble(results []chunk.Result, job transcription.JobConfig) *transcription.Result {
	out := &transcription.Result{Provider: p.provider.Name()}
	out.Metadata.ChunkCount = len(results)

	for _, res := range results {
		out.Metadata.CorrectionCount += res.Corrections
		out.Metadata.KeytermCount += res.KeytermCount
	}

	if stitch.Structured(results) {
		out.Segments = stitch.Segments(results)
		out.Text = transcription.FlattenSegments(out.Segments)
	} else {
		out.Text = stitch.FlatText(stitch.Texts(results), p.cfg.FlatTrimRunes)
		// The flat-text seam trim is approximate; flag it.
		out.Metadata.Truncated = len(results) > 1
	}

	out.Metadata.WordCount = transcription.CountWords(out.Text)
	return out
}
