package chunk

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/skillsenselab/scribe/internal/correct"
	apperrors "github.com/skillsenselab/scribe/internal/errors"
	"github.com/skillsenselab/scribe/internal/keyterms"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/observability"
	"github.com/skillsenselab/scribe/internal/resilience"
	"github.com/skillsenselab/scribe/internal/transcription"
)

// Result is the transcript of one chunk. Segment times are relative to the
// chunk start; the stitcher shifts them onto the job timeline.
type Result struct {
	Span       Span
	Segments   []transcription.Segment
	Text       string
	Structured bool

	Corrections  int
	KeytermCount int
}

// DispatcherConfig configures chunk execution.
type DispatcherConfig struct {
	// MaxConcurrent bounds chunks in flight: 0 or 1 is strictly sequential,
	// N>1 caps at N, negative means no cap. An uncapped run risks upstream
	// rate-limit rejection.
	MaxConcurrent int
	// Retry governs per-chunk transcribe retries.
	Retry resilience.RetryConfig
}

// Dispatcher executes the per-chunk pipeline (slice extraction, optional
// keyterm extraction, transcription, optional per-chunk correction) for every
// planned span.
type Dispatcher struct {
	provider  transcription.Provider
	slicer    media.Slicer
	extractor *keyterms.Extractor
	corrector *correct.Corrector
	cfg       DispatcherConfig
	log       *logger.Logger
}

// NewDispatcher creates a dispatcher. extractor and corrector may be nil to
// disable those stages.
func NewDispatcher(provider transcription.Provider, slicer media.Slicer,
	extractor *keyterms.Extractor, corrector *correct.Corrector,
	cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		provider:  provider,
		slicer:    slicer,
		extractor: extractor,
		corrector: corrector,
		cfg:       cfg,
		log:       log.WithComponent("dispatcher"),
	}
}

// Run processes every span and returns results ordered by chunk index.
// Completion order is irrelevant: results are addressed by index, never by
// arrival. One chunk's failure does not cancel siblings in flight, but any
// irrecoverable chunk failure fails the whole run: a transcript with a
// silent gap must never be returned as success.
func (d *Dispatcher) Run(ctx context.Context, in *media.Input, job transcription.JobConfig, spans []Span) ([]Result, error) {
	if len(spans) == 0 {
		return nil, apperrors.Validation("no chunks planned")
	}

	results := make([]Result, len(spans))
	errs := make([]error, len(spans))

	bulkhead := resilience.NewBulkhead("chunks", d.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for i, span := range spans {
		wg.Add(1)
		go func(i int, span Span) {
			defer wg.Done()
			defer func() {
				// An adapter panic must not take sibling chunks down with it.
				if r := recover(); r != nil {
					errs[i] = apperrors.Internal(fmt.Sprintf("chunk %d panicked: %v", i, r), nil)
				}
			}()
			if err := bulkhead.Acquire(ctx); err != nil {
				errs[i] = err
				return
			}
			defer bulkhead.Release()
			results[i], errs[i] = d.processChunk(ctx, in, job, span, len(spans))
		}(i, span)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// Partial results are discarded on cancellation; no partial stitch.
		return nil, err
	}

	for i, err := range errs {
		if err != nil {
			d.log.Error("chunk failed", logger.Fields(
				logger.FieldChunk, i,
				logger.FieldError, err.Error(),
			))
			return nil, apperrors.ChunkFailed(i, err)
		}
	}
	return results, nil
}

// processChunk runs slice → keyterms → transcribe → correction for one span.
// The chunk buffer is released exactly once on every exit path.
func (d *Dispatcher) processChunk(ctx context.Context, in *media.Input, job transcription.JobConfig, span Span, total int) (Result, error) {
	ctx, chunkSpan := observability.StartSpan(ctx, fmt.Sprintf("chunk.%d", span.Index),
		attribute.Float64("start_seconds", span.Start),
		attribute.Float64("end_seconds", span.End))
	defer chunkSpan.End()

	buf := in
	owned := false
	if total > 1 {
		sliced, err := d.slicer.Slice(ctx, in, span.Start, span.End)
		if err != nil {
			return Result{}, err
		}
		buf = sliced
		owned = true
	}
	if owned {
		defer buf.Release()
	}

	caps := d.provider.Capabilities()

	var terms []string
	if job.Keyterms && caps.VocabularyHints && d.extractor != nil {
		extracted, err := d.extractor.Extract(ctx, buf, keyterms.Options{Language: job.Language})
		if err != nil {
			// Extraction is an optimization; degrade without hints.
			d.log.Warn("keyterm extraction failed, continuing without hints", logger.Fields(
				logger.FieldChunk, span.Index,
				logger.FieldError, err.Error(),
			))
		} else {
			terms = extracted
		}
	}

	req := transcription.Request{
		Language:      job.Language,
		SpeakerLabels: job.SpeakerLabels && caps.SpeakerLabels,
		Structured:    job.Timestamps && caps.StructuredSegments,
		Keyterms:      terms,
	}

	res, err := resilience.Retry(ctx, d.cfg.Retry, func() (*transcription.Result, error) {
		return d.provider.Transcribe(ctx, buf, req)
	})
	if err != nil {
		observability.RecordError(chunkSpan, err)
		return Result{}, err
	}

	out := Result{
		Span:         span,
		Segments:     res.Segments,
		Text:         res.Text,
		Structured:   len(res.Segments) > 0,
		KeytermCount: len(terms),
	}

	if job.Correction && d.corrector != nil {
		out = d.applyCorrection(ctx, out, job, buf, terms)
	}
	return out, nil
}

// applyCorrection runs the per-chunk correction pass. Failure keeps the
// uncorrected chunk and is never surfaced as a chunk error.
func (d *Dispatcher) applyCorrection(ctx context.Context, res Result, job transcription.JobConfig, buf *media.Input, terms []string) Result {
	opts := correct.Options{
		Language:           job.Language,
		PreserveTimestamps: true,
		PreserveSpeakers:   true,
		Keyterms:           terms,
	}
	if job.Verification {
		opts.Audio = buf
	}

	if res.Structured {
		corrected, count, err := d.corrector.CorrectSegments(ctx, res.Segments, opts)
		if err != nil {
			d.log.Warn("chunk correction failed, keeping uncorrected transcript", logger.Fields(
				logger.FieldChunk, res.Span.Index,
				logger.FieldError, err.Error(),
			))
			return res
		}
		res.Segments = corrected
		res.Corrections = count
		return res
	}

	outcome, err := d.corrector.Correct(ctx, res.Text, opts)
	if err != nil {
		d.log.Warn("chunk correction failed, keeping uncorrected transcript", logger.Fields(
			logger.FieldChunk, res.Span.Index,
			logger.FieldError, err.Error(),
		))
		return res
	}
	res.Text = outcome.Text
	res.Corrections = outcome.Corrections
	return res
}
