// Package correlate bridges engines that complete work via an out-of-band
// callback to the in-flight request awaiting that result. Each pending job is
// a single-resolution slot guarded by a state machine; the waiting caller
// blocks on one signal rather than polling.
package correlate

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/skillsenselab/scribe/internal/errors"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/observability"
	"github.com/skillsenselab/scribe/internal/transcription"
)

// State is the lifecycle state of a pending job.
type State int

const (
	// StatePending means no callback has arrived yet.
	StatePending State = iota
	// StateCompleted means a matching callback resolved the job.
	StateCompleted
	// StateExpired means the wait window elapsed with no callback.
	StateExpired
)

// Payload is the transcription result delivered by a callback.
type Payload struct {
	Text     string                  `json:"text"`
	Segments []transcription.Segment `json:"segments,omitempty"`
}

// Pending is a single-resolution slot for one async-completion job. At most
// one writer transitions state away from pending.
type Pending struct {
	key     string
	created time.Time

	mu    sync.Mutex
	state State
	ch    chan Payload
}

// Key returns the normalized correlation key.
func (p *Pending) Key() string { return p.key }

// State returns the current lifecycle state.
func (p *Pending) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// DefaultWaitWindow bounds how long a caller waits for a callback.
const DefaultWaitWindow = 10 * time.Minute

// Registry correlates callbacks to pending jobs by normalized external
// request id.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*Pending
	window  time.Duration
	log     *logger.Logger
}

// NewRegistry creates a correlator registry. window bounds every Await call;
// zero means DefaultWaitWindow.
func NewRegistry(window time.Duration, log *logger.Logger) *Registry {
	if window <= 0 {
		window = DefaultWaitWindow
	}
	return &Registry{
		pending: make(map[string]*Pending),
		window:  window,
		log:     log.WithComponent("correlator"),
	}
}

// normalizeKey lowercases the external id because the callback transport may
// alter identifier casing.
func normalizeKey(externalID string) string {
	return strings.ToLower(strings.TrimSpace(externalID))
}

// Register creates a pending slot for the external request id. An existing
// pending slot under the same key is replaced; its waiter, if any, would
// already have timed out or been cancelled.
func (r *Registry) Register(externalID string) *Pending {
	key := normalizeKey(externalID)
	p := &Pending{
		key:     key,
		created: time.Now(),
		state:   StatePending,
		ch:      make(chan Payload, 1),
	}

	r.mu.Lock()
	r.pending[key] = p
	r.mu.Unlock()

	r.log.Debug("pending job registered", logger.Fields(logger.FieldCorrelationID, key))
	return p
}

// Resolve delivers a callback payload to the matching pending job. Exactly
// one callback completes a job; duplicates and callbacks for unknown,
// completed, or expired keys are acknowledged idempotently (the remote engine
// may retry delivery) and reported as false.
func (r *Registry) Resolve(externalID string, payload Payload) bool {
	key := normalizeKey(externalID)

	r.mu.Lock()
	p, ok := r.pending[key]
	r.mu.Unlock()
	if !ok {
		r.log.Debug("callback for unknown correlation key acknowledged", logger.Fields(
			logger.FieldCorrelationID, key))
		return false
	}

	p.mu.Lock()
	if p.state != StatePending {
		p.mu.Unlock()
		r.log.Debug("duplicate callback acknowledged", logger.Fields(
			logger.FieldCorrelationID, key))
		return false
	}
	p.state = StateCompleted
	p.ch <- payload
	p.mu.Unlock()

	r.log.Info("async completion correlated", logger.Fields(logger.FieldCorrelationID, key))
	return true
}

// Await blocks until the pending job is resolved, the wait window elapses, or
// ctx is cancelled. An elapsed window yields a correlation-timeout error,
// distinct from any provider error, and transitions the slot to expired so a
// late callback is discarded rather than delivered.
func (r *Registry) Await(ctx context.Context, p *Pending) (Payload, error) {
	ctx, span := observability.StartSpan(ctx, "correlate.await",
		attribute.String("token", p.key))
	defer span.End()

	timer := time.NewTimer(r.window)
	defer timer.Stop()
	defer r.remove(p.key)

	select {
	case payload := <-p.ch:
		return payload, nil
	case <-timer.C:
		if r.expire(p) {
			err := apperrors.CorrelationTimeout(p.key)
			observability.RecordError(span, err)
			return Payload{}, err
		}
		// Lost the race: a callback resolved the slot as the window closed.
		return <-p.ch, nil
	case <-ctx.Done():
		r.expire(p)
		return Payload{}, ctx.Err()
	}
}

// expire transitions pending → expired. Returns false if the slot was
// already completed, in which case the payload is sitting in the channel.
func (r *Registry) expire(p *Pending) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePending {
		return false
	}
	p.state = StateExpired
	return true
}

func (r *Registry) remove(key string) {
	r.mu.Lock()
	delete(r.pending, key)
	r.mu.Unlock()
}

// PendingCount returns the number of registered pending jobs.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// StartReaper launches a background loop that expires and removes pending
// entries whose wait window elapsed without a waiter cleaning them up (e.g.
// a submit goroutine that died). It stops when ctx is cancelled.
func (r *Registry) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.reap()
			}
		}
	}()
}

func (r *Registry) reap() {
	cutoff := time.Now().Add(-r.window)

	r.mu.Lock()
	var stale []*Pending
	for key, p := range r.pending {
		if p.created.Before(cutoff) {
			stale = append(stale, p)
			delete(r.pending, key)
		}
	}
	r.mu.Unlock()

	for _, p := range stale {
		r.expire(p)
		r.log.Debug("stale pending job reaped", logger.Fields(
			logger.FieldCorrelationID, p.key))
	}
}
