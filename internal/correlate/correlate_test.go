package correlate

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/skillsenselab/scribe/internal/errors"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/transcription"
)

func testRegistry(window time.Duration) *Registry {
	return NewRegistry(window, logger.NewDefault("test"))
}

func TestResolve_ReleasesWaiter(t *testing.T) {
	r := testRegistry(time.Second)
	p := r.Register("job-123")

	done := make(chan Payload, 1)
	go func() {
		payload, err := r.Await(context.Background(), p)
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		done <- payload
	}()

	// Give the waiter a moment to block.
	time.Sleep(10 * time.Millisecond)

	if !r.Resolve("job-123", Payload{Text: "done", Segments: []transcription.Segment{{Text: "done", End: 1}}}) {
		t.Fatal("expected resolve to match the pending job")
	}

	select {
	case payload := <-done:
		if payload.Text != "done" {
			t.Errorf("expected payload text 'done', got %q", payload.Text)
		}
		if len(payload.Segments) != 1 {
			t.Errorf("expected 1 segment, got %d", len(payload.Segments))
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not released")
	}
}

func TestResolve_CaseInsensitiveKeys(t *testing.T) {
	r := testRegistry(time.Second)
	p := r.Register("Job-ABC")

	if !r.Resolve("JOB-abc", Payload{Text: "matched"}) {
		t.Fatal("expected case-insensitive key to match")
	}

	payload, err := r.Await(context.Background(), p)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if payload.Text != "matched" {
		t.Errorf("expected 'matched', got %q", payload.Text)
	}
}

func TestResolve_DuplicateAcknowledged(t *testing.T) {
	r := testRegistry(time.Second)
	r.Register("job-1")

	if !r.Resolve("job-1", Payload{Text: "first"}) {
		t.Fatal("expected first callback to resolve")
	}
	if r.Resolve("job-1", Payload{Text: "second"}) {
		t.Error("expected duplicate callback to be reported unmatched")
	}
}

func TestResolve_UnknownKeyAcknowledged(t *testing.T) {
	r := testRegistry(time.Second)

	if r.Resolve("never-registered", Payload{Text: "orphan"}) {
		t.Error("expected unknown key to be reported unmatched")
	}
}

func TestAwait_TimeoutYieldsCorrelationError(t *testing.T) {
	r := testRegistry(20 * time.Millisecond)
	p := r.Register("job-slow")

	_, err := r.Await(context.Background(), p)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected an AppError, got %T", err)
	}
	if appErr.Code != apperrors.ErrCodeCorrelationTimeout {
		t.Errorf("expected code %s, got %s", apperrors.ErrCodeCorrelationTimeout, appErr.Code)
	}
	if p.State() != StateExpired {
		t.Errorf("expected expired state, got %v", p.State())
	}
}

func TestAwait_LateCallbackAfterExpiryDiscarded(t *testing.T) {
	r := testRegistry(10 * time.Millisecond)
	p := r.Register("job-late")

	if _, err := r.Await(context.Background(), p); err == nil {
		t.Fatal("expected timeout")
	}
	if r.Resolve("job-late", Payload{Text: "too late"}) {
		t.Error("expected late callback to be discarded")
	}
}

func TestAwait_ContextCancelled(t *testing.T) {
	r := testRegistry(time.Minute)
	p := r.Register("job-cancel")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Await(ctx, p); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAwait_RemovesPendingEntry(t *testing.T) {
	r := testRegistry(10 * time.Millisecond)
	p := r.Register("job-gone")

	if r.PendingCount() != 1 {
		t.Fatalf("expected 1 pending, got %d", r.PendingCount())
	}
	_, _ = r.Await(context.Background(), p)
	if r.PendingCount() != 0 {
		t.Errorf("expected 0 pending after await, got %d", r.PendingCount())
	}
}

func TestReap_ExpiresStaleEntries(t *testing.T) {
	r := testRegistry(10 * time.Millisecond)
	p := r.Register("job-stale")

	time.Sleep(20 * time.Millisecond)
	r.reap()

	if r.PendingCount() != 0 {
		t.Errorf("expected stale entry removed, got %d pending", r.PendingCount())
	}
	if p.State() != StateExpired {
		t.Errorf("expected expired state, got %v", p.State())
	}
}

func TestRegister_ReplacesExistingKey(t *testing.T) {
	r := testRegistry(time.Second)
	r.Register("job-dup")
	p2 := r.Register("job-dup")

	if r.PendingCount() != 1 {
		t.Fatalf("expected 1 pending entry, got %d", r.PendingCount())
	}
	if !r.Resolve("job-dup", Payload{Text: "for the new slot"}) {
		t.Fatal("expected resolve to hit the replacement slot")
	}
	if p2.State() != StateCompleted {
		t.Errorf("expected replacement slot completed, got %v", p2.State())
	}
}
