package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/skillsenselab/scribe/internal/errors"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  1.0,
		RetryIf:        func(error) bool { return true },
	}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	callCount := 0

	result, err := Retry(context.Background(), fastRetry(3), func() (string, error) {
		callCount++
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("expected 'success', got %s", result)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	callCount := 0

	result, err := Retry(context.Background(), fastRetry(3), func() (string, error) {
		callCount++
		if callCount < 3 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("expected 'success', got %s", result)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetry_ExceedsMaxAttempts(t *testing.T) {
	callCount := 0
	wantErr := errors.New("persistent error")

	_, err := Retry(context.Background(), fastRetry(3), func() (string, error) {
		callCount++
		return "", wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Errorf("expected the last error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	cfg := fastRetry(5)
	cfg.RetryIf = DefaultRetryIf
	callCount := 0

	_, err := Retry(context.Background(), cfg, func() (string, error) {
		callCount++
		return "", apperrors.InvalidInput("field", "bad value")
	})

	if err == nil {
		t.Fatal("expected the error to surface")
	}
	if callCount != 1 {
		t.Errorf("expected no retries for a non-retryable error, got %d calls", callCount)
	}
}

func TestRetry_RetryableAppError(t *testing.T) {
	cfg := fastRetry(3)
	cfg.RetryIf = DefaultRetryIf
	callCount := 0

	_, err := Retry(context.Background(), cfg, func() (string, error) {
		callCount++
		return "", apperrors.ServiceUnavailable("engine")
	})

	if err == nil {
		t.Fatal("expected the error to surface")
	}
	if callCount != 3 {
		t.Errorf("expected all attempts for a retryable error, got %d calls", callCount)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, fastRetry(3), func() (string, error) {
		return "", errors.New("never retried")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"retryable app error", apperrors.Timeout("call"), true},
		{"non-retryable app error", apperrors.MissingField("x"), false},
		{"plain error", errors.New("anything"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryIf(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRetryFunc(t *testing.T) {
	callCount := 0
	err := RetryFunc(context.Background(), fastRetry(2), func() error {
		callCount++
		if callCount == 1 {
			return errors.New("first fails")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if callCount != 2 {
		t.Errorf("expected 2 calls, got %d", callCount)
	}
}

func TestCalculateBackoff_Capped(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  10,
	}

	if got := calculateBackoff(5, cfg); got > 2*time.Second {
		t.Errorf("expected backoff capped at 2s, got %v", got)
	}
}
