package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_ErrorString(t *testing.T) {
	err := New(ErrCodeTimeout, "request timed out", http.StatusGatewayTimeout)
	if got := err.Error(); got != "TIMEOUT: request timed out" {
		t.Errorf("unexpected error string %q", got)
	}

	withCause := err.WithCause(stderrors.New("dial tcp: timeout"))
	if got := withCause.Error(); got != "TIMEOUT: request timed out (cause: dial tcp: timeout)" {
		t.Errorf("unexpected error string %q", got)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := Internal("wrapped", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := ChunkFailed(2, stderrors.New("boom"))
	wrapped := fmt.Errorf("run failed: %w", appErr)

	got, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AsAppError to find the AppError through wrapping")
	}
	if got.Code != ErrCodeChunkFailed {
		t.Errorf("expected code %s, got %s", ErrCodeChunkFailed, got.Code)
	}

	if _, ok := AsAppError(stderrors.New("plain")); ok {
		t.Error("expected plain errors not to convert")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       ErrorCode
		httpStatus int
		retryable  bool
	}{
		{"service unavailable", ServiceUnavailable("engine"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable, true},
		{"unsupported mime", UnsupportedMime("clova", "text/plain"), ErrCodeUnsupportedMime, http.StatusUnsupportedMediaType, false},
		{"payload too large", PayloadTooLarge("gemini", 100, 50), ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge, false},
		{"correlation timeout", CorrelationTimeout("job-1"), ErrCodeCorrelationTimeout, http.StatusGatewayTimeout, true},
		{"invalid signature", InvalidSignature(), ErrCodeInvalidSignature, http.StatusUnauthorized, false},
		{"external service", ExternalService("normalizer", stderrors.New("down")), ErrCodeExternalService, http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.err.HTTPStatus != tt.httpStatus {
				t.Errorf("expected status %d, got %d", tt.httpStatus, tt.err.HTTPStatus)
			}
			if tt.err.Retryable != tt.retryable {
				t.Errorf("expected retryable %v, got %v", tt.retryable, tt.err.Retryable)
			}
		})
	}
}

func TestToResponse_OmitsInternals(t *testing.T) {
	err := Internal("something broke", stderrors.New("secret detail"))
	resp := err.ToResponse()

	if resp.Error.Code != ErrCodeInternal {
		t.Errorf("expected code %s, got %s", ErrCodeInternal, resp.Error.Code)
	}
	if resp.Error.Message != "something broke" {
		t.Errorf("unexpected message %q", resp.Error.Message)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Timeout("call")) {
		t.Error("expected timeout to be retryable")
	}
	if IsRetryable(MissingField("x")) {
		t.Error("expected missing field not to be retryable")
	}
	if IsRetryable(stderrors.New("plain")) {
		t.Error("expected plain errors not to be retryable")
	}
}
