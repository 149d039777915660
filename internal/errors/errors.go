package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Common Error Constructors ---

// ServiceUnavailable creates a new AppError for a service that is temporarily unavailable.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// Timeout creates a new AppError for a request that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"field": field},
	}
}

// UnsupportedMime creates a new AppError for a MIME type an engine cannot accept.
func UnsupportedMime(provider, mime string) *AppError {
	return &AppError{
		Code: ErrCodeUnsupportedMime, Message: fmt.Sprintf("Media type %s is not supported by %s.", mime, provider),
		HTTPStatus: http.StatusUnsupportedMediaType, Retryable: false,
		Details: map[string]any{"provider": provider, "mime": mime},
	}
}

// PayloadTooLarge creates a new AppError for media exceeding an engine's size limit.
func PayloadTooLarge(provider string, size, limit int64) *AppError {
	return &AppError{
		Code: ErrCodePayloadTooLarge, Message: fmt.Sprintf("Media payload exceeds the %s size limit.", provider),
		HTTPStatus: http.StatusRequestEntityTooLarge, Retryable: false,
		Details: map[string]any{"provider": provider, "size_bytes": size, "limit_bytes": limit},
	}
}

// ProviderRejected creates a new AppError for a remote engine rejection.
func ProviderRejected(provider, reason string) *AppError {
	return &AppError{
		Code: ErrCodeProviderRejected, Message: fmt.Sprintf("Engine %s rejected the request: %s", provider, reason),
		HTTPStatus: http.StatusBadGateway, Retryable: false,
		Details: map[string]any{"provider": provider},
	}
}

// ChunkFailed creates a new AppError for an unrecoverable per-chunk failure.
func ChunkFailed(index int, cause error) *AppError {
	return &AppError{
		Code: ErrCodeChunkFailed, Message: fmt.Sprintf("Chunk %d failed irrecoverably.", index),
		HTTPStatus: http.StatusBadGateway, Retryable: false,
		Details: map[string]any{"chunk": index},
		Cause:   cause,
	}
}

// CorrelationTimeout creates a new AppError for an expired async-completion wait.
// It is distinct from a provider rejection so callers can tell "engine said no"
// from "engine never answered".
func CorrelationTimeout(key string) *AppError {
	return &AppError{
		Code: ErrCodeCorrelationTimeout, Message: "Timed out waiting for async completion callback.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"correlation_key": key},
	}
}

// ExternalService creates a new AppError for a failed external service call.
func ExternalService(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalService, Message: fmt.Sprintf("Call to %s failed.", service),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"service": service},
		Cause:   cause,
	}
}

// InvalidSignature creates a new AppError for a failed callback signature check.
func InvalidSignature() *AppError {
	return &AppError{
		Code: ErrCodeInvalidSignature, Message: "Callback signature verification failed.",
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// Unauthorized creates a new AppError for unauthorized access.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// Internal creates a new AppError for an unexpected internal failure.
func Internal(message string, cause error) *AppError {
	if message == "" {
		message = "An unexpected error occurred."
	}
	return &AppError{
		Code: ErrCodeInternal, Message: message,
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Cause: cause,
	}
}
