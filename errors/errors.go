package errors

import "fmt"

// AppError is the error every layer returns once it knows what went
// wrong. The HTTP layer renders it with ToResponse; anything else becomes
// INTERNAL_ERROR.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// New builds an error with an explicit status. Retryability follows the
// code.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Retryable: IsRetryableCode(code)}
}

// newCode uses the code's catalogue status.
func newCode(code ErrorCode, message string) *AppError {
	return New(code, message, StatusFor(code))
}

func ServiceUnavailable(service string) *AppError {
	return newCode(ErrCodeServiceUnavailable, fmt.Sprintf("%s is temporarily unavailable", service)).WithDetail("service", service)
}

func ConnectionFailed(service string) *AppError {
	return newCode(ErrCodeConnectionFailed, fmt.Sprintf("unable to connect to %s", service)).WithDetail("service", service)
}

func Timeout(operation string) *AppError {
	return newCode(ErrCodeTimeout, fmt.Sprintf("%s took too long", operation)).WithDetail("operation", operation)
}

func RateLimited() *AppError {
	return newCode(ErrCodeRateLimited, "Too many requests, slow down and retry later")
}

// NotFound names the resource; id is added as a detail when known.
func NotFound(resource, id string) *AppError {
	err := newCode(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).WithDetail("resource", resource)
	if id != "" {
		err.WithDetail("id", id)
	}
	return err
}

func Conflict(reason string) *AppError {
	return newCode(ErrCodeConflict, reason)
}

func InvalidInput(field, reason string) *AppError {
	err := newCode(ErrCodeInvalidInput, fmt.Sprintf("invalid input: %s", reason))
	if field != "" {
		err.WithDetail("field", field)
	}
	return err
}

// Validation carries a failed request validation; callers attach the
// per-field list as the "fields" detail.
func Validation(message string) *AppError {
	return newCode(ErrCodeInvalidInput, message)
}

func MissingField(field string) *AppError {
	return newCode(ErrCodeMissingField, fmt.Sprintf("missing required field: %s", field)).WithDetail("field", field)
}

func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "authentication required"
	}
	return newCode(ErrCodeUnauthorized, reason)
}

func Forbidden(reason string) *AppError {
	if reason == "" {
		reason = "not allowed for this caller"
	}
	return newCode(ErrCodeForbidden, reason)
}

func TokenExpired() *AppError {
	return newCode(ErrCodeTokenExpired, "bearer token expired")
}

func InvalidToken() *AppError {
	return newCode(ErrCodeInvalidToken, "bearer token is malformed or badly signed")
}

// Internal hides cause from the response body; it is only logged.
func Internal(cause error) *AppError {
	return newCode(ErrCodeInternal, "internal error").WithCause(cause)
}

func DatabaseError(cause error) *AppError {
	return newCode(ErrCodeDatabaseError, "store operation failed").WithCause(cause)
}

// ExternalServiceError wraps a failing upstream provider such as Gemini or
// Transloadit.
func ExternalServiceError(service string, cause error) *AppError {
	return newCode(ErrCodeExternalService, fmt.Sprintf("%s request failed", service)).
		WithDetail("service", service).
		WithCause(cause)
}
