package errors

import "net/http"

// ErrorCode is the machine-readable code clients switch on.
type ErrorCode string

const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"

	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"

	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// ErrCodeInvalidGraph rejects a graph before any run exists.
	ErrCodeInvalidGraph ErrorCode = "INVALID_GRAPH"
	// ErrCodeNodeExecution is a failure captured inside one node.
	ErrCodeNodeExecution ErrorCode = "NODE_EXECUTION_FAILED"
	// ErrCodeTaskTimeout is a poll loop that used up its attempts.
	ErrCodeTaskTimeout    ErrorCode = "TASK_TIMEOUT"
	ErrCodeTaskSubmission ErrorCode = "TASK_SUBMISSION_FAILED"
	ErrCodeUnsafeURL      ErrorCode = "UNSAFE_URL"
)

type codeInfo struct {
	status    int
	retryable bool
}

// catalogue holds the default HTTP status of each code and whether a
// caller may retry it.
var catalogue = map[ErrorCode]codeInfo{
	ErrCodeServiceUnavailable: {http.StatusServiceUnavailable, true},
	ErrCodeConnectionFailed:   {http.StatusServiceUnavailable, true},
	ErrCodeTimeout:            {http.StatusGatewayTimeout, true},
	ErrCodeRateLimited:        {http.StatusTooManyRequests, true},
	ErrCodeNotFound:           {http.StatusNotFound, false},
	ErrCodeConflict:           {http.StatusConflict, false},
	ErrCodeInvalidInput:       {http.StatusBadRequest, false},
	ErrCodeMissingField:       {http.StatusBadRequest, false},
	ErrCodeUnauthorized:       {http.StatusUnauthorized, false},
	ErrCodeForbidden:          {http.StatusForbidden, false},
	ErrCodeTokenExpired:       {http.StatusUnauthorized, false},
	ErrCodeInvalidToken:       {http.StatusUnauthorized, false},
	ErrCodeInternal:           {http.StatusInternalServerError, false},
	ErrCodeDatabaseError:      {http.StatusInternalServerError, true},
	ErrCodeExternalService:    {http.StatusBadGateway, true},
	ErrCodeInvalidGraph:       {http.StatusBadRequest, false},
	ErrCodeNodeExecution:      {http.StatusBadGateway, false},
	ErrCodeTaskTimeout:        {http.StatusGatewayTimeout, false},
	ErrCodeTaskSubmission:     {http.StatusServiceUnavailable, true},
	ErrCodeUnsafeURL:          {http.StatusBadRequest, false},
}

func IsRetryableCode(code ErrorCode) bool {
	return catalogue[code].retryable
}

// StatusFor returns the code's default HTTP status, 500 for unknown codes.
func StatusFor(code ErrorCode) int {
	if info, ok := catalogue[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}
