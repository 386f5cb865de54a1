package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructors_Table(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		status    int
		retryable bool
	}{
		{"invalid graph", InvalidGraph("cycle"), ErrCodeInvalidGraph, http.StatusBadRequest, false},
		{"validation", Validation("bad"), ErrCodeInvalidInput, http.StatusBadRequest, false},
		{"missing field", MissingField("nodes"), ErrCodeMissingField, http.StatusBadRequest, false},
		{"unauthorized", Unauthorized(""), ErrCodeUnauthorized, http.StatusUnauthorized, false},
		{"forbidden", Forbidden(""), ErrCodeForbidden, http.StatusForbidden, false},
		{"node execution", NodeExecution("n1", fmt.Errorf("boom")), ErrCodeNodeExecution, http.StatusBadGateway, false},
		{"task timeout", TaskTimeout("llm", 180), ErrCodeTaskTimeout, http.StatusGatewayTimeout, false},
		{"task submission", TaskSubmission("llm", fmt.Errorf("refused")), ErrCodeTaskSubmission, http.StatusServiceUnavailable, true},
		{"unsafe url", UnsafeURL("http://127.0.0.1", "private network"), ErrCodeUnsafeURL, http.StatusBadRequest, false},
		{"rate limited", RateLimited(), ErrCodeRateLimited, http.StatusTooManyRequests, true},
		{"not found", NotFound("run", "r1"), ErrCodeNotFound, http.StatusNotFound, false},
		{"database", DatabaseError(fmt.Errorf("locked")), ErrCodeDatabaseError, http.StatusInternalServerError, true},
		{"external", ExternalServiceError("gemini", nil), ErrCodeExternalService, http.StatusBadGateway, true},
		{"internal", Internal(nil), ErrCodeInternal, http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.HTTPStatus != tt.status {
				t.Errorf("status = %d, want %d", tt.err.HTTPStatus, tt.status)
			}
			if tt.err.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", tt.err.Retryable, tt.retryable)
			}
		})
	}
}

func TestNodeExecution_UsesCauseMessage(t *testing.T) {
	err := NodeExecution("C", fmt.Errorf("No credential configured"))
	if err.Message != "No credential configured" {
		t.Fatalf("message = %q", err.Message)
	}
	if err.Details["node_id"] != "C" {
		t.Fatalf("node_id detail = %v", err.Details["node_id"])
	}

	nested := NodeExecution("C", TaskTimeout("llm", 3))
	if nested.Message != "Task timed out" {
		t.Fatalf("nested message = %q", nested.Message)
	}
	if !IsCode(nested, ErrCodeNodeExecution) {
		t.Fatal("outer code should be node execution")
	}
}

func TestWithCause_Unwrap(t *testing.T) {
	root := fmt.Errorf("connection refused")
	err := TaskSubmission("crop-image", root)
	if !stderrors.Is(err, root) {
		t.Fatal("errors.Is should see the cause")
	}
	if err.Error() == "" {
		t.Fatal("Error() should not be empty")
	}
}

func TestWithDetails_Merge(t *testing.T) {
	err := New(ErrCodeConflict, "x", http.StatusConflict).
		WithDetail("a", 1).
		WithDetails(map[string]any{"b": 2})
	if err.Details["a"] != 1 || err.Details["b"] != 2 {
		t.Fatalf("details = %v", err.Details)
	}
}

func TestToResponse(t *testing.T) {
	resp := UnsafeURL("http://localhost", "blocked hostname").ToResponse()
	if resp.Error.Code != ErrCodeUnsafeURL {
		t.Errorf("code = %s", resp.Error.Code)
	}
	if resp.Error.Details["reason"] != "blocked hostname" {
		t.Errorf("details = %v", resp.Error.Details)
	}
}

func TestWrapAndAs(t *testing.T) {
	if Wrap(nil) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}

	orig := NotFound("run", "1")
	if Wrap(fmt.Errorf("outer: %w", orig)) != orig {
		t.Fatal("Wrap should unwrap to the original AppError")
	}

	plain := fmt.Errorf("boom")
	got := Wrap(plain)
	if got.Code != ErrCodeInternal || got.Cause != plain {
		t.Fatalf("plain errors should become internal, got %+v", got)
	}

	if _, ok := AsAppError(plain); ok {
		t.Fatal("plain error is not an AppError")
	}
	if !IsCode(fmt.Errorf("outer: %w", orig), ErrCodeNotFound) {
		t.Fatal("IsCode should see through wrapping")
	}
	if IsCode(plain, ErrCodeInternal) {
		t.Fatal("IsCode on plain error should be false")
	}
}

func TestStatusFor(t *testing.T) {
	if got := StatusFor(ErrCodeUnsafeURL); got != http.StatusBadRequest {
		t.Errorf("unsafe url status = %d", got)
	}
	if got := StatusFor("NOPE"); got != http.StatusInternalServerError {
		t.Errorf("unknown code status = %d", got)
	}
	if IsRetryableCode("NOPE") {
		t.Error("unknown code should not be retryable")
	}
}
