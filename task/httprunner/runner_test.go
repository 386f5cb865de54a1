package httprunner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/task"
)

func newRunner(t *testing.T, url string) *Runner {
	t.Helper()
	r, err := New(Config{BaseURL: url, ServiceToken: "svc-token"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestSubmitAndPoll(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/tasks/crop-image":
			if got := r.Header.Get("Authorization"); got != "Bearer svc-token" {
				t.Errorf("Authorization = %q", got)
			}
			if got := r.Header.Get(CallerHeader); got != "user-7" {
				t.Errorf("caller = %q", got)
			}
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &payload)
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"data":{"runId":"tr_1"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/tasks/runs/tr_1":
			_, _ = w.Write([]byte(`{"data":{"status":"COMPLETED","output":{"outputImageUrl":"https://cdn/x.png"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := newRunner(t, srv.URL)
	sub := r.Submit(context.Background(), task.Request{
		CallerID: "user-7",
		Payload:  task.CropPayload{ImageURL: "https://img/a.png", Width: 50, Height: 50},
	})
	if sub.Err != nil {
		t.Fatalf("Submit: %v", sub.Err)
	}
	if sub.RunID != "tr_1" {
		t.Fatalf("RunID = %q", sub.RunID)
	}
	if payload["imageUrl"] != "https://img/a.png" || payload["width"] != float64(50) {
		t.Errorf("payload = %v", payload)
	}

	res, err := r.Poll(context.Background(), "tr_1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsCompleted() {
		t.Fatalf("status = %s", res.Status)
	}
	var out task.CropResult
	if err := json.Unmarshal(res.Output, &out); err != nil || out.OutputImageURL != "https://cdn/x.png" {
		t.Fatalf("output = %s (%v)", res.Output, err)
	}
}

func TestSubmit_ServerErrorIsUnreachable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sub := newRunner(t, srv.URL).Submit(context.Background(), task.Request{Payload: task.LLMPayload{UserMessage: "x"}})
	if !sub.Unreachable() {
		t.Fatalf("err = %v, want TASK_SUBMISSION_FAILED", sub.Err)
	}
	if calls.Load() < 2 {
		t.Errorf("5xx should be retried, calls = %d", calls.Load())
	}
}

func TestSubmit_ConnectionRefusedIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sub := newRunner(t, url).Submit(context.Background(), task.Request{Payload: task.FramePayload{VideoURL: "https://v/a.mp4"}})
	if !sub.Unreachable() {
		t.Fatalf("err = %v", sub.Err)
	}
	if !apperrors.IsCode(errors.Unwrap(sub.Err), apperrors.ErrCodeConnectionFailed) {
		t.Errorf("cause = %v, want CONNECTION_FAILED", errors.Unwrap(sub.Err))
	}
}

func TestSubmit_ClientErrorsDoNotFallBack(t *testing.T) {
	tests := []struct {
		status int
		code   apperrors.ErrorCode
	}{
		{http.StatusUnauthorized, apperrors.ErrCodeExternalService},
		{http.StatusForbidden, apperrors.ErrCodeExternalService},
		{http.StatusTooManyRequests, apperrors.ErrCodeRateLimited},
		{http.StatusNotFound, apperrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			sub := newRunner(t, srv.URL).Submit(context.Background(), task.Request{Payload: task.LLMPayload{UserMessage: "x"}})
			if sub.Unreachable() {
				t.Fatalf("%d must not trigger the inline fallback: %v", tt.status, sub.Err)
			}
			if !apperrors.IsCode(sub.Err, tt.code) {
				t.Fatalf("err = %v, want %s", sub.Err, tt.code)
			}
		})
	}
}

func TestSubmit_BadRequestKeepsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_INPUT","message":"imageUrl is required"}}`))
	}))
	defer srv.Close()

	sub := newRunner(t, srv.URL).Submit(context.Background(), task.Request{Payload: task.CropPayload{}})
	if sub.Unreachable() {
		t.Fatal("4xx must not trigger the inline fallback")
	}
	appErr, ok := apperrors.AsAppError(sub.Err)
	if !ok || appErr.Code != apperrors.ErrCodeInvalidInput || appErr.Message != "imageUrl is required" {
		t.Fatalf("err = %v", sub.Err)
	}
}

func TestSubmit_MissingRunID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	sub := newRunner(t, srv.URL).Submit(context.Background(), task.Request{Payload: task.LLMPayload{}})
	if !sub.Unreachable() {
		t.Fatalf("err = %v", sub.Err)
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("expected error")
	}
}
