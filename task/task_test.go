package task

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/kbukum/flowkit/errors"
)

// instantClock ticks immediately, forever.
type instantClock struct {
	mu      sync.Mutex
	stopped int
}

func (c *instantClock) NewTicker(time.Duration) Ticker { return &instantTicker{clock: c} }

type instantTicker struct{ clock *instantClock }

var closedTick = func() chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}()

func (t *instantTicker) C() <-chan time.Time { return closedTick }
func (t *instantTicker) Stop() {
	t.clock.mu.Lock()
	t.clock.stopped++
	t.clock.mu.Unlock()
}

// manualClock ticks only when Tick is called.
type manualClock struct{ ch chan time.Time }

func newManualClock() *manualClock { return &manualClock{ch: make(chan time.Time)} }

func (c *manualClock) NewTicker(time.Duration) Ticker { return manualTicker{c.ch} }
func (c *manualClock) Tick()                          { c.ch <- time.Time{} }

type manualTicker struct{ ch chan time.Time }

func (t manualTicker) C() <-chan time.Time { return t.ch }
func (t manualTicker) Stop()               {}

type scriptedRunner struct {
	mu        sync.Mutex
	submitErr error
	polls     []PollResult
	pollErrs  int
	pollCalls int
	submitted []Request
}

func (r *scriptedRunner) Submit(_ context.Context, req Request) SubmitResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, req)
	if r.submitErr != nil {
		return SubmitResult{Err: r.submitErr}
	}
	return SubmitResult{RunID: "run_1"}
}

func (r *scriptedRunner) Poll(context.Context, string) (PollResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pollCalls++
	if r.pollErrs > 0 {
		r.pollErrs--
		return PollResult{}, errors.New("connection reset")
	}
	if len(r.polls) == 0 {
		return PollResult{Status: StatusExecuting}, nil
	}
	res := r.polls[0]
	if len(r.polls) > 1 {
		r.polls = r.polls[1:]
	}
	return res, nil
}

func llmRequest() Request {
	return Request{CallerID: "u1", Payload: LLMPayload{Model: "gemini-1.5-flash", UserMessage: "hi"}}
}

func TestInvoke_PollsUntilCompleted(t *testing.T) {
	runner := &scriptedRunner{polls: []PollResult{
		{Status: StatusQueued},
		{Status: StatusExecuting},
		{Status: StatusCompleted, Output: json.RawMessage(`{"output":"done"}`)},
	}}
	clock := &instantClock{}
	inv := NewInvoker(runner, nil, Config{}, WithClock(clock))

	out, err := inv.Invoke(context.Background(), llmRequest())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(out) != `{"output":"done"}` {
		t.Errorf("output = %s", out)
	}
	if runner.pollCalls != 3 {
		t.Errorf("poll calls = %d, want 3", runner.pollCalls)
	}
	if clock.stopped != 1 {
		t.Errorf("ticker stopped %d times, want 1", clock.stopped)
	}
}

func TestInvoke_FailedTaskReturnsItsError(t *testing.T) {
	runner := &scriptedRunner{polls: []PollResult{{Status: StatusFailed, Error: "quota exceeded"}}}
	inv := NewInvoker(runner, nil, Config{}, WithClock(&instantClock{}))

	_, err := inv.Invoke(context.Background(), llmRequest())
	if err == nil || err.Error() != "quota exceeded" {
		t.Fatalf("err = %v", err)
	}
}

func TestInvoke_CanceledWithoutMessage(t *testing.T) {
	runner := &scriptedRunner{polls: []PollResult{{Status: StatusCanceled}}}
	inv := NewInvoker(runner, nil, Config{}, WithClock(&instantClock{}))

	_, err := inv.Invoke(context.Background(), llmRequest())
	if err == nil || err.Error() != "Task failed" {
		t.Fatalf("err = %v", err)
	}
}

func TestInvoke_TimesOutAtCeiling(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want int
	}{
		{"llm", llmRequest(), 180},
		{"crop", Request{Payload: CropPayload{ImageURL: "https://x/y.png"}}, 120},
		{"frame", Request{Payload: FramePayload{VideoURL: "https://x/y.mp4"}}, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{}
			inv := NewInvoker(runner, nil, Config{}, WithClock(&instantClock{}))

			_, err := inv.Invoke(context.Background(), tt.req)
			if !apperrors.IsCode(err, apperrors.ErrCodeTaskTimeout) {
				t.Fatalf("err = %v, want TASK_TIMEOUT", err)
			}
			if runner.pollCalls != tt.want {
				t.Errorf("poll calls = %d, want %d", runner.pollCalls, tt.want)
			}
		})
	}
}

func TestInvoke_PollErrorsCountAsAttempts(t *testing.T) {
	runner := &scriptedRunner{pollErrs: 2, polls: []PollResult{{Status: StatusCompleted, Output: json.RawMessage(`1`)}}}
	inv := NewInvoker(runner, nil, Config{LLMMaxAttempts: 3}, WithClock(&instantClock{}))

	if _, err := inv.Invoke(context.Background(), llmRequest()); err != nil {
		t.Fatalf("third attempt should succeed: %v", err)
	}

	runner = &scriptedRunner{pollErrs: 5}
	inv = NewInvoker(runner, nil, Config{LLMMaxAttempts: 3}, WithClock(&instantClock{}))
	if _, err := inv.Invoke(context.Background(), llmRequest()); !apperrors.IsCode(err, apperrors.ErrCodeTaskTimeout) {
		t.Fatalf("err = %v, want TASK_TIMEOUT", err)
	}
	if runner.pollCalls != 3 {
		t.Errorf("poll calls = %d", runner.pollCalls)
	}
}

func TestInvoke_FallsBackInlineWhenUnreachable(t *testing.T) {
	runner := &scriptedRunner{submitErr: apperrors.TaskSubmission("llm", errors.New("connection refused"))}
	var inlined Request
	inline := func(_ context.Context, req Request) (json.RawMessage, error) {
		inlined = req
		return json.RawMessage(`{"output":"inline"}`), nil
	}
	inv := NewInvoker(runner, inline, Config{}, WithClock(newManualClock()))

	out, err := inv.Invoke(context.Background(), llmRequest())
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"output":"inline"}` {
		t.Errorf("out = %s", out)
	}
	if inlined.CallerID != "u1" {
		t.Errorf("inline request = %+v", inlined)
	}
	if runner.pollCalls != 0 {
		t.Error("fallback must not poll")
	}
}

func TestInvoke_OtherSubmitErrorsAreReturned(t *testing.T) {
	runner := &scriptedRunner{submitErr: apperrors.Validation("bad payload")}
	called := false
	inline := func(context.Context, Request) (json.RawMessage, error) { called = true; return nil, nil }
	inv := NewInvoker(runner, inline, Config{})

	_, err := inv.Invoke(context.Background(), llmRequest())
	if !apperrors.IsCode(err, apperrors.ErrCodeInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	if called {
		t.Error("validation failures must not fall back inline")
	}
}

func TestInvoke_UnreachableWithoutInline(t *testing.T) {
	inv := NewInvoker(nil, nil, Config{})
	_, err := inv.Invoke(context.Background(), llmRequest())
	if !apperrors.IsCode(err, apperrors.ErrCodeTaskSubmission) {
		t.Fatalf("err = %v", err)
	}
}

func TestInvoke_ContextCancelStopsPolling(t *testing.T) {
	runner := &scriptedRunner{}
	clock := newManualClock()
	inv := NewInvoker(runner, nil, Config{}, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := inv.Invoke(ctx, llmRequest())
		done <- err
	}()
	clock.Tick()
	clock.Tick()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("invoke did not stop after cancel")
	}
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload(KindCropImage, []byte(`{"imageUrl":"https://a/b.png","x":10,"y":5,"width":50,"height":40}`))
	if err != nil {
		t.Fatal(err)
	}
	crop, ok := p.(CropPayload)
	if !ok || crop.Width != 50 || crop.ImageURL != "https://a/b.png" {
		t.Fatalf("payload = %#v", p)
	}
	if _, err := DecodePayload("resize", []byte(`{}`)); err == nil {
		t.Fatal("unknown kind should fail")
	}
	if _, err := DecodePayload(KindLLM, []byte(`{`)); err == nil {
		t.Fatal("bad JSON should fail")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("extract-frame"); err != nil || !k.Media() {
		t.Fatalf("ParseKind = %v, %v", k, err)
	}
	if _, err := ParseKind("llm2"); err == nil {
		t.Fatal("expected error")
	}
}
