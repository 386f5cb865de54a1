package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a failed call.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindRateLimit  Kind = "rate_limit"
	KindInvalid    Kind = "invalid"
	KindServer     Kind = "server"
)

// Error is a classified failure. StatusCode is zero when no response
// arrived.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Retryable  bool
	Body       []byte
	// Wait is the upstream's Retry-After, zero when it sent none.
	Wait time.Duration
	Err  error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return "httpclient: " + string(e.Kind) + ": " + e.Message
	}
	return fmt.Sprintf("httpclient: %s: HTTP %d", e.Kind, e.StatusCode)
}

func (e *Error) Unwrap() error { return e.Err }

// RetryAfter lets resilience.Retry wait as long as the upstream asked.
func (e *Error) RetryAfter() time.Duration { return e.Wait }

// Detail digs the upstream's own message out of a JSON body, either
// {"error":"..."}, {"error":{"message":"..."}} or {"message":"..."}.
func (e *Error) Detail() string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if len(e.Body) == 0 || json.Unmarshal(e.Body, &body) != nil {
		return e.Message
	}
	var text string
	if json.Unmarshal(body.Error, &text) == nil && text != "" {
		return text
	}
	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
		return nested.Message
	}
	if body.Message != "" {
		return body.Message
	}
	return e.Message
}

func timeoutError(err error) *Error {
	return &Error{Kind: KindTimeout, Message: err.Error(), Retryable: true, Err: err}
}

func connectionError(err error) *Error {
	return &Error{Kind: KindConnection, Message: err.Error(), Retryable: true, Err: err}
}

func invalidError(format string, args ...any) *Error {
	return &Error{Kind: KindInvalid, Message: fmt.Sprintf(format, args...)}
}

// StatusError classifies a non-2xx response and returns nil for 2xx.
// 429 and 5xx are retryable.
func StatusError(status int, header http.Header, body []byte) *Error {
	if status >= 200 && status < 300 {
		return nil
	}
	e := &Error{Kind: KindInvalid, StatusCode: status, Message: http.StatusText(status), Body: body}
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		e.Kind = KindAuth
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusTooManyRequests:
		e.Kind, e.Retryable = KindRateLimit, true
	case status >= 500:
		e.Kind, e.Retryable = KindServer, true
	}
	if e.Retryable {
		e.Wait = retryAfter(header.Get("Retry-After"), time.Now())
	}
	return e
}

// retryAfter reads delay-seconds or an HTTP date.
func retryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// GuardError reports a URL, or a dialled address, refused by the client's
// guard.
type GuardError struct {
	URL string
	Err error
}

func (e *GuardError) Error() string { return "httpclient: url refused: " + e.Err.Error() }

func (e *GuardError) Unwrap() error { return e.Err }

func IsGuarded(err error) bool {
	var g *GuardError
	return errors.As(err, &g)
}

func IsTimeout(err error) bool    { return IsKind(err, KindTimeout) }
func IsConnection(err error) bool { return IsKind(err, KindConnection) }

func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
