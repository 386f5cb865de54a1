package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Auth decorates outbound headers with credentials.
type Auth func(h http.Header)

// BearerAuth sends "Authorization: Bearer <token>". An empty token sends
// nothing.
func BearerAuth(token string) Auth {
	return func(h http.Header) {
		if token != "" {
			h.Set("Authorization", "Bearer "+token)
		}
	}
}

// HeaderAuth sends a key in a named header, as Gemini's X-Goog-Api-Key.
func HeaderAuth(name, key string) Auth {
	return func(h http.Header) { h.Set(name, key) }
}

// Request is one call. Path is joined to the client's BaseURL unless it
// is an absolute http(s) URL. Body takes an io.Reader, []byte, string,
// url.Values (sent form encoded) or any JSON-encodable value.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Query  map[string]string
	Body   any
}

// Response is a fully read reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RequestOption adjusts a Request built by GetJSON or PostJSON.
type RequestOption func(*Request)

// WithHeader sets one request header.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = http.Header{}
		}
		r.Header.Set(key, value)
	}
}

func WithQuery(key, value string) RequestOption {
	return func(r *Request) {
		if r.Query == nil {
			r.Query = map[string]string{}
		}
		r.Query[key] = value
	}
}

// GetJSON fetches path and decodes the reply into T.
func GetJSON[T any](c *Client, ctx context.Context, path string, opts ...RequestOption) (T, error) {
	return callJSON[T](c, ctx, Request{Method: http.MethodGet, Path: path}, opts)
}

// PostJSON posts body to path and decodes the reply into T.
func PostJSON[T any](c *Client, ctx context.Context, path string, body any, opts ...RequestOption) (T, error) {
	return callJSON[T](c, ctx, Request{Method: http.MethodPost, Path: path, Body: body}, opts)
}

func callJSON[T any](c *Client, ctx context.Context, req Request, opts []RequestOption) (out T, err error) {
	for _, opt := range opts {
		opt(&req)
	}
	resp, err := c.Do(ctx, req)
	if err != nil || len(resp.Body) == 0 {
		return out, err
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, fmt.Errorf("httpclient: decode %s %s: %w", req.Method, req.Path, err)
	}
	return out, nil
}
