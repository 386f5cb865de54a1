package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kbukum/flowkit/resilience"
)

const maxRedirects = 10

// Client sends requests for the remote task runner, provider calls and
// image downloads. Every URL, redirects included, passes the configured
// guard, and the caller's trace context travels in the request headers.
type Client struct {
	http   *http.Client
	config Config
	cb     *resilience.CircuitBreaker
}

func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.DialControl != nil {
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
			Control: func(network, address string, rc syscall.RawConn) error {
				if err := cfg.DialControl(network, address, rc); err != nil {
					return &GuardError{URL: address, Err: err}
				}
				return nil
			},
		}
		transport.DialContext = dialer.DialContext
	}
	c := &Client{
		http:   &http.Client{Transport: transport, Timeout: cfg.Timeout},
		config: cfg,
	}
	c.http.CheckRedirect = c.checkRedirect
	if cfg.CircuitBreaker != nil {
		c.cb = resilience.NewCircuitBreaker(*cfg.CircuitBreaker)
	}
	return c, nil
}

// Do sends req, retrying per the client's policy. A non-2xx reply is
// returned along with its classified *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.config.Retry == nil {
		return c.attempt(ctx, req)
	}
	return resilience.Retry(ctx, *c.config.Retry, func() (*Response, error) {
		return c.attempt(ctx, req)
	})
}

// Fetch downloads an absolute URL and reports its content type.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: rawURL})
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	if c.cb == nil {
		return c.send(ctx, req)
	}
	var resp *Response
	err := c.cb.Execute(func() (err error) {
		resp, err = c.send(ctx, req)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, connectionError(err)
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	raw, err := c.http.Do(httpReq)
	if err != nil {
		var guardErr *GuardError
		switch {
		case errors.As(err, &guardErr):
			return nil, guardErr
		case ctx.Err() != nil:
			return nil, timeoutError(err)
		default:
			return nil, connectionError(err)
		}
	}
	defer func() { _ = raw.Body.Close() }()

	limit := c.config.MaxResponseBytes
	body, err := io.ReadAll(io.LimitReader(raw.Body, limit+1))
	if err != nil {
		return nil, connectionError(fmt.Errorf("read response body: %w", err))
	}
	if int64(len(body)) > limit {
		return nil, invalidError("response body exceeds %d bytes", limit)
	}

	resp := &Response{StatusCode: raw.StatusCode, Header: raw.Header, Body: body}
	if herr := StatusError(raw.StatusCode, raw.Header, body); herr != nil {
		return resp, herr
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.resolve(req.Path)
	if err := c.guard(target); err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, invalidError("encode body: %v", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, invalidError("create request: %v", err)
	}
	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	h := httpReq.Header
	for k, v := range c.config.Headers {
		h.Set(k, v)
	}
	for k, vs := range req.Header {
		h[http.CanonicalHeaderKey(k)] = vs
	}
	if contentType != "" && h.Get("Content-Type") == "" {
		h.Set("Content-Type", contentType)
	}
	if c.config.Auth != nil {
		c.config.Auth(h)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
	return httpReq, nil
}

func (c *Client) resolve(path string) string {
	if c.config.BaseURL == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) guard(target string) error {
	if c.config.Guard == nil {
		return nil
	}
	if err := c.config.Guard(target); err != nil {
		return &GuardError{URL: target, Err: err}
	}
	return nil
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return c.guard(req.URL.String())
}

func encodeBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case io.Reader:
		return v, "", nil
	case []byte:
		return bytes.NewReader(v), "", nil
	case string:
		return strings.NewReader(v), "text/plain", nil
	case url.Values:
		return strings.NewReader(v.Encode()), "application/x-www-form-urlencoded", nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(data), "application/json", nil
}
