// Package middleware holds the HTTP middleware stack: handler-level
// recovery, request ids, CORS, body limits and request logging, plus the
// gin route middleware for caller authentication and rate limiting.
package middleware
