// Package authctx carries the authenticated caller through a request context.
package authctx

import (
	"context"
	"errors"
)

type callerKey struct{}

// ErrNoCaller is returned when no caller was stored in the context.
var ErrNoCaller = errors.New("authctx: no caller in context")

// WithCaller stores the caller id.
func WithCaller(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerKey{}, callerID)
}

// Caller returns the caller id and whether one was stored.
func Caller(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callerKey{}).(string)
	return id, ok && id != ""
}

// CallerOrError returns the caller id or ErrNoCaller.
func CallerOrError(ctx context.Context) (string, error) {
	id, ok := Caller(ctx)
	if !ok {
		return "", ErrNoCaller
	}
	return id, nil
}
