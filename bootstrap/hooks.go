package bootstrap

import (
	"context"
	"fmt"
)

// Hook is a lifecycle callback.
type Hook func(ctx context.Context) error

type hooks struct {
	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// OnStart registers hooks that run after components start and before the
// configure phase.
func (h *hooks) OnStart(fns ...Hook) { h.onStart = append(h.onStart, fns...) }

// OnReady registers hooks that run after the ready check.
func (h *hooks) OnReady(fns ...Hook) { h.onReady = append(h.onReady, fns...) }

// OnStop registers hooks that run before components stop, e.g. to drain
// in-flight runs.
func (h *hooks) OnStop(fns ...Hook) { h.onStop = append(h.onStop, fns...) }

func runHooks(ctx context.Context, hooks []Hook) error {
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("hook %d failed: %w", i, err)
		}
	}
	return nil
}
