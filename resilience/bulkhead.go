package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrBulkheadTimeout is returned when no slot frees up within MaxWait.
var ErrBulkheadTimeout = errors.New("bulkhead wait timeout")

// BulkheadConfig bounds concurrent work such as locally executed tasks.
type BulkheadConfig struct {
	Name          string `mapstructure:"name"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`

	// MaxWait caps the wait for a slot. Zero waits as long as ctx allows.
	MaxWait  time.Duration     `mapstructure:"max_wait"`
	OnReject func(name string) `mapstructure:"-"`
}

// Bulkhead admits at most MaxConcurrent calls at a time.
type Bulkhead struct {
	config BulkheadConfig
	sem    *semaphore.Weighted
	inUse  atomic.Int64
}

// NewBulkhead defaults MaxConcurrent to 4.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}
	return &Bulkhead{config: config, sem: semaphore.NewWeighted(int64(config.MaxConcurrent))}
}

// Execute runs fn in a slot, waiting for one if all are taken.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.acquire(ctx); err != nil {
		if b.config.OnReject != nil {
			b.config.OnReject(b.config.Name)
		}
		return err
	}
	defer func() {
		b.inUse.Add(-1)
		b.sem.Release(1)
	}()
	return fn()
}

// ExecuteWithResult is Execute for functions producing a value. The zero
// value is returned when no slot was granted.
func ExecuteWithResult[T any](b *Bulkhead, ctx context.Context, fn func() (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func() (err error) {
		out, err = fn()
		return err
	})
	return out, err
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	if !b.sem.TryAcquire(1) {
		waitCtx := ctx
		if b.config.MaxWait > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, b.config.MaxWait)
			defer cancel()
		}
		if err := b.sem.Acquire(waitCtx, 1); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrBulkheadTimeout
		}
	}
	b.inUse.Add(1)
	return nil
}

// InUse is the number of calls holding a slot.
func (b *Bulkhead) InUse() int { return int(b.inUse.Load()) }

func (b *Bulkhead) MaxConcurrent() int { return b.config.MaxConcurrent }
