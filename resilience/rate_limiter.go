package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds its limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiterConfig configures a token bucket as "Limit requests per Window".
type RateLimiterConfig struct {
	// Name identifies this limiter in logs.
	Name string `mapstructure:"name"`
	// Limit is the bucket capacity.
	Limit int `mapstructure:"limit"`
	// Window is the time it takes to refill an empty bucket.
	Window time.Duration `mapstructure:"window"`
	// Clock overrides time.Now.
	Clock Clock `mapstructure:"-"`
	// OnLimit is called when a request is rejected.
	OnLimit func(name, key string) `mapstructure:"-"`
}

func (c *RateLimiterConfig) applyDefaults() {
	if c.Limit <= 0 {
		c.Limit = 10
	}
	if c.Window <= 0 {
		c.Window = 10 * time.Second
	}
}

// perSecond is the refill rate in tokens per second.
func (c RateLimiterConfig) perSecond() float64 {
	return float64(c.Limit) / c.Window.Seconds()
}

// RateLimiter is a token bucket. A full bucket admits Limit requests at
// once; tokens then come back continuously over Window.
type RateLimiter struct {
	config RateLimiterConfig

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	config.applyDefaults()
	return &RateLimiter{
		config:     config,
		tokens:     float64(config.Limit),
		lastRefill: config.Clock.now(),
	}
}

// Allow consumes one token if available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(rl.config.Clock.now())
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// RetryAfter is how long until the next token becomes available.
func (rl *RateLimiter) RetryAfter() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(rl.config.Clock.now())
	if rl.tokens >= 1 {
		return 0
	}
	missing := 1 - rl.tokens
	return time.Duration(missing / rl.config.perSecond() * float64(time.Second))
}

// Tokens returns the number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill(rl.config.Clock.now())
	return rl.tokens
}

// Limit returns the bucket capacity.
func (rl *RateLimiter) Limit() int { return rl.config.Limit }

// Window returns the refill window.
func (rl *RateLimiter) Window() time.Duration { return rl.config.Window }

func (rl *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rl.lastRefill = now
	rl.tokens += elapsed * rl.config.perSecond()
	if capacity := float64(rl.config.Limit); rl.tokens > capacity {
		rl.tokens = capacity
	}
}

// full reports whether the bucket has refilled completely.
func (rl *RateLimiter) full(now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill(now)
	return rl.tokens >= float64(rl.config.Limit)
}

// KeyedLimiter keeps one bucket per key. Buckets that have refilled
// completely are dropped on the next sweep, so idle keys cost nothing.
type KeyedLimiter struct {
	config RateLimiterConfig

	mu        sync.Mutex
	buckets   map[string]*RateLimiter
	lastSweep time.Time
}

// NewKeyedLimiter creates an empty keyed limiter.
func NewKeyedLimiter(config RateLimiterConfig) *KeyedLimiter {
	config.applyDefaults()
	return &KeyedLimiter{
		config:    config,
		buckets:   make(map[string]*RateLimiter),
		lastSweep: config.Clock.now(),
	}
}

// Allow consumes a token from key's bucket.
func (k *KeyedLimiter) Allow(key string) bool {
	ok := k.bucket(key).Allow()
	if !ok && k.config.OnLimit != nil {
		k.config.OnLimit(k.config.Name, key)
	}
	return ok
}

// RetryAfter reports the wait before key may try again.
func (k *KeyedLimiter) RetryAfter(key string) time.Duration {
	return k.bucket(key).RetryAfter()
}

// Len returns the number of tracked keys.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// Config returns the limiter's configuration.
func (k *KeyedLimiter) Config() RateLimiterConfig { return k.config }

func (k *KeyedLimiter) bucket(key string) *RateLimiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.config.Clock.now()
	if now.Sub(k.lastSweep) >= k.config.Window {
		for name, b := range k.buckets {
			if b.full(now) {
				delete(k.buckets, name)
			}
		}
		k.lastSweep = now
	}

	b, ok := k.buckets[key]
	if !ok {
		b = NewRateLimiter(k.config)
		k.buckets[key] = b
	}
	return b
}
