package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/flowkit/auth"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/resilience"
)

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(*gin.Context) string

// IPKey limits by client IP.
func IPKey(c *gin.Context) string {
	return c.ClientIP()
}

// CallerKeyFunc limits by authenticated caller, falling back to client IP.
func CallerKeyFunc(c *gin.Context) string {
	if id := Caller(c); id != "" && id != auth.Anonymous {
		return id
	}
	return c.ClientIP()
}

// RateLimit rejects requests whose key has no tokens left with 429 and a
// Retry-After header in whole seconds.
func RateLimit(limiter *resilience.KeyedLimiter, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = IPKey
	}
	return func(c *gin.Context) {
		k := key(c)
		if limiter.Allow(k) {
			c.Next()
			return
		}
		secs := int(math.Ceil(limiter.RetryAfter(k).Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Set("retry_after", strconv.Itoa(secs))
		abort(c, errors.RateLimited().WithDetail("retry_after_seconds", secs))
	}
}
