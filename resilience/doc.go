// Package resilience provides the fault-tolerance primitives used around
// task execution and the HTTP surface.
//
//   - Retry: retries failed operations with exponential backoff
//   - CircuitBreaker: fails fast while the task runner is down
//   - Bulkhead: bounds concurrent task executions
//   - RateLimiter: token bucket sized as "N requests per window"
//   - KeyedLimiter: one RateLimiter per key (client IP)
//
// Every primitive that reads time accepts a clock so tests can drive it
// without sleeping.
package resilience
