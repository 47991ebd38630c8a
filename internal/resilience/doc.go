// Package resilience provides the admission and failure gates shared by all
// outbound calls to the accounting service: a token-bucket RateLimiter and a
// failure-counting CircuitBreaker.
//
// Both are safe for concurrent use without a global lock. The limiter keeps
// the client under the remote ceiling proactively rather than reacting to
// 429 responses; the breaker stops calling a service that keeps failing.
package resilience
