package ratelimit

import "context"

// RateLimiter throttles sign-in attempts per key. Implementations: memory.RateLimiter (GCRA).
type RateLimiter interface {
	// Allow charges one attempt against key. When the result is not allowed,
	// RetryAfter says when the next attempt will be. Keys come from FormatKey
	// or EmailKey.
	Allow(ctx context.Context, key string, config RateLimitConfig) (RateLimitResult, error)

	// Reset forgets key, e.g. the email bucket after a successful sign-in.
	Reset(key string)
}
